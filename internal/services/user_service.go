package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// UserService mirrors identity provider profiles into the users table.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpsertUser inserts the user or refreshes its profile fields. Gamification
// counters of an existing row are never touched.
func (s *UserService) UpsertUser(ctx context.Context, claims identity.Claims) (*models.User, error) {
	user := models.User{
		ID:              claims.Subject,
		Email:           optional(claims.Email),
		FirstName:       optional(claims.FirstName),
		LastName:        optional(claims.LastName),
		ProfileImageURL: optional(claims.ProfileImageURL),
		Level:           1,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"email":             user.Email,
			"first_name":        user.FirstName,
			"last_name":         user.LastName,
			"profile_image_url": user.ProfileImageURL,
			"updated_at":        time.Now().UTC(),
		}),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return s.GetUser(ctx, claims.Subject)
}

// EnsureUser makes sure a row exists for the authenticated subject and only
// writes when the profile claims changed.
func (s *UserService) EnsureUser(ctx context.Context, claims identity.Claims) (*models.User, error) {
	user, err := s.GetUser(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return s.UpsertUser(ctx, claims)
	}
	if err != nil {
		return nil, err
	}

	if deref(user.Email) == claims.Email &&
		deref(user.FirstName) == claims.FirstName &&
		deref(user.LastName) == claims.LastName &&
		deref(user.ProfileImageURL) == claims.ProfileImageURL {
		return user, nil
	}
	return s.UpsertUser(ctx, claims)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
