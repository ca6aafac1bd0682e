package gamification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNegativeXP = errors.New("xp delta must not be negative")

// XPResult describes the user's state after an XP mutation.
type XPResult struct {
	XP            int          `json:"xp"`
	Level         int          `json:"level"`
	PreviousLevel int          `json:"previousLevel"`
	Achievement   *Achievement `json:"achievement,omitempty"`
}

type Service struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewService(db *gorm.DB, c cache.Cache) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{db: db, cache: c}
}

// WithTx returns a Service whose writes join tx. Callers that use it own
// stats cache invalidation after commit.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, cache: s.cache}
}

// AddXP adds delta to the user's xp and recomputes the level in one update.
// When the level rises a single zero-reward achievement naming the final
// level is created, even if several boundaries were crossed.
func (s *Service) AddXP(ctx context.Context, userID string, delta int) (*XPResult, error) {
	if delta < 0 {
		return nil, ErrNegativeXP
	}

	var result XPResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := LockUser(tx, userID)
		if err != nil {
			return err
		}

		newXP := user.XP + delta
		newLevel := LevelForXP(newXP)
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{"xp": newXP, "level": newLevel}).Error; err != nil {
			return fmt.Errorf("failed to update xp: %w", err)
		}

		result = XPResult{XP: newXP, Level: newLevel, PreviousLevel: user.Level}
		if newLevel > user.Level {
			achievement := levelUpAchievement(userID, newLevel)
			if err := tx.Create(&achievement).Error; err != nil {
				return fmt.Errorf("failed to create level-up achievement: %w", err)
			}
			result.Achievement = &achievement
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.XPAwarded.Add(float64(delta))
	if result.Achievement != nil {
		metrics.LevelUps.Inc()
		slog.Info("level up", "user_id", userID, "level", result.Level)
	}
	return &result, nil
}

// TouchStreak records activity on the UTC calendar day of at. A second event
// on the same day changes nothing, the next day extends the streak, and any
// gap restarts it at 1.
func (s *Service) TouchStreak(ctx context.Context, userID string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := LockUser(tx, userID)
		if err != nil {
			return err
		}

		today := at.UTC().Truncate(24 * time.Hour)
		current := 1
		if user.LastActivityDate != nil {
			lastDay := user.LastActivityDate.UTC().Truncate(24 * time.Hour)
			switch {
			case !lastDay.Before(today):
				return nil
			case lastDay.Equal(today.Add(-24 * time.Hour)):
				current = user.CurrentStreak + 1
			}
		}

		longest := user.LongestStreak
		if current > longest {
			longest = current
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"current_streak":     current,
			"longest_streak":     longest,
			"last_activity_date": at.UTC(),
		}).Error
	})
}

// CreateAchievement inserts the achievement unconditionally. A positive
// reward is fed into AddXP, which may in turn add a level-up achievement.
func (s *Service) CreateAchievement(ctx context.Context, a *Achievement) (*Achievement, error) {
	if a.XPReward < 0 {
		return nil, ErrNegativeXP
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := LockUser(tx, a.UserID); err != nil {
			return err
		}
		a.ID = 0
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("failed to create achievement: %w", err)
		}
		if a.XPReward > 0 {
			if _, err := s.WithTx(tx).AddXP(ctx, a.UserID, a.XPReward); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if a.XPReward > 0 {
		s.invalidateStats(ctx, a.UserID)
	}
	return a, nil
}

// ListAchievements returns the user's achievements, newest first.
func (s *Service) ListAchievements(ctx context.Context, userID string) ([]Achievement, error) {
	achievements := []Achievement{}
	err := s.db.WithContext(ctx).Scopes(identity.ForUser(userID)).
		Order("unlocked_at DESC").
		Order("id DESC").
		Find(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return achievements, nil
}

func (s *Service) invalidateStats(ctx context.Context, userID string) {
	if err := cache.InvalidateStats(ctx, s.cache, userID); err != nil {
		slog.Warn("stats cache invalidation failed", "user_id", userID, "error", err)
	}
}

// LockUser loads the user row FOR UPDATE so concurrent writers for the same
// user serialize inside their transactions.
func LockUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
