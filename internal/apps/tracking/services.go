package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps/gamification"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrCourseNotFound = errors.New("course not found")

// Store is the tracking data store consumed by the HTTP handlers.
type Store interface {
	ListCourses(ctx context.Context, userID string) ([]Course, error)
	GetCourse(ctx context.Context, userID string, id uint) (*CourseDetail, error)
	CreateCourse(ctx context.Context, course *Course) (*Course, error)
	UpdateCourse(ctx context.Context, userID string, id uint, update CourseUpdate) (*Course, error)
	DeleteCourse(ctx context.Context, userID string, id uint) error

	ListCompounds(ctx context.Context, userID string, courseID uint) ([]CourseCompound, error)
	CreateCompound(ctx context.Context, userID string, compound *CourseCompound) (*CourseCompound, error)

	ListInjections(ctx context.Context, userID string, limit int) ([]Injection, error)
	CreateInjection(ctx context.Context, injection *Injection) (*Injection, error)
	ListBloodTests(ctx context.Context, userID string, limit int) ([]BloodTest, error)
	CreateBloodTest(ctx context.Context, test *BloodTest) (*BloodTest, error)
	ListProgressPhotos(ctx context.Context, userID string, limit int) ([]ProgressPhoto, error)
	CreateProgressPhoto(ctx context.Context, photo *ProgressPhoto) (*ProgressPhoto, error)

	Stats(ctx context.Context, userID string) (*Stats, error)
	Activity(ctx context.Context, userID string) ([]ActivityItem, error)
}

// CourseUpdate is a field patch; nil fields are left unchanged.
type CourseUpdate struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *string
	CourseType  *string
	TotalWeeks  *int
}

type Service struct {
	db       *gorm.DB
	xp       *gamification.Service
	cache    cache.Cache
	statsTTL time.Duration
	now      func() time.Time
}

func NewService(db *gorm.DB, xp *gamification.Service, c cache.Cache, statsTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{db: db, xp: xp, cache: c, statsTTL: statsTTL, now: time.Now}
}

// --- Courses ---

func (s *Service) ListCourses(ctx context.Context, userID string) ([]Course, error) {
	courses := []Course{}
	err := s.db.WithContext(ctx).Scopes(identity.ForUser(userID)).
		Order("created_at DESC").Order("id DESC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

func (s *Service) GetCourse(ctx context.Context, userID string, id uint) (*CourseDetail, error) {
	course, err := findCourse(s.db.WithContext(ctx), userID, id)
	if err != nil {
		return nil, err
	}
	compounds, err := s.listCompounds(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return &CourseDetail{Course: *course, Compounds: compounds}, nil
}

// CreateCourse inserts the course and bumps the owner's totalCourses.
func (s *Service) CreateCourse(ctx context.Context, course *Course) (*Course, error) {
	if course.Status == "" {
		course.Status = StatusActive
	}
	if course.CurrentWeek <= 0 {
		course.CurrentWeek = 1
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := gamification.LockUser(tx, course.UserID); err != nil {
			return err
		}
		course.ID = 0
		if err := tx.Create(course).Error; err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
		return bumpCounter(tx, course.UserID, "total_courses")
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, course.UserID, "course")
	return course, nil
}

func (s *Service) UpdateCourse(ctx context.Context, userID string, id uint, update CourseUpdate) (*Course, error) {
	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.StartDate != nil {
		updates["start_date"] = datatypes.Date(*update.StartDate)
	}
	if update.EndDate != nil {
		updates["end_date"] = datatypes.Date(*update.EndDate)
	}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.CourseType != nil {
		updates["course_type"] = *update.CourseType
	}
	if update.TotalWeeks != nil {
		updates["total_weeks"] = *update.TotalWeeks
	}

	var course *Course
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		course, err = findCourse(tx, userID, id)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(course).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}
		course, err = findCourse(tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		s.invalidateStats(ctx, userID)
	}
	return course, nil
}

// DeleteCourse removes the course and its compounds. Logged events keep their
// history and lose the course reference.
func (s *Service) DeleteCourse(ctx context.Context, userID string, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCourse(tx, userID, id); err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&CourseCompound{}).Error; err != nil {
			return fmt.Errorf("failed to delete compounds: %w", err)
		}
		for _, model := range []interface{}{&Injection{}, &BloodTest{}, &ProgressPhoto{}} {
			if err := tx.Model(model).Where("course_id = ?", id).Update("course_id", nil).Error; err != nil {
				return fmt.Errorf("failed to detach events: %w", err)
			}
		}
		if err := tx.Delete(&Course{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete course: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateStats(ctx, userID)
	return nil
}

// --- Compounds ---

func (s *Service) ListCompounds(ctx context.Context, userID string, courseID uint) ([]CourseCompound, error) {
	db := s.db.WithContext(ctx)
	if _, err := findCourse(db, userID, courseID); err != nil {
		return nil, err
	}
	return s.listCompounds(db, courseID)
}

func (s *Service) CreateCompound(ctx context.Context, userID string, compound *CourseCompound) (*CourseCompound, error) {
	if compound.StartWeek <= 0 {
		compound.StartWeek = 1
	}
	if compound.InjectionSites == nil {
		compound.InjectionSites = datatypes.JSONSlice[string]{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCourse(tx, userID, compound.CourseID); err != nil {
			return err
		}
		compound.ID = 0
		if err := tx.Create(compound).Error; err != nil {
			return fmt.Errorf("failed to create compound: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return compound, nil
}

func (s *Service) listCompounds(db *gorm.DB, courseID uint) ([]CourseCompound, error) {
	compounds := []CourseCompound{}
	if err := db.Where("course_id = ?", courseID).Order("id ASC").Find(&compounds).Error; err != nil {
		return nil, fmt.Errorf("failed to list compounds: %w", err)
	}
	return compounds, nil
}

// --- Events ---

// ListInjections returns the newest injections by injection date. A
// non-positive limit means DefaultInjectionLimit.
func (s *Service) ListInjections(ctx context.Context, userID string, limit int) ([]Injection, error) {
	if limit <= 0 {
		limit = DefaultInjectionLimit
	}
	injections := []Injection{}
	err := s.db.WithContext(ctx).Scopes(identity.ForUser(userID)).
		Order("injection_date DESC").Order("id DESC").
		Limit(limit).
		Find(&injections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list injections: %w", err)
	}
	return injections, nil
}

func (s *Service) CreateInjection(ctx context.Context, injection *Injection) (*Injection, error) {
	if injection.XPEarned <= 0 {
		injection.XPEarned = DefaultInjectionXP
	}
	if injection.InjectionDate.IsZero() {
		injection.InjectionDate = s.now().UTC()
	}

	err := s.recordEvent(ctx, injection.UserID, injection.CourseID, injection.XPEarned, "total_injections", func(tx *gorm.DB) error {
		injection.ID = 0
		if err := tx.Create(injection).Error; err != nil {
			return fmt.Errorf("failed to create injection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, injection.UserID, "injection")
	return injection, nil
}

// ListBloodTests returns blood tests by test date, newest first. A
// non-positive limit returns all of them.
func (s *Service) ListBloodTests(ctx context.Context, userID string, limit int) ([]BloodTest, error) {
	tests := []BloodTest{}
	q := s.db.WithContext(ctx).Scopes(identity.ForUser(userID)).
		Order("test_date DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tests).Error; err != nil {
		return nil, fmt.Errorf("failed to list blood tests: %w", err)
	}
	return tests, nil
}

// CreateBloodTest stores the test. When the caller did not supply alert flags
// they are computed from the results against ReferenceRanges.
func (s *Service) CreateBloodTest(ctx context.Context, test *BloodTest) (*BloodTest, error) {
	if test.XPEarned <= 0 {
		test.XPEarned = DefaultBloodTestXP
	}
	if test.Results == nil {
		test.Results = datatypes.JSONMap{}
	}
	if test.AlertFlags == nil {
		test.AlertFlags = AlertFlags(test.Results)
	}

	err := s.recordEvent(ctx, test.UserID, test.CourseID, test.XPEarned, "total_blood_tests", func(tx *gorm.DB) error {
		test.ID = 0
		if err := tx.Create(test).Error; err != nil {
			return fmt.Errorf("failed to create blood test: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, test.UserID, "blood_test")
	return test, nil
}

func (s *Service) ListProgressPhotos(ctx context.Context, userID string, limit int) ([]ProgressPhoto, error) {
	photos := []ProgressPhoto{}
	q := s.db.WithContext(ctx).Scopes(identity.ForUser(userID)).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("failed to list progress photos: %w", err)
	}
	return photos, nil
}

// CreateProgressPhoto awards XP but bumps no counter; photo totals are
// always counted live.
func (s *Service) CreateProgressPhoto(ctx context.Context, photo *ProgressPhoto) (*ProgressPhoto, error) {
	if photo.XPEarned <= 0 {
		photo.XPEarned = DefaultPhotoXP
	}

	err := s.recordEvent(ctx, photo.UserID, photo.CourseID, photo.XPEarned, "", func(tx *gorm.DB) error {
		photo.ID = 0
		if err := tx.Create(photo).Error; err != nil {
			return fmt.Errorf("failed to create progress photo: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, photo.UserID, "photo")
	return photo, nil
}

// recordEvent runs insert, XP award, counter bump and streak update in one
// transaction.
func (s *Service) recordEvent(ctx context.Context, userID string, courseID *uint, xp int, counter string, insert func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := gamification.LockUser(tx, userID); err != nil {
			return err
		}
		if courseID != nil {
			if _, err := findCourse(tx, userID, *courseID); err != nil {
				return err
			}
		}
		if err := insert(tx); err != nil {
			return err
		}

		xpSvc := s.xp.WithTx(tx)
		if _, err := xpSvc.AddXP(ctx, userID, xp); err != nil {
			return err
		}
		if counter != "" {
			if err := bumpCounter(tx, userID, counter); err != nil {
				return err
			}
		}
		return xpSvc.TouchStreak(ctx, userID, s.now())
	})
}

// --- Dashboard ---

// Stats returns the dashboard counters, served from cache when possible.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	version, err := cache.StatsVersion(ctx, s.cache, userID)
	if err != nil {
		slog.Warn("stats cache version read failed", "user_id", userID, "error", err)
		return s.computeStats(ctx, userID)
	}
	key := cache.StatsKey(userID, version)

	var cached Stats
	err = s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("stats cache read failed", "user_id", userID, "error", err)
	}

	stats, err := s.computeStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
		slog.Warn("stats cache write failed", "user_id", userID, "error", err)
	}
	return stats, nil
}

func (s *Service) computeStats(ctx context.Context, userID string) (*Stats, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var activeCourses, totalPhotos int64
	if err := db.Model(&Course{}).Scopes(identity.ForUser(userID)).
		Where("status = ?", StatusActive).Count(&activeCourses).Error; err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}
	if err := db.Model(&ProgressPhoto{}).Scopes(identity.ForUser(userID)).
		Count(&totalPhotos).Error; err != nil {
		return nil, fmt.Errorf("failed to count photos: %w", err)
	}

	return &Stats{
		ActiveCourses:   int(activeCourses),
		TotalInjections: user.TotalInjections,
		TotalBloodTests: user.TotalBloodTests,
		TotalPhotos:     int(totalPhotos),
		CurrentStreak:   user.CurrentStreak,
		Level:           user.Level,
		XP:              user.XP,
	}, nil
}

// Activity merges the latest 5 injections, 3 blood tests and 3 photos,
// newest first, capped at 10 items.
func (s *Service) Activity(ctx context.Context, userID string) ([]ActivityItem, error) {
	injections, err := s.ListInjections(ctx, userID, 5)
	if err != nil {
		return nil, err
	}
	tests, err := s.ListBloodTests(ctx, userID, 3)
	if err != nil {
		return nil, err
	}
	photos, err := s.ListProgressPhotos(ctx, userID, 3)
	if err != nil {
		return nil, err
	}

	items := make([]ActivityItem, 0, len(injections)+len(tests)+len(photos))
	for _, inj := range injections {
		items = append(items, ActivityItem{
			ID:          fmt.Sprintf("injection-%d", inj.ID),
			Type:        "injection",
			Title:       fmt.Sprintf("%s %s%s", inj.CompoundName, strconv.FormatFloat(inj.DosageAmount, 'f', -1, 64), inj.DosageUnit),
			Description: "Injection in " + inj.InjectionSite,
			Date:        inj.InjectionDate,
			XP:          inj.XPEarned,
			Icon:        "syringe",
			Color:       "health-green",
		})
	}
	for _, test := range tests {
		items = append(items, ActivityItem{
			ID:          fmt.Sprintf("bloodtest-%d", test.ID),
			Type:        "bloodtest",
			Title:       "Blood Test Results",
			Description: strings.Replace(test.TestType, "_", " ", 1),
			Date:        time.Time(test.TestDate),
			XP:          test.XPEarned,
			Icon:        "vial",
			Color:       "energy-orange",
		})
	}
	for _, photo := range photos {
		items = append(items, ActivityItem{
			ID:          fmt.Sprintf("photo-%d", photo.ID),
			Type:        "photo",
			Title:       "Progress Photo",
			Description: photo.BodyPart + " photo",
			Date:        photo.CreatedAt,
			XP:          photo.XPEarned,
			Icon:        "camera",
			Color:       "medical-blue",
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	if len(items) > 10 {
		items = items[:10]
	}
	return items, nil
}

// --- helpers ---

func (s *Service) afterWrite(ctx context.Context, userID, eventType string) {
	metrics.EventsLogged.WithLabelValues(eventType).Inc()
	s.invalidateStats(ctx, userID)
}

func (s *Service) invalidateStats(ctx context.Context, userID string) {
	if err := cache.InvalidateStats(ctx, s.cache, userID); err != nil {
		slog.Warn("stats cache invalidation failed", "user_id", userID, "error", err)
	}
}

func findCourse(db *gorm.DB, userID string, id uint) (*Course, error) {
	var course Course
	err := db.Scopes(identity.ForUser(userID)).First(&course, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	return &course, nil
}

func bumpCounter(tx *gorm.DB, userID, column string) error {
	err := tx.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}
