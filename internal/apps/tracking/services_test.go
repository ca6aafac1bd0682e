package tracking

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps/gamification"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func dateOf(y int, m time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestStatsForNewUser(t *testing.T) {
	f := newFixture(t)

	stats, err := f.svc.Stats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, Stats{Level: 1}, *stats)
}

func TestStatsUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Stats(context.Background(), "ghost")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.False(t, f.cache.has(f.cache.statsKey(t, "ghost")))
}

func TestCreateInjectionDefaults(t *testing.T) {
	f := newFixture(t)

	inj := f.injection(t, "u1", time.Now().UTC())

	assert.Equal(t, DefaultInjectionXP, inj.XPEarned)
	user := f.user(t, "u1")
	assert.Equal(t, 15, user.XP)
	assert.Equal(t, 1, user.TotalInjections)
	assert.Equal(t, 0, user.TotalBloodTests)
	assert.Equal(t, 1, user.CurrentStreak)
}

func TestCreateInjectionExplicitXP(t *testing.T) {
	f := newFixture(t)

	inj, err := f.svc.CreateInjection(context.Background(), &Injection{
		UserID: "u1", CompoundName: "Nandrolone", DosageAmount: 100, DosageUnit: "mg",
		InjectionSite: "delt", XPEarned: 40,
	})
	require.NoError(t, err)

	assert.Equal(t, 40, inj.XPEarned)
	assert.False(t, inj.InjectionDate.IsZero())
	assert.Equal(t, 40, f.user(t, "u1").XP)
}

func TestCreateBloodTestDefaultsAndFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	test, err := f.svc.CreateBloodTest(ctx, &BloodTest{
		UserID:   "u1",
		TestDate: dateOf(2025, 2, 1),
		TestType: "hormone_panel",
		Results:  datatypes.JSONMap{"Тестостерон общий": "40", "Неизвестный маркер": "999"},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultBloodTestXP, test.XPEarned)
	assert.Equal(t, []string{"Тестостерон общий above normal"}, []string(test.AlertFlags))

	user := f.user(t, "u1")
	assert.Equal(t, 25, user.XP)
	assert.Equal(t, 1, user.TotalBloodTests)
	assert.Equal(t, 0, user.TotalInjections)

	var stored BloodTest
	require.NoError(t, f.db.First(&stored, test.ID).Error)
	assert.Equal(t, "40", stored.Results["Тестостерон общий"])
	assert.Len(t, stored.AlertFlags, 1)
}

func TestCreateBloodTestKeepsClientFlags(t *testing.T) {
	f := newFixture(t)

	test, err := f.svc.CreateBloodTest(context.Background(), &BloodTest{
		UserID:     "u1",
		TestDate:   dateOf(2025, 2, 1),
		TestType:   "full_panel",
		Results:    datatypes.JSONMap{"АЛТ": "20"},
		AlertFlags: datatypes.JSONSlice[string]{"АЛТ выше нормы"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"АЛТ выше нормы"}, []string(test.AlertFlags))
}

func TestCreateProgressPhotoCountsLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProgressPhoto(ctx, &ProgressPhoto{UserID: "u1", PhotoURL: "/uploads/photo-1.jpg", BodyPart: "chest"})
	require.NoError(t, err)

	user := f.user(t, "u1")
	assert.Equal(t, 10, user.XP)
	assert.Equal(t, 0, user.TotalInjections)
	assert.Equal(t, 0, user.TotalBloodTests)
	assert.Equal(t, 0, user.TotalCourses)

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPhotos)
	assert.Equal(t, 10, stats.XP)
}

func TestListInjectionsOrderedByInjectionDate(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	middle := f.injection(t, "u1", base.Add(24*time.Hour))
	oldest := f.injection(t, "u1", base)
	newest := f.injection(t, "u1", base.Add(48*time.Hour))

	list, err := f.svc.ListInjections(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint{newest.ID, middle.ID, oldest.ID}, []uint{list[0].ID, list[1].ID, list[2].ID})

	limited, err := f.svc.ListInjections(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEventsCrossLevelBoundary(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		f.injection(t, "u1", base.Add(time.Duration(i)*time.Hour))
	}

	user := f.user(t, "u1")
	assert.Equal(t, 300, user.XP)
	assert.Equal(t, 2, user.Level)
	assert.Equal(t, 20, user.TotalInjections)

	achievements, err := gamification.NewService(f.db, nil).ListAchievements(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, "Level 2 Reached!", achievements[0].AchievementName)
}

func TestCreateEventUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateProgressPhoto(context.Background(), &ProgressPhoto{UserID: "ghost", PhotoURL: "/x.jpg", BodyPart: "arms"})
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	var n int64
	f.db.Model(&ProgressPhoto{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestCreateEventForeignCourseRollsBack(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.db, "u2")
	foreign := f.course(t, "u2", "Someone else's cycle")

	_, err := f.svc.CreateInjection(context.Background(), &Injection{
		UserID: "u1", CourseID: &foreign.ID, CompoundName: "Test E", DosageAmount: 1,
		DosageUnit: "ml", InjectionSite: "glute",
	})
	assert.ErrorIs(t, err, ErrCourseNotFound)

	user := f.user(t, "u1")
	assert.Equal(t, 0, user.XP)
	assert.Equal(t, 0, user.TotalInjections)
	var n int64
	f.db.Model(&Injection{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestCourseLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course := f.course(t, "u1", "Winter bulk")
	assert.Equal(t, StatusActive, course.Status)
	assert.Equal(t, 1, course.CurrentWeek)
	assert.Equal(t, 1, f.user(t, "u1").TotalCourses)

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveCourses)

	paused := StatusPaused
	weeks := 12
	updated, err := f.svc.UpdateCourse(ctx, "u1", course.ID, CourseUpdate{Status: &paused, TotalWeeks: &weeks})
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, updated.Status)
	require.NotNil(t, updated.TotalWeeks)
	assert.Equal(t, 12, *updated.TotalWeeks)
	assert.Equal(t, "Winter bulk", updated.Name)

	stats, err = f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveCourses)

	custom := "deload"
	updated, err = f.svc.UpdateCourse(ctx, "u1", course.ID, CourseUpdate{Status: &custom})
	require.NoError(t, err)
	assert.Equal(t, "deload", updated.Status)
}

func TestGetCourseIncludesCompounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "u1", "Cut")

	_, err := f.svc.CreateCompound(ctx, "u1", &CourseCompound{
		CourseID: course.ID, CompoundName: "Testosterone enanthate", DosageAmount: 250.5,
		DosageUnit: "mg", Frequency: 2, InjectionSites: datatypes.JSONSlice[string]{"glute", "delt"},
	})
	require.NoError(t, err)

	detail, err := f.svc.GetCourse(ctx, "u1", course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cut", detail.Name)
	require.Len(t, detail.Compounds, 1)
	assert.Equal(t, 250.5, detail.Compounds[0].DosageAmount)
	assert.Equal(t, 1, detail.Compounds[0].StartWeek)
	assert.Equal(t, []string{"glute", "delt"}, []string(detail.Compounds[0].InjectionSites))

	testutil.CreateUser(t, f.db, "u2")
	_, err = f.svc.GetCourse(ctx, "u2", course.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = f.svc.CreateCompound(ctx, "u2", &CourseCompound{CourseID: course.ID, CompoundName: "x", DosageUnit: "mg", Frequency: 1})
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestDeleteCourseDetachesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.course(t, "u1", "Summer cut")

	_, err := f.svc.CreateCompound(ctx, "u1", &CourseCompound{CourseID: course.ID, CompoundName: "x", DosageAmount: 1, DosageUnit: "mg", Frequency: 1})
	require.NoError(t, err)
	inj, err := f.svc.CreateInjection(ctx, &Injection{
		UserID: "u1", CourseID: &course.ID, CompoundName: "x", DosageAmount: 1, DosageUnit: "mg", InjectionSite: "glute",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCourse(ctx, "u1", course.ID))

	_, err = f.svc.GetCourse(ctx, "u1", course.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	var compounds int64
	f.db.Model(&CourseCompound{}).Where("course_id = ?", course.ID).Count(&compounds)
	assert.Equal(t, int64(0), compounds)

	var stored Injection
	require.NoError(t, f.db.First(&stored, inj.ID).Error)
	assert.Nil(t, stored.CourseID)

	assert.Equal(t, 1, f.user(t, "u1").TotalCourses)
	assert.ErrorIs(t, f.svc.DeleteCourse(ctx, "u1", course.ID), ErrCourseNotFound)
}

func TestActivityMergesAndCaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		f.injection(t, "u1", base.Add(time.Duration(i)*time.Hour))
	}
	for i := 0; i < 4; i++ {
		_, err := f.svc.CreateBloodTest(ctx, &BloodTest{
			UserID: "u1", TestDate: dateOf(2025, 3, 1+i), TestType: "full_panel", Results: datatypes.JSONMap{},
		})
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		_, err := f.svc.CreateProgressPhoto(ctx, &ProgressPhoto{UserID: "u1", PhotoURL: "/p.jpg", BodyPart: "back"})
		require.NoError(t, err)
	}

	items, err := f.svc.Activity(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 10)

	counts := map[string]int{}
	for i, item := range items {
		counts[item.Type]++
		if i > 0 {
			assert.False(t, item.Date.After(items[i-1].Date), "items must be newest first")
		}
	}
	assert.Equal(t, 3, counts["photo"])
	assert.Equal(t, 5, counts["injection"])
	assert.Equal(t, 2, counts["bloodtest"])

	first := items[0]
	assert.Equal(t, "photo", first.Type)
	assert.True(t, strings.HasPrefix(first.ID, "photo-"))
	assert.Equal(t, "back photo", first.Description)
	assert.Equal(t, "camera", first.Icon)

	inj := items[3]
	assert.Equal(t, "injection", inj.Type)
	assert.Equal(t, "Testosterone 250mg", inj.Title)
	assert.Equal(t, "Injection in glute", inj.Description)
	assert.Equal(t, 15, inj.XP)
	assert.Equal(t, "health-green", inj.Color)

	last := items[9]
	assert.Equal(t, "bloodtest", last.Type)
	assert.Equal(t, "Blood Test Results", last.Title)
	assert.Equal(t, "full panel", last.Description)
	assert.Equal(t, "vial", last.Icon)
}

func TestStatsCacheIsInvalidatedByWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, f.cache.has(f.cache.statsKey(t, "u1")))

	f.injection(t, "u1", time.Now().UTC())
	assert.False(t, f.cache.has(f.cache.statsKey(t, "u1")))

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XP)
	assert.Equal(t, 1, stats.TotalInjections)
}

func TestStatsComputedBeforeWriteAreNotServedAfterIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A read that started before the injection committed stores its result
	// only after the write has invalidated.
	staleKey := f.cache.statsKey(t, "u1")
	stale, err := f.svc.computeStats(ctx, "u1")
	require.NoError(t, err)

	f.injection(t, "u1", time.Now().UTC())
	require.NoError(t, f.cache.Set(ctx, staleKey, stale, time.Minute))

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.XP)
	assert.Equal(t, 1, stats.TotalInjections)
}

func TestStatsServedFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, f.cache.statsKey(t, "u1"), Stats{Level: 7, XP: 1999}, time.Minute))

	stats, err := f.svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Level)
}
