package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps/gamification"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryCache is an in-process cache.Cache for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	if err := m.Get(ctx, key, &n); err != nil && !errors.Is(err, cache.ErrMiss) {
		return 0, err
	}
	n++
	return n, m.Set(ctx, key, n, 0)
}

func (m *memoryCache) Ping(context.Context) error { return nil }

// statsKey is the key the next Stats call for userID reads.
func (m *memoryCache) statsKey(t *testing.T, userID string) string {
	t.Helper()
	version, err := cache.StatsVersion(context.Background(), m, userID)
	require.NoError(t, err)
	return cache.StatsKey(userID, version)
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

type fixture struct {
	db    *gorm.DB
	svc   *Service
	cache *memoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&gamification.Achievement{},
		&Course{},
		&CourseCompound{},
		&Injection{},
		&BloodTest{},
		&ProgressPhoto{},
	)
	testutil.CreateUser(t, db, "u1")

	mc := newMemoryCache()
	return &fixture{
		db:    db,
		svc:   NewService(db, gamification.NewService(db, mc), mc, time.Minute),
		cache: mc,
	}
}

func (f *fixture) user(t *testing.T, id string) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.First(&user, "id = ?", id).Error)
	return user
}

func (f *fixture) injection(t *testing.T, userID string, at time.Time) *Injection {
	t.Helper()
	inj, err := f.svc.CreateInjection(context.Background(), &Injection{
		UserID:        userID,
		CompoundName:  "Testosterone",
		DosageAmount:  250,
		DosageUnit:    "mg",
		InjectionSite: "glute",
		InjectionDate: at,
	})
	require.NoError(t, err)
	return inj
}

func (f *fixture) course(t *testing.T, userID, name string) *Course {
	t.Helper()
	course, err := f.svc.CreateCourse(context.Background(), &Course{
		UserID:     userID,
		Name:       name,
		CourseType: "bulk",
		StartDate:  dateOf(2025, 1, 6),
	})
	require.NoError(t, err)
	return course
}
