// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns an in-memory SQLite database with the shared models and the
// given plugin models migrated. Each test gets its own database.
func NewDB(t *testing.T, pluginModels ...interface{}) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateShared(db))
	require.NoError(t, database.MigrateModels(db, pluginModels))
	return db
}

// CreateUser inserts a fresh user with default gamification counters.
func CreateUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	email := id + "@example.com"
	user := &models.User{ID: id, Email: &email}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.First(user, "id = ?", id).Error)
	return user
}
