// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"careerhub/internal/model"
)

// NewDB opens a file-backed sqlite database in a temp dir and migrates the
// schema. A single connection serializes writers so the unique indexes are
// what decides concurrent conflicts.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "careerhub.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.AuditEvent{}))
	return db
}

// SeedUser inserts a user with the given username and email and a throwaway hash.
func SeedUser(t *testing.T, db *gorm.DB, name, username, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
