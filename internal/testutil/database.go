// Package testutil provides test helpers for setting up in-memory stores,
// creating fixtures, injecting store faults, and making assertions.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"jadbank/internal/repository"
	"jadbank/internal/store"
)

var dbCounter atomic.Int64

// SetupTestDB creates a private in-memory SQLite database with the row
// store table migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&store.RowRecord{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { TeardownTestDB(t, db) })
	return db
}

// TeardownTestDB closes the underlying database connection.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	_ = sqlDB.Close()
}

// SetupTestStore returns a repository over a fresh in-memory row store.
func SetupTestStore(t *testing.T) *repository.Repository {
	t.Helper()
	return repository.New(store.NewMemoryStore())
}

// SetupFaultyStore returns a repository whose store can be told to fail.
func SetupFaultyStore(t *testing.T) (*repository.Repository, *FaultyStore) {
	t.Helper()
	fs := NewFaultyStore(store.NewMemoryStore())
	return repository.New(fs), fs
}
