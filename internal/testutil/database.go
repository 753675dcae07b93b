package testutil

import (
	"context"
	"testing"

	"helpdesk/internal/config"
	"helpdesk/internal/database"
)

// NewTestDatabase creates an in-memory SQLite database with migrations applied.
// The database is closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(context.Background(), config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// NewTestFileDatabase creates a migrated SQLite database file at path, for
// tests that copy the live file.
func NewTestFileDatabase(t *testing.T, path string) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(context.Background(), config.DatabaseConfig{Type: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
