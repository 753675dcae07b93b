package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"helpdesk/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory database", func(t *testing.T) {
		got, err := NewDatabaseFromConfig(ctx, config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() = %v", err)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "helpdesk.db")
		got, err := NewDatabaseFromConfig(ctx, config.DatabaseConfig{Type: "sqlite", Path: path})
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("database file not created: %v", err)
		}
		if got.Path() != path {
			t.Errorf("Path() = %q, want %q", got.Path(), path)
		}
	})

	t.Run("sqlite without path", func(t *testing.T) {
		if _, err := NewDatabaseFromConfig(ctx, config.DatabaseConfig{Type: "sqlite"}); err == nil {
			t.Error("NewDatabaseFromConfig() expected error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewDatabaseFromConfig(ctx, config.DatabaseConfig{Type: "postgres"}); err == nil {
			t.Error("NewDatabaseFromConfig() expected error")
		}
	})
}
