package helpdesk

import (
	"context"

	"helpdesk/internal/model"
)

// PrincipalStore looks up users by id for the integrity guard.
type PrincipalStore interface {
	// FindUserByID returns nil, nil when no user has the given id.
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
}

// SchemaInspector exposes the store's schema catalog.
type SchemaInspector interface {
	// ListRelations returns the names of all user relations (tables).
	ListRelations(ctx context.Context) ([]string, error)

	// RelationColumns returns the ordered (name, declared type) pairs of a relation.
	RelationColumns(ctx context.Context, relation string) ([]model.Column, error)
}

// SettingsStore is the key/value configuration store (configuracoes).
type SettingsStore interface {
	// GetSetting returns the value and whether the key exists.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SetSetting inserts or replaces a value.
	SetSetting(ctx context.Context, key, value, description string) error
}

// Database provides the metadata operations used by the services in this package.
type Database interface {
	PrincipalStore
	SchemaInspector
	SettingsStore

	// FindUserByUsername returns nil, nil when no user has the given name.
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)

	// SetUserPassword stores a password hash and marks the initial password as set.
	SetUserPassword(ctx context.Context, id int64, hash string) error

	// TicketCounts reads the dashboard aggregates for tickets opened within r.
	TicketCounts(ctx context.Context, r model.DateRange) (*model.TicketCounts, error)

	// DatabaseStats reports the file size and user tables of the live database.
	DatabaseStats(ctx context.Context) (*model.DatabaseStats, error)

	// Path returns the live database file path.
	Path() string

	// Close closes the database connection.
	Close() error
}
