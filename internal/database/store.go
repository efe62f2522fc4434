// Package database provides storage backends for listings, accounts and
// ingestion state.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/bryan-buckman/sftu/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	SupportsHighConcurrency() bool

	// Migrate applies the application schema. It is safe to run repeatedly
	// and returns the names of the auth tables it ensured.
	Migrate(ctx context.Context) ([]string, error)

	// Listing operations
	ListListings(ctx context.Context) ([]model.Listing, error)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	UpsertListing(ctx context.Context, l *model.Listing) (bool, error)
	SetRecordSummary(ctx context.Context, listingID string, rs model.RecordSummary) error
	SaveListing(ctx context.Context, userID, listingID string) error
	UnsaveListing(ctx context.Context, userID, listingID string) error
	SavedListings(ctx context.Context, userID string) ([]model.Listing, error)
	CountSaved(ctx context.Context, userID string) (int, error)

	// User and session operations
	UpsertUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	LinkAccount(ctx context.Context, a *model.Account) error
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, *model.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Source operations
	GetSources(ctx context.Context) ([]model.Source, error)
	GetOrCreateSource(ctx context.Context, title, url, neighborhood string) (int64, bool, error)
	UpdateSourceFetched(ctx context.Context, sourceID int64, t time.Time) error
	UpdateSourceError(ctx context.Context, sourceID int64, errMsg string) error

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetPollingInterval(ctx context.Context) (int, error)
}
