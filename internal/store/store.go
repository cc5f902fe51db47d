// Package store persists cache snapshots and reconciliation history in
// SQLite or Postgres.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-engine/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = eris.New("store: not found")

// DefaultListLimit caps ListReconciliations when the caller passes no limit.
const DefaultListLimit = 50

// Store defines persistence for the property engine.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, blob []byte) (string, error)
	LatestSnapshot(ctx context.Context) ([]byte, error)

	// Reconciliation history
	RecordReconciliation(ctx context.Context, e model.HistoryEntry) error
	// ListReconciliations returns the newest entries first. An empty url
	// lists every listing.
	ListReconciliations(ctx context.Context, url string, limit int) ([]model.HistoryEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured driver: "sqlite" (dsn is a file path) or
// "postgres" (dsn is a connection string).
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	if dsn == "" {
		return nil, eris.New("store: database url is required")
	}
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
