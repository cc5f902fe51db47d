package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create dir")
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_snapshots (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reconciliations (
	id               TEXT PRIMARY KEY,
	url              TEXT NOT NULL,
	cache_key        TEXT NOT NULL,
	source_tier      TEXT NOT NULL,
	resolved_address TEXT NOT NULL,
	score            INTEGER NOT NULL,
	record           TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cache_snapshots_created_at ON cache_snapshots(created_at);
CREATE INDEX IF NOT EXISTS idx_reconciliations_cache_key ON reconciliations(cache_key, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, blob []byte) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_snapshots (id, data, created_at) VALUES (?, ?, ?)`,
		id, blob, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert snapshot")
	}
	return id, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM cache_snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	return data, nil
}

func (s *SQLiteStore) RecordReconciliation(ctx context.Context, e model.HistoryEntry) error {
	e = prepareEntry(e)
	recordJSON, err := json.Marshal(e.Record)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reconciliations (id, url, cache_key, source_tier, resolved_address, score, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.CacheKey, e.SourceTier, e.ResolvedAddress, e.Score, string(recordJSON), e.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert reconciliation %s", e.URL)
}

func (s *SQLiteStore) ListReconciliations(ctx context.Context, url string, limit int) ([]model.HistoryEntry, error) {
	query := `SELECT id, url, cache_key, source_tier, resolved_address, score, record, created_at FROM reconciliations`
	var args []any
	if url != "" {
		query += ` WHERE cache_key = ?`
		args = append(args, cache.NormalizeKey(url))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reconciliations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reconciliation")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reconciliations iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (model.HistoryEntry, error) {
	var (
		e          model.HistoryEntry
		recordJSON string
	)
	if err := row.Scan(&e.ID, &e.URL, &e.CacheKey, &e.SourceTier, &e.ResolvedAddress, &e.Score, &recordJSON, &e.CreatedAt); err != nil {
		return e, err
	}
	if recordJSON != "" && recordJSON != "null" {
		e.Record = &model.MergedPropertyRecord{}
		if err := json.Unmarshal([]byte(recordJSON), e.Record); err != nil {
			return e, eris.Wrap(err, "unmarshal record")
		}
	}
	return e, nil
}

// prepareEntry fills the generated columns of e.
func prepareEntry(e model.HistoryEntry) model.HistoryEntry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CacheKey == "" {
		e.CacheKey = cache.NormalizeKey(e.URL)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e
}
