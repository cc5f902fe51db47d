package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_snapshots (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reconciliations (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url              TEXT NOT NULL,
	cache_key        TEXT NOT NULL,
	source_tier      TEXT NOT NULL,
	resolved_address TEXT NOT NULL,
	score            INTEGER NOT NULL,
	record           JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cache_snapshots_created_at ON cache_snapshots(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reconciliations_cache_key ON reconciliations(cache_key, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, blob []byte) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cache_snapshots (data, created_at) VALUES ($1, $2) RETURNING id`,
		blob, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert snapshot")
	}
	return id, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM cache_snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	return data, nil
}

func (s *PostgresStore) RecordReconciliation(ctx context.Context, e model.HistoryEntry) error {
	e = prepareEntry(e)
	recordJSON, err := json.Marshal(e.Record)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reconciliations (id, url, cache_key, source_tier, resolved_address, score, record, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.URL, e.CacheKey, e.SourceTier, e.ResolvedAddress, e.Score, recordJSON, e.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert reconciliation %s", e.URL)
}

func (s *PostgresStore) ListReconciliations(ctx context.Context, url string, limit int) ([]model.HistoryEntry, error) {
	query := `SELECT id, url, cache_key, source_tier, resolved_address, score, record, created_at FROM reconciliations`
	var args []any
	if url != "" {
		query += ` WHERE cache_key = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, cache.NormalizeKey(url), listLimit(limit))
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, listLimit(limit))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reconciliations")
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var (
			e          model.HistoryEntry
			recordJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.CacheKey, &e.SourceTier, &e.ResolvedAddress, &e.Score, &recordJSON, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reconciliation")
		}
		if len(recordJSON) > 0 && string(recordJSON) != "null" {
			e.Record = &model.MergedPropertyRecord{}
			if err := json.Unmarshal(recordJSON, e.Record); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal record")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reconciliations iterate")
}
