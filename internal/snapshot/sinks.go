package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-engine/internal/store"
)

// FileSink keeps the snapshot in a single file, replaced atomically.
type FileSink struct {
	Path string
}

// NewFileSink creates a FileSink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (f *FileSink) Name() string { return "file" }

func (f *FileSink) Save(_ context.Context, blob []byte) error {
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "snapshot: create dir %s", dir)
		}
	}
	return eris.Wrapf(atomic.WriteFile(f.Path, bytes.NewReader(blob)), "snapshot: write %s", f.Path)
}

func (f *FileSink) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", f.Path)
	}
	return data, nil
}

// KV is the key-value store behind RedisSink. *redisx.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// DefaultRedisKey is where RedisSink keeps the snapshot by default.
const DefaultRedisKey = "property-engine:cache-snapshot"

// RedisSink keeps the snapshot under one Redis key.
type RedisSink struct {
	kv  KV
	key string
	ttl time.Duration
}

// NewRedisSink creates a RedisSink. A zero ttl keeps the key indefinitely.
func NewRedisSink(kv KV, key string, ttl time.Duration) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{kv: kv, key: key, ttl: ttl}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Save(ctx context.Context, blob []byte) error {
	return r.kv.Set(ctx, r.key, blob, r.ttl)
}

func (r *RedisSink) Load(ctx context.Context) ([]byte, error) {
	data, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSnapshot
	}
	return data, nil
}

// SnapshotStore is the snapshot half of store.Store.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, blob []byte) (string, error)
	LatestSnapshot(ctx context.Context) ([]byte, error)
}

// StoreSink appends snapshots to the database and loads the newest.
type StoreSink struct {
	st SnapshotStore
}

// NewStoreSink creates a StoreSink over st.
func NewStoreSink(st SnapshotStore) *StoreSink {
	return &StoreSink{st: st}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Save(ctx context.Context, blob []byte) error {
	_, err := s.st.SaveSnapshot(ctx, blob)
	return err
}

func (s *StoreSink) Load(ctx context.Context) ([]byte, error) {
	data, err := s.st.LatestSnapshot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	return data, err
}
