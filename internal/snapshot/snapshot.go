// Package snapshot saves and restores cache snapshots so a restarted process
// can warm-start.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned by Load when the sink holds nothing yet.
var ErrNoSnapshot = eris.New("snapshot: none saved")

// Sink stores one snapshot blob.
type Sink interface {
	Name() string
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// Exporter produces a snapshot. *cache.Store satisfies it.
type Exporter interface {
	Export() ([]byte, error)
}

// Importer replaces its state from a snapshot. *cache.Store satisfies it.
type Importer interface {
	Import(data []byte) error
}

// Save exports src and writes it to sink.
func Save(ctx context.Context, src Exporter, sink Sink) error {
	blob, err := src.Export()
	if err != nil {
		return eris.Wrap(err, "snapshot: export")
	}
	if err := sink.Save(ctx, blob); err != nil {
		return eris.Wrapf(err, "snapshot: save to %s", sink.Name())
	}
	zap.L().Info("snapshot: saved", zap.String("sink", sink.Name()), zap.Int("bytes", len(blob)))
	return nil
}

// Restore loads the latest snapshot from sink into dst. It reports false
// without error when the sink is empty.
func Restore(ctx context.Context, dst Importer, sink Sink) (bool, error) {
	blob, err := sink.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		zap.L().Info("snapshot: nothing to restore", zap.String("sink", sink.Name()))
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "snapshot: load from %s", sink.Name())
	}
	if err := dst.Import(blob); err != nil {
		return false, eris.Wrap(err, "snapshot: import")
	}
	zap.L().Info("snapshot: restored", zap.String("sink", sink.Name()), zap.Int("bytes", len(blob)))
	return true, nil
}

// Periodic saves src to sink every interval until ctx is done. Failed saves
// are logged and retried on the next tick.
func Periodic(ctx context.Context, src Exporter, sink Sink, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Save(ctx, src, sink); err != nil {
				zap.L().Warn("snapshot: periodic save failed", zap.String("sink", sink.Name()), zap.Error(err))
			}
		}
	}
}
