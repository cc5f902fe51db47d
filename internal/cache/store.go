package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultMaxEntries    = 100
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Config sizes a Store.
type Config struct {
	MaxEntries    int
	PropertyTTL   time.Duration
	AnalysisTTL   time.Duration
	SweepInterval time.Duration
}

// Stats summarizes both maps of a Store.
type Stats struct {
	Hits                 int64      `json:"hits"`
	Misses               int64      `json:"misses"`
	Size                 int        `json:"size"`
	OldestEntryTimestamp *time.Time `json:"oldestEntryTimestamp"`
	HitRate              float64    `json:"hitRate"`
}

// Store holds merged property records (P) and analyses (A) in two
// independently keyed maps that share hit/miss counters. Values that
// implement Clone() are copied on the way in and out.
type Store[P, A any] struct {
	properties *Cache[P]
	analyses   *Cache[A]
	stats      *counters
	now        func() time.Time
	interval   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStore creates a Store from cfg.
func NewStore[P, A any](cfg Config, opts ...Option) *Store[P, A] {
	o := buildOptions(opts)
	stats := &counters{}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Store[P, A]{
		properties: newCache[P](cfg.MaxEntries, cfg.PropertyTTL, stats, o),
		analyses:   newCache[A](cfg.MaxEntries, cfg.AnalysisTTL, stats, o),
		stats:      stats,
		now:        o.now,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

// GetProperty looks up a merged record by listing URL.
func (s *Store[P, A]) GetProperty(key string) (P, bool) {
	v, ok := s.properties.Get(key)
	if !ok {
		return v, false
	}
	return cloneValue(v), true
}

// SetProperty caches a merged record. A ttl <= 0 uses the configured default.
func (s *Store[P, A]) SetProperty(key string, value P, ttl time.Duration) {
	s.properties.Set(key, cloneValue(value), ttl)
}

// GetAnalysis looks up an analysis by listing URL.
func (s *Store[P, A]) GetAnalysis(key string) (A, bool) {
	v, ok := s.analyses.Get(key)
	if !ok {
		return v, false
	}
	return cloneValue(v), true
}

// SetAnalysis caches an analysis. A ttl <= 0 uses the configured default.
func (s *Store[P, A]) SetAnalysis(key string, value A, ttl time.Duration) {
	s.analyses.Set(key, cloneValue(value), ttl)
}

// ClearAll empties both maps and zeroes the statistics.
func (s *Store[P, A]) ClearAll() {
	s.properties.Clear()
	s.analyses.Clear()
	s.stats.hits.Store(0)
	s.stats.misses.Store(0)
}

// Stats reports counters and sizes across both maps.
func (s *Store[P, A]) Stats() Stats {
	hits := s.stats.hits.Load()
	misses := s.stats.misses.Load()

	st := Stats{
		Hits:    hits,
		Misses:  misses,
		Size:    s.properties.Len() + s.analyses.Len(),
		HitRate: hitRate(hits, misses),
	}

	p, okP := s.properties.Oldest()
	a, okA := s.analyses.Oldest()
	switch {
	case okP && okA:
		if a.Before(p) {
			p = a
		}
		st.OldestEntryTimestamp = &p
	case okP:
		st.OldestEntryTimestamp = &p
	case okA:
		st.OldestEntryTimestamp = &a
	}
	return st
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*10000) / 100
}

// Sweep removes expired entries from both maps.
func (s *Store[P, A]) Sweep() int {
	return s.properties.Sweep() + s.analyses.Sweep()
}

// Run sweeps on the configured interval until ctx is done or Close is called.
func (s *Store[P, A]) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				zap.L().Debug("cache: swept expired entries", zap.Int("removed", n))
			}
		}
	}
}

// StartSweeper runs the sweeper in a background goroutine.
func (s *Store[P, A]) StartSweeper(ctx context.Context) {
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Close stops a running sweeper and waits for it to exit.
func (s *Store[P, A]) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.done != nil {
		<-s.done
	}
}

// cloneValue deep-copies values that know how to copy themselves.
func cloneValue[T any](v T) T {
	if c, ok := any(v).(interface{ Clone() T }); ok {
		return c.Clone()
	}
	return v
}
