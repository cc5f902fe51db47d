package cache

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SnapshotStats are the counters carried in a snapshot.
type SnapshotStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Snapshot is the serialized form of a Store.
type Snapshot[P, A any] struct {
	ScrapedData []Pair[P]     `json:"scrapedData"`
	Analysis    []Pair[A]     `json:"analysis"`
	Stats       SnapshotStats `json:"stats"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Pair is a key/entry tuple encoded as a two-element JSON array.
type Pair[T any] struct {
	Key   string
	Entry Entry[T]
}

// MarshalJSON encodes the pair as [key, entry].
func (p Pair[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Entry})
}

// UnmarshalJSON decodes a [key, entry] array.
func (p *Pair[T]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "cache: decode pair")
	}
	if len(raw) != 2 {
		return eris.Errorf("cache: pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return eris.Wrap(err, "cache: decode pair key")
	}
	var head struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw[1], &head); err != nil {
		return eris.Wrap(err, "cache: decode pair entry")
	}
	if isNull(head.Data) {
		return eris.Errorf("cache: entry %q has no data", p.Key)
	}
	if err := json.Unmarshal(raw[1], &p.Entry); err != nil {
		return eris.Wrap(err, "cache: decode pair entry")
	}
	return nil
}

// isNull reports whether raw is absent or the JSON literal null.
func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// requireMaps rejects blobs that are not objects carrying both map keys.
func requireMaps(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	if top == nil {
		return eris.New("snapshot is null")
	}
	for _, k := range []string{"scrapedData", "analysis"} {
		if isNull(top[k]) {
			return eris.Errorf("snapshot missing %q", k)
		}
	}
	return nil
}

// Export serializes both maps and the counters.
func (s *Store[P, A]) Export() ([]byte, error) {
	snap := Snapshot[P, A]{
		ScrapedData: toPairs(s.properties.Entries()),
		Analysis:    toPairs(s.analyses.Entries()),
		Stats: SnapshotStats{
			Hits:   s.stats.hits.Load(),
			Misses: s.stats.misses.Load(),
		},
		Timestamp: s.now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, eris.Wrap(err, "cache: export snapshot")
	}
	return data, nil
}

// Import replaces the entire store with the snapshot in data. Nothing is
// changed unless the whole snapshot decodes and validates.
func (s *Store[P, A]) Import(data []byte) error {
	if err := requireMaps(data); err != nil {
		zap.L().Warn("cache: discarding malformed snapshot", zap.Error(err))
		return eris.Wrap(err, "cache: import snapshot")
	}
	var snap Snapshot[P, A]
	if err := json.Unmarshal(data, &snap); err != nil {
		zap.L().Warn("cache: discarding malformed snapshot", zap.Error(err))
		return eris.Wrap(err, "cache: import snapshot")
	}
	if err := validatePairs(snap.ScrapedData); err != nil {
		zap.L().Warn("cache: discarding invalid snapshot", zap.String("map", "scrapedData"), zap.Error(err))
		return eris.Wrap(err, "cache: import snapshot scrapedData")
	}
	if err := validatePairs(snap.Analysis); err != nil {
		zap.L().Warn("cache: discarding invalid snapshot", zap.String("map", "analysis"), zap.Error(err))
		return eris.Wrap(err, "cache: import snapshot analysis")
	}
	if snap.Stats.Hits < 0 || snap.Stats.Misses < 0 {
		zap.L().Warn("cache: discarding invalid snapshot", zap.Int64("hits", snap.Stats.Hits), zap.Int64("misses", snap.Stats.Misses))
		return eris.New("cache: import snapshot: negative stats")
	}

	s.properties.replace(fromPairs(snap.ScrapedData))
	s.analyses.replace(fromPairs(snap.Analysis))
	s.stats.hits.Store(snap.Stats.Hits)
	s.stats.misses.Store(snap.Stats.Misses)

	zap.L().Info("cache: snapshot imported",
		zap.Int("properties", len(snap.ScrapedData)),
		zap.Int("analyses", len(snap.Analysis)),
		zap.Time("taken_at", snap.Timestamp),
	)
	return nil
}

func validatePairs[T any](pairs []Pair[T]) error {
	for i, p := range pairs {
		switch {
		case p.Key == "":
			return eris.Errorf("entry %d: empty key", i)
		case p.Entry.Timestamp <= 0:
			return eris.Errorf("entry %d (%s): invalid timestamp %d", i, p.Key, p.Entry.Timestamp)
		case p.Entry.TTL < 0:
			return eris.Errorf("entry %d (%s): negative ttl", i, p.Key)
		case p.Entry.Hits < 0:
			return eris.Errorf("entry %d (%s): negative hits", i, p.Key)
		}
	}
	return nil
}

func toPairs[T any](entries []Entry[T]) []Pair[T] {
	out := make([]Pair[T], len(entries))
	for i, e := range entries {
		out[i] = Pair[T]{Key: e.Key, Entry: e}
	}
	return out
}

func fromPairs[T any](pairs []Pair[T]) []Entry[T] {
	out := make([]Entry[T], len(pairs))
	for i, p := range pairs {
		e := p.Entry
		e.Key = p.Key
		out[i] = e
	}
	return out
}
