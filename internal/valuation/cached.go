package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/property-engine/internal/model"
)

// KV is the key-value store behind Cached. *redisx.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CacheConfig tunes Cached.
type CacheConfig struct {
	Prefix      string
	TTL         time.Duration
	NegativeTTL time.Duration
}

const (
	defaultPrefix      = "valuation:"
	defaultCacheTTL    = 12 * time.Hour
	defaultNegativeTTL = 30 * time.Minute
	negativeMarker     = "1"
)

// Cached puts a shared response cache in front of another Client.
// Provider answers are kept for TTL, "no data" answers for NegativeTTL.
// Concurrent identical requests share one upstream call. Cache failures are
// logged and bypassed.
type Cached struct {
	next  Client
	kv    KV
	cfg   CacheConfig
	group singleflight.Group
}

// NewCached wraps next with kv.
func NewCached(next Client, kv KV, cfg CacheConfig) *Cached {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = defaultNegativeTTL
	}
	return &Cached{next: next, kv: kv, cfg: cfg}
}

func (c *Cached) GetRental(ctx context.Context, s Subject) (*model.RentalEstimate, error) {
	return cachedCall(ctx, c, "rent:"+subjectKey(s), func(ctx context.Context) (*model.RentalEstimate, error) {
		return c.next.GetRental(ctx, s)
	})
}

func (c *Cached) GetComparables(ctx context.Context, s Subject) (*model.ValueEstimate, error) {
	return cachedCall(ctx, c, "value:"+subjectKey(s), func(ctx context.Context) (*model.ValueEstimate, error) {
		return c.next.GetComparables(ctx, s)
	})
}

func (c *Cached) GetMarket(ctx context.Context, zipCode string) (*model.MarketStats, error) {
	return cachedCall(ctx, c, "market:"+strings.TrimSpace(zipCode), func(ctx context.Context) (*model.MarketStats, error) {
		return c.next.GetMarket(ctx, zipCode)
	})
}

func cachedCall[T any](ctx context.Context, c *Cached, key string, fetch func(context.Context) (*T, error)) (*T, error) {
	hitKey := c.cfg.Prefix + key
	missKey := c.cfg.Prefix + "miss:" + key

	if _, ok := c.get(ctx, missKey); ok {
		return nil, ErrNoData
	}
	if b, ok := c.get(ctx, hitKey); ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return &v, nil
		}
		zap.L().Warn("valuation: discarding undecodable cache entry", zap.String("key", hitKey))
	}

	v, err, _ := c.group.Do(hitKey, func() (any, error) {
		v, err := fetch(ctx)
		switch {
		case errors.Is(err, ErrNoData):
			c.set(ctx, missKey, []byte(negativeMarker), c.cfg.NegativeTTL)
		case err == nil:
			if b, merr := json.Marshal(v); merr == nil {
				c.set(ctx, hitKey, b, c.cfg.TTL)
			}
		}
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return cloneJSON(v.(*T))
}

// cloneJSON hands each singleflight caller its own copy.
func cloneJSON[T any](v *T) (*T, error) {
	if v == nil {
		return nil, ErrNoData
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return v, nil
	}
	return &out, nil
}

func (c *Cached) get(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		zap.L().Warn("valuation: cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return b, ok
}

func (c *Cached) set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := c.kv.Set(ctx, key, val, ttl); err != nil {
		zap.L().Warn("valuation: cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var (
	rePunct  = regexp.MustCompile(`[^a-z0-9\s]`)
	suffixes = map[string]string{
		"street": "st", "avenue": "ave", "road": "rd", "drive": "dr", "lane": "ln",
		"court": "ct", "place": "pl", "boulevard": "blvd", "parkway": "pkwy",
		"circle": "cir", "terrace": "ter", "highway": "hwy",
	}
)

// canonicalAddress lower-cases the address, drops punctuation and
// abbreviates street suffixes so spelling variants share a cache entry.
func canonicalAddress(addr string) string {
	fields := strings.Fields(rePunct.ReplaceAllString(strings.ToLower(addr), " "))
	for i, f := range fields {
		if abbr, ok := suffixes[f]; ok {
			fields[i] = abbr
		}
	}
	return strings.Join(fields, " ")
}

func subjectKey(s Subject) string {
	return fmt.Sprintf("%s|%s|%d|%g|%d",
		canonicalAddress(s.Address), strings.ToLower(s.PropertyType), s.Bedrooms, s.Bathrooms, s.SquareFootage)
}
