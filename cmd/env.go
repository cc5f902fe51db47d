package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/analysis"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/config"
	"github.com/sells-group/property-engine/internal/heuristic"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/redisx"
	"github.com/sells-group/property-engine/internal/resilience"
	"github.com/sells-group/property-engine/internal/scrape"
	"github.com/sells-group/property-engine/internal/snapshot"
	"github.com/sells-group/property-engine/internal/store"
	"github.com/sells-group/property-engine/internal/valuation"
	"github.com/sells-group/property-engine/pkg/rentcast"
)

// propertyCache is the process-wide cache of merged records and analyses.
type propertyCache = cache.Store[*merger.Result, *analysis.Report]

// engineEnv holds the initialized collaborators shared by the commands.
type engineEnv struct {
	Store    store.Store    // may be nil
	Redis    *redisx.Client // may be nil
	Cache    *propertyCache
	Merger   *merger.Merger
	Analyzer *analysis.Analyzer
	Breakers []*resilience.Breaker
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Cache != nil {
		e.Cache.Close()
	}
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine wires the store, Redis, valuation client, scraper and merger
// from cfg. Callers should defer env.Close().
func initEngine(ctx context.Context, c *config.Config) (*engineEnv, error) {
	env := &engineEnv{}

	if c.Store.DatabaseURL != "" {
		st, err := initStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	if c.Redis.Addr != "" {
		env.Redis = redisx.New(c.Redis.Addr, c.Redis.Password, c.Redis.DB)
		if err := env.Redis.Ping(ctx); err != nil {
			env.Close()
			return nil, eris.Wrap(err, "connect redis")
		}
	}

	defaults := heuristic.DefaultValues()
	if c.Merger.DefaultsFile != "" {
		d, err := heuristic.LoadDefaults(c.Merger.DefaultsFile)
		if err != nil {
			env.Close()
			return nil, err
		}
		defaults = d
	}

	env.Cache = cache.NewStore[*merger.Result, *analysis.Report](cache.Config{
		MaxEntries:    c.Cache.MaxEntries,
		PropertyTTL:   c.Cache.PropertyTTL,
		AnalysisTTL:   c.Cache.AnalysisTTL,
		SweepInterval: c.Cache.SweepInterval,
	})

	opts := []merger.Option{
		merger.WithCache(env.Cache, c.Cache.PropertyTTL),
		merger.WithDefaults(defaults),
		merger.WithConcurrency(c.Merger.Concurrency),
		merger.WithScrapeTimeout(c.Scraper.Timeout),
	}
	if s := initScraper(c.Scraper); s != nil {
		opts = append(opts, merger.WithScraper(s))
	}
	if v, br := initValuation(c, env.Redis); v != nil {
		opts = append(opts, merger.WithValuation(v))
		env.Breakers = append(env.Breakers, br)
	}
	if env.Store != nil {
		opts = append(opts, merger.WithHistory(env.Store))
	}

	env.Merger = merger.New(opts...)
	env.Analyzer = analysis.New(env.Merger, analysis.WithCache(env.Cache, c.Cache.AnalysisTTL))

	zap.L().Debug("engine initialized",
		zap.Bool("store", env.Store != nil),
		zap.Bool("redis", env.Redis != nil),
		zap.Bool("scraper", c.Scraper.Endpoint != ""),
		zap.Bool("valuation", c.Rentcast.Key != ""),
	)
	return env, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := store.Open(ctx, sc.Driver, sc.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initScraper returns nil when no scraping service is configured; the merger
// then relies on the URL heuristic tier.
func initScraper(sc config.ScraperConfig) scrape.ListingScraper {
	if sc.Endpoint == "" {
		return nil
	}
	hs := scrape.NewHTTPScraper(sc.Endpoint,
		scrape.WithAPIKey(sc.APIKey),
		scrape.WithHosts(sc.Hosts...),
		scrape.WithHTTPClient(resilience.NewHTTPClient(resilience.HTTPClientConfig{
			Retries: 0,
			Timeout: sc.Timeout,
		})),
	)
	policy := resilience.DefaultPolicy()
	policy.Attempts = sc.Retries + 1
	return scrape.NewChain(scrape.NewPathMatcher(sc.ExcludePaths), hs).WithPolicy(policy)
}

// initValuation returns nil without a Rentcast key.
func initValuation(c *config.Config, rdb *redisx.Client) (valuation.Client, *resilience.Breaker) {
	if c.Rentcast.Key == "" {
		return nil, nil
	}
	api := rentcast.NewClient(c.Rentcast.Key,
		rentcast.WithBaseURL(c.Rentcast.BaseURL),
		rentcast.WithRateLimit(c.Rentcast.RequestsPerSecond),
		rentcast.WithHTTPClient(resilience.NewHTTPClient(resilience.HTTPClientConfig{
			Retries: 2,
			Timeout: c.Rentcast.Timeout,
		})),
	)
	rc := valuation.NewRentcast(api, valuation.WithCompCount(c.Rentcast.CompCount))

	var client valuation.Client = rc
	if c.ValuationCache.Enabled && rdb != nil {
		client = valuation.NewCached(rc, rdb, valuation.CacheConfig{
			TTL:         c.ValuationCache.TTL,
			NegativeTTL: c.ValuationCache.NegativeTTL,
		})
	}
	return client, rc.Breaker()
}

// initSink returns the configured snapshot sink, or nil for "none".
func initSink(c *config.Config, env *engineEnv) (snapshot.Sink, error) {
	switch c.Snapshot.Sink {
	case "", config.SinkNone:
		return nil, nil
	case config.SinkFile:
		return snapshot.NewFileSink(c.Snapshot.Path), nil
	case config.SinkRedis:
		if env.Redis == nil {
			return nil, eris.New("snapshot: redis sink needs redis.addr")
		}
		return snapshot.NewRedisSink(env.Redis, c.Snapshot.RedisKey, 0), nil
	case config.SinkStore:
		if env.Store == nil {
			return nil, eris.New("snapshot: store sink needs store.database_url")
		}
		return snapshot.NewStoreSink(env.Store), nil
	default:
		return nil, eris.Errorf("snapshot: unknown sink %q", c.Snapshot.Sink)
	}
}

// mergerDefaults are the reconcile options taken from configuration.
func mergerDefaults(c *config.Config) merger.Options {
	return merger.Options{
		IncludeValuationAPI: c.Merger.IncludeValuationAPI,
		IncludeEstimates:    c.Merger.IncludeEstimates,
	}
}
