// Package scrape runs listing scrapers in priority order for a listing URL.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/resilience"
)

// ErrNoScraper is returned when no scraper in the chain supports a URL.
var ErrNoScraper = eris.New("scrape: no scraper supports url")

// Chain tries scrapers in order and returns the first successful result.
// Each scraper call is retried under the chain's policy.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []ListingScraper
	policy      resilience.Policy
}

// NewChain creates a Chain. Scrapers are tried in the given order.
func NewChain(matcher *PathMatcher, scrapers ...ListingScraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
		policy:      resilience.DefaultPolicy(),
	}
}

// WithPolicy sets the retry policy applied to each scraper.
func (c *Chain) WithPolicy(p resilience.Policy) *Chain {
	c.policy = p
	return c
}

// Name implements ListingScraper.
func (c *Chain) Name() string { return "chain" }

// Supports reports whether any scraper accepts url and it is not excluded.
func (c *Chain) Supports(url string) bool {
	if c.PathMatcher.IsExcluded(url) {
		return false
	}
	for _, s := range c.scrapers {
		if s.Supports(url) {
			return true
		}
	}
	return false
}

// Scrape tries each supporting scraper in order.
func (c *Chain) Scrape(ctx context.Context, url string) (*Result, error) {
	if c.PathMatcher.IsExcluded(url) {
		return nil, eris.Errorf("scrape: url is not a listing page: %s", url)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(url) {
			continue
		}
		res, err := resilience.Retry(ctx, "scrape."+s.Name(), c.policy, func(ctx context.Context) (*Result, error) {
			return s.Scrape(ctx, url)
		})
		switch {
		case err != nil:
			lastErr = eris.Wrapf(err, "scrape: %s", s.Name())
		case res == nil:
			lastErr = eris.Errorf("scrape: %s returned no result", s.Name())
		case !res.Success:
			lastErr = eris.Errorf("scrape: %s: %s", s.Name(), res.Error)
		default:
			if res.Source == "" {
				res.Source = s.Name()
			}
			return res, nil
		}

		zap.L().Debug("scrape: scraper failed, trying next",
			zap.String("scraper", s.Name()),
			zap.String("url", url),
			zap.String("kind", resilience.Classify(lastErr)),
			zap.Error(lastErr),
		)
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, ErrNoScraper
}
