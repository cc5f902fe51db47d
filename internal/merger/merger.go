// Package merger reconciles scraped listings, valuation API data and URL
// heuristics into one MergedPropertyRecord with per-field provenance.
package merger

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/arv"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/heuristic"
	"github.com/sells-group/property-engine/internal/model"
	"github.com/sells-group/property-engine/internal/scrape"
	"github.com/sells-group/property-engine/internal/valuation"
)

// ErrInvalidURL is returned for empty or unparseable listing URLs.
var ErrInvalidURL = eris.New("merger: invalid listing url")

// Source tiers reported in Metadata.SourceTier.
const (
	TierScraped   = "scraped"
	TierHeuristic = "heuristic"
)

const (
	defaultScrapeTimeout = 30 * time.Second
	defaultConcurrency   = 4
)

// Cache is the property map of the cache store.
type Cache interface {
	GetProperty(key string) (*Result, bool)
	SetProperty(key string, r *Result, ttl time.Duration)
}

// HistoryRecorder persists finished reconciliations.
type HistoryRecorder interface {
	RecordReconciliation(ctx context.Context, e model.HistoryEntry) error
}

// ARVOptions request an ARV section on the merged record.
type ARVOptions struct {
	PurchasePrice   float64             `json:"purchasePrice,omitempty"`
	RenovationLevel arv.RenovationLevel `json:"renovationLevel,omitempty"`
	Strategy        arv.Strategy        `json:"strategy,omitempty"`
}

// Options control a single reconciliation.
type Options struct {
	IncludeValuationAPI bool        `json:"includeValuationAPI"`
	IncludeEstimates    bool        `json:"includeEstimates"`
	ForceRefresh        bool        `json:"forceRefresh"`
	ARV                 *ARVOptions `json:"arv,omitempty"`
}

// Metadata reports how a record was assembled.
type Metadata struct {
	URL              string             `json:"url"`
	SourceTier       string             `json:"sourceTier"`
	Platform         heuristic.Platform `json:"platform"`
	Scraper          string             `json:"scraper,omitempty"`
	ResolvedAddress  string             `json:"resolvedAddress"`
	ScrapeError      string             `json:"scrapeError,omitempty"`
	ValuationErrors  map[string]string  `json:"valuationErrors,omitempty"`
	ValuationSkipped string             `json:"valuationSkipped,omitempty"`
	FieldsBySource   model.SourceCounts `json:"fieldsBySource"`
	Cached           bool               `json:"cached"`
	ReconciledAt     time.Time          `json:"reconciledAt"`
}

// Result is a merged record plus its metadata envelope.
type Result struct {
	Record   *model.MergedPropertyRecord `json:"record"`
	Metadata Metadata                    `json:"metadata"`
}

// Clone deep-copies r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{Record: r.Record.Clone(), Metadata: r.Metadata}
	if r.Metadata.ValuationErrors != nil {
		out.Metadata.ValuationErrors = make(map[string]string, len(r.Metadata.ValuationErrors))
		for k, v := range r.Metadata.ValuationErrors {
			out.Metadata.ValuationErrors[k] = v
		}
	}
	return out
}

// Option configures a Merger.
type Option func(*Merger)

// WithScraper sets the listing scraper. Without one every request uses the
// heuristic tier.
func WithScraper(s scrape.ListingScraper) Option {
	return func(m *Merger) { m.scraper = s }
}

// WithValuation sets the valuation client.
func WithValuation(c valuation.Client) Option {
	return func(m *Merger) { m.valuation = c }
}

// WithCache sets the record cache and the TTL used for new entries. A zero
// ttl uses the cache's default.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(m *Merger) {
		m.cache = c
		m.ttl = ttl
	}
}

// WithDefaults replaces the estimate defaults.
func WithDefaults(d heuristic.Defaults) Option {
	return func(m *Merger) { m.defaults = d }
}

// WithHistory records every fresh reconciliation.
func WithHistory(h HistoryRecorder) Option {
	return func(m *Merger) { m.history = h }
}

// WithScrapeTimeout bounds the scraper tier.
func WithScrapeTimeout(d time.Duration) Option {
	return func(m *Merger) {
		if d > 0 {
			m.scrapeTimeout = d
		}
	}
}

// WithConcurrency caps ReconcileAll's parallelism.
func WithConcurrency(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithNow sets the clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

// Merger turns listing URLs into merged records.
type Merger struct {
	scraper       scrape.ListingScraper
	valuation     valuation.Client
	cache         Cache
	ttl           time.Duration
	history       HistoryRecorder
	defaults      heuristic.Defaults
	scrapeTimeout time.Duration
	concurrency   int
	now           func() time.Time
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		defaults:      heuristic.DefaultValues(),
		scrapeTimeout: defaultScrapeTimeout,
		concurrency:   defaultConcurrency,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidateURL trims rawURL and checks it is an absolute http(s) URL.
func ValidateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", eris.Wrap(ErrInvalidURL, "merger: empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", eris.Wrapf(ErrInvalidURL, "merger: %q", rawURL)
	}
	return rawURL, nil
}

// Reconcile returns the merged record for rawURL, from cache when possible.
// The ARV section is computed per call from opts.ARV and is never cached.
func (m *Merger) Reconcile(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	rawURL, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	key := cache.NormalizeKey(rawURL)

	if !opts.ForceRefresh && m.cache != nil {
		if hit, ok := m.cache.GetProperty(key); ok && hit != nil && hit.Record != nil {
			hit.Metadata.Cached = true
			if opts.ARV != nil {
				m.applyARV(hit.Record, opts.ARV)
				finish(hit)
			}
			zap.L().Debug("merger: cache hit", zap.String("key", key))
			return hit, nil
		}
	}

	start := m.now()
	rec := model.NewRecord()
	meta := Metadata{
		URL:      rawURL,
		Platform: heuristic.DetectPlatform(rawURL),
	}

	m.sourceTier(ctx, rawURL, rec, &meta)
	meta.ResolvedAddress = resolveAddress(rec)

	if opts.IncludeValuationAPI {
		switch {
		case m.valuation == nil:
			meta.ValuationSkipped = "valuation client not configured"
		case meta.ResolvedAddress == AddressUnavailable:
			meta.ValuationSkipped = "insufficient address data"
		default:
			m.applyValuation(ctx, rec, &meta)
		}
	}

	if opts.IncludeEstimates {
		m.applyEstimates(rec)
	}
	if opts.ARV != nil {
		m.applyARV(rec, opts.ARV)
	}

	res := &Result{Record: rec, Metadata: meta}
	res.Metadata.ReconciledAt = m.now().UTC()
	finish(res)

	if m.cache != nil {
		m.cache.SetProperty(key, stripARV(res), m.ttl)
	}
	m.recordHistory(ctx, key, res)

	zap.L().Info("merger: reconciled",
		zap.String("url", rawURL),
		zap.String("tier", meta.SourceTier),
		zap.Int("score", rec.Completeness.Score),
		zap.Int("valuation_errors", len(meta.ValuationErrors)),
		zap.Duration("duration", m.now().Sub(start)),
	)
	return res, nil
}

// finish recomputes the derived completeness and counts.
func finish(res *Result) {
	res.Record.Completeness = model.ComputeCompleteness(res.Record)
	res.Metadata.FieldsBySource = res.Record.Completeness.Sources
}

// sourceTier fills rec from the scraper, falling back to the URL heuristic.
func (m *Merger) sourceTier(ctx context.Context, rawURL string, rec *model.MergedPropertyRecord, meta *Metadata) {
	ext := heuristic.Extract(rawURL, m.defaults)

	a := ext.Address

	listing, name, err := m.scrape(ctx, rawURL)
	if err == nil {
		meta.SourceTier = TierScraped
		meta.Scraper = name
		newWriter(rec, model.SourceScraped, model.ConfidenceHigh).listing(listing)
		// The URL often spells out address parts the page did not.
		newWriter(rec, model.SourceEstimated, model.ConfidenceMedium).location(a.Street, a.City, a.State, a.ZipCode)
		return
	}

	meta.ScrapeError = err.Error()
	zap.L().Debug("merger: scraper tier failed, using heuristic",
		zap.String("url", rawURL),
		zap.Error(err),
	)
	meta.SourceTier = TierHeuristic
	newWriter(rec, model.SourceEstimated, model.ConfidenceMedium).location(a.Street, a.City, a.State, a.ZipCode)
	newWriter(rec, model.SourceEstimated, model.ConfidenceLow).facts(ext.Listing)
}

func (m *Merger) scrape(ctx context.Context, rawURL string) (model.RawListing, string, error) {
	if m.scraper == nil {
		return model.RawListing{}, "", eris.New("merger: no scraper configured")
	}
	if !m.scraper.Supports(rawURL) {
		return model.RawListing{}, "", eris.Errorf("merger: %s does not support url", m.scraper.Name())
	}

	sctx, cancel := context.WithTimeout(ctx, m.scrapeTimeout)
	defer cancel()

	res, err := m.scraper.Scrape(sctx, rawURL)
	switch {
	case err != nil:
		return model.RawListing{}, "", err
	case res == nil:
		return model.RawListing{}, "", eris.Errorf("merger: %s returned no result", m.scraper.Name())
	case !res.Success:
		msg := res.Error
		if msg == "" {
			msg = "unsuccessful scrape"
		}
		return model.RawListing{}, "", eris.Errorf("merger: %s: %s", m.scraper.Name(), msg)
	}
	name := res.Source
	if name == "" {
		name = m.scraper.Name()
	}
	return res.Data, name, nil
}

// applyEstimates fills remaining gaps with rule-of-thumb values.
func (m *Merger) applyEstimates(rec *model.MergedPropertyRecord) {
	d := m.defaults
	w := newWriter(rec, model.SourceEstimated, model.ConfidenceLow)

	w.count(model.FieldBedrooms, &rec.Bedrooms, d.Bedrooms)
	w.amount(model.FieldBathrooms, &rec.Bathrooms, d.Bathrooms)
	w.str(model.FieldPropertyType, &rec.PropertyType, d.PropertyType)
	w.count(model.FieldYearBuilt, &rec.YearBuilt, d.YearBuilt)
	if rec.Bedrooms != nil {
		w.count(model.FieldSquareFootage, &rec.SquareFootage, d.SquareFootage(*rec.Bedrooms))
	}

	var value float64
	switch {
	case rec.Price != nil:
		value = *rec.Price
	case rec.AVMValue != nil:
		value = *rec.AVMValue
	}
	w.amount(model.FieldRentEstimate, &rec.RentEstimate, d.RentEstimate(value))
	if rec.RentEstimate != nil {
		w.amount(model.FieldMonthlyRent, &rec.MonthlyRent, *rec.RentEstimate)
	}
}

// applyARV derives the ARV section from what the record already holds.
func (m *Merger) applyARV(rec *model.MergedPropertyRecord, o *ARVOptions) {
	in := arv.Input{
		Comparables:     rec.Comparables,
		RenovationLevel: o.RenovationLevel,
		Strategy:        o.Strategy,
		PurchasePrice:   o.PurchasePrice,
	}
	if rec.SquareFootage != nil {
		in.SubjectSqFt = *rec.SquareFootage
	}
	if rec.AVMValue != nil {
		in.AVMValue = *rec.AVMValue
	}
	if in.PurchasePrice <= 0 && rec.Price != nil {
		in.PurchasePrice = *rec.Price
	}

	res := arv.Calculate(in)
	rec.ARV = &res
	rec.FieldSources[model.FieldARV] = model.FieldSource{Source: arvSource(rec, in, o, res), Confidence: res.Confidence}
}

// arvSource attributes the ARV to the field that fed the winning tier.
func arvSource(rec *model.MergedPropertyRecord, in arv.Input, o *ARVOptions, res model.ARVResult) model.Source {
	switch {
	case res.Method == model.ARVMethodComparables:
		return model.SourceRentcast
	case res.Method == model.ARVMethodMultiplier && in.AVMValue > 0:
		if fs, ok := rec.FieldSources[model.FieldAVMValue]; ok {
			return fs.Source
		}
		return model.SourceRentcast
	case res.Method == model.ARVMethodMultiplier && o.PurchasePrice <= 0:
		if fs, ok := rec.FieldSources[model.FieldPrice]; ok {
			return fs.Source
		}
	}
	return model.SourceEstimated
}

// stripARV drops the per-request ARV section so cached records carry only
// source data.
func stripARV(res *Result) *Result {
	out := res.Clone()
	if out.Record.ARV != nil {
		out.Record.ARV = nil
		delete(out.Record.FieldSources, model.FieldARV)
		finish(out)
	}
	return out
}

func (m *Merger) recordHistory(ctx context.Context, key string, res *Result) {
	if m.history == nil {
		return
	}
	e := model.HistoryEntry{
		URL:             res.Metadata.URL,
		CacheKey:        key,
		SourceTier:      res.Metadata.SourceTier,
		ResolvedAddress: res.Metadata.ResolvedAddress,
		Score:           res.Record.Completeness.Score,
		Record:          res.Record.Clone(),
		CreatedAt:       res.Metadata.ReconciledAt,
	}
	if err := m.history.RecordReconciliation(ctx, e); err != nil {
		zap.L().Warn("merger: record history failed", zap.String("url", e.URL), zap.Error(err))
	}
}
