package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-engine/internal/analysis"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/model"
	"github.com/sells-group/property-engine/internal/resilience"
)

const listingURL = "https://www.zillow.com/homedetails/123-Main-St-Austin-TX-78701/29384756_zpid/"

type stubHistory struct {
	entries []model.HistoryEntry
	err     error
	gotURL  string
	gotLim  int
}

func (s *stubHistory) ListReconciliations(_ context.Context, rawURL string, limit int) ([]model.HistoryEntry, error) {
	s.gotURL, s.gotLim = rawURL, limit
	return s.entries, s.err
}

type env struct {
	handler http.Handler
	cache   *cache.Store[*merger.Result, *analysis.Report]
	breaker *resilience.Breaker
}

func newEnv(t *testing.T, mutate ...func(*Deps)) *env {
	t.Helper()
	store := cache.NewStore[*merger.Result, *analysis.Report](cache.Config{})
	m := merger.New(merger.WithCache(store, 0))
	a := analysis.New(m, analysis.WithCache(store, 0))
	br := resilience.NewBreaker("rentcast", resilience.DefaultBreakerConfig())

	d := Deps{
		Merger:   m,
		Analyzer: a,
		Cache:    store,
		Breakers: []*resilience.Breaker{br},
		Defaults: merger.Options{IncludeValuationAPI: true, IncludeEstimates: true},
	}
	for _, fn := range mutate {
		fn(&d)
	}
	return &env{handler: NewRouter(d), cache: store, breaker: br}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var body struct {
		Status   string            `json:"status"`
		Breakers map[string]string `json:"breakers"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "closed", body.Breakers["rentcast"])
}

func TestHealth_DegradedWhenBreakerOpen(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 10; i++ {
		_, _ = resilience.Call(context.Background(), e.breaker, func(context.Context) (int, error) {
			return 0, errors.New("upstream down")
		})
	}
	require.Equal(t, resilience.StateOpen, e.breaker.State())

	rr := e.do(t, http.MethodGet, "/health", nil)
	var body map[string]any
	decodeBody(t, rr, &body)
	assert.Equal(t, "degraded", body["status"])
}

func TestReconcile(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res merger.Result
	decodeBody(t, rr, &res)
	assert.Equal(t, merger.TierHeuristic, res.Metadata.SourceTier)
	assert.Equal(t, "123 Main St, Austin, TX 78701", res.Metadata.ResolvedAddress)
	assert.Equal(t, "valuation client not configured", res.Metadata.ValuationSkipped)
	assert.False(t, res.Metadata.Cached)
	require.NotNil(t, res.Record.City)
	assert.Equal(t, "Austin", *res.Record.City)
	assert.NoError(t, model.CheckProvenance(res.Record))

	rr = e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})
	decodeBody(t, rr, &res)
	assert.True(t, res.Metadata.Cached)
}

func TestReconcile_OptionsOverrideDefaults(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{
		"url":                 listingURL,
		"includeValuationAPI": false,
		"includeEstimates":    false,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var res merger.Result
	decodeBody(t, rr, &res)
	assert.Empty(t, res.Metadata.ValuationSkipped)
	assert.Nil(t, res.Record.RentEstimate)
}

func TestReconcile_WithARV(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{
		"url": listingURL,
		"arv": map[string]any{"purchasePrice": 250000, "renovationLevel": "gut", "strategy": "brrrr"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res merger.Result
	decodeBody(t, rr, &res)
	require.NotNil(t, res.Record.ARV)
	assert.Equal(t, 373750.0, res.Record.ARV.ARV)
	assert.Equal(t, model.ARVMethodMultiplier, res.Record.ARV.Method)
}

func TestReconcile_BadInput(t *testing.T) {
	e := newEnv(t)

	cases := map[string]any{
		"malformed json": "{not json",
		"empty url":      map[string]any{"url": ""},
		"not a url":      map[string]any{"url": "123 Main St"},
		"negative price": map[string]any{"url": listingURL, "arv": map[string]any{"purchasePrice": -1}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/v1/properties/reconcile", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var resp map[string]string
			decodeBody(t, rr, &resp)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestReconcileBatch(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.MaxBatch = 2 })

	rr := e.do(t, http.MethodPost, "/v1/properties/reconcile/batch", map[string]any{
		"urls": []string{listingURL, "nope"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Count int           `json:"count"`
		Items []BatchResult `json:"items"`
	}
	decodeBody(t, rr, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, listingURL, body.Items[0].URL)
	assert.NotNil(t, body.Items[0].Result)
	assert.Empty(t, body.Items[0].Error)
	assert.Nil(t, body.Items[1].Result)
	assert.Contains(t, body.Items[1].Error, "invalid listing url")

	rr = e.do(t, http.MethodPost, "/v1/properties/reconcile/batch", map[string]any{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/v1/properties/reconcile/batch", map[string]any{
		"urls": []string{listingURL, listingURL, listingURL},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalyze(t *testing.T) {
	e := newEnv(t)

	req := map[string]any{
		"url":             listingURL,
		"purchasePrice":   250000,
		"rehabCost":       40000,
		"renovationLevel": "gut",
		"strategy":        "brrrr",
	}
	rr := e.do(t, http.MethodPost, "/v1/properties/analyze", req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report analysis.Report
	decodeBody(t, rr, &report)
	assert.Equal(t, 373750.0, report.ARV.ARV)
	require.NotNil(t, report.BRRRR)
	assert.Nil(t, report.Flip)
	assert.False(t, report.Cached)

	rr = e.do(t, http.MethodPost, "/v1/properties/analyze", req)
	decodeBody(t, rr, &report)
	assert.True(t, report.Cached)
	assert.Equal(t, 2, e.cache.Stats().Size, "one property and one analysis")
}

func TestAnalyze_BadInput(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/v1/properties/analyze", map[string]any{"url": listingURL, "rehabCost": -5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/v1/properties/analyze", map[string]any{"url": "ftp://example.com/x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestARV(t *testing.T) {
	e := newEnv(t)

	comps := make([]model.ComparableSale, 5)
	for i := range comps {
		comps[i] = model.ComparableSale{Price: 200000, SquareFootage: 1000, Similarity: 0.9}
	}
	rr := e.do(t, http.MethodPost, "/v1/arv", map[string]any{
		"squareFootage":   1500,
		"comparables":     comps,
		"renovationLevel": "moderate",
		"strategy":        "flip",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res model.ARVResult
	decodeBody(t, rr, &res)
	assert.Equal(t, 345000.0, res.ARV)
	assert.Equal(t, model.ARVMethodComparables, res.Method)
	assert.Equal(t, model.ConfidenceHigh, res.Confidence)

	rr = e.do(t, http.MethodPost, "/v1/arv", map[string]any{"avmValue": 300000, "renovationLevel": "cosmetic"})
	decodeBody(t, rr, &res)
	assert.Equal(t, 336000.0, res.ARV)

	rr = e.do(t, http.MethodPost, "/v1/arv", map[string]any{})
	decodeBody(t, rr, &res)
	assert.Zero(t, res.ARV)
	assert.Equal(t, model.ARVMethodManual, res.Method)

	rr = e.do(t, http.MethodPost, "/v1/arv", map[string]any{"avmValue": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCacheAdmin(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/v1/cache/stats", nil)
	var stats cache.Stats
	decodeBody(t, rr, &stats)
	assert.Zero(t, stats.Size)
	assert.Zero(t, stats.HitRate)

	e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})
	e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})

	rr = e.do(t, http.MethodGet, "/v1/cache/stats", nil)
	decodeBody(t, rr, &stats)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.HitRate, 0.001)
	assert.NotNil(t, stats.OldestEntryTimestamp)

	rr = e.do(t, http.MethodDelete, "/v1/cache", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, e.cache.Stats().Size)
	assert.Zero(t, e.cache.Stats().Hits)
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newEnv(t)
	src.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})

	rr := src.do(t, http.MethodGet, "/v1/cache/snapshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	blob := rr.Body.Bytes()
	assert.Contains(t, string(blob), "scrapedData")

	dst := newEnv(t)
	rr = dst.do(t, http.MethodPut, "/v1/cache/snapshot", blob)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, dst.cache.Stats().Size)

	rr = dst.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})
	var res merger.Result
	decodeBody(t, rr, &res)
	assert.True(t, res.Metadata.Cached, "restored entry serves the request")
}

func TestSnapshotImport_MalformedKeepsState(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/v1/properties/reconcile", map[string]any{"url": listingURL})

	rr := e.do(t, http.MethodPut, "/v1/cache/snapshot", `{"scrapedData": 12}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, e.cache.Stats().Size)
}

func TestHistory(t *testing.T) {
	h := &stubHistory{entries: []model.HistoryEntry{{
		ID:         "r1",
		URL:        listingURL,
		SourceTier: merger.TierScraped,
		Score:      80,
		CreatedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}
	e := newEnv(t, func(d *Deps) { d.History = h })

	rr := e.do(t, http.MethodGet, "/v1/history?url="+listingURL+"&limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, listingURL, h.gotURL)
	assert.Equal(t, 5, h.gotLim)

	var body struct {
		Count int                  `json:"count"`
		Items []model.HistoryEntry `json:"items"`
	}
	decodeBody(t, rr, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "r1", body.Items[0].ID)

	rr = e.do(t, http.MethodGet, "/v1/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	h.err = errors.New("db down")
	rr = e.do(t, http.MethodGet, "/v1/history", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHistory_Disabled(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/v1/history", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		rr := e.do(t, http.MethodGet, "/v1/cache/stats", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := e.do(t, http.MethodGet, "/v1/cache/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "health is not rate limited")
}

func TestCORS(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.AllowedOrigins = []string{"https://app.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/v1/cache/stats", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
