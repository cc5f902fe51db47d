// Package api exposes reconciliation, analysis, ARV and cache administration
// over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/analysis"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/model"
	"github.com/sells-group/property-engine/internal/resilience"
)

// Reconciler is the merger surface the API uses.
type Reconciler interface {
	Reconcile(ctx context.Context, rawURL string, opts merger.Options) (*merger.Result, error)
	ReconcileAll(ctx context.Context, urls []string, opts merger.Options) []merger.BatchItem
}

// Analyzer runs deal analyses.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string, req analysis.Request) (*analysis.Report, error)
}

// CacheAdmin is the cache surface behind the /v1/cache routes.
type CacheAdmin interface {
	Stats() cache.Stats
	ClearAll()
	Export() ([]byte, error)
	Import(data []byte) error
}

// History lists past reconciliations.
type History interface {
	ListReconciliations(ctx context.Context, rawURL string, limit int) ([]model.HistoryEntry, error)
}

// Deps wires the router. Merger, Analyzer and Cache are required.
type Deps struct {
	Merger   Reconciler
	Analyzer Analyzer
	Cache    CacheAdmin
	History  History // optional

	// Breakers are reported by /health.
	Breakers []*resilience.Breaker

	// Defaults fill reconcile options the request leaves unset.
	Defaults merger.Options

	RateLimitPerMinute int
	AllowedOrigins     []string
	MaxBatch           int
	RequestTimeout     time.Duration
}

const (
	defaultMaxBatch       = 25
	defaultRequestTimeout = 2 * time.Minute
	maxBodyBytes          = 32 << 20
)

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.MaxBatch <= 0 {
		d.MaxBatch = defaultMaxBatch
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	h := &handlers{d: d}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		if d.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(d.RateLimitPerMinute, time.Minute))
		}
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Route("/properties", func(r chi.Router) {
			r.Post("/reconcile", h.reconcile)
			r.Post("/reconcile/batch", h.reconcileBatch)
			r.Post("/analyze", h.analyze)
		})
		r.Post("/arv", h.calculateARV)
		r.Get("/history", h.history)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", h.cacheStats)
			r.Delete("/", h.cacheClear)
			r.Get("/snapshot", h.snapshotExport)
			r.Put("/snapshot", h.snapshotImport)
		})
	})

	return r
}

// requestLogger tags each request with an ID and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		zap.L().Info("api: request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
