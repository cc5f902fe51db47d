package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/analysis"
	"github.com/sells-group/property-engine/internal/arv"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/model"
	"github.com/sells-group/property-engine/internal/resilience"
	"github.com/sells-group/property-engine/internal/store"
)

type handlers struct {
	d Deps
}

// ReconcileRequest is the body of POST /v1/properties/reconcile. Unset
// booleans fall back to the server defaults.
type ReconcileRequest struct {
	URL                 string             `json:"url"`
	IncludeValuationAPI *bool              `json:"includeValuationAPI,omitempty"`
	IncludeEstimates    *bool              `json:"includeEstimates,omitempty"`
	ForceRefresh        bool               `json:"forceRefresh,omitempty"`
	ARV                 *merger.ARVOptions `json:"arv,omitempty"`
}

// BatchRequest is the body of POST /v1/properties/reconcile/batch.
type BatchRequest struct {
	URLs                []string `json:"urls"`
	IncludeValuationAPI *bool    `json:"includeValuationAPI,omitempty"`
	IncludeEstimates    *bool    `json:"includeEstimates,omitempty"`
	ForceRefresh        bool     `json:"forceRefresh,omitempty"`
}

// BatchResult is one entry of the batch response.
type BatchResult struct {
	URL    string         `json:"url"`
	Result *merger.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// AnalyzeRequest is the body of POST /v1/properties/analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
	analysis.Request
}

// ARVRequest is the body of POST /v1/arv.
type ARVRequest struct {
	SquareFootage   int                    `json:"squareFootage"`
	PurchasePrice   float64                `json:"purchasePrice"`
	AVMValue        float64                `json:"avmValue"`
	Comparables     []model.ComparableSale `json:"comparables"`
	RenovationLevel string                 `json:"renovationLevel"`
	Strategy        string                 `json:"strategy"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	breakers := make(map[string]string, len(h.d.Breakers))
	status := "ok"
	for _, b := range h.d.Breakers {
		st := b.State()
		breakers[b.Name()] = st.String()
		if st == resilience.StateOpen {
			status = "degraded"
		}
	}
	render.JSON(w, r, map[string]any{"status": status, "breakers": breakers})
}

func (h *handlers) options(valuationAPI, estimates *bool, force bool) merger.Options {
	opts := h.d.Defaults
	if valuationAPI != nil {
		opts.IncludeValuationAPI = *valuationAPI
	}
	if estimates != nil {
		opts.IncludeEstimates = *estimates
	}
	opts.ForceRefresh = force
	return opts
}

func (h *handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	var body ReconcileRequest
	if !decode(w, r, &body) {
		return
	}
	opts := h.options(body.IncludeValuationAPI, body.IncludeEstimates, body.ForceRefresh)
	if body.ARV != nil {
		o := *body.ARV
		if o.PurchasePrice < 0 {
			fail(w, r, http.StatusBadRequest, "invalid_arv", "purchasePrice must not be negative")
			return
		}
		o.RenovationLevel = arv.ParseRenovationLevel(string(o.RenovationLevel))
		o.Strategy = arv.ParseStrategy(string(o.Strategy))
		opts.ARV = &o
	}

	res, err := h.d.Merger.Reconcile(r.Context(), body.URL, opts)
	if err != nil {
		failErr(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (h *handlers) reconcileBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if !decode(w, r, &body) {
		return
	}
	if len(body.URLs) == 0 {
		fail(w, r, http.StatusBadRequest, "urls_required", "urls must not be empty")
		return
	}
	if len(body.URLs) > h.d.MaxBatch {
		fail(w, r, http.StatusBadRequest, "batch_too_large", "at most "+strconv.Itoa(h.d.MaxBatch)+" urls per batch")
		return
	}

	items := h.d.Merger.ReconcileAll(r.Context(), body.URLs,
		h.options(body.IncludeValuationAPI, body.IncludeEstimates, body.ForceRefresh))
	out := make([]BatchResult, len(items))
	for i, it := range items {
		out[i] = BatchResult{URL: it.URL, Result: it.Result}
		if it.Err != nil {
			out[i].Error = it.Err.Error()
		}
	}
	render.JSON(w, r, map[string]any{"count": len(out), "items": out})
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var body AnalyzeRequest
	if !decode(w, r, &body) {
		return
	}
	report, err := h.d.Analyzer.Analyze(r.Context(), body.URL, body.Request)
	if err != nil {
		failErr(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *handlers) calculateARV(w http.ResponseWriter, r *http.Request) {
	var body ARVRequest
	if !decode(w, r, &body) {
		return
	}
	if body.SquareFootage < 0 || body.PurchasePrice < 0 || body.AVMValue < 0 {
		fail(w, r, http.StatusBadRequest, "invalid_arv", "amounts must not be negative")
		return
	}
	res := arv.Calculate(arv.Input{
		SubjectSqFt:     body.SquareFootage,
		PurchasePrice:   body.PurchasePrice,
		Comparables:     body.Comparables,
		AVMValue:        body.AVMValue,
		RenovationLevel: arv.ParseRenovationLevel(body.RenovationLevel),
		Strategy:        arv.ParseStrategy(body.Strategy),
	})
	render.JSON(w, r, res)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	if h.d.History == nil {
		fail(w, r, http.StatusNotFound, "history_disabled", "no history store configured")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			fail(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := h.d.History.ListReconciliations(r.Context(), r.URL.Query().Get("url"), limit)
	if err != nil {
		failErr(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	render.JSON(w, r, map[string]any{"count": len(entries), "items": entries})
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.d.Cache.Stats())
}

func (h *handlers) cacheClear(w http.ResponseWriter, r *http.Request) {
	h.d.Cache.ClearAll()
	zap.L().Info("api: cache cleared")
	render.JSON(w, r, map[string]any{"ok": true})
}

func (h *handlers) snapshotExport(w http.ResponseWriter, r *http.Request) {
	blob, err := h.d.Cache.Export()
	if err != nil {
		failErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(blob) //nolint:errcheck
}

func (h *handlers) snapshotImport(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := h.d.Cache.Import(blob); err != nil {
		zap.L().Warn("api: snapshot import rejected", zap.Error(err))
		fail(w, r, http.StatusBadRequest, "invalid_snapshot", err.Error())
		return
	}
	render.JSON(w, r, map[string]any{"ok": true, "stats": h.d.Cache.Stats()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": code, "detail": detail})
}

// failErr maps domain errors onto status codes.
func failErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, merger.ErrInvalidURL):
		fail(w, r, http.StatusBadRequest, "invalid_url", err.Error())
	case errors.Is(err, analysis.ErrInvalidRequest):
		fail(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrNotFound):
		fail(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
		fail(w, r, http.StatusInternalServerError, "internal", "request failed")
	}
}
