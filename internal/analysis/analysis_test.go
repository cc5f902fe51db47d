package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-engine/internal/arv"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/model"
)

const listingURL = "https://www.zillow.com/homedetails/1-Main-St-Austin-TX-78701/1_zpid/"

type mockReconciler struct {
	rec   *model.MergedPropertyRecord
	err   error
	calls atomic.Int32
	opts  merger.Options
}

func (m *mockReconciler) Reconcile(_ context.Context, _ string, opts merger.Options) (*merger.Result, error) {
	m.calls.Add(1)
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &merger.Result{Record: m.rec.Clone()}, nil
}

type mockNarrator struct {
	text string
	err  error
}

func (m *mockNarrator) Narrate(_ context.Context, _ *model.MergedPropertyRecord, r *Report) (string, error) {
	return m.text + " " + string(r.ARV.Method), m.err
}

func avmRecord() *model.MergedPropertyRecord {
	rec := model.NewRecord()
	rec.AVMValue = model.Ptr(300000.0)
	rec.MonthlyRent = model.Ptr(2500.0)
	rec.FieldSources[model.FieldAVMValue] = model.FieldSource{Source: model.SourceRentcast, Confidence: model.ConfidenceMedium}
	rec.FieldSources[model.FieldMonthlyRent] = model.FieldSource{Source: model.SourceRentcast, Confidence: model.ConfidenceMedium}
	return rec
}

func newStore() *cache.Store[*merger.Result, *Report] {
	return cache.NewStore[*merger.Result, *Report](cache.Config{})
}

func TestEvaluate_Flip(t *testing.T) {
	t.Parallel()

	r := Evaluate(avmRecord(), Request{PurchasePrice: 250000, RehabCost: 40000, Strategy: arv.StrategyFlip})

	assert.Equal(t, model.ARVMethodMultiplier, r.ARV.Method)
	assert.Equal(t, 354000.0, r.ARV.ARV)
	require.NotNil(t, r.Flip)
	assert.Nil(t, r.BRRRR)
	assert.Equal(t, 207800.0, r.Flip.MaxOffer)
	assert.Equal(t, 28320.0, r.Flip.SellingCosts)
	assert.Equal(t, 35680.0, r.Flip.ProjectedProfit)
	assert.InDelta(t, 12.3, r.Flip.ROI, 0.001)
}

func TestEvaluate_BRRRR(t *testing.T) {
	t.Parallel()

	r := Evaluate(avmRecord(), Request{PurchasePrice: 250000, RehabCost: 40000, Strategy: "BRRRR"})

	assert.Equal(t, 336000.0, r.ARV.ARV)
	require.NotNil(t, r.BRRRR)
	b := r.BRRRR
	assert.Equal(t, 252000.0, b.RefinanceLoan)
	assert.Equal(t, 38000.0, b.CashLeftInDeal)
	assert.Equal(t, 2500.0, b.MonthlyRent)
	assert.InDelta(t, 280.0, b.MonthlyExpenses, 0.001)
	assert.InDelta(t, 1676.56, b.LoanPayment, 0.001)
	assert.InDelta(t, 543.44, b.MonthlyCashFlow, 0.001)
	assert.InDelta(t, 17.16, b.CashOnCashReturn, 0.001)
}

func TestEvaluate_BRRRRCashOutFloorsAtZero(t *testing.T) {
	t.Parallel()

	r := Evaluate(avmRecord(), Request{PurchasePrice: 150000, RehabCost: 20000, Strategy: arv.StrategyBRRRR})
	assert.Zero(t, r.BRRRR.CashLeftInDeal)
	assert.Zero(t, r.BRRRR.CashOnCashReturn)
}

func TestEvaluate_PurchaseFallsBackToRecord(t *testing.T) {
	t.Parallel()

	rec := avmRecord()
	rec.Price = model.Ptr(280000.0)
	r := Evaluate(rec, Request{})
	assert.Equal(t, 280000.0, r.PurchasePrice)
	assert.Equal(t, arv.StrategyFlip, r.Request.Strategy)
	assert.Equal(t, arv.RenovationModerate, r.Request.RenovationLevel)

	empty := Evaluate(nil, Request{})
	assert.Equal(t, model.ARVMethodManual, empty.ARV.Method)
	assert.Zero(t, empty.Flip.ROI)
}

func TestLoanPayment(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 665.30, LoanPayment(100000, 0.07, 360), 0.01)
	assert.InDelta(t, 1000.0, LoanPayment(12000, 0, 12), 0.001)
	assert.Zero(t, LoanPayment(0, 0.07, 360))
}

func TestAnalyze_CachesPerRequest(t *testing.T) {
	t.Parallel()

	rc := &mockReconciler{rec: avmRecord()}
	a := New(rc, WithCache(newStore(), time.Hour))
	req := Request{PurchasePrice: 250000, RehabCost: 40000}

	first, err := a.Analyze(context.Background(), listingURL, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, rc.opts.IncludeValuationAPI)
	assert.True(t, rc.opts.IncludeEstimates)

	// Explicit defaults match the cached request.
	again, err := a.Analyze(context.Background(), listingURL, Request{PurchasePrice: 250000, RehabCost: 40000, Strategy: "flip", RenovationLevel: "moderate"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, first.ARV, again.ARV)
	assert.Equal(t, int32(1), rc.calls.Load())

	other, err := a.Analyze(context.Background(), listingURL, Request{PurchasePrice: 260000, RehabCost: 40000})
	require.NoError(t, err)
	assert.False(t, other.Cached)
	assert.Equal(t, int32(2), rc.calls.Load())

	_, err = a.Analyze(context.Background(), listingURL, Request{PurchasePrice: 260000, RehabCost: 40000, ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, int32(3), rc.calls.Load())
	assert.True(t, rc.opts.ForceRefresh)
}

func TestAnalyze_Narrator(t *testing.T) {
	t.Parallel()

	a := New(&mockReconciler{rec: avmRecord()}, WithNarrator(&mockNarrator{text: "solid deal"}))
	r, err := a.Analyze(context.Background(), listingURL, Request{})
	require.NoError(t, err)
	assert.Equal(t, "solid deal multiplier", r.Narrative)

	failing := New(&mockReconciler{rec: avmRecord()}, WithNarrator(&mockNarrator{err: errors.New("llm down")}))
	r, err = failing.Analyze(context.Background(), listingURL, Request{})
	require.NoError(t, err, "narrator failures are not fatal")
	assert.Empty(t, r.Narrative)
}

func TestAnalyze_Errors(t *testing.T) {
	t.Parallel()

	rc := &mockReconciler{rec: avmRecord()}
	a := New(rc)

	_, err := a.Analyze(context.Background(), "", Request{})
	assert.ErrorIs(t, err, merger.ErrInvalidURL)

	_, err = a.Analyze(context.Background(), listingURL, Request{RehabCost: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, rc.calls.Load())

	rc.err = errors.New("boom")
	_, err = a.Analyze(context.Background(), listingURL, Request{})
	assert.ErrorContains(t, err, "boom")
}

func TestReport_CloneIsDeep(t *testing.T) {
	t.Parallel()

	r := Evaluate(avmRecord(), Request{})
	c := r.Clone()
	c.Flip.MaxOffer = 1
	*c.Record.AVMValue = 1
	assert.NotEqual(t, 1.0, r.Flip.MaxOffer)
	assert.Equal(t, 300000.0, *r.Record.AVMValue)
}
