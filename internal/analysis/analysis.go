// Package analysis turns a merged property record into a flip or BRRRR deal
// analysis.
package analysis

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/arv"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/model"
)

// ErrInvalidRequest is returned for requests with negative amounts.
var ErrInvalidRequest = eris.New("analysis: invalid request")

// Deal assumptions.
const (
	FlipMaxOfferRatio  = 0.70 // maximum allowable offer as a share of ARV
	FlipSellingCosts   = 0.08 // selling and holding costs as a share of ARV
	RefinanceLTV       = 0.75
	AnnualExpenseRatio = 0.01 // taxes, insurance and upkeep per year as a share of ARV
	LoanRate           = 0.07
	LoanTermMonths     = 360
)

// Request describes the deal to analyze.
type Request struct {
	PurchasePrice   float64             `json:"purchasePrice,omitempty"`
	RehabCost       float64             `json:"rehabCost,omitempty"`
	RenovationLevel arv.RenovationLevel `json:"renovationLevel,omitempty"`
	Strategy        arv.Strategy        `json:"strategy,omitempty"`
	ForceRefresh    bool                `json:"forceRefresh,omitempty"`
}

// normalized returns the request as it is cached: parsed enums and no
// refresh flag.
func (r Request) normalized() Request {
	r.RenovationLevel = arv.ParseRenovationLevel(string(r.RenovationLevel))
	r.Strategy = arv.ParseStrategy(string(r.Strategy))
	r.ForceRefresh = false
	return r
}

// FlipMetrics are the numbers behind a fix-and-flip.
type FlipMetrics struct {
	MaxOffer        float64 `json:"maxOffer"`
	SellingCosts    float64 `json:"sellingCosts"`
	ProjectedProfit float64 `json:"projectedProfit"`
	ROI             float64 `json:"roi"` // percent of cash in
}

// BRRRRMetrics are the numbers behind a buy-rehab-rent-refinance.
type BRRRRMetrics struct {
	RefinanceLoan    float64 `json:"refinanceLoan"`
	CashLeftInDeal   float64 `json:"cashLeftInDeal"`
	MonthlyRent      float64 `json:"monthlyRent"`
	MonthlyExpenses  float64 `json:"monthlyExpenses"`
	LoanPayment      float64 `json:"loanPayment"`
	MonthlyCashFlow  float64 `json:"monthlyCashFlow"`
	CashOnCashReturn float64 `json:"cashOnCashReturn"` // percent; 0 when no cash is left in
}

// Report is one analysis of one listing.
type Report struct {
	URL           string                      `json:"url"`
	Request       Request                     `json:"request"`
	PurchasePrice float64                     `json:"purchasePrice"`
	ARV           model.ARVResult             `json:"arv"`
	Flip          *FlipMetrics                `json:"flip,omitempty"`
	BRRRR         *BRRRRMetrics               `json:"brrrr,omitempty"`
	Record        *model.MergedPropertyRecord `json:"record"`
	Narrative     string                      `json:"narrative,omitempty"`
	Cached        bool                        `json:"cached"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
}

// Clone deep-copies r.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Record = r.Record.Clone()
	if r.Flip != nil {
		f := *r.Flip
		out.Flip = &f
	}
	if r.BRRRR != nil {
		b := *r.BRRRR
		out.BRRRR = &b
	}
	return &out
}

// Reconciler produces merged records. *merger.Merger satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, rawURL string, opts merger.Options) (*merger.Result, error)
}

// Cache is the analysis map of the cache store.
type Cache interface {
	GetAnalysis(key string) (*Report, bool)
	SetAnalysis(key string, r *Report, ttl time.Duration)
}

// Narrator writes a prose summary of an analysis.
type Narrator interface {
	Narrate(ctx context.Context, rec *model.MergedPropertyRecord, r *Report) (string, error)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache caches reports. A zero ttl uses the cache's default.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(a *Analyzer) {
		a.cache = c
		a.ttl = ttl
	}
}

// WithNarrator adds narrative text to fresh reports.
func WithNarrator(n Narrator) Option {
	return func(a *Analyzer) { a.narrator = n }
}

// WithNow sets the clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// Analyzer runs deal analyses on top of a Reconciler.
type Analyzer struct {
	reconciler Reconciler
	cache      Cache
	ttl        time.Duration
	narrator   Narrator
	now        func() time.Time
}

// New creates an Analyzer.
func New(r Reconciler, opts ...Option) *Analyzer {
	a := &Analyzer{reconciler: r, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reconciles rawURL and evaluates req against the record. A cached
// report is reused only for an identical request.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string, req Request) (*Report, error) {
	if req.PurchasePrice < 0 || req.RehabCost < 0 {
		return nil, eris.Wrap(ErrInvalidRequest, "analysis: purchase price and rehab cost must not be negative")
	}
	rawURL, err := merger.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	key := cache.NormalizeKey(rawURL)
	norm := req.normalized()

	if !req.ForceRefresh && a.cache != nil {
		if hit, ok := a.cache.GetAnalysis(key); ok && hit != nil && hit.Request == norm {
			hit.Cached = true
			return hit, nil
		}
	}

	res, err := a.reconciler.Reconcile(ctx, rawURL, merger.Options{
		IncludeValuationAPI: true,
		IncludeEstimates:    true,
		ForceRefresh:        req.ForceRefresh,
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: reconcile")
	}

	report := Evaluate(res.Record, norm)
	report.URL = rawURL
	report.GeneratedAt = a.now().UTC()

	if a.narrator != nil {
		text, err := a.narrator.Narrate(ctx, report.Record, report)
		if err != nil {
			zap.L().Warn("analysis: narrator failed", zap.String("url", rawURL), zap.Error(err))
		} else {
			report.Narrative = text
		}
	}

	if a.cache != nil {
		a.cache.SetAnalysis(key, report, a.ttl)
	}
	zap.L().Info("analysis: completed",
		zap.String("url", rawURL),
		zap.String("strategy", string(norm.Strategy)),
		zap.Float64("arv", report.ARV.ARV),
		zap.String("arv_method", string(report.ARV.Method)),
	)
	return report, nil
}

// Evaluate computes the ARV and strategy metrics for rec. It does no I/O.
func Evaluate(rec *model.MergedPropertyRecord, req Request) *Report {
	req = req.normalized()
	if rec == nil {
		rec = model.NewRecord()
	}

	purchase := req.PurchasePrice
	if purchase <= 0 {
		switch {
		case rec.Price != nil:
			purchase = *rec.Price
		case rec.AVMValue != nil:
			purchase = *rec.AVMValue
		}
	}

	in := arv.Input{
		Comparables:     rec.Comparables,
		PurchasePrice:   purchase,
		RenovationLevel: req.RenovationLevel,
		Strategy:        req.Strategy,
	}
	if rec.SquareFootage != nil {
		in.SubjectSqFt = *rec.SquareFootage
	}
	if rec.AVMValue != nil {
		in.AVMValue = *rec.AVMValue
	}

	r := &Report{
		Request:       req,
		PurchasePrice: purchase,
		ARV:           arv.Calculate(in),
		Record:        rec.Clone(),
	}
	switch req.Strategy {
	case arv.StrategyBRRRR:
		r.BRRRR = brrrr(r.ARV.ARV, purchase, req.RehabCost, monthlyRent(rec))
	default:
		r.Flip = flip(r.ARV.ARV, purchase, req.RehabCost)
	}
	return r
}

func flip(arvValue, purchase, rehab float64) *FlipMetrics {
	selling := math.Round(arvValue * FlipSellingCosts)
	profit := arvValue - purchase - rehab - selling
	m := &FlipMetrics{
		MaxOffer:        math.Round(arvValue*FlipMaxOfferRatio - rehab),
		SellingCosts:    selling,
		ProjectedProfit: math.Round(profit),
	}
	if in := purchase + rehab; in > 0 {
		m.ROI = round2(profit / in * 100)
	}
	return m
}

func brrrr(arvValue, purchase, rehab, rent float64) *BRRRRMetrics {
	loan := math.Round(arvValue * RefinanceLTV)
	payment := round2(LoanPayment(loan, LoanRate, LoanTermMonths))
	expenses := round2(arvValue * AnnualExpenseRatio / 12)
	cashFlow := round2(rent - expenses - payment)

	m := &BRRRRMetrics{
		RefinanceLoan:   loan,
		CashLeftInDeal:  math.Max(0, purchase+rehab-loan),
		MonthlyRent:     rent,
		MonthlyExpenses: expenses,
		LoanPayment:     payment,
		MonthlyCashFlow: cashFlow,
	}
	if m.CashLeftInDeal > 0 {
		m.CashOnCashReturn = round2(cashFlow * 12 / m.CashLeftInDeal * 100)
	}
	return m
}

// LoanPayment is the fixed monthly payment on an amortizing loan.
func LoanPayment(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	if annualRate <= 0 {
		return principal / float64(months)
	}
	r := annualRate / 12
	return principal * r / (1 - math.Pow(1+r, -float64(months)))
}

func monthlyRent(rec *model.MergedPropertyRecord) float64 {
	switch {
	case rec.MonthlyRent != nil:
		return *rec.MonthlyRent
	case rec.RentEstimate != nil:
		return *rec.RentEstimate
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
