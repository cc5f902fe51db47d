package valuation

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-engine/internal/model"
	"github.com/sells-group/property-engine/internal/resilience"
	"github.com/sells-group/property-engine/pkg/rentcast"
)

const defaultCompCount = 10

// RentcastOption configures a Rentcast adapter.
type RentcastOption func(*Rentcast)

// WithBreaker replaces the adapter's circuit breaker.
func WithBreaker(b *resilience.Breaker) RentcastOption {
	return func(r *Rentcast) {
		r.breaker = b
	}
}

// WithCompCount sets how many comparables to request.
func WithCompCount(n int) RentcastOption {
	return func(r *Rentcast) {
		if n > 0 {
			r.compCount = n
		}
	}
}

// Rentcast adapts a rentcast.Client to Client. All three calls share one
// breaker so a failing API is skipped quickly.
type Rentcast struct {
	api       rentcast.Client
	breaker   *resilience.Breaker
	compCount int
}

// NewRentcast wraps api.
func NewRentcast(api rentcast.Client, opts ...RentcastOption) *Rentcast {
	r := &Rentcast{
		api:       api,
		breaker:   resilience.NewBreaker("rentcast", resilience.DefaultBreakerConfig()),
		compCount: defaultCompCount,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Breaker exposes the breaker for health reporting.
func (r *Rentcast) Breaker() *resilience.Breaker { return r.breaker }

func (r *Rentcast) GetRental(ctx context.Context, s Subject) (*model.RentalEstimate, error) {
	resp, err := resilience.Call(ctx, r.breaker, func(ctx context.Context) (*rentcast.RentResponse, error) {
		return found[rentcast.RentResponse](r.api.RentEstimate(ctx, r.params(s)))
	})
	if err != nil {
		return nil, classify(err, "valuation: rental")
	}
	if resp == nil || resp.Rent <= 0 {
		return nil, ErrNoData
	}
	return &model.RentalEstimate{
		Rent:         resp.Rent,
		RentRangeLow: resp.RentRangeLow,
		RentRangeHi:  resp.RentRangeHigh,
		Subject:      subjectFacts(resp.SubjectProperty),
	}, nil
}

func (r *Rentcast) GetComparables(ctx context.Context, s Subject) (*model.ValueEstimate, error) {
	resp, err := resilience.Call(ctx, r.breaker, func(ctx context.Context) (*rentcast.ValueResponse, error) {
		return found[rentcast.ValueResponse](r.api.ValueEstimate(ctx, r.params(s)))
	})
	if err != nil {
		return nil, classify(err, "valuation: comparables")
	}
	if resp == nil || (resp.Price <= 0 && len(resp.Comparables) == 0) {
		return nil, ErrNoData
	}

	comps := make([]model.ComparableSale, 0, len(resp.Comparables))
	for _, c := range resp.Comparables {
		comps = append(comps, model.ComparableSale{
			Address:       c.FormattedAddress,
			Price:         c.Price,
			SquareFootage: c.SquareFootage,
			Similarity:    c.Correlation,
			Bedrooms:      c.Bedrooms,
			Bathrooms:     c.Bathrooms,
			Distance:      c.Distance,
		})
	}
	return &model.ValueEstimate{
		Price:       resp.Price,
		Comparables: comps,
		Subject:     subjectFacts(resp.SubjectProperty),
	}, nil
}

func (r *Rentcast) GetMarket(ctx context.Context, zipCode string) (*model.MarketStats, error) {
	if zipCode == "" {
		return nil, eris.Wrap(ErrNoData, "valuation: market: zip code required")
	}
	resp, err := resilience.Call(ctx, r.breaker, func(ctx context.Context) (*rentcast.MarketResponse, error) {
		return found[rentcast.MarketResponse](r.api.Market(ctx, zipCode))
	})
	if err != nil {
		return nil, classify(err, "valuation: market")
	}
	if resp == nil || (resp.SaleData == nil && resp.RentalData == nil) {
		return nil, ErrNoData
	}

	m := &model.MarketStats{ZipCode: zipCode}
	if sd := resp.SaleData; sd != nil {
		m.AverageSalePrice = sd.AveragePrice
		m.MedianSalePrice = sd.MedianPrice
		m.AveragePricePerSqFt = sd.AveragePricePerSquareFoot
		m.AverageDaysOnMarket = sd.AverageDaysOnMarket
		m.TotalListings = sd.TotalListings
	}
	if rd := resp.RentalData; rd != nil {
		m.AverageRent = rd.AverageRent
		m.MedianRent = rd.MedianRent
	}
	return m, nil
}

func (r *Rentcast) params(s Subject) rentcast.EstimateParams {
	return rentcast.EstimateParams{
		Address:       s.Address,
		PropertyType:  s.PropertyType,
		Bedrooms:      s.Bedrooms,
		Bathrooms:     s.Bathrooms,
		SquareFootage: s.SquareFootage,
		CompCount:     r.compCount,
	}
}

// found turns a not-found answer into an empty success so the breaker only
// counts real upstream failures.
func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, rentcast.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func classify(err error, op string) error {
	var apiErr *rentcast.APIError
	if errors.As(err, &apiErr) && apiErr.Temporary() {
		return eris.Wrap(resilience.NewTransientError(err, apiErr.StatusCode), op)
	}
	return eris.Wrap(err, op)
}

func subjectFacts(sp *rentcast.SubjectProperty) model.SubjectFacts {
	if sp == nil {
		return model.SubjectFacts{}
	}
	return model.SubjectFacts{
		Bedrooms:      sp.Bedrooms,
		Bathrooms:     sp.Bathrooms,
		SquareFootage: sp.SquareFootage,
		YearBuilt:     sp.YearBuilt,
		PropertyType:  sp.PropertyType,
		LotSize:       sp.LotSize,
		City:          sp.City,
		State:         sp.State,
		ZipCode:       sp.ZipCode,
	}
}
