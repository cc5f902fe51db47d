package merger

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-engine/internal/model"
	"github.com/sells-group/property-engine/internal/valuation"
)

// Valuation sections, as keyed in Metadata.ValuationErrors.
const (
	SectionRental      = "rental"
	SectionComparables = "comparables"
	SectionMarket      = "market"
)

// applyValuation fetches the three valuation sections concurrently and
// applies them in a fixed order once all have returned. A failed section is
// recorded in meta and otherwise ignored.
func (m *Merger) applyValuation(ctx context.Context, rec *model.MergedPropertyRecord, meta *Metadata) {
	subject := subjectFor(rec, meta.ResolvedAddress)

	var (
		rental            *model.RentalEstimate
		value             *model.ValueEstimate
		market            *model.MarketStats
		rentalErr, valErr error
		marketErr         error
	)

	var g errgroup.Group
	g.Go(func() error {
		rental, rentalErr = m.valuation.GetRental(ctx, subject)
		return nil
	})
	g.Go(func() error {
		value, valErr = m.valuation.GetComparables(ctx, subject)
		return nil
	})
	if rec.ZipCode != nil {
		zip := *rec.ZipCode
		g.Go(func() error {
			market, marketErr = m.valuation.GetMarket(ctx, zip)
			return nil
		})
	} else {
		marketErr = errors.New("zip code unknown")
	}
	_ = g.Wait()

	w := newWriter(rec, model.SourceRentcast, model.ConfidenceMedium)
	facts := newWriter(rec, model.SourceRentcast, model.ConfidenceHigh)

	if rentalErr == nil && rental != nil {
		w.amount(model.FieldRentEstimate, &rec.RentEstimate, rental.Rent)
		w.amount(model.FieldMonthlyRent, &rec.MonthlyRent, rental.Rent)
		facts.subject(rental.Subject)
	}
	if valErr == nil && value != nil {
		w.amount(model.FieldAVMValue, &rec.AVMValue, value.Price)
		w.comparables(value.Comparables)
		facts.subject(value.Subject)
	}
	if marketErr == nil && market != nil {
		w.market(market)
	}

	for section, err := range map[string]error{
		SectionRental:      rentalErr,
		SectionComparables: valErr,
		SectionMarket:      marketErr,
	} {
		if err == nil {
			continue
		}
		if meta.ValuationErrors == nil {
			meta.ValuationErrors = make(map[string]string)
		}
		meta.ValuationErrors[section] = err.Error()
	}
}

// subjectFor describes rec to the valuation provider. Only scraped facts are
// passed along; estimated ones would bias the provider's answer.
func subjectFor(rec *model.MergedPropertyRecord, address string) valuation.Subject {
	s := valuation.Subject{Address: address}
	scraped := func(key string) bool {
		return rec.FieldSources[key].Source == model.SourceScraped
	}
	if rec.PropertyType != nil && scraped(model.FieldPropertyType) {
		s.PropertyType = *rec.PropertyType
	}
	if rec.Bedrooms != nil && scraped(model.FieldBedrooms) {
		s.Bedrooms = *rec.Bedrooms
	}
	if rec.Bathrooms != nil && scraped(model.FieldBathrooms) {
		s.Bathrooms = *rec.Bathrooms
	}
	if rec.SquareFootage != nil && scraped(model.FieldSquareFootage) {
		s.SquareFootage = *rec.SquareFootage
	}
	return s
}
