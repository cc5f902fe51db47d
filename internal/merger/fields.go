package merger

import (
	"strings"

	"github.com/sells-group/property-engine/internal/model"
)

// writer assigns field values under one provenance. A write only lands when
// the field is empty or currently held by a lower-ranked source, so the
// order tiers are applied in never changes the outcome.
type writer struct {
	rec *model.MergedPropertyRecord
	fs  model.FieldSource
}

func newWriter(rec *model.MergedPropertyRecord, src model.Source, conf model.Confidence) writer {
	return writer{rec: rec, fs: model.FieldSource{Source: src, Confidence: conf}}
}

func (w writer) wins(key string) bool {
	cur, ok := w.rec.FieldSources[key]
	return !ok || cur.Source.Rank() < w.fs.Source.Rank()
}

func put[T any](w writer, key string, dst **T, v T) bool {
	if !w.wins(key) {
		return false
	}
	*dst = &v
	w.rec.FieldSources[key] = w.fs
	return true
}

func (w writer) str(key string, dst **string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	return put(w, key, dst, v)
}

func (w writer) count(key string, dst **int, v int) bool {
	if v <= 0 {
		return false
	}
	return put(w, key, dst, v)
}

func (w writer) amount(key string, dst **float64, v float64) bool {
	if v <= 0 {
		return false
	}
	return put(w, key, dst, v)
}

func (w writer) images(v []string) bool {
	if len(v) == 0 || !w.wins(model.FieldImages) {
		return false
	}
	w.rec.Images = append([]string{}, v...)
	w.rec.FieldSources[model.FieldImages] = w.fs
	return true
}

func (w writer) comparables(v []model.ComparableSale) bool {
	if len(v) == 0 || !w.wins(model.FieldComparables) {
		return false
	}
	w.rec.Comparables = append([]model.ComparableSale(nil), v...)
	w.rec.FieldSources[model.FieldComparables] = w.fs
	return true
}

func (w writer) market(v *model.MarketStats) bool {
	if v == nil || !w.wins(model.FieldMarket) {
		return false
	}
	m := *v
	w.rec.Market = &m
	w.rec.FieldSources[model.FieldMarket] = w.fs
	return true
}

// location writes the identity fields.
func (w writer) location(street, city, state, zip string) {
	w.str(model.FieldAddress, &w.rec.Address, street)
	w.str(model.FieldCity, &w.rec.City, city)
	w.str(model.FieldState, &w.rec.State, strings.ToUpper(strings.TrimSpace(state)))
	w.str(model.FieldZipCode, &w.rec.ZipCode, zip)
}

// facts writes the listing facts of a raw listing.
func (w writer) facts(l model.RawListing) {
	r := w.rec
	w.count(model.FieldBedrooms, &r.Bedrooms, l.Bedrooms)
	w.amount(model.FieldBathrooms, &r.Bathrooms, l.Bathrooms)
	w.count(model.FieldSquareFootage, &r.SquareFootage, l.SquareFootage)
	w.count(model.FieldYearBuilt, &r.YearBuilt, l.YearBuilt)
	w.str(model.FieldPropertyType, &r.PropertyType, l.PropertyType)
	w.count(model.FieldLotSize, &r.LotSize, l.LotSize)
}

// listing writes everything a scraper returned.
func (w writer) listing(l model.RawListing) {
	w.location(l.Address, l.City, l.State, l.ZipCode)
	w.facts(l)
	w.amount(model.FieldPrice, &w.rec.Price, l.Price)
	w.amount(model.FieldMonthlyRent, &w.rec.MonthlyRent, l.MonthlyRent)
	w.images(l.Images)
}

// subject writes the facts a valuation provider reported about the subject.
func (w writer) subject(s model.SubjectFacts) {
	w.location("", s.City, s.State, s.ZipCode)
	w.facts(model.RawListing{
		Bedrooms:      s.Bedrooms,
		Bathrooms:     s.Bathrooms,
		SquareFootage: s.SquareFootage,
		YearBuilt:     s.YearBuilt,
		PropertyType:  s.PropertyType,
		LotSize:       s.LotSize,
	})
}

// AddressUnavailable stands in for the resolved address when no address
// component is known.
const AddressUnavailable = "Address not available"

// resolveAddress joins the known address parts into one postal line:
// "street, city, ST zip".
func resolveAddress(r *model.MergedPropertyRecord) string {
	var parts []string
	if r.Address != nil {
		parts = append(parts, *r.Address)
	}
	if r.City != nil {
		parts = append(parts, *r.City)
	}
	var tail []string
	if r.State != nil {
		tail = append(tail, *r.State)
	}
	if r.ZipCode != nil {
		tail = append(tail, *r.ZipCode)
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, " "))
	}
	if len(parts) == 0 {
		return AddressUnavailable
	}
	return strings.Join(parts, ", ")
}
