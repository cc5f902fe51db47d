// Package model defines the property records shared by the cache, merger and
// valuation packages.
package model

import "math"

// Field keys used in FieldSources, Completeness and metadata.
const (
	FieldAddress       = "address"
	FieldCity          = "city"
	FieldState         = "state"
	FieldZipCode       = "zipCode"
	FieldBedrooms      = "bedrooms"
	FieldBathrooms     = "bathrooms"
	FieldSquareFootage = "squareFootage"
	FieldYearBuilt     = "yearBuilt"
	FieldPropertyType  = "propertyType"
	FieldLotSize       = "lotSize"
	FieldPrice         = "price"
	FieldAVMValue      = "avmValue"
	FieldRentEstimate  = "rentEstimate"
	FieldMonthlyRent   = "monthlyRent"
	FieldImages        = "images"
	FieldComparables   = "comparables"
	FieldMarket        = "market"
	FieldARV           = "arv"
)

// MergedPropertyRecord is the reconciled view of one property. Nil pointers
// mean the attribute is unknown.
type MergedPropertyRecord struct {
	Address       *string  `json:"address"`
	City          *string  `json:"city"`
	State         *string  `json:"state"`
	ZipCode       *string  `json:"zipCode"`
	Bedrooms      *int     `json:"bedrooms"`
	Bathrooms     *float64 `json:"bathrooms"`
	SquareFootage *int     `json:"squareFootage"`
	YearBuilt     *int     `json:"yearBuilt"`
	PropertyType  *string  `json:"propertyType"`
	LotSize       *int     `json:"lotSize"`

	Price        *float64 `json:"price"`
	AVMValue     *float64 `json:"avmValue"`
	RentEstimate *float64 `json:"rentEstimate"`
	MonthlyRent  *float64 `json:"monthlyRent"`

	Images      []string         `json:"images"`
	Comparables []ComparableSale `json:"comparables,omitempty"`
	Market      *MarketStats     `json:"market,omitempty"`
	ARV         *ARVResult       `json:"arv,omitempty"`

	FieldSources map[string]FieldSource `json:"fieldSources"`
	Completeness Completeness           `json:"completeness"`
}

// Completeness scores how much of the required checklist is populated.
type Completeness struct {
	Score         int          `json:"score"`
	MissingFields []string     `json:"missingFields"`
	Sources       SourceCounts `json:"sources"`
}

// RequiredFields is the fixed checklist behind Completeness.Score. The
// "price" entry is satisfied by either a listing price or an AVM value.
var RequiredFields = []string{
	FieldAddress,
	FieldPrice,
	FieldBedrooms,
	FieldBathrooms,
	FieldSquareFootage,
	FieldPropertyType,
	FieldYearBuilt,
	FieldRentEstimate,
}

// NewRecord returns an empty record ready for field assignment.
func NewRecord() *MergedPropertyRecord {
	return &MergedPropertyRecord{
		Images:       []string{},
		FieldSources: make(map[string]FieldSource),
	}
}

// Has reports whether the named field is populated.
func (r *MergedPropertyRecord) Has(key string) bool {
	switch key {
	case FieldAddress:
		return r.Address != nil
	case FieldCity:
		return r.City != nil
	case FieldState:
		return r.State != nil
	case FieldZipCode:
		return r.ZipCode != nil
	case FieldBedrooms:
		return r.Bedrooms != nil
	case FieldBathrooms:
		return r.Bathrooms != nil
	case FieldSquareFootage:
		return r.SquareFootage != nil
	case FieldYearBuilt:
		return r.YearBuilt != nil
	case FieldPropertyType:
		return r.PropertyType != nil
	case FieldLotSize:
		return r.LotSize != nil
	case FieldPrice:
		return r.Price != nil
	case FieldAVMValue:
		return r.AVMValue != nil
	case FieldRentEstimate:
		return r.RentEstimate != nil
	case FieldMonthlyRent:
		return r.MonthlyRent != nil
	case FieldImages:
		return len(r.Images) > 0
	case FieldComparables:
		return len(r.Comparables) > 0
	case FieldMarket:
		return r.Market != nil
	case FieldARV:
		return r.ARV != nil
	}
	return false
}

var allFields = []string{
	FieldAddress, FieldCity, FieldState, FieldZipCode,
	FieldBedrooms, FieldBathrooms, FieldSquareFootage, FieldYearBuilt, FieldPropertyType, FieldLotSize,
	FieldPrice, FieldAVMValue, FieldRentEstimate, FieldMonthlyRent,
	FieldImages, FieldComparables, FieldMarket, FieldARV,
}

// PopulatedFields lists the populated field keys in a fixed order.
func (r *MergedPropertyRecord) PopulatedFields() []string {
	var out []string
	for _, key := range allFields {
		if r.Has(key) {
			out = append(out, key)
		}
	}
	return out
}

// ComputeCompleteness scores the record against RequiredFields and tallies
// its field sources.
func ComputeCompleteness(r *MergedPropertyRecord) Completeness {
	missing := []string{}
	filled := 0
	for _, key := range RequiredFields {
		ok := r.Has(key)
		if key == FieldPrice {
			ok = r.Price != nil || r.AVMValue != nil
		}
		if ok {
			filled++
			continue
		}
		missing = append(missing, key)
	}
	score := int(math.Round(float64(filled) / float64(len(RequiredFields)) * 100))
	return Completeness{
		Score:         score,
		MissingFields: missing,
		Sources:       CountSources(r.FieldSources),
	}
}

// Clone returns a deep copy so callers never share slices or pointers with
// a cached record.
func (r *MergedPropertyRecord) Clone() *MergedPropertyRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Address = clonePtr(r.Address)
	out.City = clonePtr(r.City)
	out.State = clonePtr(r.State)
	out.ZipCode = clonePtr(r.ZipCode)
	out.Bedrooms = clonePtr(r.Bedrooms)
	out.Bathrooms = clonePtr(r.Bathrooms)
	out.SquareFootage = clonePtr(r.SquareFootage)
	out.YearBuilt = clonePtr(r.YearBuilt)
	out.PropertyType = clonePtr(r.PropertyType)
	out.LotSize = clonePtr(r.LotSize)
	out.Price = clonePtr(r.Price)
	out.AVMValue = clonePtr(r.AVMValue)
	out.RentEstimate = clonePtr(r.RentEstimate)
	out.MonthlyRent = clonePtr(r.MonthlyRent)
	out.Images = append([]string{}, r.Images...)
	if r.Comparables != nil {
		out.Comparables = append([]ComparableSale(nil), r.Comparables...)
	}
	if r.Market != nil {
		m := *r.Market
		out.Market = &m
	}
	if r.ARV != nil {
		a := *r.ARV
		out.ARV = &a
	}
	out.FieldSources = make(map[string]FieldSource, len(r.FieldSources))
	for k, v := range r.FieldSources {
		out.FieldSources[k] = v
	}
	out.Completeness.MissingFields = append([]string{}, r.Completeness.MissingFields...)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// RawListing is the per-field payload a listing scraper returns. Zero values
// mean the scraper did not find the attribute.
type RawListing struct {
	Address       string   `json:"address,omitempty"`
	City          string   `json:"city,omitempty"`
	State         string   `json:"state,omitempty"`
	ZipCode       string   `json:"zipCode,omitempty"`
	Price         float64  `json:"price,omitempty"`
	Bedrooms      int      `json:"bedrooms,omitempty"`
	Bathrooms     float64  `json:"bathrooms,omitempty"`
	SquareFootage int      `json:"squareFootage,omitempty"`
	YearBuilt     int      `json:"yearBuilt,omitempty"`
	PropertyType  string   `json:"propertyType,omitempty"`
	LotSize       int      `json:"lotSize,omitempty"`
	MonthlyRent   float64  `json:"monthlyRent,omitempty"`
	Images        []string `json:"images,omitempty"`
}
