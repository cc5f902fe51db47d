package model

// ComparableSale is a recently sold property used to value a subject.
type ComparableSale struct {
	Address       string  `json:"address,omitempty"`
	Price         float64 `json:"price"`
	SquareFootage int     `json:"squareFootage"`
	Similarity    float64 `json:"similarity"`
	Bedrooms      int     `json:"bedrooms,omitempty"`
	Bathrooms     float64 `json:"bathrooms,omitempty"`
	Distance      float64 `json:"distance,omitempty"` // miles
}

// Eligibility thresholds for a comparable to participate in ARV.
const (
	MinComparablePrice      = 50000
	MinComparableSimilarity = 0.5
)

// Valid reports whether the comparable may be used for valuation.
func (c ComparableSale) Valid() bool {
	return c.Price > MinComparablePrice && c.SquareFootage > 0 && c.Similarity > MinComparableSimilarity
}

// PricePerSqFt returns the sale price per square foot, or 0 without a size.
func (c ComparableSale) PricePerSqFt() float64 {
	if c.SquareFootage <= 0 {
		return 0
	}
	return c.Price / float64(c.SquareFootage)
}

// MarketStats holds zip-level aggregates from the valuation provider.
type MarketStats struct {
	ZipCode             string  `json:"zipCode"`
	AverageSalePrice    float64 `json:"averageSalePrice,omitempty"`
	MedianSalePrice     float64 `json:"medianSalePrice,omitempty"`
	AveragePricePerSqFt float64 `json:"averagePricePerSqFt,omitempty"`
	AverageRent         float64 `json:"averageRent,omitempty"`
	MedianRent          float64 `json:"medianRent,omitempty"`
	AverageDaysOnMarket float64 `json:"averageDaysOnMarket,omitempty"`
	TotalListings       int     `json:"totalListings,omitempty"`
}

// SubjectFacts are property attributes a valuation provider reports about
// the subject it priced.
type SubjectFacts struct {
	Bedrooms      int     `json:"bedrooms,omitempty"`
	Bathrooms     float64 `json:"bathrooms,omitempty"`
	SquareFootage int     `json:"squareFootage,omitempty"`
	YearBuilt     int     `json:"yearBuilt,omitempty"`
	PropertyType  string  `json:"propertyType,omitempty"`
	LotSize       int     `json:"lotSize,omitempty"`
	City          string  `json:"city,omitempty"`
	State         string  `json:"state,omitempty"`
	ZipCode       string  `json:"zipCode,omitempty"`
}

// RentalEstimate is the provider's long-term rent estimate.
type RentalEstimate struct {
	Rent         float64      `json:"rent"`
	RentRangeLow float64      `json:"rentRangeLow,omitempty"`
	RentRangeHi  float64      `json:"rentRangeHigh,omitempty"`
	Subject      SubjectFacts `json:"subject"`
}

// ValueEstimate is the provider's AVM value plus the sales it compared.
type ValueEstimate struct {
	Price       float64          `json:"price"`
	Comparables []ComparableSale `json:"comparables"`
	Subject     SubjectFacts     `json:"subject"`
}

// ARVMethod names the fallback tier that produced an ARV.
type ARVMethod string

const (
	ARVMethodComparables ARVMethod = "comparables"
	ARVMethodMultiplier  ARVMethod = "multiplier"
	ARVMethodManual      ARVMethod = "manual"
)

// ARVDetails explains how an ARV was computed.
type ARVDetails struct {
	PricePerSqFt      float64 `json:"pricePerSqFt"`
	ComparablesUsed   int     `json:"comparablesUsed"`
	AdjustmentApplied float64 `json:"adjustmentApplied"`
	RenovationPremium float64 `json:"renovationPremium"`
}

// ARVResult is an after-repair-value estimate.
type ARVResult struct {
	ARV        float64    `json:"arv"`
	Method     ARVMethod  `json:"method"`
	Confidence Confidence `json:"confidence"`
	Details    ARVDetails `json:"details"`
}
