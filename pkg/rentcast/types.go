package rentcast

// Comparable is a nearby listing Rentcast compared against the subject.
type Comparable struct {
	ID               string  `json:"id"`
	FormattedAddress string  `json:"formattedAddress"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	ZipCode          string  `json:"zipCode"`
	PropertyType     string  `json:"propertyType"`
	Bedrooms         int     `json:"bedrooms"`
	Bathrooms        float64 `json:"bathrooms"`
	SquareFootage    int     `json:"squareFootage"`
	YearBuilt        int     `json:"yearBuilt"`
	Price            float64 `json:"price"`
	ListingType      string  `json:"listingType"`
	DaysOnMarket     int     `json:"daysOnMarket"`
	Distance         float64 `json:"distance"`
	Correlation      float64 `json:"correlation"`
}

// SubjectProperty is Rentcast's record of the property that was priced.
type SubjectProperty struct {
	FormattedAddress string  `json:"formattedAddress"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	ZipCode          string  `json:"zipCode"`
	PropertyType     string  `json:"propertyType"`
	Bedrooms         int     `json:"bedrooms"`
	Bathrooms        float64 `json:"bathrooms"`
	SquareFootage    int     `json:"squareFootage"`
	LotSize          int     `json:"lotSize"`
	YearBuilt        int     `json:"yearBuilt"`
}

// RentResponse is returned by GET /avm/rent/long-term.
type RentResponse struct {
	Rent            float64          `json:"rent"`
	RentRangeLow    float64          `json:"rentRangeLow"`
	RentRangeHigh   float64          `json:"rentRangeHigh"`
	SubjectProperty *SubjectProperty `json:"subjectProperty"`
	Comparables     []Comparable     `json:"comparables"`
}

// ValueResponse is returned by GET /avm/value.
type ValueResponse struct {
	Price           float64          `json:"price"`
	PriceRangeLow   float64          `json:"priceRangeLow"`
	PriceRangeHigh  float64          `json:"priceRangeHigh"`
	SubjectProperty *SubjectProperty `json:"subjectProperty"`
	Comparables     []Comparable     `json:"comparables"`
}

// MarketResponse is returned by GET /markets.
type MarketResponse struct {
	ID         string      `json:"id"`
	ZipCode    string      `json:"zipCode"`
	SaleData   *SaleData   `json:"saleData"`
	RentalData *RentalData `json:"rentalData"`
}

// SaleData holds zip-level sale aggregates.
type SaleData struct {
	LastUpdatedDate           string  `json:"lastUpdatedDate"`
	AveragePrice              float64 `json:"averagePrice"`
	MedianPrice               float64 `json:"medianPrice"`
	AveragePricePerSquareFoot float64 `json:"averagePricePerSquareFoot"`
	AverageDaysOnMarket       float64 `json:"averageDaysOnMarket"`
	TotalListings             int     `json:"totalListings"`
}

// RentalData holds zip-level rental aggregates.
type RentalData struct {
	LastUpdatedDate string  `json:"lastUpdatedDate"`
	AverageRent     float64 `json:"averageRent"`
	MedianRent      float64 `json:"medianRent"`
	TotalListings   int     `json:"totalListings"`
}

// EstimateParams describe the subject of an AVM request. Only Address is
// required; the rest sharpen the estimate.
type EstimateParams struct {
	Address       string
	PropertyType  string
	Bedrooms      int
	Bathrooms     float64
	SquareFootage int
	CompCount     int
}
