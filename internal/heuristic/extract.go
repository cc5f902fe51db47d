package heuristic

import "github.com/sells-group/property-engine/internal/model"

// Extraction is the heuristic view of a listing URL.
type Extraction struct {
	Platform Platform
	// Address holds only what the URL itself spelled out.
	Address Address
	// Listing is Address plus the defaulted listing facts. Price is never set.
	Listing model.RawListing
}

// Extract parses rawURL and fills listing facts from d.
func Extract(rawURL string, d Defaults) Extraction {
	platform, addr := ParseAddress(rawURL)
	beds := d.Bedrooms
	return Extraction{
		Platform: platform,
		Address:  addr,
		Listing: model.RawListing{
			Address:       addr.Street,
			City:          addr.City,
			State:         addr.State,
			ZipCode:       addr.ZipCode,
			Bedrooms:      beds,
			Bathrooms:     d.Bathrooms,
			SquareFootage: d.SquareFootage(beds),
			YearBuilt:     d.YearBuilt,
			PropertyType:  d.PropertyType,
		},
	}
}
