// Package valuation fetches rent, value and market data for a resolved
// address. The merger only sees the Client interface; the Rentcast adapter
// and the response cache are the production implementations.
package valuation

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-engine/internal/model"
)

// ErrNoData means the provider answered but knows nothing about the subject.
var ErrNoData = eris.New("valuation: no data")

// Subject describes the property to value. Address is the resolved one-line
// address; the remaining facts are optional hints.
type Subject struct {
	Address       string  `json:"address"`
	PropertyType  string  `json:"propertyType,omitempty"`
	Bedrooms      int     `json:"bedrooms,omitempty"`
	Bathrooms     float64 `json:"bathrooms,omitempty"`
	SquareFootage int     `json:"squareFootage,omitempty"`
}

// Client is the valuation collaborator consumed by the merger.
type Client interface {
	// GetRental returns a long-term rent estimate.
	GetRental(ctx context.Context, s Subject) (*model.RentalEstimate, error)
	// GetComparables returns an AVM value and the sales behind it.
	GetComparables(ctx context.Context, s Subject) (*model.ValueEstimate, error)
	// GetMarket returns zip-level aggregates.
	GetMarket(ctx context.Context, zipCode string) (*model.MarketStats, error)
}
