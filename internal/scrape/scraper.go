package scrape

import (
	"context"

	"github.com/sells-group/property-engine/internal/model"
)

// Result is a scraper's answer for one listing URL. A scraper that reached
// the page but could not read it reports Success false with an Error.
type Result struct {
	Success bool             `json:"success"`
	Data    model.RawListing `json:"data"`
	Error   string           `json:"error,omitempty"`
	Source  string           `json:"-"`
}

// ListingScraper fetches the raw fields of a single listing.
type ListingScraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
