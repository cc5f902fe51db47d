package heuristic

import (
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Defaults are the rule-of-thumb values used when no source supplies a fact.
type Defaults struct {
	Bedrooms             int         `yaml:"bedrooms"`
	Bathrooms            float64     `yaml:"bathrooms"`
	PropertyType         string      `yaml:"property_type"`
	YearBuilt            int         `yaml:"year_built"`
	SquareFeetByBedrooms map[int]int `yaml:"square_feet_by_bedrooms"`
	RentToPriceRatio     float64     `yaml:"rent_to_price_ratio"` // monthly rent as a fraction of value
}

// DefaultValues returns the built-in defaults.
func DefaultValues() Defaults {
	return Defaults{
		Bedrooms:     3,
		Bathrooms:    2,
		PropertyType: "Single Family",
		YearBuilt:    1990,
		SquareFeetByBedrooms: map[int]int{
			1: 800,
			2: 1200,
			3: 1800,
			4: 2400,
			5: 3000,
		},
		RentToPriceRatio: 0.007,
	}
}

// LoadDefaults reads overrides from a YAML file with a top-level "defaults"
// key. Fields the file leaves out keep their built-in values.
func LoadDefaults(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, eris.Wrapf(err, "heuristic: read defaults %s", path)
	}

	var wrapper struct {
		Defaults Defaults `yaml:"defaults"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Defaults{}, eris.Wrap(err, "heuristic: parse defaults")
	}

	d := DefaultValues()
	o := wrapper.Defaults
	if o.Bedrooms > 0 {
		d.Bedrooms = o.Bedrooms
	}
	if o.Bathrooms > 0 {
		d.Bathrooms = o.Bathrooms
	}
	if o.PropertyType != "" {
		d.PropertyType = o.PropertyType
	}
	if o.YearBuilt > 0 {
		d.YearBuilt = o.YearBuilt
	}
	if len(o.SquareFeetByBedrooms) > 0 {
		d.SquareFeetByBedrooms = o.SquareFeetByBedrooms
	}
	if o.RentToPriceRatio > 0 {
		d.RentToPriceRatio = o.RentToPriceRatio
	}
	return d, nil
}

// SquareFootage looks up the table for beds, clamping to the smallest and
// largest bedroom counts it knows.
func (d Defaults) SquareFootage(beds int) int {
	if len(d.SquareFeetByBedrooms) == 0 {
		return 0
	}
	if v, ok := d.SquareFeetByBedrooms[beds]; ok {
		return v
	}
	keys := make([]int, 0, len(d.SquareFeetByBedrooms))
	for k := range d.SquareFeetByBedrooms {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	if beds < keys[0] {
		return d.SquareFeetByBedrooms[keys[0]]
	}
	if beds > keys[len(keys)-1] {
		return d.SquareFeetByBedrooms[keys[len(keys)-1]]
	}
	// Gaps in a custom table fall back to the nearest smaller key.
	best := keys[0]
	for _, k := range keys {
		if k <= beds {
			best = k
		}
	}
	return d.SquareFeetByBedrooms[best]
}

// RentEstimate applies the rent-to-price rule to value, rounded to dollars.
func (d Defaults) RentEstimate(value float64) float64 {
	if value <= 0 {
		return 0
	}
	return math.Round(value * d.RentToPriceRatio)
}
