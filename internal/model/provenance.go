package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Source identifies the tier that supplied a field value.
type Source string

const (
	SourceScraped   Source = "scraped"
	SourceRentcast  Source = "rentcast"
	SourceEstimated Source = "estimated"
)

// Rank orders sources for per-field tie-breaking. Higher wins.
func (s Source) Rank() int {
	switch s {
	case SourceScraped:
		return 3
	case SourceRentcast:
		return 2
	case SourceEstimated:
		return 1
	default:
		return 0
	}
}

// Confidence is a coarse trust label attached to a value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FieldSource records which tier supplied a field and how far to trust it.
type FieldSource struct {
	Source     Source     `json:"source"`
	Confidence Confidence `json:"confidence"`
}

// SourceCounts counts populated fields per tier.
type SourceCounts struct {
	Scraped   int `json:"scraped"`
	Rentcast  int `json:"rentcast"`
	Estimated int `json:"estimated"`
}

// CountSources tallies field-source entries by tier.
func CountSources(sources map[string]FieldSource) SourceCounts {
	var c SourceCounts
	for _, fs := range sources {
		switch fs.Source {
		case SourceScraped:
			c.Scraped++
		case SourceRentcast:
			c.Rentcast++
		case SourceEstimated:
			c.Estimated++
		}
	}
	return c
}

// CheckProvenance verifies that every populated field of rec has exactly one
// field-source entry and that no entry exists for an empty field.
func CheckProvenance(rec *MergedPropertyRecord) error {
	if rec == nil {
		return eris.New("model: nil record")
	}
	populated := make(map[string]bool)
	for _, key := range rec.PopulatedFields() {
		populated[key] = true
	}

	var missing, orphan []string
	for key := range populated {
		if _, ok := rec.FieldSources[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range rec.FieldSources {
		if !populated[key] {
			orphan = append(orphan, key)
		}
	}
	if len(missing) == 0 && len(orphan) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(orphan)
	return eris.Errorf("model: provenance mismatch: missing=%v orphan=%v", missing, orphan)
}
