// Package arv estimates after-repair value from comparable sales, an AVM
// value or the purchase price, in that order of preference.
package arv

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/property-engine/internal/model"
)

// RenovationLevel is the scope of planned rehab work.
type RenovationLevel string

const (
	RenovationCosmetic  RenovationLevel = "cosmetic"
	RenovationModerate  RenovationLevel = "moderate"
	RenovationExtensive RenovationLevel = "extensive"
	RenovationGut       RenovationLevel = "gut"
)

// Strategy is the investment strategy the ARV feeds.
type Strategy string

const (
	StrategyFlip  Strategy = "flip"
	StrategyBRRRR Strategy = "brrrr"
)

// maxComparables caps how many of the most similar comparables are weighted.
const maxComparables = 5

// minComparables is the fewest valid comparables the comparables tier accepts.
const minComparables = 2

// renovationPremiums is the value uplift a finished rehab adds over comps.
var renovationPremiums = map[RenovationLevel]float64{
	RenovationCosmetic:  0.08,
	RenovationModerate:  0.15,
	RenovationExtensive: 0.22,
	RenovationGut:       0.30,
}

// avmMultipliers scale an AVM value to an ARV. BRRRR is more conservative at
// every level because the refinance appraisal has to hold.
var avmMultipliers = map[Strategy]map[RenovationLevel]float64{
	StrategyFlip: {
		RenovationCosmetic:  1.12,
		RenovationModerate:  1.18,
		RenovationExtensive: 1.25,
		RenovationGut:       1.32,
	},
	StrategyBRRRR: {
		RenovationCosmetic:  1.08,
		RenovationModerate:  1.12,
		RenovationExtensive: 1.18,
		RenovationGut:       1.25,
	},
}

// purchaseMultipliers apply when only the purchase price is known.
var purchaseMultipliers = map[Strategy]float64{
	StrategyFlip:  1.20,
	StrategyBRRRR: 1.15,
}

// Input carries everything the calculator may use.
type Input struct {
	SubjectSqFt     int
	PurchasePrice   float64
	Comparables     []model.ComparableSale
	AVMValue        float64
	RenovationLevel RenovationLevel
	Strategy        Strategy
}

// ParseRenovationLevel maps free text to a level, defaulting to moderate.
func ParseRenovationLevel(s string) RenovationLevel {
	lvl := RenovationLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := renovationPremiums[lvl]; ok {
		return lvl
	}
	return RenovationModerate
}

// ParseStrategy maps free text to a strategy, defaulting to flip.
func ParseStrategy(s string) Strategy {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := purchaseMultipliers[st]; ok {
		return st
	}
	return StrategyFlip
}

// RenovationPremium returns the uplift fraction for a level.
func RenovationPremium(level RenovationLevel) float64 {
	return renovationPremiums[ParseRenovationLevel(string(level))]
}

// ValidComparables filters comps to those eligible for valuation and orders
// them by similarity, most similar first. Equal similarities keep input order.
func ValidComparables(comps []model.ComparableSale) []model.ComparableSale {
	out := make([]model.ComparableSale, 0, len(comps))
	for _, c := range comps {
		if c.Valid() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

// Calculate returns the best available ARV for in. It never fails; when no
// tier has enough data the result asks for a manual estimate.
func Calculate(in Input) model.ARVResult {
	level := ParseRenovationLevel(string(in.RenovationLevel))
	strategy := ParseStrategy(string(in.Strategy))
	premium := renovationPremiums[level]

	if res, ok := fromComparables(in, premium); ok {
		return res
	}

	if in.AVMValue > 0 {
		mult := avmMultipliers[strategy][level]
		arv := math.Round(in.AVMValue * mult)
		details := model.ARVDetails{
			AdjustmentApplied: mult,
			RenovationPremium: arv - in.AVMValue,
		}
		if in.SubjectSqFt > 0 {
			details.PricePerSqFt = round2(arv / float64(in.SubjectSqFt))
		}
		return model.ARVResult{
			ARV:        arv,
			Method:     model.ARVMethodMultiplier,
			Confidence: model.ConfidenceLow,
			Details:    details,
		}
	}

	if in.PurchasePrice > 0 {
		mult := purchaseMultipliers[strategy]
		base := in.PurchasePrice * mult
		arv := math.Round(base * (1 + premium))
		details := model.ARVDetails{
			AdjustmentApplied: mult,
			RenovationPremium: math.Round(base * premium),
		}
		if in.SubjectSqFt > 0 {
			details.PricePerSqFt = round2(arv / float64(in.SubjectSqFt))
		}
		return model.ARVResult{
			ARV:        arv,
			Method:     model.ARVMethodMultiplier,
			Confidence: model.ConfidenceLow,
			Details:    details,
		}
	}

	return model.ARVResult{
		ARV:        0,
		Method:     model.ARVMethodManual,
		Confidence: model.ConfidenceLow,
	}
}

func fromComparables(in Input, premium float64) (model.ARVResult, bool) {
	if in.SubjectSqFt <= 0 {
		return model.ARVResult{}, false
	}
	comps := ValidComparables(in.Comparables)
	if len(comps) < minComparables {
		return model.ARVResult{}, false
	}
	if len(comps) > maxComparables {
		comps = comps[:maxComparables]
	}

	var weighted, weights float64
	for _, c := range comps {
		weighted += c.PricePerSqFt() * c.Similarity
		weights += c.Similarity
	}
	avg := weighted / weights
	if avg <= 0 {
		return model.ARVResult{}, false
	}

	base := avg * float64(in.SubjectSqFt)
	return model.ARVResult{
		ARV:        math.Round(base * (1 + premium)),
		Method:     model.ARVMethodComparables,
		Confidence: comparablesConfidence(len(comps)),
		Details: model.ARVDetails{
			PricePerSqFt:      round2(avg),
			ComparablesUsed:   len(comps),
			AdjustmentApplied: premium,
			RenovationPremium: math.Round(base * premium),
		},
	}, true
}

func comparablesConfidence(n int) model.Confidence {
	switch {
	case n >= 4:
		return model.ConfidenceHigh
	case n >= 2:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
