package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-engine/internal/arv"
	"github.com/sells-group/property-engine/internal/model"
)

var (
	arvSqFt       int
	arvPurchase   float64
	arvAVM        float64
	arvCompsFile  string
	arvRenovation string
	arvStrategy   string
)

var arvCmd = &cobra.Command{
	Use:   "arv",
	Short: "Compute an after-repair value from comparables, an AVM or a purchase price",
	RunE: func(cmd *cobra.Command, args []string) error {
		if arvSqFt < 0 || arvPurchase < 0 || arvAVM < 0 {
			return eris.New("arv: values must not be negative")
		}
		comps, err := loadComparables(arvCompsFile)
		if err != nil {
			return err
		}
		res := arv.Calculate(arv.Input{
			SubjectSqFt:     arvSqFt,
			PurchasePrice:   arvPurchase,
			AVMValue:        arvAVM,
			Comparables:     comps,
			RenovationLevel: arv.ParseRenovationLevel(arvRenovation),
			Strategy:        arv.ParseStrategy(arvStrategy),
		})
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// loadComparables reads a JSON array of comparable sales. An empty path
// means none.
func loadComparables(path string) ([]model.ComparableSale, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "arv: read %s", path)
	}
	var comps []model.ComparableSale
	if err := json.Unmarshal(data, &comps); err != nil {
		return nil, eris.Wrapf(err, "arv: parse %s", path)
	}
	return comps, nil
}

func init() {
	arvCmd.Flags().IntVar(&arvSqFt, "sqft", 0, "subject square footage")
	arvCmd.Flags().Float64Var(&arvPurchase, "purchase-price", 0, "purchase price")
	arvCmd.Flags().Float64Var(&arvAVM, "avm", 0, "automated valuation")
	arvCmd.Flags().StringVar(&arvCompsFile, "comps", "", "JSON file of comparable sales")
	arvCmd.Flags().StringVar(&arvRenovation, "renovation", "moderate", "renovation level: cosmetic, moderate, extensive, gut")
	arvCmd.Flags().StringVar(&arvStrategy, "strategy", "flip", "investment strategy: flip, brrrr")
	rootCmd.AddCommand(arvCmd)
}
