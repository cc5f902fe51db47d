package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-engine/internal/analysis"
	"github.com/sells-group/property-engine/internal/arv"
)

var (
	analyzePurchase   float64
	analyzeRehab      float64
	analyzeRenovation string
	analyzeStrategy   string
	analyzeForce      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Run a flip or BRRRR analysis for a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Analyzer.Analyze(ctx, args[0], analysis.Request{
			PurchasePrice:   analyzePurchase,
			RehabCost:       analyzeRehab,
			RenovationLevel: arv.ParseRenovationLevel(analyzeRenovation),
			Strategy:        arv.ParseStrategy(analyzeStrategy),
			ForceRefresh:    analyzeForce,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzePurchase, "purchase-price", 0, "purchase price (default: listing price or AVM)")
	analyzeCmd.Flags().Float64Var(&analyzeRehab, "rehab", 0, "rehab budget")
	analyzeCmd.Flags().StringVar(&analyzeRenovation, "renovation", "moderate", "renovation level: cosmetic, moderate, extensive, gut")
	analyzeCmd.Flags().StringVar(&analyzeStrategy, "strategy", "flip", "investment strategy: flip, brrrr")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "bypass the cache")
	rootCmd.AddCommand(analyzeCmd)
}
