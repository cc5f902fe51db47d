package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/arv"
	"github.com/sells-group/property-engine/internal/merger"
)

var (
	reconcileNoValuation bool
	reconcileNoEstimates bool
	reconcileForce       bool
	reconcilePurchase    float64
	reconcileRenovation  string
	reconcileStrategy    string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <url> [url...]",
	Short: "Reconcile one or more listing URLs and print the merged records",
	Args:  cobra.MinimumNArgs(1),
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

		opts := reconcileOptions(mergerDefaults(cfg))
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			res, err := env.Merger.Reconcile(ctx, args[0], opts)
			if err != nil {
				return eris.Wrap(err, "reconcile")
			}
			return printJSON(out, res)
		}

		items := env.Merger.ReconcileAll(ctx, args, opts)
		failed := 0
		for _, it := range items {
			if it.Err != nil {
				failed++
				zap.L().Error("reconcile failed", zap.String("url", it.URL), zap.Error(it.Err))
			}
		}
		if err := printJSON(out, items); err != nil {
			return err
		}
		if failed > 0 {
			return eris.Errorf("reconcile: %d of %d urls failed", failed, len(items))
		}
		return nil
	},
}

// reconcileOptions applies the command flags over the configured defaults.
func reconcileOptions(opts merger.Options) merger.Options {
	if reconcileNoValuation {
		opts.IncludeValuationAPI = false
	}
	if reconcileNoEstimates {
		opts.IncludeEstimates = false
	}
	opts.ForceRefresh = reconcileForce
	if reconcilePurchase > 0 || reconcileRenovation != "" || reconcileStrategy != "" {
		opts.ARV = &merger.ARVOptions{
			PurchasePrice:   reconcilePurchase,
			RenovationLevel: arv.ParseRenovationLevel(reconcileRenovation),
			Strategy:        arv.ParseStrategy(reconcileStrategy),
		}
	}
	return opts
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileNoValuation, "no-valuation", false, "skip the valuation API")
	reconcileCmd.Flags().BoolVar(&reconcileNoEstimates, "no-estimates", false, "skip estimate fill-in")
	reconcileCmd.Flags().BoolVar(&reconcileForce, "force", false, "bypass the cache")
	reconcileCmd.Flags().Float64Var(&reconcilePurchase, "purchase-price", 0, "purchase price for the ARV")
	reconcileCmd.Flags().StringVar(&reconcileRenovation, "renovation", "", "renovation level: cosmetic, moderate, extensive, gut")
	reconcileCmd.Flags().StringVar(&reconcileStrategy, "strategy", "", "investment strategy: flip, brrrr")
	rootCmd.AddCommand(reconcileCmd)
}
