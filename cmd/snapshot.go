package main

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/analysis"
	"github.com/sells-group/property-engine/internal/cache"
	"github.com/sells-group/property-engine/internal/merger"
	"github.com/sells-group/property-engine/internal/snapshot"
)

var snapshotOut string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and move cache snapshots held by the configured sink",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the latest snapshot to a file or stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSink(cmd.Context(), func(ctx context.Context, sink snapshot.Sink) error {
			blob, err := sink.Load(ctx)
			if err != nil {
				return eris.Wrapf(err, "load from %s", sink.Name())
			}
			if snapshotOut == "" || snapshotOut == "-" {
				_, err := cmd.OutOrStdout().Write(blob)
				return eris.Wrap(err, "write snapshot")
			}
			return eris.Wrapf(atomic.WriteFile(snapshotOut, bytes.NewReader(blob)), "write %s", snapshotOut)
		})
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a snapshot file and store it in the sink",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		c := newSnapshotCache()
		if err := c.Import(blob); err != nil {
			return eris.Wrap(err, "invalid snapshot")
		}
		return withSink(cmd.Context(), func(ctx context.Context, sink snapshot.Sink) error {
			if err := snapshot.Save(ctx, c, sink); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c.Stats())
		})
	},
}

var snapshotStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics for the latest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSink(cmd.Context(), func(ctx context.Context, sink snapshot.Sink) error {
			c := newSnapshotCache()
			ok, err := snapshot.Restore(ctx, c, sink)
			if err != nil {
				return err
			}
			if !ok {
				zap.L().Info("no snapshot saved yet", zap.String("sink", sink.Name()))
			}
			return printJSON(cmd.OutOrStdout(), c.Stats())
		})
	},
}

func newSnapshotCache() *propertyCache {
	return cache.NewStore[*merger.Result, *analysis.Report](cache.Config{})
}

// withSink opens the configured sink, runs fn and releases the connections.
func withSink(ctx context.Context, fn func(context.Context, snapshot.Sink) error) error {
	if err := cfg.Validate("snapshot"); err != nil {
		return err
	}
	env, err := initEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	sink, err := initSink(cfg, env)
	if err != nil {
		return err
	}
	return fn(ctx, sink)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, eris.Wrapf(err, "read %s", path)
}

func init() {
	snapshotExportCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "output file (default stdout)")
	snapshotCmd.AddCommand(snapshotExportCmd, snapshotImportCmd, snapshotStatsCmd)
	rootCmd.AddCommand(snapshotCmd)
}
