package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-engine/internal/api"
	"github.com/sells-group/property-engine/internal/snapshot"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		sink, err := initSink(cfg, env)
		if err != nil {
			return err
		}
		if sink != nil && cfg.Snapshot.RestoreOnStart {
			// A bad snapshot must not keep the server from starting.
			if _, err := snapshot.Restore(ctx, env.Cache, sink); err != nil {
				zap.L().Warn("snapshot restore failed, starting cold", zap.Error(err))
			}
		}
		env.Cache.StartSweeper(ctx)
		if sink != nil && cfg.Snapshot.Interval > 0 {
			go snapshot.Periodic(ctx, env.Cache, sink, cfg.Snapshot.Interval)
		}

		deps := api.Deps{
			Merger:             env.Merger,
			Analyzer:           env.Analyzer,
			Cache:              env.Cache,
			Breakers:           env.Breakers,
			Defaults:           mergerDefaults(cfg),
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
		}
		if env.Store != nil {
			deps.History = env.Store
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(sctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		if sink != nil && cfg.Snapshot.SaveOnShutdown {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := snapshot.Save(sctx, env.Cache, sink); err != nil {
				zap.L().Error("snapshot save on shutdown failed", zap.Error(err))
			}
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
