package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fleetplan/internal/api"
	"fleetplan/internal/buildinfo"
	"fleetplan/internal/config"
	"fleetplan/internal/logging"
)

func newServeCmd() *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log, shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, log *zap.Logger, grace time.Duration) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := api.NewServer(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	go s.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: cfg.GetReadHeaderTimeout(),
	}

	errc := make(chan error, 1)
	go func() {
		info := buildinfo.Info()
		log.Info("API listening",
			zap.String("addr", srv.Addr),
			zap.String("version", info["version"]),
			zap.Bool("optimizer", cfg.Optimizer.Enabled()),
			zap.Bool("geocoder", cfg.Geocoder.Enabled()),
			zap.Bool("redis", cfg.Redis.URL != ""))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
