// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/condense/internal/api"
	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/config"
	"github.com/ManuGH/condense/internal/encoder"
	"github.com/ManuGH/condense/internal/encoder/ffmpeg"
	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/lifecycle"
	"github.com/ManuGH/condense/internal/log"
	"github.com/ManuGH/condense/internal/telemetry"
	"github.com/ManuGH/condense/internal/watchdog"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noLoad bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, ctx.loader, !noLoad)
		},
	}
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "Start without loading the encoder; load it via the API")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, loader *config.Loader, preload bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.Listen).
		Msg("starting condense")
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ ffmpeg: %s", cfg.FFmpeg.Bin)

	tp, err := telemetry.NewProvider(ctx, cfg.Telemetry())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	mgr := lifecycle.New(ffmpeg.Factory(cfg.FFmpeg.KillGrace), encoder.Resources{
		Binary:   cfg.FFmpeg.Bin,
		WorkRoot: cfg.WorkDir(),
	})
	store := artifact.NewStore()
	ctrl := job.New(mgr, store, job.Options{})

	if preload {
		if err := ctrl.Load(ctx); err != nil {
			// Serve anyway: readiness reports the failure and the API can retry.
			logger.Error().Err(err).Str(log.FieldEvent, "encoder.initial_load_failed").Msg("initial encoder load failed")
		}
	}

	srv := api.New(api.Deps{
		Controller:     ctrl,
		Store:          store,
		Version:        version,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimitRPM:   cfg.Server.RateLimitRPM,
		ExportDir:      cfg.Export.Dir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TracingService: tracingService(cfg),
	})

	wd := watchdog.New(ctrl, watchdogConfig(cfg.Watchdog))
	holder := config.NewHolder(cfg, loader)
	updates := make(chan config.Config, 1)
	holder.RegisterListener(updates)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str(log.FieldEvent, "http.listen").Str("addr", httpSrv.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Closing the controller ends event streams so Shutdown does not wait on them.
		ctrl.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info().Str(log.FieldEvent, "http.shutdown").Msg("shutting down http server")
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return wd.Run(gctx) })
	g.Go(func() error { return holder.Watch(gctx) })
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := holder.Reload(gctx); err != nil {
					logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("SIGHUP reload failed")
				}
			case next := <-updates:
				applyConfig(next, srv, wd)
			}
		}
	})

	err = g.Wait()

	ctrl.Close()
	if terr := mgr.Terminate(context.Background()); terr != nil {
		logger.Warn().Err(terr).Msg("encoder terminate failed")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("server exiting")
	return nil
}

// applyConfig applies the settings that can change without a restart.
func applyConfig(cfg config.Config, srv *api.Server, wd *watchdog.Watchdog) {
	logger := log.WithComponent("daemon")
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		logger.Warn().Err(err).Msg("ignoring invalid log level")
	}
	srv.SetRateLimit(cfg.Server.RateLimitRPM)
	wc := watchdogConfig(cfg.Watchdog)
	wd.SetTimeouts(wc.StartTimeout, wc.StallTimeout)
	logger.Info().Str(log.FieldEvent, "config.applied").Msg("applied reloaded configuration")
}

// watchdogConfig disables every check when the watchdog is off, so enabling it
// later only needs new timeouts.
func watchdogConfig(c config.WatchdogConfig) watchdog.Config {
	if !c.Enabled {
		return watchdog.Config{}
	}
	return watchdog.Config{StartTimeout: c.StartTimeout, StallTimeout: c.StallTimeout}
}

func tracingService(cfg config.Config) string {
	if !cfg.Tracing.Enabled {
		return ""
	}
	return cfg.Log.Service
}
