package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/ghost-sentry/internal/analytics"
	"github.com/boshu2/ghost-sentry/internal/assets"
	"github.com/boshu2/ghost-sentry/internal/bus"
	"github.com/boshu2/ghost-sentry/internal/config"
	"github.com/boshu2/ghost-sentry/internal/correlate"
	"github.com/boshu2/ghost-sentry/internal/fusion"
	"github.com/boshu2/ghost-sentry/internal/sentry"
	"github.com/boshu2/ghost-sentry/internal/server"
	"github.com/boshu2/ghost-sentry/internal/sink"
	"github.com/boshu2/ghost-sentry/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway: REST, WebSocket streaming, and the CoT feed",
		RunE: func(*cobra.Command, []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.Load()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	b := bus.New()
	fleet := assets.NewRegistry()
	matcher := correlate.NewMatcher(correlate.DefaultConfig())

	connector, err := sink.New(sink.Config{
		Mode:     sink.Mode(cfg.SinkMode),
		Endpoint: cfg.LatticeEndpoint,
	}, st, b)
	if err != nil {
		return fmt.Errorf("configure sink: %w", err)
	}

	engine := sentry.New(
		fusion.New(fusion.DefaultConfig()),
		matcher,
		analytics.NewPositionCache(),
		fleet,
		connector,
	)

	gateway := server.New(server.Config{CORSOrigins: cfg.CORSOrigins}, st, b, fleet, matcher, engine)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: gateway.Handler(),
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("ghost-sentry gateway listening",
		"addr", cfg.Addr,
		"db_path", cfg.DBPath,
		"sink_mode", cfg.SinkMode,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
