package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/ghost-sentry/internal/sim"
)

func newSimulateAssetsCmd() *cobra.Command {
	var (
		endpoint string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate-assets",
		Short: "Stream mock fleet telemetry into a running gateway",
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s := sim.New(sim.Config{Endpoint: endpoint, Interval: interval})
			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8000", "gateway base URL")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "telemetry reporting period")
	return cmd
}
