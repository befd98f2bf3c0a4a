// Package sim generates mock asset telemetry against a running gateway:
// each asset drifts slowly, drains battery, and wobbles signal strength.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/boshu2/ghost-sentry/internal/geo"
)

// Per-step telemetry dynamics.
const (
	driftDeg     = 0.0001
	batteryDrain = 0.001
	signalWobble = 0.05
	signalFloor  = 0.2
	signalCeil   = 1.0
)

// Config controls the telemetry simulator.
type Config struct {
	// Endpoint is the gateway base URL.
	Endpoint string
	// Interval is the telemetry reporting period.
	Interval time.Duration
}

// DefaultConfig targets a local gateway at the fleet's reporting cadence.
func DefaultConfig() Config {
	return Config{
		Endpoint: "http://localhost:8000",
		Interval: 2 * time.Second,
	}
}

type assetState struct {
	id      string
	pos     geo.Point
	battery float64
	signal  float64
}

// Simulator drives the mock fleet.
type Simulator struct {
	cfg    Config
	client *http.Client
	fleet  []*assetState
}

// New creates a simulator seeded with the mock fleet's home positions.
func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		fleet: []*assetState{
			{id: "drone-alpha", pos: geo.Point{Lat: 33.94, Lon: -118.41}, battery: 1.0, signal: 1.0},
			{id: "drone-beta", pos: geo.Point{Lat: 33.95, Lon: -118.40}, battery: 1.0, signal: 1.0},
			{id: "ugv-sierra", pos: geo.Point{Lat: 33.93, Lon: -118.42}, battery: 1.0, signal: 1.0},
		},
	}
}

// Run reports telemetry for every asset each interval until the context is
// cancelled. Failed reports are logged and retried on the next tick.
func (s *Simulator) Run(ctx context.Context) error {
	slog.Info("telemetry simulator started",
		"endpoint", s.cfg.Endpoint,
		"interval", s.cfg.Interval,
		"assets", len(s.fleet),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("telemetry simulator stopped")
			return ctx.Err()
		case <-ticker.C:
			for _, a := range s.fleet {
				a.step()
				if err := s.report(ctx, a); err != nil {
					slog.Warn("telemetry report failed", "asset_id", a.id, "error", err)
				}
			}
		}
	}
}

// step advances one asset: a random walk in position, a steady battery
// drain, and a bounded signal wobble.
func (a *assetState) step() {
	a.pos.Lat += (rand.Float64()*2 - 1) * driftDeg
	a.pos.Lon += (rand.Float64()*2 - 1) * driftDeg

	a.battery -= batteryDrain
	if a.battery < 0 {
		a.battery = 0
	}

	a.signal += (rand.Float64()*2 - 1) * signalWobble
	if a.signal < signalFloor {
		a.signal = signalFloor
	}
	if a.signal > signalCeil {
		a.signal = signalCeil
	}
}

func (s *Simulator) report(ctx context.Context, a *assetState) error {
	q := url.Values{}
	q.Set("asset_id", a.id)
	q.Set("lat", fmt.Sprintf("%.6f", a.pos.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", a.pos.Lon))
	q.Set("battery", fmt.Sprintf("%.3f", a.battery))
	q.Set("signal", fmt.Sprintf("%.3f", a.signal))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.Endpoint+"/assets/telemetry?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}
