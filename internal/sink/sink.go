// Package sink publishes pipeline output. Every track and task is persisted
// and fanned out on the bus; in prod mode they are additionally forwarded to
// the upstream Lattice endpoint.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/boshu2/ghost-sentry/internal/bus"
	"github.com/boshu2/ghost-sentry/internal/task"
	"github.com/boshu2/ghost-sentry/internal/track"
)

// Mode selects where published records go.
type Mode string

const (
	// ModeDev keeps everything local: sqlite plus the event bus.
	ModeDev Mode = "dev"
	// ModeProd additionally forwards each record to the upstream endpoint.
	ModeProd Mode = "prod"
)

// Recorder is the slice of the store the sink writes through.
type Recorder interface {
	AddEvent(eventType, entityID string, data any) error
	AddTask(t task.Task) error
}

// Config holds sink settings.
type Config struct {
	Mode     Mode
	Endpoint string
	Client   *http.Client
}

// DefaultConfig returns a local-only sink config.
func DefaultConfig() Config {
	return Config{Mode: ModeDev}
}

// Connector is the publish fan-out: store, bus, and (in prod) the upstream.
type Connector struct {
	cfg    Config
	store  Recorder
	bus    *bus.Bus
	client *http.Client
}

// New validates cfg and builds a connector. Prod mode without an endpoint is
// a configuration error.
func New(cfg Config, store Recorder, b *bus.Bus) (*Connector, error) {
	switch cfg.Mode {
	case ModeDev, ModeProd:
	case "":
		cfg.Mode = ModeDev
	default:
		return nil, fmt.Errorf("unknown sink mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeProd && cfg.Endpoint == "" {
		return nil, fmt.Errorf("sink mode prod requires an endpoint")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Connector{cfg: cfg, store: store, bus: b, client: client}, nil
}

// PublishTrack persists the track and fans it out. Forwarding failures in
// prod mode are returned after the local writes succeed.
func (c *Connector) PublishTrack(t track.Track) error {
	if err := c.store.AddEvent(bus.EventTrack, t.EntityID, t); err != nil {
		return fmt.Errorf("persist track: %w", err)
	}
	c.bus.Publish(bus.Event{Type: bus.EventTrack, EntityID: t.EntityID, Data: t})

	if c.cfg.Mode == ModeProd {
		if err := c.forward("/tracks", t); err != nil {
			return fmt.Errorf("forward track %s: %w", t.EntityID, err)
		}
	}
	return nil
}

// PublishTask persists the task (row plus timeline event) and fans it out.
func (c *Connector) PublishTask(t task.Task) error {
	if err := c.store.AddTask(t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	if err := c.store.AddEvent(bus.EventTask, t.EntityID, t); err != nil {
		return fmt.Errorf("persist task event: %w", err)
	}
	c.bus.Publish(bus.Event{Type: bus.EventTask, EntityID: t.EntityID, Data: t})

	if c.cfg.Mode == ModeProd {
		if err := c.forward("/tasks", t); err != nil {
			return fmt.Errorf("forward task %s: %w", t.ID, err)
		}
	}
	return nil
}

func (c *Connector) forward(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := c.cfg.Endpoint + path
	resp, err := c.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("upstream returned %s", resp.Status)
	}
	slog.Debug("forwarded to upstream", "url", url, "status", resp.StatusCode)
	return nil
}
