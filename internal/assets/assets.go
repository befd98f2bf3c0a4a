// Package assets tracks the tactical fleet: seeded mock assets, their live
// telemetry, and the multi-criteria scoring used to pick the best asset for
// a cueing task.
package assets

import (
	"fmt"
	"sync"
	"time"

	"github.com/boshu2/ghost-sentry/internal/geo"
)

// Asset status values.
const (
	StatusIdle      = "idle"
	StatusTasked    = "tasked"
	StatusReturning = "returning"
)

// Scoring weights: distance dominates, battery and signal split the rest.
// Distance is normalized against a ~11km working range (0.1 degrees).
const (
	weightDistance = 0.4
	weightBattery  = 0.3
	weightSignal   = 0.3
	maxRangeDeg    = 0.1
)

// Asset is a tactical asset with telemetry. Values handed out by the
// registry are copies; the registry owns the live records.
type Asset struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"` // "UAV", "UGV"
	Location      geo.Point  `json:"location"`
	Status        string     `json:"status"`
	Domain        string     `json:"domain"` // "air", "land"
	Battery       float64    `json:"battery"`
	Signal        float64    `json:"signal"`
	CurrentTaskID string     `json:"current_task_id,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// Score rates an asset against a target location. Higher is better; the
// result is strictly increasing in battery and signal and strictly
// decreasing in distance inside the working range.
func Score(a Asset, target geo.Point) float64 {
	d := geo.Distance(a.Location, target)
	distanceScore := 1 - d/maxRangeDeg
	if distanceScore < 0 {
		distanceScore = 0
	}
	return weightDistance*distanceScore + weightBattery*a.Battery + weightSignal*a.Signal
}

// Registry owns the fleet state. All operations are safe for concurrent
// use.
type Registry struct {
	mu     sync.Mutex
	assets map[string]*Asset
	order  []string
	now    func() time.Time
}

// NewRegistry creates a registry seeded with the mock fleet.
func NewRegistry() *Registry {
	r := &Registry{
		assets: make(map[string]*Asset),
		now:    time.Now,
	}
	for _, a := range []Asset{
		{ID: "drone-alpha", Type: "UAV", Location: geo.Point{Lat: 33.94, Lon: -118.41}, Status: StatusIdle, Domain: "air", Battery: 1.0, Signal: 1.0},
		{ID: "drone-beta", Type: "UAV", Location: geo.Point{Lat: 33.95, Lon: -118.40}, Status: StatusIdle, Domain: "air", Battery: 1.0, Signal: 1.0},
		{ID: "ugv-sierra", Type: "UGV", Location: geo.Point{Lat: 33.93, Lon: -118.42}, Status: StatusIdle, Domain: "land", Battery: 1.0, Signal: 1.0},
	} {
		asset := a
		r.assets[asset.ID] = &asset
		r.order = append(r.order, asset.ID)
	}
	return r
}

// List returns all assets in seed order.
func (r *Registry) List() []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Asset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.assets[id])
	}
	return out
}

// Get returns a single asset by id.
func (r *Registry) Get(id string) (Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return Asset{}, false
	}
	return *a, true
}

// Available returns the idle assets in seed order.
func (r *Registry) Available() []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Asset
	for _, id := range r.order {
		if r.assets[id].Status == StatusIdle {
			out = append(out, *r.assets[id])
		}
	}
	return out
}

// Assign picks the highest-scoring asset from the pool for a target
// location. Ties keep the earlier pool element. Returns false for an empty
// pool.
func (r *Registry) Assign(target geo.Point, pool []Asset) (Asset, bool) {
	if len(pool) == 0 {
		return Asset{}, false
	}

	best := pool[0]
	bestScore := Score(best, target)
	for _, a := range pool[1:] {
		if s := Score(a, target); s > bestScore {
			best = a
			bestScore = s
		}
	}
	return best, true
}

// MarkTasked transitions an asset to tasked and records the task it is
// serving.
func (r *Registry) MarkTasked(id, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("unknown asset %q", id)
	}
	a.Status = StatusTasked
	a.CurrentTaskID = taskID
	return nil
}

// Release returns an asset to idle and clears its task binding.
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("unknown asset %q", id)
	}
	a.Status = StatusIdle
	a.CurrentTaskID = ""
	return nil
}

// UpdateTelemetry replaces an asset's position, battery, and signal, and
// stamps its heartbeat.
func (r *Registry) UpdateTelemetry(id string, lat, lon, battery, signal float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return fmt.Errorf("unknown asset %q", id)
	}
	a.Location = geo.Point{Lat: lat, Lon: lon}
	a.Battery = battery
	a.Signal = signal
	hb := r.now()
	a.LastHeartbeat = &hb
	return nil
}
