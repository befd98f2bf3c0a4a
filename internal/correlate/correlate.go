// Package correlate maintains the unified entity picture: it matches
// incoming observations against known entities by type, space, and time,
// and drives each entity through its lifecycle.
package correlate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boshu2/ghost-sentry/internal/geo"
)

// LifecycleState is the correlation lifecycle of an entity.
type LifecycleState string

const (
	StateTentative LifecycleState = "TENTATIVE"
	StateFirm      LifecycleState = "FIRM"
	StateStale     LifecycleState = "STALE"
	StateDropped   LifecycleState = "DROPPED"
)

// Correlation tuning. An observation correlates to an entity of the same
// type seen within the last minute and within 100m.
const (
	CorrelationRadiusM       = 100.0
	CorrelationTimeWindow    = 60 * time.Second
	FirmObservationThreshold = 2
)

// lifecycleTTL is the maximum age (now - last_seen) an entity may reach in
// each state before transitioning.
var lifecycleTTL = map[LifecycleState]time.Duration{
	StateTentative: 30 * time.Second,
	StateFirm:      5 * time.Minute,
	StateStale:     10 * time.Minute,
}

// CorrelatedEntity is an immutable snapshot of a correlated entity. The
// matcher owns the mutable records; callers only ever see copies.
type CorrelatedEntity struct {
	EntityID         string         `json:"entity_id"`
	EntityType       string         `json:"entity_type"`
	Location         geo.Point      `json:"location"`
	Confidence       float64        `json:"confidence"`
	State            LifecycleState `json:"lifecycle_state"`
	ObservationCount int            `json:"observation_count"`
	FirstSeen        time.Time      `json:"first_seen"`
	LastSeen         time.Time      `json:"last_seen"`
	Sources          []string       `json:"sources"`
}

// record is the matcher-owned mutable form of an entity.
type record struct {
	id               string
	entityType       string
	location         geo.Point
	confidence       float64
	state            LifecycleState
	observationCount int
	firstSeen        time.Time
	lastSeen         time.Time
	sources          []string
}

func (r *record) snapshot() CorrelatedEntity {
	sources := make([]string, len(r.sources))
	copy(sources, r.sources)
	return CorrelatedEntity{
		EntityID:         r.id,
		EntityType:       r.entityType,
		Location:         r.location,
		Confidence:       r.confidence,
		State:            r.state,
		ObservationCount: r.observationCount,
		FirstSeen:        r.firstSeen,
		LastSeen:         r.lastSeen,
		Sources:          sources,
	}
}

// update folds a new observation into the record. Confidence is the running
// maximum; two observations promote TENTATIVE to FIRM.
func (r *record) update(loc geo.Point, confidence float64, source string, now time.Time) {
	r.location = loc
	if confidence > r.confidence {
		r.confidence = confidence
	}
	r.observationCount++
	r.lastSeen = now
	found := false
	for _, s := range r.sources {
		if s == source {
			found = true
			break
		}
	}
	if !found {
		r.sources = append(r.sources, source)
	}
	if r.observationCount >= FirmObservationThreshold && r.state == StateTentative {
		r.state = StateFirm
	}
}

// checkStaleness applies the age-driven lifecycle transitions. DROPPED is
// terminal.
func (r *record) checkStaleness(now time.Time) {
	if r.state == StateDropped {
		return
	}
	ttl, ok := lifecycleTTL[r.state]
	if !ok {
		ttl = 5 * time.Minute
	}
	if now.Sub(r.lastSeen) <= ttl {
		return
	}
	switch r.state {
	case StateTentative:
		r.state = StateDropped
	case StateFirm:
		r.state = StateStale
	case StateStale:
		r.state = StateDropped
	}
}

// Config controls the matcher.
type Config struct {
	RadiusMeters float64
	TimeWindow   time.Duration
}

// DefaultConfig returns matcher defaults.
func DefaultConfig() Config {
	return Config{
		RadiusMeters: CorrelationRadiusM,
		TimeWindow:   CorrelationTimeWindow,
	}
}

// Matcher correlates observations across sensors into lifecycle-managed
// entities. All operations are safe for concurrent use.
type Matcher struct {
	mu        sync.Mutex
	cfg       Config
	radiusDeg float64
	entities  map[string]*record
	order     []string // insertion order, for deterministic tie-breaks
	now       func() time.Time
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithClock overrides the matcher's time source.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// NewMatcher creates an empty matcher.
func NewMatcher(cfg Config, opts ...Option) *Matcher {
	m := &Matcher{
		cfg:       cfg,
		radiusDeg: geo.DegreesFromMeters(cfg.RadiusMeters),
		entities:  make(map[string]*record),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Correlate matches an observation against the known entities and folds it
// in, or creates a fresh TENTATIVE entity when nothing matches. The match is
// the nearest same-type entity within the radius that was seen inside the
// time window; ties keep the earlier-inserted entity.
func (m *Matcher) Correlate(entityType string, loc geo.Point, confidence float64, source string) CorrelatedEntity {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)
	m.pruneDroppedLocked()

	var best *record
	bestDistance := m.radiusDeg
	for _, id := range m.order {
		r := m.entities[id]
		if r.entityType != entityType {
			continue
		}
		if now.Sub(r.lastSeen) > m.cfg.TimeWindow {
			continue
		}
		d := geo.Distance(loc, r.location)
		if d <= m.radiusDeg && (best == nil || d < bestDistance) {
			best = r
			bestDistance = d
		}
	}

	if best != nil {
		best.update(loc, confidence, source, now)
		return best.snapshot()
	}

	r := &record{
		id:               uuid.NewString(),
		entityType:       entityType,
		location:         loc,
		confidence:       confidence,
		state:            StateTentative,
		observationCount: 1,
		firstSeen:        now,
		lastSeen:         now,
		sources:          []string{source},
	}
	m.entities[r.id] = r
	m.order = append(m.order, r.id)
	slog.Debug("new tentative entity", "entity_id", r.id, "entity_type", entityType)
	return r.snapshot()
}

// Get returns a snapshot of a single entity.
func (m *Matcher) Get(entityID string) (CorrelatedEntity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entities[entityID]
	if !ok {
		return CorrelatedEntity{}, false
	}
	return r.snapshot(), true
}

// ActiveEntities sweeps staleness and returns every non-dropped entity.
func (m *Matcher) ActiveEntities() []CorrelatedEntity {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	var out []CorrelatedEntity
	for _, id := range m.order {
		r := m.entities[id]
		if r.state == StateDropped {
			continue
		}
		out = append(out, r.snapshot())
	}
	return out
}

// FirmEntities sweeps staleness and returns entities in FIRM.
func (m *Matcher) FirmEntities() []CorrelatedEntity {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	var out []CorrelatedEntity
	for _, id := range m.order {
		r := m.entities[id]
		if r.state != StateFirm {
			continue
		}
		out = append(out, r.snapshot())
	}
	return out
}

// EntityCounts sweeps staleness and returns per-state entity counts.
func (m *Matcher) EntityCounts() map[LifecycleState]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	counts := map[LifecycleState]int{
		StateTentative: 0,
		StateFirm:      0,
		StateStale:     0,
		StateDropped:   0,
	}
	for _, r := range m.entities {
		counts[r.state]++
	}
	return counts
}

func (m *Matcher) sweepLocked(now time.Time) {
	for _, r := range m.entities {
		r.checkStaleness(now)
	}
}

func (m *Matcher) pruneDroppedLocked() {
	kept := m.order[:0]
	for _, id := range m.order {
		if m.entities[id].state == StateDropped {
			delete(m.entities, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}
