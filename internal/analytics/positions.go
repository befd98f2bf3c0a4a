package analytics

import (
	"sync"
	"time"

	"github.com/boshu2/ghost-sentry/internal/geo"
)

// historyCap bounds the per-entity position ring; 20 samples cover the
// analytics window without unbounded growth.
const historyCap = 20

// TimedPoint is one cached position observation.
type TimedPoint struct {
	Time  time.Time
	Point geo.Point
}

// PositionCache is the process-wide cache of recent positions per entity.
// It is constructed at startup and passed by reference; there is no package
// level state.
type PositionCache struct {
	mu        sync.Mutex
	positions map[string][]TimedPoint
	now       func() time.Time
}

// NewPositionCache creates an empty cache.
func NewPositionCache() *PositionCache {
	return &PositionCache{
		positions: make(map[string][]TimedPoint),
		now:       time.Now,
	}
}

// Record appends a position for an entity, keeping only the most recent
// entries.
func (c *PositionCache) Record(entityID string, p geo.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := append(c.positions[entityID], TimedPoint{Time: c.now(), Point: p})
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	c.positions[entityID] = h
}

// Positions returns a copy of the history for an entity, oldest first.
func (c *PositionCache) Positions(entityID string) []TimedPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.positions[entityID]
	out := make([]TimedPoint, len(h))
	copy(out, h)
	return out
}

// Clear drops all cached positions.
func (c *PositionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = make(map[string][]TimedPoint)
}
