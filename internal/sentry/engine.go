// Package sentry is the decision engine: it turns fused detections into
// correlated tracks, runs the behavioral analytics, and cues assets with
// debounced verification tasks.
package sentry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boshu2/ghost-sentry/internal/analytics"
	"github.com/boshu2/ghost-sentry/internal/assets"
	"github.com/boshu2/ghost-sentry/internal/correlate"
	"github.com/boshu2/ghost-sentry/internal/detect"
	"github.com/boshu2/ghost-sentry/internal/fusion"
	"github.com/boshu2/ghost-sentry/internal/geo"
	"github.com/boshu2/ghost-sentry/internal/task"
	"github.com/boshu2/ghost-sentry/internal/threat"
	"github.com/boshu2/ghost-sentry/internal/track"
)

// HighPriorityConfidence is the confidence floor for cueing on class alone.
const HighPriorityConfidence = 0.85

// DebounceWindow is the minimum interval between tasks for one entity.
const DebounceWindow = 10 * time.Minute

// highPriorityLabels are the detection classes that warrant cueing when
// seen with high confidence. Matched as substrings so fused labels with
// sensor suffixes still qualify.
var highPriorityLabels = []string{"airplane", "truck", "boat"}

// Publisher is the sink the engine publishes through.
type Publisher interface {
	PublishTrack(t track.Track) error
	PublishTask(t task.Task) error
}

// Stats counts engine output since startup.
type Stats struct {
	Tracks int `json:"tracks"`
	Tasks  int `json:"tasks"`
}

// Result is the outcome of one processing batch.
type Result struct {
	Tracks     []track.Track         `json:"tracks"`
	Tasks      []task.Task           `json:"tasks"`
	Formations []analytics.Formation `json:"formations,omitempty"`
}

// Engine drives the detection-to-task pipeline. One engine serves the whole
// process; all methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	fusion     *fusion.Engine
	matcher    *correlate.Matcher
	positions  *analytics.PositionCache
	classifier *threat.Classifier
	fleet      *assets.Registry
	sink       Publisher

	lastTasked  map[string]time.Time
	inFormation map[string]bool
	stats       Stats
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires the engine. All collaborators are required.
func New(fus *fusion.Engine, matcher *correlate.Matcher, positions *analytics.PositionCache, fleet *assets.Registry, sink Publisher, opts ...Option) *Engine {
	e := &Engine{
		fusion:      fus,
		matcher:     matcher,
		positions:   positions,
		classifier:  threat.NewClassifier(),
		fleet:       fleet,
		sink:        sink,
		lastTasked:  make(map[string]time.Time),
		inFormation: make(map[string]bool),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessSweep fuses one optical and one SAR detection list and processes
// the merged stream.
func (e *Engine) ProcessSweep(optical, sar []detect.Detection) (Result, error) {
	return e.ProcessDetections(e.fusion.Fuse(optical, sar))
}

// ProcessDetections runs the full pipeline over a detection batch: correlate
// each observation into an entity, publish its track, then classify and cue.
// Publish failures do not stop the batch; they are joined into the returned
// error.
func (e *Engine) ProcessDetections(detections []detect.Detection) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result Result
	var errs []error

	type item struct {
		detection detect.Detection
		entity    correlate.CorrelatedEntity
		point     geo.Point
		hasGeo    bool
	}
	items := make([]item, 0, len(detections))

	for _, d := range detections {
		base := baseLabel(d.Label)
		source := d.Source
		if source == "" {
			source = detect.SourceOptical
		}

		hasGeo := d.GeoLocation != nil
		var pt geo.Point
		if hasGeo {
			pt = *d.GeoLocation
		}

		entity := e.matcher.Correlate(base, pt, d.Confidence, source)

		tr := track.FromDetection(d)
		tr.EntityID = entity.EntityID
		tr.LifecycleState = string(entity.State)
		if err := e.sink.PublishTrack(tr); err != nil {
			errs = append(errs, err)
		}
		e.stats.Tracks++
		result.Tracks = append(result.Tracks, tr)

		// Ungeolocated observations contribute no position history; the
		// analytics must not see phantom points at the origin.
		if hasGeo {
			e.positions.Record(entity.EntityID, pt)
		}
		items = append(items, item{detection: d, entity: entity, point: pt, hasGeo: hasGeo})
	}

	// Formations are a batch property: compute them over this sweep's
	// tracks, then flag the members for classification.
	result.Formations = analytics.DetectFormation(result.Tracks)
	e.inFormation = make(map[string]bool)
	for _, f := range result.Formations {
		for _, id := range f.EntityIDs {
			e.inFormation[id] = true
		}
	}

	for _, it := range items {
		if t, ok := e.evaluate(it.detection, it.entity, it.point, it.hasGeo); ok {
			if err := e.sink.PublishTask(t); err != nil {
				errs = append(errs, err)
			}
			e.stats.Tasks++
			result.Tasks = append(result.Tasks, t)
		}
	}

	return result, errors.Join(errs...)
}

// evaluate decides whether one observation warrants a cueing task, and
// builds it. Caller holds the engine lock.
func (e *Engine) evaluate(d detect.Detection, entity correlate.CorrelatedEntity, pt geo.Point, hasGeo bool) (task.Task, bool) {
	loitering := hasGeo && analytics.DetectLoitering(e.positions, entity.EntityID)
	formation := e.inFormation[entity.EntityID]

	level := e.classifier.Classify(threat.Input{
		EntityType: baseLabel(d.Label),
		Confidence: d.Confidence,
	}, loitering, formation)

	highPriority := d.Confidence >= HighPriorityConfidence && hasHighPriorityLabel(d.Label)
	if !highPriority && !loitering {
		return task.Task{}, false
	}

	now := e.now()
	if last, ok := e.lastTasked[entity.EntityID]; ok && now.Sub(last) < DebounceWindow {
		slog.Debug("task debounced", "entity_id", entity.EntityID)
		return task.Task{}, false
	}
	e.lastTasked[entity.EntityID] = now

	taskType := task.TypeVerificationRequest
	description := fmt.Sprintf("Verify detected %s", d.Label)
	if loitering {
		taskType = task.TypeAnomalyVerification
		description = fmt.Sprintf("Investigate loitering %s", d.Label)
	}

	priority := task.PriorityMedium
	if loitering || strings.Contains(strings.ToLower(d.Label), "airplane") {
		priority = task.PriorityHigh
	}

	t := task.Task{
		ID:       uuid.NewString(),
		EntityID: entity.EntityID,
		Type:     taskType,
		State:    task.StatePending,
		Data: &task.Payload{
			Priority:      priority,
			Description:   description,
			ThreatLevel:   string(level),
			PriorityScore: e.classifier.PriorityScore(level),
		},
	}

	if asset, ok := e.fleet.Assign(pt, e.fleet.Available()); ok {
		t.AssignedTo = asset.ID
		if err := e.fleet.MarkTasked(asset.ID, t.ID); err != nil {
			slog.Warn("could not mark asset tasked", "asset_id", asset.ID, "error", err)
		}
		slog.Info("task cued",
			"task_id", t.ID,
			"entity_id", entity.EntityID,
			"asset_id", asset.ID,
			"type", taskType,
			"threat_level", level,
		)
	} else {
		t.AssignedTo = task.DispatchPending
		slog.Warn("no asset available, task dispatch pending",
			"task_id", t.ID, "entity_id", entity.EntityID)
	}

	return t, true
}

// ResetDebounce clears the per-entity task debounce state.
func (e *Engine) ResetDebounce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTasked = make(map[string]time.Time)
}

// Stats returns the engine's output counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// baseLabel strips the fusion sensor suffix, returning the detection class.
func baseLabel(label string) string {
	if i := strings.Index(label, " ("); i >= 0 {
		return label[:i]
	}
	return label
}

func hasHighPriorityLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, hp := range highPriorityLabels {
		if strings.Contains(lower, hp) {
			return true
		}
	}
	return false
}
