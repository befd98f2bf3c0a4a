// Package threat maps an entity and its behavior flags to a threat level.
// Aircraft outrank ground/surface vehicles; loitering and formation flying
// escalate; detection confidence breaks the remaining ties.
package threat

import (
	"strings"

	"github.com/boshu2/ghost-sentry/internal/correlate"
	"github.com/boshu2/ghost-sentry/internal/track"
)

// Level is a threat classification.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// DefaultConfidenceThreshold separates confident identifications from
// uncertain ones in the decision table.
const DefaultConfidenceThreshold = 0.85

var priorityScores = map[Level]int{
	LevelCritical: 100,
	LevelHigh:     75,
	LevelMedium:   50,
	LevelLow:      25,
}

var (
	highThreatTypes   = map[string]bool{"airplane": true}
	mediumThreatTypes = map[string]bool{"truck": true, "boat": true}
)

// Input is the narrow classifier view of an entity. Both correlated
// entities and raw track records adapt to it.
type Input struct {
	EntityType string
	Confidence float64
}

// FromEntity adapts a correlated entity for classification.
func FromEntity(e correlate.CorrelatedEntity) Input {
	return Input{EntityType: e.EntityType, Confidence: e.Confidence}
}

// FromTrack adapts a track record for classification.
func FromTrack(t track.Track) Input {
	return Input{EntityType: t.Ontology.PlatformType, Confidence: t.Confidence}
}

// Classifier applies the threat decision table.
type Classifier struct {
	confidenceThreshold float64
}

// NewClassifier creates a classifier with the default confidence threshold.
func NewClassifier() *Classifier {
	return &Classifier{confidenceThreshold: DefaultConfidenceThreshold}
}

// Classify returns the threat level for an entity given its behavior flags.
func (c *Classifier) Classify(in Input, isLoitering, inFormation bool) Level {
	entityType := strings.ToLower(in.EntityType)

	if highThreatTypes[entityType] {
		if isLoitering {
			return LevelCritical
		}
		if in.Confidence >= c.confidenceThreshold {
			return LevelHigh
		}
		return LevelMedium
	}

	if mediumThreatTypes[entityType] {
		if isLoitering || inFormation {
			return LevelHigh
		}
		if in.Confidence >= c.confidenceThreshold {
			return LevelMedium
		}
		return LevelLow
	}

	if isLoitering || inFormation {
		return LevelMedium
	}
	return LevelLow
}

// PriorityScore returns the numeric cueing priority for a level.
func (c *Classifier) PriorityScore(level Level) int {
	return priorityScores[level]
}

// ShouldAutoTask reports whether a level warrants autonomous cueing.
func (c *Classifier) ShouldAutoTask(level Level) bool {
	return level == LevelHigh || level == LevelCritical
}
