// Package detect defines the sensor observation model and the boundary to
// the object-detection model. The detector itself is external; this package
// only specifies its output contract and provides a mock implementation that
// replays canned detections for exercises and tests.
package detect

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/boshu2/ghost-sentry/internal/geo"
)

// Detection sources.
const (
	SourceOptical = "optical"
	SourceSAR     = "sar"
)

// TacticalLabels is the detection vocabulary that the pipeline acts on.
// Anything else coming off a sensor is discarded at the boundary.
var TacticalLabels = map[string]bool{
	"airplane": true,
	"truck":    true,
	"car":      true,
	"boat":     true,
	"bus":      true,
}

// BBox is a pixel-space bounding box (x1, y1, x2, y2).
type BBox [4]int

// Detection is a single immutable sensor observation.
type Detection struct {
	Label       string     `json:"label"`
	Confidence  float64    `json:"confidence"`
	BBox        BBox       `json:"bbox"`
	GeoLocation *geo.Point `json:"geo_location,omitempty"`
	Source      string     `json:"source,omitempty"`
}

// Detector produces detections from an image. Implementations wrap the
// actual model; the pipeline treats them as opaque.
type Detector interface {
	Detect(imagePath string) ([]Detection, error)
}

// MockDetector replays detections from a JSON file, filling in jittered mock
// coordinates for any record that lacks georeferencing.
type MockDetector struct {
	Path string
}

// Detect loads the canned detection file, ignoring its imagePath argument.
// Labels outside the tactical vocabulary are discarded here, at the sensor
// boundary.
func (m *MockDetector) Detect(string) ([]Detection, error) {
	raw, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("read mock detections: %w", err)
	}

	var dets []Detection
	if err := json.Unmarshal(raw, &dets); err != nil {
		return nil, fmt.Errorf("parse mock detections: %w", err)
	}

	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if !TacticalLabels[d.Label] {
			slog.Debug("discarding non-tactical detection", "label", d.Label)
			continue
		}
		if d.GeoLocation == nil {
			p := geo.MockLocation()
			d.GeoLocation = &p
		}
		out = append(out, d)
	}
	return out, nil
}
