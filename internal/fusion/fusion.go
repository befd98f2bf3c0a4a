// Package fusion merges detection lists from heterogeneous sensors into a
// single stream for the decision engine. SAR is all-weather and always
// trusted as a lead; optical detections are gated by a confidence floor to
// suppress cloud-obscured noise.
package fusion

import (
	"github.com/boshu2/ghost-sentry/internal/detect"
)

// Config controls the fusion engine.
type Config struct {
	// OpticalThreshold is the confidence floor below which optical
	// detections are discarded.
	OpticalThreshold float64
}

// DefaultConfig returns fusion defaults.
func DefaultConfig() Config {
	return Config{OpticalThreshold: 0.5}
}

// Engine fuses optical and SAR detection lists.
type Engine struct {
	cfg Config
}

// New creates a fusion engine with the given config.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Fuse merges the two detection lists. Every optical detection at or above
// the confidence floor is kept and suffixed " (Optical)"; every SAR detection
// is kept unconditionally and suffixed " (SAR)". Output order is all
// qualifying optical first, then all SAR, each preserving input order.
// Fuse is pure: the inputs are not mutated.
func (e *Engine) Fuse(optical, sar []detect.Detection) []detect.Detection {
	fused := make([]detect.Detection, 0, len(optical)+len(sar))

	for _, d := range optical {
		if d.Confidence < e.cfg.OpticalThreshold {
			continue
		}
		d.Label += " (Optical)"
		d.Source = detect.SourceOptical
		fused = append(fused, d)
	}

	for _, d := range sar {
		d.Label += " (SAR)"
		d.Source = detect.SourceSAR
		fused = append(fused, d)
	}

	return fused
}
