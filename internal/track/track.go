// Package track defines the publishable track record and its builder. The
// record shape is Lattice-compatible: camelCase JSON with ontology, milView,
// and provenance blocks.
package track

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boshu2/ghost-sentry/internal/detect"
)

const (
	EnvironmentAir  = "ENVIRONMENT_AIR"
	EnvironmentLand = "ENVIRONMENT_LAND"

	dispositionUnknown = "DISPOSITION_UNKNOWN"
	integrationName    = "ghost-sentry"
)

// Position is a WGS84 position in degrees.
type Position struct {
	LatitudeDegrees   float64 `json:"latitudeDegrees"`
	LongitudeDegrees  float64 `json:"longitudeDegrees"`
	AltitudeHaeMeters float64 `json:"altitudeHaeMeters"`
}

// Location wraps the position; absent position marks an ungeolocated track.
type Location struct {
	Position *Position `json:"position,omitempty"`
}

// Ontology describes what the track is.
type Ontology struct {
	Template     string `json:"template"`
	PlatformType string `json:"platform_type,omitempty"`
}

// MilView is the military-view classification block.
type MilView struct {
	Disposition string `json:"disposition"`
	Environment string `json:"environment"`
}

// Provenance records where the track came from.
type Provenance struct {
	IntegrationName  string `json:"integrationName"`
	DataType         string `json:"dataType"`
	SourceUpdateTime string `json:"sourceUpdateTime"`
}

// Track is a publishable snapshot of a correlated entity.
type Track struct {
	EntityID       string     `json:"entityId"`
	Description    string     `json:"description"`
	Ontology       Ontology   `json:"ontology"`
	Location       Location   `json:"location"`
	MilView        MilView    `json:"milView"`
	Provenance     Provenance `json:"provenance"`
	Confidence     float64    `json:"confidence"`
	IsLive         bool       `json:"isLive"`
	CreatedTime    string     `json:"createdTime"`
	ExpiryTime     string     `json:"expiryTime,omitempty"`
	LifecycleState string     `json:"lifecycleState,omitempty"`
}

// Capitalize uppercases the first rune and lowercases the rest, turning a
// detection label into a platform type ("airplane" -> "Airplane").
func Capitalize(label string) string {
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + strings.ToLower(label[1:])
}

// FromDetection builds a track record for a detection. The entity id is a
// fresh UUID; callers that correlate should overwrite it with the stable id
// from the matcher.
func FromDetection(d detect.Detection) Track {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	environment := EnvironmentLand
	if strings.Contains(strings.ToLower(d.Label), "airplane") {
		environment = EnvironmentAir
	}

	// An ungeolocated detection yields a track without a position; the
	// analytics and CoT layers skip those rather than see the origin.
	var loc Location
	if d.GeoLocation != nil {
		loc.Position = &Position{
			LatitudeDegrees:  d.GeoLocation.Lat,
			LongitudeDegrees: d.GeoLocation.Lon,
		}
	}

	return Track{
		EntityID:    uuid.NewString(),
		Description: fmt.Sprintf("Detected %s", d.Label),
		Ontology: Ontology{
			Template:     "TEMPLATE_TRACK",
			PlatformType: Capitalize(d.Label),
		},
		Location: loc,
		MilView: MilView{
			Disposition: dispositionUnknown,
			Environment: environment,
		},
		Provenance: Provenance{
			IntegrationName:  integrationName,
			DataType:         "detection",
			SourceUpdateTime: now,
		},
		Confidence:  d.Confidence,
		IsLive:      true,
		CreatedTime: now,
	}
}
