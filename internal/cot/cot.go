// Package cot renders track records as Cursor-on-Target XML for
// interoperability with TAK-style consumers.
package cot

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boshu2/ghost-sentry/internal/track"
)

// staleAfter is how long a CoT event stays fresh on the consumer side.
const staleAfter = 5 * time.Minute

const template = `<?xml version="1.0" encoding="UTF-8"?>
<event version="2.0" uid="%s" type="%s" time="%s" start="%s" stale="%s" how="m-g">
  <point lat="%v" lon="%v" hae="0" ce="10" le="10"/>
  <detail>
    <contact callsign="%s"/>
    <remarks>Detected %s (conf: %.2f)</remarks>
  </detail>
</event>`

// typeMap translates detection labels to CoT 2525 type strings.
var typeMap = map[string]string{
	"airplane": "a-f-A",     // assumed friendly air
	"truck":    "a-u-G-E-V", // unknown ground vehicle
	"car":      "a-u-G-E-V",
	"boat":     "a-u-S", // unknown surface
}

const defaultType = "a-u-G"

// TypeFor returns the CoT type string for a detection label.
func TypeFor(label string) string {
	if t, ok := typeMap[label]; ok {
		return t
	}
	return defaultType
}

// Callsign derives the CoT callsign from a detection label ("airplane" ->
// "GS-AIR").
func Callsign(label string) string {
	upper := strings.ToUpper(label)
	if len(upper) > 3 {
		upper = upper[:3]
	}
	return "GS-" + upper
}

// FromTrack renders a track record as a CoT event. Tracks without a
// position cannot be rendered.
func FromTrack(t track.Track) (string, bool) {
	if t.Location.Position == nil {
		return "", false
	}

	label := strings.ToLower(t.Ontology.PlatformType)
	now := time.Now().UTC()
	stale := now.Add(staleAfter)

	xml := fmt.Sprintf(template,
		uuid.NewString(),
		TypeFor(label),
		now.Format("2006-01-02T15:04:05Z"),
		now.Format("2006-01-02T15:04:05Z"),
		stale.Format("2006-01-02T15:04:05Z"),
		t.Location.Position.LatitudeDegrees,
		t.Location.Position.LongitudeDegrees,
		Callsign(label),
		label,
		t.Confidence,
	)
	return xml, true
}

// Feed renders tracks as a newline-joined CoT feed, skipping tracks that
// cannot be rendered.
func Feed(tracks []track.Track) string {
	var events []string
	for _, t := range tracks {
		if xml, ok := FromTrack(t); ok {
			events = append(events, xml)
		}
	}
	return strings.Join(events, "\n")
}
