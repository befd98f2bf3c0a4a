package detect

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/boshu2/ghost-sentry/internal/geo"
)

func writeDetections(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detections.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write detections: %v", err)
	}
	return path
}

func TestMockDetector_DiscardsNonTacticalLabels(t *testing.T) {
	path := writeDetections(t, `[
		{"label": "airplane", "confidence": 0.92},
		{"label": "person", "confidence": 0.99},
		{"label": "kite", "confidence": 0.95},
		{"label": "truck", "confidence": 0.80}
	]`)

	dets, err := (&MockDetector{Path: path}).Detect("")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if dets[0].Label != "airplane" || dets[1].Label != "truck" {
		t.Errorf("labels = %q, %q", dets[0].Label, dets[1].Label)
	}
}

func TestMockDetector_FillsMissingGeo(t *testing.T) {
	path := writeDetections(t, `[
		{"label": "airplane", "confidence": 0.92},
		{"label": "boat", "confidence": 0.70, "geo_location": {"lat": 33.0, "lon": -118.0}}
	]`)

	dets, err := (&MockDetector{Path: path}).Detect("")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}

	filled := dets[0].GeoLocation
	if filled == nil {
		t.Fatal("missing geo was not filled")
	}
	if math.Abs(filled.Lat-geo.MockCenter.Lat) > 0.01 || math.Abs(filled.Lon-geo.MockCenter.Lon) > 0.01 {
		t.Errorf("filled geo %+v not within jitter of %+v", filled, geo.MockCenter)
	}

	if dets[1].GeoLocation == nil || dets[1].GeoLocation.Lat != 33.0 {
		t.Errorf("existing geo was altered: %+v", dets[1].GeoLocation)
	}
}

func TestMockDetector_MissingFile(t *testing.T) {
	if _, err := (&MockDetector{Path: "no-such-file.json"}).Detect(""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
