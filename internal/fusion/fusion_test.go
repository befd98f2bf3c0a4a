package fusion

import (
	"testing"

	"github.com/boshu2/ghost-sentry/internal/detect"
)

func makeDetection(label string, confidence float64) detect.Detection {
	return detect.Detection{
		Label:      label,
		Confidence: confidence,
		BBox:       detect.BBox{0, 0, 100, 100},
	}
}

func TestFuse_GatesOptical(t *testing.T) {
	e := New(Config{OpticalThreshold: 0.8})

	optical := []detect.Detection{
		makeDetection("car", 0.5),
		makeDetection("truck", 0.9),
	}
	sar := []detect.Detection{
		makeDetection("boat", 0.7),
	}

	fused := e.Fuse(optical, sar)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused detections, got %d", len(fused))
	}
	if fused[0].Label != "truck (Optical)" {
		t.Fatalf("unexpected first label: %q", fused[0].Label)
	}
	if fused[1].Label != "boat (SAR)" {
		t.Fatalf("unexpected second label: %q", fused[1].Label)
	}
}

func TestFuse_DefaultThreshold(t *testing.T) {
	e := New(DefaultConfig())

	fused := e.Fuse([]detect.Detection{makeDetection("car", 0.5)}, nil)
	if len(fused) != 1 {
		t.Fatalf("0.5 should pass the default 0.5 floor, got %d detections", len(fused))
	}
}

func TestFuse_SARAlwaysIncluded(t *testing.T) {
	e := New(Config{OpticalThreshold: 0.99})

	sar := []detect.Detection{
		makeDetection("truck", 0.1),
		makeDetection("boat", 0.2),
	}
	fused := e.Fuse(nil, sar)
	if len(fused) != 2 {
		t.Fatalf("expected all SAR detections, got %d", len(fused))
	}
	for i, d := range fused {
		if d.Source != detect.SourceSAR {
			t.Fatalf("detection %d: source = %q, want %q", i, d.Source, detect.SourceSAR)
		}
	}
}

func TestFuse_OrderPreservedWithinGroups(t *testing.T) {
	e := New(Config{OpticalThreshold: 0.5})

	optical := []detect.Detection{
		makeDetection("bus", 0.6),
		makeDetection("car", 0.7),
		makeDetection("truck", 0.8),
	}
	sar := []detect.Detection{
		makeDetection("boat", 0.3),
		makeDetection("airplane", 0.4),
	}

	fused := e.Fuse(optical, sar)
	want := []string{"bus (Optical)", "car (Optical)", "truck (Optical)", "boat (SAR)", "airplane (SAR)"}
	if len(fused) != len(want) {
		t.Fatalf("expected %d detections, got %d", len(want), len(fused))
	}
	for i, label := range want {
		if fused[i].Label != label {
			t.Fatalf("position %d: got %q, want %q", i, fused[i].Label, label)
		}
	}
}

func TestFuse_PureInputsUntouched(t *testing.T) {
	e := New(DefaultConfig())

	optical := []detect.Detection{makeDetection("truck", 0.9)}
	e.Fuse(optical, nil)

	if optical[0].Label != "truck" {
		t.Fatalf("input mutated: %q", optical[0].Label)
	}
}
