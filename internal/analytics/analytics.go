// Package analytics derives behavioral patterns from recent track activity:
// loitering (an entity holding inside a tight radius) and formations
// (clusters of entities sharing a radius at one instant).
package analytics

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/boshu2/ghost-sentry/internal/geo"
	"github.com/boshu2/ghost-sentry/internal/track"
)

const (
	LoiterThresholdM = 50.0
	LoiterMinSamples = 5

	FormationRadiusM   = 500.0
	FormationMinTracks = 3
)

// Formation is a detected cluster of co-located entities.
type Formation struct {
	Type        string    `json:"type"`
	MemberCount int       `json:"member_count"`
	EntityIDs   []string  `json:"entity_ids"`
	Centroid    geo.Point `json:"centroid"`
}

// DetectLoitering reports whether an entity's cached history shows it
// holding within LoiterThresholdM of its own centroid. Histories shorter
// than LoiterMinSamples never loiter.
func DetectLoitering(cache *PositionCache, entityID string) bool {
	history := cache.Positions(entityID)
	if len(history) < LoiterMinSamples {
		return false
	}

	lats := make([]float64, len(history))
	lons := make([]float64, len(history))
	for i, tp := range history {
		lats[i] = tp.Point.Lat
		lons[i] = tp.Point.Lon
	}
	centroid := geo.Point{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}

	thresholdDeg := geo.DegreesFromMeters(LoiterThresholdM)
	for _, tp := range history {
		if geo.Distance(tp.Point, centroid) > thresholdDeg {
			return false
		}
	}

	slog.Info("loitering behavior detected", "entity_id", entityID)
	return true
}

// DetectFormation finds clusters of at least FormationMinTracks tracks
// within FormationRadiusM of a pivot, iterating in input order. Each track
// joins at most one formation per call; tracks without a position are
// skipped.
func DetectFormation(tracks []track.Track) []Formation {
	if len(tracks) < FormationMinTracks {
		return nil
	}

	type candidate struct {
		entityID string
		point    geo.Point
	}
	// One candidate per entity: repeated observations of the same entity in
	// a batch must not let it form a cluster with itself.
	var points []candidate
	seen := make(map[string]bool)
	for _, t := range tracks {
		if t.Location.Position == nil || t.EntityID == "" || seen[t.EntityID] {
			continue
		}
		seen[t.EntityID] = true
		points = append(points, candidate{
			entityID: t.EntityID,
			point: geo.Point{
				Lat: t.Location.Position.LatitudeDegrees,
				Lon: t.Location.Position.LongitudeDegrees,
			},
		})
	}
	if len(points) < FormationMinTracks {
		return nil
	}

	radiusDeg := geo.DegreesFromMeters(FormationRadiusM)
	used := make(map[string]bool)
	var formations []Formation

	for i, pivot := range points {
		if used[pivot.entityID] {
			continue
		}

		cluster := []candidate{pivot}
		for j, other := range points {
			if i == j || used[other.entityID] {
				continue
			}
			if geo.Distance(pivot.point, other.point) <= radiusDeg {
				cluster = append(cluster, other)
			}
		}

		if len(cluster) < FormationMinTracks {
			continue
		}

		ids := make([]string, len(cluster))
		lats := make([]float64, len(cluster))
		lons := make([]float64, len(cluster))
		for k, c := range cluster {
			ids[k] = c.entityID
			lats[k] = c.point.Lat
			lons[k] = c.point.Lon
			used[c.entityID] = true
		}

		f := Formation{
			Type:        "FORMATION",
			MemberCount: len(ids),
			EntityIDs:   ids,
			Centroid:    geo.Point{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)},
		}
		formations = append(formations, f)
		slog.Info("formation detected",
			"member_count", f.MemberCount,
			"centroid_lat", f.Centroid.Lat,
			"centroid_lon", f.Centroid.Lon,
		)
	}

	return formations
}
