// Package geo holds the flat-earth coordinate helpers shared by the
// correlation and analytics layers. All distances are Euclidean in degrees
// with the 1 degree ~= 111km equirectangular approximation; this system
// never needs better geodesy.
package geo

import (
	"math"
	"math/rand/v2"
)

// MetersPerDegree is the flat equirectangular conversion used everywhere.
const MetersPerDegree = 111000.0

// Point is a lat/lon pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance returns the Euclidean distance in degrees between two points.
func Distance(a, b Point) float64 {
	dlat := b.Lat - a.Lat
	dlon := b.Lon - a.Lon
	return math.Sqrt(dlat*dlat + dlon*dlon)
}

// DegreesFromMeters converts a radius in meters to degrees.
func DegreesFromMeters(m float64) float64 {
	return m / MetersPerDegree
}

// MockCenter is the demo AOI (LAX airport area), matching the seeded fleet.
var MockCenter = Point{Lat: 33.9425, Lon: -118.4081}

// MockLocation returns a jittered coordinate near MockCenter for detections
// that arrive without georeferencing.
func MockLocation() Point {
	return Point{
		Lat: MockCenter.Lat + (rand.Float64()*2-1)*0.01,
		Lon: MockCenter.Lon + (rand.Float64()*2-1)*0.01,
	}
}
