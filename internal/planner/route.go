package planner

import (
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/geo"
)

// maxAvoidanceIterations bounds the detour insertion loop so pathological
// polygon layouts cannot spin forever.
const maxAvoidanceIterations = 10

// degPerNM converts a nautical-mile buffer to a flat-earth degree offset.
const degPerNM = 0.0167

// planLegGeometry returns the waypoints and segments for one leg. With
// avoidance enabled, detour waypoints are inserted just outside any avoided
// airspace the leg would cross.
func planLegGeometry(a, b geo.Point, altitudeFt int, avoid bool, zones *airspace.Service, bufferNM float64) ([]geo.Point, []Segment) {
	points := []geo.Point{a, b}
	if avoid && zones != nil {
		points = avoidAirspaces(points, zones, bufferNM)
	}
	return points, buildSegments(points, altitudeFt)
}

// avoidAirspaces inserts detour waypoints near avoided airspace boundaries.
// Each pass fixes the first crossing segment and restarts; detoured segments
// can themselves cross other zones, so the loop runs until clean or the
// iteration cap is hit.
func avoidAirspaces(points []geo.Point, zones *airspace.Service, bufferNM float64) []geo.Point {
	for iter := 0; iter < maxAvoidanceIterations; iter++ {
		changed := false
		next := []geo.Point{points[0]}

		for i := 0; i < len(points)-1; i++ {
			hits := zones.Crossings(points[i], points[i+1])
			if len(hits) > 0 {
				zone := hits[0]
				mid := geo.Point{
					Lat: (points[i].Lat + points[i+1].Lat) / 2,
					Lon: (points[i].Lon + points[i+1].Lon) / 2,
				}
				boundary := zones.NearestBoundary(zone, mid)
				detour := geo.Point{
					Lat: boundary.Lat + bufferNM*degPerNM,
					Lon: boundary.Lon + bufferNM*degPerNM,
				}
				next = append(next, detour, points[i+1])
				next = append(next, points[i+2:]...)
				changed = true
				break
			}
			next = append(next, points[i+1])
		}

		if !changed {
			return points
		}
		points = next
	}
	return points
}

// buildSegments converts a waypoint polyline into cruise segments at the
// requested altitude.
func buildSegments(points []geo.Point, altitudeFt int) []Segment {
	segments := make([]Segment, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		segments = append(segments, Segment{
			Start:       [2]float64{points[i].Lat, points[i].Lon},
			End:         [2]float64{points[i+1].Lat, points[i+1].Lon},
			Type:        "cruise",
			VFRAltitude: altitudeFt,
		})
	}
	return segments
}

// classifySegments marks the first segment as climb and, when there is more
// than one, the last as descent.
func classifySegments(segments []Segment) []Segment {
	if len(segments) == 0 {
		return segments
	}
	segments[0].Type = "climb"
	if len(segments) > 1 {
		segments[len(segments)-1].Type = "descent"
	}
	return segments
}
