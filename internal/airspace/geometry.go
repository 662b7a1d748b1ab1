package airspace

import "github.com/skyplan/skyplan/internal/geo"

// Geometry here works on lat/lon treated as planar coordinates. Airspace
// polygons are small relative to the earth, so the flat approximation holds
// at the accuracy the detour logic needs.

// pointInPolygon implements the ray-casting test.
func pointInPolygon(p geo.Point, polygon []geo.Point) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi.Lat > p.Lat) != (pj.Lat > p.Lat) {
			x := (pj.Lon-pi.Lon)*(p.Lat-pi.Lat)/(pj.Lat-pi.Lat) + pi.Lon
			if p.Lon < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// segmentsIntersect reports whether segments ab and cd cross (proper or
// touching intersection).
func segmentsIntersect(a, b, c, d geo.Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	// Collinear touching cases
	if o1 == 0 && onSegment(a, c, b) {
		return true
	}
	if o2 == 0 && onSegment(a, d, b) {
		return true
	}
	if o3 == 0 && onSegment(c, a, d) {
		return true
	}
	if o4 == 0 && onSegment(c, b, d) {
		return true
	}
	return false
}

// orientation returns 0 for collinear, 1 for clockwise, 2 for counter-clockwise.
func orientation(p, q, r geo.Point) int {
	v := (q.Lat-p.Lat)*(r.Lon-q.Lon) - (q.Lon-p.Lon)*(r.Lat-q.Lat)
	const eps = 1e-12
	if v > eps {
		return 1
	}
	if v < -eps {
		return 2
	}
	return 0
}

func onSegment(p, q, r geo.Point) bool {
	return q.Lon <= max(p.Lon, r.Lon) && q.Lon >= min(p.Lon, r.Lon) &&
		q.Lat <= max(p.Lat, r.Lat) && q.Lat >= min(p.Lat, r.Lat)
}

// segmentCrossesPolygon reports whether segment ab enters, exits, or passes
// through the polygon.
func segmentCrossesPolygon(a, b geo.Point, polygon []geo.Point) bool {
	if len(polygon) < 3 {
		return false
	}
	if pointInPolygon(a, polygon) || pointInPolygon(b, polygon) {
		return true
	}
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		if segmentsIntersect(a, b, polygon[j], polygon[i]) {
			return true
		}
		j = i
	}
	// Midpoint catches the segment fully inside a concave pocket.
	mid := geo.Point{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
	return pointInPolygon(mid, polygon)
}

// nearestBoundaryPoint returns the polygon vertex closest to p.
func nearestBoundaryPoint(p geo.Point, polygon []geo.Point) geo.Point {
	best := polygon[0]
	bestDist := geo.Distance(p, best)
	for _, v := range polygon[1:] {
		if d := geo.Distance(p, v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}
