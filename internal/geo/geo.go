// Package geo provides the great-circle math used throughout the planner.
// All distances are in nautical miles and all angles in degrees unless noted.
package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// EarthRadiusNM is the mean earth radius in nautical miles (6371 km / 1.852 km/nm).
const EarthRadiusNM = 3440.065

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// HaversineNM returns the great-circle distance between two points in nautical miles.
func HaversineNM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusNM * c
}

// Distance returns the great-circle distance between two points in nautical miles.
func Distance(a, b Point) float64 {
	return HaversineNM(a.Lat, a.Lon, b.Lat, b.Lon)
}

// PolylineDistanceNM sums the haversine distances over consecutive points.
func PolylineDistanceNM(points []Point) float64 {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += Distance(points[i], points[i+1])
	}
	return total
}

// BearingDeg returns the initial true course from a to b, normalized to [0, 360).
func BearingDeg(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180
	dLon := lon2 - lon1

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(brng+360, 360)
}

// DestinationPoint returns the point reached from the origin on the given
// true bearing after the given distance.
func DestinationPoint(origin Point, bearingDeg, distanceNM float64) Point {
	lat := origin.Lat * math.Pi / 180
	lon := origin.Lon * math.Pi / 180
	bearing := bearingDeg * math.Pi / 180

	distRatio := distanceNM / EarthRadiusNM
	lat2 := math.Asin(math.Sin(lat)*math.Cos(distRatio) + math.Cos(lat)*math.Sin(distRatio)*math.Cos(bearing))
	lon2 := lon + math.Atan2(
		math.Sin(bearing)*math.Sin(distRatio)*math.Cos(lat),
		math.Cos(distRatio)-math.Sin(lat)*math.Sin(lat2),
	)

	return Point{Lat: lat2 * 180 / math.Pi, Lon: lon2 * 180 / math.Pi}
}

// WindComponentsKt decomposes a wind into headwind and crosswind components
// relative to the given track. Positive headwind opposes the track; positive
// crosswind is from the left.
func WindComponentsKt(trackDeg, windFromDeg, windSpeedKt float64) (headwind, crosswind float64) {
	rel := math.Mod(windFromDeg-trackDeg+360, 360) * math.Pi / 180
	return windSpeedKt * math.Cos(rel), windSpeedKt * math.Sin(rel)
}

// SamplePoints returns evenly spaced points along the great circle between
// two points, at roughly the given interval. Always includes both endpoints
// exactly and returns at least two points.
func SamplePoints(a, b Point, intervalNM float64) []Point {
	if intervalNM <= 0 {
		intervalNM = 10
	}
	dist := Distance(a, b)
	n := int(dist/intervalNM) + 1
	if n < 2 {
		n = 2
	}

	bearing := BearingDeg(a, b)
	points := make([]Point, n)
	points[0] = a
	for i := 1; i < n-1; i++ {
		f := float64(i) / float64(n-1)
		points[i] = DestinationPoint(a, bearing, f*dist)
	}
	points[n-1] = b
	return points
}

// MagneticVariationDeg returns the WMM magnetic declination at a position
// (+East, -West). Returns 0 if the model evaluation fails.
func MagneticVariationDeg(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048
	loc := egm96.NewLocationGeodetic(lat, lon, altM)
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0
	}
	return mag.D()
}

// MagneticCourseDeg converts a true course to a magnetic course at the given
// position, normalized to [0, 360).
func MagneticCourseDeg(trueCourseDeg, lat, lon, altFt float64, date time.Time) float64 {
	mc := trueCourseDeg - MagneticVariationDeg(lat, lon, altFt, date)
	return math.Mod(mc+360, 360)
}
