package airspace

import "github.com/skyplan/skyplan/internal/geo"

// Zone is one airspace polygon from the dataset.
type Zone struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Category string      `json:"category"` // prohibited, restricted, danger, ...
	Type     string      `json:"type,omitempty"`
	Polygon  []geo.Point `json:"-"`

	// Bounding box, precomputed at load for cheap rejection.
	minLat, maxLat float64
	minLon, maxLon float64
}

type zoneRecord struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category string       `json:"category"`
	Type     string       `json:"type"`
	Polygon  []coordinate `json:"polygon"`
}

type coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (z *Zone) computeBounds() {
	if len(z.Polygon) == 0 {
		return
	}
	z.minLat, z.maxLat = z.Polygon[0].Lat, z.Polygon[0].Lat
	z.minLon, z.maxLon = z.Polygon[0].Lon, z.Polygon[0].Lon
	for _, p := range z.Polygon[1:] {
		if p.Lat < z.minLat {
			z.minLat = p.Lat
		}
		if p.Lat > z.maxLat {
			z.maxLat = p.Lat
		}
		if p.Lon < z.minLon {
			z.minLon = p.Lon
		}
		if p.Lon > z.maxLon {
			z.maxLon = p.Lon
		}
	}
}

// boundsOverlapSegment rejects segments whose bounding box cannot touch the
// zone's bounding box.
func (z *Zone) boundsOverlapSegment(a, b geo.Point) bool {
	sMinLat, sMaxLat := a.Lat, b.Lat
	if sMinLat > sMaxLat {
		sMinLat, sMaxLat = sMaxLat, sMinLat
	}
	sMinLon, sMaxLon := a.Lon, b.Lon
	if sMinLon > sMaxLon {
		sMinLon, sMaxLon = sMaxLon, sMinLon
	}
	return sMaxLat >= z.minLat && sMinLat <= z.maxLat &&
		sMaxLon >= z.minLon && sMinLon <= z.maxLon
}
