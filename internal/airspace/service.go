// Package airspace loads the airspace polygon dataset and answers
// segment-crossing queries for the route planner.
package airspace

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/skyplan/skyplan/internal/geo"
	"github.com/skyplan/skyplan/pkg/logger"
)

// avoidedCategories are the airspace classes routes must stay out of.
var avoidedCategories = map[string]bool{
	"prohibited": true,
	"restricted": true,
	"danger":     true,
}

// Service answers airspace queries. The dataset is immutable after load.
type Service struct {
	log    *logger.Logger
	zones  []*Zone
	loaded bool
}

// NewService loads airspace polygons from the given JSON file. A missing
// file leaves the service unloaded; queries then report ErrNotLoaded so the
// planner can surface a data-unavailable error instead of silently routing
// through restricted airspace.
func NewService(path string, log *logger.Logger) (*Service, error) {
	s := &Service{log: log.Named("airspace")}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("airspace dataset not found, avoidance disabled",
				logger.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("failed to read airspace dataset: %w", err)
	}

	var records []zoneRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse airspace dataset %s: %w", path, err)
	}

	for _, r := range records {
		if len(r.Polygon) < 3 {
			continue
		}
		z := &Zone{
			ID:       r.ID,
			Name:     r.Name,
			Category: strings.ToLower(r.Category),
			Type:     r.Type,
		}
		z.Polygon = make([]geo.Point, len(r.Polygon))
		for i, c := range r.Polygon {
			z.Polygon[i] = geo.Point{Lat: c.Lat, Lon: c.Lon}
		}
		z.computeBounds()
		s.zones = append(s.zones, z)
	}
	s.loaded = true

	s.log.Info("airspace dataset loaded",
		logger.String("path", path),
		logger.Int("zones", len(s.zones)))
	return s, nil
}

// Loaded reports whether the dataset was present at startup.
func (s *Service) Loaded() bool {
	return s.loaded
}

// Count returns the number of zones loaded.
func (s *Service) Count() int {
	return len(s.zones)
}

// Crossings returns the avoided zones that segment ab crosses, in dataset
// order.
func (s *Service) Crossings(a, b geo.Point) []*Zone {
	var hits []*Zone
	for _, z := range s.zones {
		if !avoidedCategories[z.Category] {
			continue
		}
		if !z.boundsOverlapSegment(a, b) {
			continue
		}
		if segmentCrossesPolygon(a, b, z.Polygon) {
			hits = append(hits, z)
		}
	}
	return hits
}

// Contains reports whether the point lies inside any avoided zone.
func (s *Service) Contains(p geo.Point) bool {
	for _, z := range s.zones {
		if !avoidedCategories[z.Category] {
			continue
		}
		if p.Lat < z.minLat || p.Lat > z.maxLat || p.Lon < z.minLon || p.Lon > z.maxLon {
			continue
		}
		if pointInPolygon(p, z.Polygon) {
			return true
		}
	}
	return false
}

// NearestBoundary returns the vertex of the zone's polygon closest to p.
func (s *Service) NearestBoundary(z *Zone, p geo.Point) geo.Point {
	return nearestBoundaryPoint(p, z.Polygon)
}
