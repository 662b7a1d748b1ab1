// Package airports loads the static airport dataset and answers lookup,
// text search, and proximity queries over it. The dataset is read once at
// startup and immutable afterwards, so queries need no locking.
package airports

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/skyplan/skyplan/internal/geo"
	"github.com/skyplan/skyplan/pkg/logger"
)

// Service provides queries over the airport dataset.
type Service struct {
	log     *logger.Logger
	all     []*Airport
	byCode  map[string]*Airport // ICAO and IATA, upper-case
	fueling []*Airport          // subset usable as fuel stops
}

// NewService loads the airport dataset from the given JSON file. A missing
// file is not fatal: the service starts empty and logs a warning, and every
// lookup will miss.
func NewService(path string, log *logger.Logger) (*Service, error) {
	s := &Service{
		log:    log.Named("airports"),
		byCode: make(map[string]*Airport),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("airport dataset not found, starting empty",
				logger.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("failed to read airport dataset: %w", err)
	}

	var records []Airport
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse airport dataset %s: %w", path, err)
	}

	for i := range records {
		a := &records[i]
		a.ICAO = strings.ToUpper(strings.TrimSpace(a.ICAO))
		a.IATA = strings.ToUpper(strings.TrimSpace(a.IATA))
		if a.ICAO == "" {
			continue
		}
		s.all = append(s.all, a)
		s.byCode[a.ICAO] = a
		if a.IATA != "" {
			// ICAO wins on collision; IATA is a convenience alias.
			if _, exists := s.byCode[a.IATA]; !exists {
				s.byCode[a.IATA] = a
			}
		}
		if a.HasFuel() {
			s.fueling = append(s.fueling, a)
		}
	}

	s.log.Info("airport dataset loaded",
		logger.String("path", path),
		logger.Int("airports", len(s.all)),
		logger.Int("fuel_capable", len(s.fueling)))
	return s, nil
}

// Count returns the number of airports loaded.
func (s *Service) Count() int {
	return len(s.all)
}

// All returns every loaded airport. Callers must not modify the slice.
func (s *Service) All() []*Airport {
	return s.all
}

// FuelCapable returns the airports usable as fuel stops.
func (s *Service) FuelCapable() []*Airport {
	return s.fueling
}

// Lookup resolves an ICAO or IATA code, case-insensitively. Returns nil if
// the code is unknown.
func (s *Service) Lookup(code string) *Airport {
	return s.byCode[strings.ToUpper(strings.TrimSpace(code))]
}

// Search returns airports whose code, name, or municipality contains the
// query, case-insensitively. Code matches sort first, then name matches.
func (s *Service) Search(query string, limit int) []*Airport {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		a    *Airport
		rank int
	}
	var matches []scored
	for _, a := range s.all {
		switch {
		case a.ICAO == q || a.IATA == q:
			matches = append(matches, scored{a, 0})
		case strings.HasPrefix(a.ICAO, q) || strings.HasPrefix(a.IATA, q):
			matches = append(matches, scored{a, 1})
		case strings.Contains(strings.ToUpper(a.Name), q):
			matches = append(matches, scored{a, 2})
		case strings.Contains(strings.ToUpper(a.Municipality), q):
			matches = append(matches, scored{a, 3})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].a.Name < matches[j].a.Name
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	result := make([]*Airport, len(matches))
	for i, m := range matches {
		result[i] = m.a
	}
	return result
}

// SearchNearby returns airports within radiusNM of a point, nearest first,
// capped at limit (0 means no cap).
func (s *Service) SearchNearby(lat, lon, radiusNM float64, limit int) []NearbyAirport {
	origin := geo.Point{Lat: lat, Lon: lon}
	var nearby []NearbyAirport
	for _, a := range s.all {
		d := geo.Distance(origin, geo.Point{Lat: a.Lat, Lon: a.Lon})
		if d <= radiusNM {
			nearby = append(nearby, NearbyAirport{Airport: a, DistanceNM: d})
		}
	}
	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceNM < nearby[j].DistanceNM
	})
	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby
}
