// Package alternates ranks candidate alternate airports around a
// destination, penalizing poor or unknown weather and dropping fields below
// hard VFR floors.
package alternates

import (
	"context"
	"sort"
	"strings"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/weather"
	"github.com/skyplan/skyplan/pkg/logger"
)

// Score penalties. Distance is the base score; weather problems add nm-
// equivalent penalties so a close field with bad weather can lose to a
// farther field with good weather.
const (
	penaltyNoWeather   = 50.0
	penaltySoftVis     = 25.0
	penaltySoftCeiling = 25.0
)

// Weather is the parsed conditions attached to an alternate.
type Weather struct {
	METAR            string                 `json:"metar"`
	VisibilitySM     *float64               `json:"visibility_sm,omitempty"`
	CeilingFt        *int                   `json:"ceiling_ft,omitempty"`
	WindSpeedKt      *int                   `json:"wind_speed_kt,omitempty"`
	WindDirectionDeg *int                   `json:"wind_direction_deg,omitempty"`
	TemperatureF     *int                   `json:"temperature_f,omitempty"`
	FlightCategory   weather.FlightCategory `json:"flight_category"`
}

// Alternate is one ranked alternate airport.
type Alternate struct {
	Code       string   `json:"code"`
	Name       string   `json:"name,omitempty"`
	Type       string   `json:"type,omitempty"`
	DistanceNM float64  `json:"distance_nm"`
	Weather    *Weather `json:"weather,omitempty"`
}

// METARSource fetches raw METARs for a set of stations in one request.
// Stations without a current report map to "".
type METARSource interface {
	FetchRawBatch(ctx context.Context, stations []string) map[string]string
}

// Service ranks alternates.
type Service struct {
	cfg      config.AlternatesConfig
	airports *airports.Service
	metar    METARSource
	log      *logger.Logger
}

// NewService creates the alternates recommender.
func NewService(cfg config.AlternatesConfig, apts *airports.Service, metar METARSource, log *logger.Logger) *Service {
	return &Service{
		cfg:      cfg,
		airports: apts,
		metar:    metar,
		log:      log.Named("alternates"),
	}
}

type scored struct {
	score float64
	alt   Alternate
}

// RecommendAlternates returns up to the configured limit of alternates near
// the destination, best first. Airports on the planned route are excluded.
func (s *Service) RecommendAlternates(ctx context.Context, destLat, destLon float64, excludeCodes []string) ([]Alternate, error) {
	exclude := make(map[string]bool, len(excludeCodes))
	for _, c := range excludeCodes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			exclude[c] = true
		}
	}

	candidates := s.airports.SearchNearby(destLat, destLon, s.cfg.RadiusNM, s.cfg.MaxCandidates)

	// Eligible fields first, then one batched METAR request covering as many
	// of the closest ones as the fetch budget allows.
	var eligible []airports.NearbyAirport
	for _, cand := range candidates {
		a := cand.Airport
		if a.ICAO == "" || exclude[a.ICAO] || exclude[a.IATA] {
			continue
		}
		if !a.HasFuel() {
			// Same type filter as fuel stops: towered-or-larger fields only.
			continue
		}
		eligible = append(eligible, cand)
	}

	budget := s.cfg.MaxMETARFetch
	if budget > len(eligible) {
		budget = len(eligible)
	}
	reports := map[string]string{}
	if budget > 0 && s.metar != nil {
		stations := make([]string, 0, budget)
		for _, cand := range eligible[:budget] {
			stations = append(stations, cand.Airport.ICAO)
		}
		reports = s.metar.FetchRawBatch(ctx, stations)
		s.log.Debug("fetched METARs for alternates", logger.Int("stations", len(stations)))
	}

	var ranked []scored
	for i, cand := range eligible {
		a := cand.Airport

		penalty := 0.0
		var wx *Weather

		raw := ""
		if i < budget && s.metar != nil {
			raw = reports[a.ICAO]
		} else {
			penalty += penaltyNoWeather
		}

		if raw != "" {
			parsed := weather.ParseMETAR(raw)

			// Hard floors: below these the field is unusable as an alternate.
			if parsed.VisibilitySM != nil && *parsed.VisibilitySM < s.cfg.MinVisibilitySM {
				continue
			}
			if parsed.CeilingFt != nil && *parsed.CeilingFt < s.cfg.MinCeilingFt {
				continue
			}

			if parsed.VisibilitySM != nil && *parsed.VisibilitySM < s.cfg.PreferredVisibilitySM {
				penalty += penaltySoftVis
			}
			if parsed.CeilingFt != nil && *parsed.CeilingFt < s.cfg.PreferredCeilingFt {
				penalty += penaltySoftCeiling
			}

			var ceilF *float64
			if parsed.CeilingFt != nil {
				f := float64(*parsed.CeilingFt)
				ceilF = &f
			}
			wx = &Weather{
				METAR:            raw,
				VisibilitySM:     parsed.VisibilitySM,
				CeilingFt:        parsed.CeilingFt,
				WindSpeedKt:      parsed.WindSpeedKt,
				WindDirectionDeg: parsed.WindDirectionDeg,
				TemperatureF:     parsed.TemperatureF,
				FlightCategory:   weather.Categorize(parsed.VisibilitySM, ceilF),
			}
		} else if penalty == 0 {
			// Fetch attempted but no report available.
			penalty += penaltyNoWeather
		}

		ranked = append(ranked, scored{
			score: cand.DistanceNM + penalty,
			alt: Alternate{
				Code:       a.ICAO,
				Name:       a.Name,
				Type:       a.Type,
				DistanceNM: roundTenth(cand.DistanceNM),
				Weather:    wx,
			},
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	limit := s.cfg.Limit
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]Alternate, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, r.alt)
	}
	return out, nil
}

// Recommend adapts the recommender to the planner's provider interface.
func (s *Service) Recommend(ctx context.Context, destLat, destLon float64, exclude []string) (interface{}, error) {
	out, err := s.RecommendAlternates(ctx, destLat, destLon, exclude)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out, nil
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
