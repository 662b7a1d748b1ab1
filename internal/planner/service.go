// Package planner computes VFR route plans: fuel-stop search, route
// geometry with airspace avoidance, and enrichment (terrain, wind,
// alternates) under the planning runtime's deadlines.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/geo"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/pkg/logger"
)

// minGroundspeedKt floors the wind-corrected speed so an absurd headwind
// cannot produce infinite times.
const minGroundspeedKt = 30.0

// terrainClearanceFt is the required margin above the highest terrain along
// the route.
const terrainClearanceFt = 1000.0

// defaultReserveMinutes is the VFR fuel reserve applied when the request
// does not specify one.
const defaultReserveMinutes = 45

// WindProvider returns the current wind at a point.
type WindProvider interface {
	CurrentWind(ctx context.Context, lat, lon float64) (speedKt float64, directionDeg int, err error)
}

// TerrainProvider returns the maximum terrain elevation along a polyline.
type TerrainProvider interface {
	MaxElevationFt(ctx context.Context, points []geo.Point) (float64, error)
}

// AlternatesProvider ranks alternate airports near the destination.
type AlternatesProvider interface {
	Recommend(ctx context.Context, destLat, destLon float64, exclude []string) (interface{}, error)
}

// Service is the route planning orchestrator.
type Service struct {
	cfg        config.PlanningConfig
	log        *logger.Logger
	airports   *airports.Service
	zones      *airspace.Service
	wind       WindProvider
	terrain    TerrainProvider
	alternates AlternatesProvider
}

// NewService creates the planner. Wind, terrain, and alternates providers
// may be nil; the corresponding request options then degrade to skipped.
func NewService(cfg config.PlanningConfig, apts *airports.Service, zones *airspace.Service,
	wind WindProvider, terrain TerrainProvider, alts AlternatesProvider, log *logger.Logger) *Service {
	return &Service{
		cfg:        cfg,
		log:        log.Named("planner"),
		airports:   apts,
		zones:      zones,
		wind:       wind,
		terrain:    terrain,
		alternates: alts,
	}
}

// PlanRoute plans a route per the request. pctx carries the deadline,
// cancellation flag, and optional progress sink; ctx is the request context
// used for outbound calls.
func (s *Service) PlanRoute(ctx context.Context, pctx *planning.Context, req *Request) (*Plan, error) {
	start := time.Now()

	pctx.EmitProgress("start", "Starting route planning", 0.0)
	if err := pctx.Check(); err != nil {
		return nil, err
	}

	origin := s.airports.Lookup(req.Origin)
	dest := s.airports.Lookup(req.Destination)
	if origin == nil || dest == nil {
		return nil, planning.InvalidInputf("invalid origin or destination code")
	}
	pctx.EmitProgress("airport_lookup", "Airports resolved", 0.05)
	if err := pctx.Check(); err != nil {
		return nil, err
	}

	speedKt := req.SpeedKt()
	if speedKt <= 0 {
		return nil, planning.InvalidInputf("speed must be > 0")
	}

	reserveMin := req.ReserveMinutes
	if reserveMin <= 0 {
		reserveMin = defaultReserveMinutes
	}

	routeCodes := []string{origin.ICAO, dest.ICAO}
	if req.PlanFuelStops || req.AircraftRangeNM != nil {
		var err error
		routeCodes, err = s.findFuelStops(pctx, req, origin, dest, speedKt, reserveMin)
		if err != nil {
			return nil, err
		}
	}

	points, segments, err := s.buildGeometry(pctx, req, routeCodes, origin, dest, speedKt)
	if err != nil {
		return nil, err
	}

	totalDist := geo.PolylineDistanceNM(points)
	segments = classifySegments(segments)

	plan := &Plan{
		Route:             routeCodes,
		DistanceNM:        round1(totalDist),
		TimeHr:            round2(safeDiv(totalDist, speedKt)),
		OriginCoords:      [2]float64{origin.Lat, origin.Lon},
		DestinationCoords: [2]float64{dest.Lat, dest.Lon},
		Segments:          segments,
	}
	if len(routeCodes) > 2 {
		plan.FuelStops = routeCodes[1 : len(routeCodes)-1]
	}
	pctx.EmitPartialPlan("route_geometry", plan)

	effectiveSpeedKt, err := s.enrich(ctx, pctx, req, plan, points, origin, dest, routeCodes, speedKt)
	if err != nil {
		return nil, err
	}

	totalTime := safeDiv(totalDist, effectiveSpeedKt)
	plan.TimeHr = round2(totalTime)

	if req.PlanFuelStops || req.FuelBurnGPH != nil {
		gph := 10.0
		if req.FuelBurnGPH != nil {
			gph = *req.FuelBurnGPH
		}
		required := totalTime * gph
		withReserve := required + gph*float64(reserveMin)/60.0
		rm := reserveMin
		r1, r2 := round2(required), round2(withReserve)
		plan.FuelBurnGPH = &gph
		plan.ReserveMinutes = &rm
		plan.FuelRequiredGal = &r1
		plan.FuelRequiredWithReserveGal = &r2
	}

	plan.Legs = s.buildLegs(routeCodes, req.AltitudeFt, effectiveSpeedKt)

	s.log.Info("route planned",
		logger.String("origin", req.Origin),
		logger.String("destination", req.Destination),
		logger.Int("waypoints", len(points)),
		logger.Int("segments", len(segments)),
		logger.Float64("distance_nm", plan.DistanceNM),
		logger.Duration("elapsed", time.Since(start)))

	pctx.EmitPartialPlan("complete", plan)
	pctx.EmitProgress("complete", "Planning complete", 1.0)
	return plan, nil
}

// findFuelStops runs the A* search over fuel-capable airports.
func (s *Service) findFuelStops(pctx *planning.Context, req *Request, origin, dest *airports.Airport, speedKt float64, reserveMin int) ([]string, error) {
	pctx.EmitProgress("fuel_stops", "Searching fuel stops", 0.12)
	if err := pctx.Check(); err != nil {
		return nil, err
	}

	var maxLeg float64
	switch {
	case req.AircraftRangeNM != nil:
		maxLeg = *req.AircraftRangeNM
	case req.PlanFuelStops:
		if req.FuelOnBoardGal == nil || req.FuelBurnGPH == nil {
			return nil, planning.InvalidInputf(
				"fuel stop planning requires fuel_on_board_gal and fuel_burn_gph (or aircraft_range_nm)")
		}
		gph := *req.FuelBurnGPH
		if gph <= 0 {
			return nil, planning.InvalidInputf("fuel_burn_gph must be > 0")
		}
		reserveFuel := gph * float64(reserveMin) / 60.0
		usable := *req.FuelOnBoardGal - reserveFuel
		if usable <= 0 {
			return nil, planning.InvalidInputf(
				"fuel on board (%.1f gal) must exceed reserve fuel (%.1f gal)",
				*req.FuelOnBoardGal, reserveFuel)
		}
		// Still-air maximum leg distance.
		maxLeg = usable * (speedKt / gph)
	}

	if maxLeg <= 0 {
		return nil, planning.InvalidInputf("max leg distance must be > 0")
	}
	legCeiling := req.MaxLegDistanceNM
	if legCeiling <= 0 {
		legCeiling = s.cfg.MaxLegDistanceNM
	}
	if maxLeg > legCeiling {
		maxLeg = legCeiling
	}

	var candidates []Node
	for _, a := range s.airports.FuelCapable() {
		candidates = append(candidates, Node{Code: a.ICAO, Lat: a.Lat, Lon: a.Lon})
	}

	penalty := 0.0
	if req.FuelStrategy == "economy" {
		penalty = s.cfg.EconomyLegPenaltyNM
	}

	route, err := FindRoute(
		Node{Code: origin.ICAO, Lat: origin.Lat, Lon: origin.Lon},
		Node{Code: dest.ICAO, Lat: dest.Lat, Lon: dest.Lon},
		candidates, maxLeg, penalty, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", planning.ErrInvalidInput, err.Error())
	}

	pctx.EmitProgress("fuel_stops", "Fuel stop search complete", 0.18)
	if err := pctx.Check(); err != nil {
		return nil, err
	}
	return route, nil
}

// buildGeometry plans each leg's waypoints with optional airspace
// avoidance, emitting per-leg progress and partial plans.
func (s *Service) buildGeometry(pctx *planning.Context, req *Request, routeCodes []string, origin, dest *airports.Airport, speedKt float64) ([]geo.Point, []Segment, error) {
	if req.AvoidAirspaces && !s.zones.Loaded() {
		return nil, nil, fmt.Errorf("%w: airspace dataset not available", planning.ErrDataUnavailable)
	}
	if req.AvoidAirspaces {
		// Endpoints inside an avoided zone can never be detoured around;
		// flag them so the crossing in the plan is explainable.
		for _, ep := range []*airports.Airport{origin, dest} {
			if s.zones.Contains(geo.Point{Lat: ep.Lat, Lon: ep.Lon}) {
				s.log.Warn("airport lies inside avoided airspace",
					logger.String("airport", ep.ICAO))
			}
		}
	}

	var points []geo.Point
	var segments []Segment

	totalLegs := len(routeCodes) - 1
	if totalLegs < 1 {
		totalLegs = 1
	}
	for i := 0; i < totalLegs; i++ {
		if err := pctx.Check(); err != nil {
			return nil, nil, err
		}
		pctx.EmitProgress("route_geometry",
			fmt.Sprintf("Planning leg %d/%d", i+1, totalLegs),
			0.2+0.4*float64(i+1)/float64(totalLegs))

		a := s.airports.Lookup(routeCodes[i])
		b := s.airports.Lookup(routeCodes[i+1])
		if a == nil || b == nil {
			return nil, nil, planning.InvalidInputf("invalid waypoint code")
		}

		legPoints, legSegments := planLegGeometry(
			geo.Point{Lat: a.Lat, Lon: a.Lon},
			geo.Point{Lat: b.Lat, Lon: b.Lon},
			req.AltitudeFt, req.AvoidAirspaces, s.zones, s.cfg.AirspaceBufferNM)

		if len(points) == 0 {
			points = append(points, legPoints...)
		} else {
			points = append(points, legPoints[1:]...)
		}
		segments = append(segments, legSegments...)

		// Multi-leg routes stream a snapshot after each leg so clients can
		// draw the route as it grows.
		if totalLegs > 1 {
			dist := geo.PolylineDistanceNM(points)
			partial := &Plan{
				Route:             routeCodes,
				DistanceNM:        round1(dist),
				TimeHr:            round2(safeDiv(dist, speedKt)),
				OriginCoords:      [2]float64{origin.Lat, origin.Lon},
				DestinationCoords: [2]float64{dest.Lat, dest.Lon},
				Segments:          segments,
				FuelStops:         routeCodes[1 : len(routeCodes)-1],
			}
			pctx.EmitPartialPlan("route_geometry", partial)
		}
	}

	pctx.EmitProgress("route_geometry", "Route geometry complete", 0.6)
	if err := pctx.Check(); err != nil {
		return nil, nil, err
	}
	return points, segments, nil
}

type enrichResult struct {
	name string
	err  error
}

// enrich runs the terrain check, wind fetch, and alternates ranking
// concurrently. Terrain failures are fatal; wind and alternates degrade to
// skipped. Each task gets min(phase timeout, time remaining).
func (s *Service) enrich(ctx context.Context, pctx *planning.Context, req *Request, plan *Plan, points []geo.Point, origin, dest *airports.Airport, routeCodes []string, speedKt float64) (float64, error) {
	effectiveSpeedKt := speedKt

	wantTerrain := req.AvoidTerrain && s.terrain != nil
	wantWind := req.ApplyWind && s.wind != nil && len(points) > 0
	wantAlternates := req.IncludeAlternates && s.alternates != nil
	if !wantTerrain && !wantWind && !wantAlternates {
		return effectiveSpeedKt, nil
	}

	pctx.EmitProgress("enrichment", "Computing terrain/wind/alternates", 0.65)

	phaseTimeout := time.Duration(s.cfg.PhaseTimeoutSecs * float64(time.Second))
	taskTimeout := phaseTimeout
	if rem := pctx.Remaining(); rem < taskTimeout {
		taskTimeout = rem
	}

	// Worker pool: tasks take a token before running.
	workers := s.cfg.EnrichmentWorkers
	if workers < 1 {
		workers = 1
	}
	tokens := make(chan struct{}, workers)

	results := make(chan enrichResult, 3)
	launched := 0
	run := func(name string, task func(context.Context) error) {
		launched++
		go func() {
			tokens <- struct{}{}
			defer func() { <-tokens }()
			tctx, cancel := context.WithTimeout(ctx, taskTimeout)
			defer cancel()
			results <- enrichResult{name: name, err: task(tctx)}
		}()
	}

	if wantTerrain {
		run("terrain", func(tctx context.Context) error {
			maxElev, err := s.terrain.MaxElevationFt(tctx, points)
			if err != nil {
				return err
			}
			minSafe := maxElev + terrainClearanceFt
			if float64(req.AltitudeFt) < minSafe {
				return planning.InvalidInputf(
					"requested altitude %d ft is below recommended minimum %.0f ft (max terrain %.0f ft + %.0f ft clearance)",
					req.AltitudeFt, minSafe, maxElev, terrainClearanceFt)
			}
			return nil
		})
	}

	if wantWind {
		run("wind", func(tctx context.Context) error {
			mid := points[len(points)/2]
			speed, dir, err := s.wind.CurrentWind(tctx, mid.Lat, mid.Lon)
			if err != nil {
				return err
			}
			track := geo.BearingDeg(geo.Point{Lat: origin.Lat, Lon: origin.Lon}, geo.Point{Lat: dest.Lat, Lon: dest.Lon})
			head, cross := geo.WindComponentsKt(track, float64(dir), speed)

			h, c := round1(head), round1(cross)
			plan.WindSpeedKt = &speed
			plan.WindDirectionDeg = &dir
			plan.HeadwindKt = &h
			plan.CrosswindKt = &c

			eff := speedKt - head
			if eff < minGroundspeedKt {
				eff = minGroundspeedKt
			}
			effectiveSpeedKt = eff
			gs := round1(eff)
			plan.GroundspeedKt = &gs
			return nil
		})
	}

	if wantAlternates {
		run("alternates", func(tctx context.Context) error {
			out, err := s.alternates.Recommend(tctx, dest.Lat, dest.Lon, routeCodes)
			if err != nil {
				return err
			}
			plan.Alternates = out
			return nil
		})
	}

	status := make(map[string]error, launched)
	for i := 0; i < launched; i++ {
		if err := pctx.Check(); err != nil {
			return 0, err
		}
		r := <-results
		status[r.name] = r.err
	}

	if err, ran := status["terrain"]; ran {
		if err != nil {
			switch {
			case errors.Is(err, planning.ErrInvalidInput):
				return 0, err
			case errors.Is(err, context.DeadlineExceeded):
				return 0, fmt.Errorf("%w: terrain check timed out", planning.ErrDeadlineExceeded)
			default:
				return 0, fmt.Errorf("%w: terrain service: %s", planning.ErrUpstreamService, err.Error())
			}
		}
		pctx.EmitProgress("terrain", "Terrain check complete", 0.75)
	}
	if err, ran := status["wind"]; ran {
		msg := "Wind fetch complete"
		if err != nil {
			msg = "Wind fetch skipped"
			s.log.Warn("wind fetch failed, continuing without wind", logger.Error(err))
		}
		pctx.EmitProgress("wind", msg, 0.8)
	}
	if err, ran := status["alternates"]; ran {
		msg := "Alternates computed"
		if err != nil {
			msg = "Alternates skipped"
			s.log.Warn("alternates ranking failed, continuing without alternates", logger.Error(err))
		}
		pctx.EmitProgress("alternates", msg, 0.9)
	}

	return effectiveSpeedKt, nil
}

// buildLegs produces the navigation log: per-leg distance, true and
// magnetic courses, time en route at the effective speed, and running
// elapsed time charging ground time at each intermediate fuel stop.
func (s *Service) buildLegs(routeCodes []string, altitudeFt int, effectiveSpeedKt float64) []Leg {
	if len(routeCodes) < 2 || effectiveSpeedKt <= 0 {
		return nil
	}
	now := time.Now().UTC()

	legs := make([]Leg, 0, len(routeCodes)-1)
	elapsed := 0.0
	for i := 0; i < len(routeCodes)-1; i++ {
		a := s.airports.Lookup(routeCodes[i])
		b := s.airports.Lookup(routeCodes[i+1])
		if a == nil || b == nil {
			return nil
		}
		pa := geo.Point{Lat: a.Lat, Lon: a.Lon}
		pb := geo.Point{Lat: b.Lat, Lon: b.Lon}

		dist := geo.Distance(pa, pb)
		tc := geo.BearingDeg(pa, pb)
		midLat := (a.Lat + b.Lat) / 2
		midLon := (a.Lon + b.Lon) / 2
		mc := geo.MagneticCourseDeg(tc, midLat, midLon, float64(altitudeFt), now)

		ete := dist / effectiveSpeedKt * 60.0

		// Ground time at the stop we just departed.
		if i > 0 {
			elapsed += float64(s.cfg.DefaultRefuelMins)
		}
		elapsed += ete

		refuel := i+1 < len(routeCodes)-1
		refuelMin := 0
		if refuel {
			refuelMin = s.cfg.DefaultRefuelMins
		}
		legs = append(legs, Leg{
			From:          routeCodes[i],
			To:            routeCodes[i+1],
			DistanceNM:    round1(dist),
			TrueCourseDeg: round1(tc),
			MagCourseDeg:  round1(mc),
			GroundspeedKt: round1(effectiveSpeedKt),
			ETEMin:        round1(ete),
			ElapsedMin:    round1(elapsed),
			RefuelStop:    refuel,
			RefuelMin:     refuelMin,
		})
	}
	return legs
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
