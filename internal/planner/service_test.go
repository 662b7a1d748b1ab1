package planner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/geo"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/pkg/logger"
)

type stubWind struct {
	speedKt float64
	dirDeg  int
	err     error
}

func (s *stubWind) CurrentWind(ctx context.Context, lat, lon float64) (float64, int, error) {
	return s.speedKt, s.dirDeg, s.err
}

type stubTerrain struct {
	elevFt float64
	err    error
}

func (s *stubTerrain) MaxElevationFt(ctx context.Context, points []geo.Point) (float64, error) {
	return s.elevFt, s.err
}

type stubAlternates struct {
	out interface{}
	err error
}

func (s *stubAlternates) Recommend(ctx context.Context, lat, lon float64, exclude []string) (interface{}, error) {
	return s.out, s.err
}

func testAirports(t *testing.T) *airports.Service {
	t.Helper()
	records := []airports.Airport{
		{ICAO: "AAAA", Name: "Alpha Field", Lat: 40, Lon: -75, Type: "small_airport"},
		{ICAO: "BBBB", Name: "Bravo Field", Lat: 40.5, Lon: -75, Type: "small_airport"},
		{ICAO: "MIDD", Name: "Midway Field", Lat: 41, Lon: -75, Type: "small_airport"},
		{ICAO: "CCCC", Name: "Charlie Field", Lat: 42, Lon: -75, Type: "small_airport"},
		// Past the usual destination, so CCCC is never the last fuel-capable
		// candidate the way it would be in a minimal fixture.
		{ICAO: "DDDD", Name: "Delta Field", Lat: 43, Lon: -75, Type: "small_airport"},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "airports.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	svc, err := airports.NewService(path, logger.NewNop())
	require.NoError(t, err)
	return svc
}

func emptyAirspace(t *testing.T) *airspace.Service {
	t.Helper()
	svc, err := airspace.NewService(filepath.Join(t.TempDir(), "missing.json"), logger.NewNop())
	require.NoError(t, err)
	return svc
}

func newTestService(t *testing.T, wind WindProvider, terrain TerrainProvider, alts AlternatesProvider) *Service {
	t.Helper()
	cfg := config.Default().Planning
	return NewService(cfg, testAirports(t), emptyAirspace(t), wind, terrain, alts, logger.NewNop())
}

func pctxNoDeadline() *planning.Context {
	return planning.NewContext(time.Time{})
}

func TestPlanRouteDirect(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAAA", "BBBB"}, plan.Route)
	assert.InDelta(t, 30, plan.DistanceNM, 0.5)
	assert.InDelta(t, 0.3, plan.TimeHr, 0.02)
	assert.Empty(t, plan.FuelStops)

	require.Len(t, plan.Segments, 1)
	assert.Equal(t, "climb", plan.Segments[0].Type)
	assert.Equal(t, 4500, plan.Segments[0].VFRAltitude)

	require.Len(t, plan.Legs, 1)
	assert.Equal(t, "AAAA", plan.Legs[0].From)
	assert.Equal(t, "BBBB", plan.Legs[0].To)
	assert.False(t, plan.Legs[0].RefuelStop)
	assert.InDelta(t, plan.Legs[0].ETEMin, plan.Legs[0].ElapsedMin, 1e-9)
}

func TestPlanRouteUnknownAirport(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "ZZZZ", Speed: 100, AltitudeFt: 4500,
	})
	assert.ErrorIs(t, err, planning.ErrInvalidInput)
}

func TestPlanRouteFuelStops(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	// 14.5 gal at 10 gph with a 45 min reserve leaves 7 gal usable: 42 min
	// of flying, 70 nm at 100 kt. AAAA to CCCC is ~120 nm, so the planner
	// must stop at MIDD.
	fuel, gph := 14.5, 10.0
	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "CCCC", Speed: 100, AltitudeFt: 4500,
		PlanFuelStops: true, FuelOnBoardGal: &fuel, FuelBurnGPH: &gph, ReserveMinutes: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAAA", "MIDD", "CCCC"}, plan.Route)
	assert.Equal(t, []string{"MIDD"}, plan.FuelStops)

	require.Len(t, plan.Legs, 2)
	assert.True(t, plan.Legs[0].RefuelStop)
	assert.False(t, plan.Legs[1].RefuelStop)
	// Elapsed time on the second leg includes refuel ground time.
	refuel := float64(config.Default().Planning.DefaultRefuelMins)
	assert.InDelta(t, plan.Legs[0].ETEMin+refuel+plan.Legs[1].ETEMin, plan.Legs[1].ElapsedMin, 0.2)

	require.NotNil(t, plan.FuelRequiredGal)
	require.NotNil(t, plan.FuelRequiredWithReserveGal)
	assert.InDelta(t, *plan.FuelRequiredGal+gph*45/60, *plan.FuelRequiredWithReserveGal, 0.01)
}

func TestPlanRouteFuelStopsMissingFuelParams(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "CCCC", Speed: 100, AltitudeFt: 4500,
		PlanFuelStops: true,
	})
	assert.ErrorIs(t, err, planning.ErrInvalidInput)
}

func TestPlanRouteFuelBelowReserve(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	fuel, gph := 5.0, 10.0 // reserve alone is 7.5 gal
	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "CCCC", Speed: 100, AltitudeFt: 4500,
		PlanFuelStops: true, FuelOnBoardGal: &fuel, FuelBurnGPH: &gph, ReserveMinutes: 45,
	})
	assert.ErrorIs(t, err, planning.ErrInvalidInput)
}

func TestPlanRouteAircraftRange(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	rng := 80.0
	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "CCCC", Speed: 100, AltitudeFt: 4500,
		AircraftRangeNM: &rng,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA", "MIDD", "CCCC"}, plan.Route)
}

func TestPlanRouteWindSlowsGroundspeed(t *testing.T) {
	// Track is due north; wind from the north at 20 kt is a pure headwind.
	wind := &stubWind{speedKt: 20, dirDeg: 0}
	svc := newTestService(t, wind, nil, nil)

	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
		ApplyWind: true,
	})
	require.NoError(t, err)

	require.NotNil(t, plan.HeadwindKt)
	assert.InDelta(t, 20, *plan.HeadwindKt, 0.1)
	require.NotNil(t, plan.GroundspeedKt)
	assert.InDelta(t, 80, *plan.GroundspeedKt, 0.1)

	// Time uses the wind-corrected speed.
	assert.InDelta(t, plan.DistanceNM/80, plan.TimeHr, 0.01)
}

func TestPlanRouteWindFailureDegrades(t *testing.T) {
	wind := &stubWind{err: errors.New("open-meteo down")}
	svc := newTestService(t, wind, nil, nil)

	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
		ApplyWind: true,
	})
	require.NoError(t, err)
	assert.Nil(t, plan.WindSpeedKt)
	assert.Nil(t, plan.GroundspeedKt)
}

func TestPlanRouteTerrainTooLow(t *testing.T) {
	terrain := &stubTerrain{elevFt: 5000}
	svc := newTestService(t, nil, terrain, nil)

	// 5500 ft is below 5000 + 1000 clearance.
	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 5500,
		AvoidTerrain: true,
	})
	assert.ErrorIs(t, err, planning.ErrInvalidInput)
}

func TestPlanRouteTerrainClears(t *testing.T) {
	terrain := &stubTerrain{elevFt: 3000}
	svc := newTestService(t, nil, terrain, nil)

	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 5500,
		AvoidTerrain: true,
	})
	assert.NoError(t, err)
}

func TestPlanRouteTerrainServiceFailureIsFatal(t *testing.T) {
	terrain := &stubTerrain{err: errors.New("opentopography down")}
	svc := newTestService(t, nil, terrain, nil)

	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 5500,
		AvoidTerrain: true,
	})
	assert.ErrorIs(t, err, planning.ErrUpstreamService)
}

func TestPlanRouteAlternatesAttached(t *testing.T) {
	alts := &stubAlternates{out: []string{"DDDD"}}
	svc := newTestService(t, nil, nil, alts)

	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
		IncludeAlternates: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, plan.Alternates)
}

func TestPlanRouteExpiredDeadline(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	pctx := planning.NewContext(time.Now().Add(-time.Second))
	_, err := svc.PlanRoute(context.Background(), pctx, &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
	})
	assert.ErrorIs(t, err, planning.ErrDeadlineExceeded)
}

func TestPlanRouteCancelled(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	pctx := pctxNoDeadline()
	pctx.Cancel()
	_, err := svc.PlanRoute(context.Background(), pctx, &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
	})
	assert.ErrorIs(t, err, planning.ErrCancelled)
}

func TestPlanRouteProgressMonotonic(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	var percents []float64
	pctx := pctxNoDeadline().WithSink(func(ev planning.Event) {
		if ev.Type == planning.EventProgress && ev.Percent != nil {
			percents = append(percents, *ev.Percent)
		}
	})

	fuel, gph := 14.5, 10.0
	_, err := svc.PlanRoute(context.Background(), pctx, &Request{
		Origin: "AAAA", Destination: "CCCC", Speed: 100, AltitudeFt: 4500,
		PlanFuelStops: true, FuelOnBoardGal: &fuel, FuelBurnGPH: &gph, ReserveMinutes: 45,
	})
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	assert.Zero(t, percents[0])
	assert.Equal(t, 1.0, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestPlanRouteAvoidAirspacesWithoutDataset(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	_, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
		AvoidAirspaces: true,
	})
	assert.ErrorIs(t, err, planning.ErrDataUnavailable)
}

func TestPlanRouteAvoidAirspacesDetours(t *testing.T) {
	// A restricted box straddles the direct AAAA-BBBB track.
	zonePath := filepath.Join(t.TempDir(), "airspaces.json")
	zoneJSON := `[{"id":"R-1","name":"Box","category":"restricted","polygon":[
		{"lat":40.2,"lon":-75.2},{"lat":40.3,"lon":-75.2},
		{"lat":40.3,"lon":-74.8},{"lat":40.2,"lon":-74.8}]}]`
	require.NoError(t, os.WriteFile(zonePath, []byte(zoneJSON), 0o644))
	zones, err := airspace.NewService(zonePath, logger.NewNop())
	require.NoError(t, err)

	cfg := config.Default().Planning
	svc := NewService(cfg, testAirports(t), zones, nil, nil, nil, logger.NewNop())

	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
		AvoidAirspaces: true,
	})
	require.NoError(t, err)
	// Detour waypoints make the route longer than the direct segment.
	assert.Greater(t, len(plan.Segments), 1)
	assert.Greater(t, plan.DistanceNM, 30.0)
}

func TestPlanRouteOriginInsideAvoidedZone(t *testing.T) {
	// AAAA itself sits inside the restricted box. There is no way to detour
	// around an endpoint, so planning warns and proceeds rather than failing.
	zonePath := filepath.Join(t.TempDir(), "airspaces.json")
	zoneJSON := `[{"id":"R-2","name":"Over Alpha","category":"restricted","polygon":[
		{"lat":39.9,"lon":-75.1},{"lat":40.1,"lon":-75.1},
		{"lat":40.1,"lon":-74.9},{"lat":39.9,"lon":-74.9}]}]`
	require.NoError(t, os.WriteFile(zonePath, []byte(zoneJSON), 0o644))
	zones, err := airspace.NewService(zonePath, logger.NewNop())
	require.NoError(t, err)

	cfg := config.Default().Planning
	svc := NewService(cfg, testAirports(t), zones, nil, nil, nil, logger.NewNop())

	plan, err := svc.PlanRoute(context.Background(), pctxNoDeadline(), &Request{
		Origin: "AAAA", Destination: "BBBB", Speed: 100, AltitudeFt: 4500,
		AvoidAirspaces: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA", "BBBB"}, plan.Route)
}

func TestSpeedUnitConversion(t *testing.T) {
	r := &Request{Speed: 100, SpeedUnit: "mph"}
	assert.InDelta(t, 86.9, r.SpeedKt(), 0.1)
	r = &Request{Speed: 100}
	assert.InDelta(t, 100, r.SpeedKt(), 1e-9)
}
