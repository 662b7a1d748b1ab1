package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/planner"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/internal/weather"
	"github.com/skyplan/skyplan/internal/websocket"
	"github.com/skyplan/skyplan/pkg/logger"
)

type stubPlanner struct {
	plan    *planner.Plan
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubPlanner) PlanRoute(ctx context.Context, pctx *planning.Context, req *planner.Request) (*planner.Plan, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	pctx.EmitProgress("start", "Starting route planning", 0)
	pctx.EmitProgress("complete", "Planning complete", 1)
	return s.plan, nil
}

type stubMETAR struct {
	raw string
	err error
}

func (s *stubMETAR) FetchRaw(ctx context.Context, station string) (string, error) {
	return s.raw, s.err
}

type stubForecast struct {
	err error
}

func (s *stubForecast) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.CurrentWeather, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &weather.CurrentWeather{TemperatureF: 68, WindSpeedKt: 8}, nil
}

func (s *stubForecast) GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]weather.DailyForecast, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]weather.DailyForecast, days)
	for i := range out {
		out[i] = weather.DailyForecast{Date: "2025-06-0" + string(rune('1'+i))}
	}
	return out, nil
}

func (s *stubForecast) GetHourlyConditions(ctx context.Context, lat, lon float64, days int) ([]weather.HourlyConditions, error) {
	if s.err != nil {
		return nil, s.err
	}
	f := func(v float64) *float64 { return &v }
	out := make([]weather.HourlyConditions, 6)
	for i := range out {
		out[i] = weather.HourlyConditions{
			Time:          "2025-06-01T0" + string(rune('0'+i)) + ":00",
			VisibilityM:   f(16000),
			CloudCoverPct: f(10),
		}
	}
	return out, nil
}

func testAirports(t *testing.T) *airports.Service {
	t.Helper()
	records := []airports.Airport{
		{ICAO: "KSFO", IATA: "SFO", Name: "San Francisco Intl", Lat: 37.619, Lon: -122.375, Type: "large_airport"},
		{ICAO: "KOAK", Name: "Oakland Intl", Lat: 37.721, Lon: -122.221, Type: "large_airport"},
		{ICAO: "KHAF", Name: "Half Moon Bay", Lat: 37.513, Lon: -122.501, Type: "small_airport"},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "airports.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	svc, err := airports.NewService(path, logger.NewNop())
	require.NoError(t, err)
	return svc
}

type testEnv struct {
	server *httptest.Server
	gate   *planning.Gate
}

func newTestEnv(t *testing.T, p RoutePlanner, metar METARSource, forecast ForecastSource) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Planning.TotalTimeoutSecs = 5

	gate := planning.NewGate(1, 50*time.Millisecond)
	zones, err := airspace.NewService(filepath.Join(t.TempDir(), "missing.json"), logger.NewNop())
	require.NoError(t, err)

	ws := websocket.NewServer(logger.NewNop())
	router := NewRouter(p, gate, testAirports(t), zones, metar, forecast, ws, cfg, logger.NewNop())
	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, gate: gate}
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPlanRouteHappyPath(t *testing.T) {
	stub := &stubPlanner{plan: &planner.Plan{Route: []string{"KSFO", "KOAK"}, DistanceNM: 9.4}}
	env := newTestEnv(t, stub, nil, nil)

	resp := postJSON(t, env.server.URL+"/api/plan", `{"origin":"KSFO","destination":"KOAK","speed":100}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	route, ok := body["route"].([]interface{})
	require.True(t, ok)
	assert.Len(t, route, 2)
}

func TestPlanRouteInvalidInput(t *testing.T) {
	stub := &stubPlanner{err: planning.InvalidInputf("invalid origin or destination code")}
	env := newTestEnv(t, stub, nil, nil)

	resp := postJSON(t, env.server.URL+"/api/plan", `{"origin":"XXXX","destination":"KOAK","speed":100}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["detail"], "invalid origin")
}

func TestPlanRouteCapacity(t *testing.T) {
	stub := &stubPlanner{
		plan:    &planner.Plan{Route: []string{"KSFO", "KOAK"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, stub, nil, nil)

	// Occupy the single slot, then a second request must time out queueing.
	first := make(chan *http.Response, 1)
	go func() {
		first <- postJSON(t, env.server.URL+"/api/plan", `{"origin":"KSFO","destination":"KOAK","speed":100}`)
	}()
	<-stub.started

	resp := postJSON(t, env.server.URL+"/api/plan", `{"origin":"KSFO","destination":"KOAK","speed":100}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	close(stub.release)
	r := <-first
	assert.Equal(t, http.StatusOK, r.StatusCode)
	r.Body.Close()
}

func TestPlanBadMode(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)
	resp := postJSON(t, env.server.URL+"/api/plan", `{"mode":"teleport"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPlanInvalidJSON(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)
	resp := postJSON(t, env.server.URL+"/api/plan", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPlanLocalMode(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)

	resp := postJSON(t, env.server.URL+"/api/plan", `{"mode":"local","airport":"KSFO"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, localDefaultRadiusNM, body["radius_nm"])
	assert.NotEmpty(t, body["planned_at_utc"])

	results, ok := body["airports"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	for _, r := range results {
		a := r.(map[string]interface{})["airport"].(map[string]interface{})
		assert.NotEqual(t, "KSFO", a["icao"], "center airport must not list itself")
	}
}

func TestPlanLocalUnknownAirport(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)
	resp := postJSON(t, env.server.URL+"/api/plan", `{"mode":"local","airport":"ZZZZ"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetAirport(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)

	resp, err := http.Get(env.server.URL + "/api/airports/ksfo")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "KSFO", body["icao"])

	resp, err = http.Get(env.server.URL + "/api/airports/ZZZZ")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchAirports(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)

	resp, err := http.Get(env.server.URL + "/api/airports/search?q=oakland")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["count"])

	resp, err = http.Get(env.server.URL + "/api/airports/search")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetStationWeather(t *testing.T) {
	metar := &stubMETAR{raw: "KSFO 201356Z 28008KT 10SM SCT050 18/09 A3002"}
	env := newTestEnv(t, &stubPlanner{}, metar, nil)

	resp, err := http.Get(env.server.URL + "/api/weather/ksfo")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "KSFO", body["station"])
	assert.Equal(t, "VFR", body["flight_category"])
	assert.NotEmpty(t, body["recommendation"])
}

func TestGetStationWeatherNoReport(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, &stubMETAR{raw: ""}, nil)
	resp, err := http.Get(env.server.URL + "/api/weather/KZZZ")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetStationWeatherUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, &stubMETAR{err: context.DeadlineExceeded}, nil)
	resp, err := http.Get(env.server.URL + "/api/weather/KSFO")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestGetForecast(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, &stubForecast{})

	resp, err := http.Get(env.server.URL + "/api/forecast?lat=37.6&lon=-122.4&days=3")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	daily, ok := body["daily"].([]interface{})
	require.True(t, ok)
	assert.Len(t, daily, 3)
	assert.NotNil(t, body["current"])
	assert.NotEmpty(t, body["best_departure_windows"])
}

func TestGetForecastMissingCoords(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, &stubForecast{})
	resp, err := http.Get(env.server.URL + "/api/forecast?lat=37.6")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthAndMeta(t *testing.T) {
	env := newTestEnv(t, &stubPlanner{}, nil, nil)

	resp, err := http.Get(env.server.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])

	resp, err = http.Get(env.server.URL + "/api/meta")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "skyplan", body["service"])
	assert.EqualValues(t, 3, body["airports"])
	assert.Equal(t, false, body["airspace_loaded"])
}
