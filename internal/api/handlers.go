// Package api exposes the planning, airport, and weather services over
// HTTP: JSON endpoints, an SSE streaming endpoint, and a websocket bridge.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/planner"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/internal/weather"
	"github.com/skyplan/skyplan/internal/websocket"
	"github.com/skyplan/skyplan/pkg/logger"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Local plan defaults when the request leaves them unset.
const (
	localDefaultRadiusNM = 50.0
	localMaxResults      = 25
)

// RoutePlanner plans a route under a planning context.
type RoutePlanner interface {
	PlanRoute(ctx context.Context, pctx *planning.Context, req *planner.Request) (*planner.Plan, error)
}

// METARSource fetches raw METARs.
type METARSource interface {
	FetchRaw(ctx context.Context, station string) (string, error)
}

// ForecastSource fetches Open-Meteo conditions and forecasts.
type ForecastSource interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.CurrentWeather, error)
	GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]weather.DailyForecast, error)
	GetHourlyConditions(ctx context.Context, lat, lon float64, days int) ([]weather.HourlyConditions, error)
}

// Handler contains the API handlers
type Handler struct {
	planner  RoutePlanner
	gate     *planning.Gate
	airports *airports.Service
	zones    *airspace.Service
	metar    METARSource
	forecast ForecastSource
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(routePlanner RoutePlanner, gate *planning.Gate, apts *airports.Service, zones *airspace.Service,
	metar METARSource, forecast ForecastSource, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		planner:  routePlanner,
		gate:     gate,
		airports: apts,
		zones:    zones,
		metar:    metar,
		forecast: forecast,
		wsServer: wsServer,
		config:   cfg,
		logger:   log.Named("api-handler"),
	}
}

// planRequest is the POST /api/plan body. Mode selects route planning
// (default) or a local area plan around one airport.
type planRequest struct {
	Mode string `json:"mode"`
	planner.Request

	// Local mode fields.
	Airport  string  `json:"airport"`
	RadiusNM float64 `json:"radius_nm"`
}

// Plan handles POST /api/plan.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}

	switch req.Mode {
	case "", "route":
		h.planRoute(w, r, &req)
	case "local":
		h.planLocal(w, r, &req)
	default:
		WriteJSON(w, http.StatusBadRequest, map[string]string{
			"detail": "mode must be \"route\" or \"local\"",
		})
	}
}

func (h *Handler) planRoute(w http.ResponseWriter, r *http.Request, req *planRequest) {
	start := time.Now()

	release, err := h.gate.Acquire(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()

	pctx := planning.NewContext(time.Now().Add(h.totalTimeout()))
	plan, err := h.planner.PlanRoute(r.Context(), pctx, &req.Request)
	if err != nil {
		h.logger.Warn("Route planning failed",
			logger.String("origin", req.Origin),
			logger.String("destination", req.Destination),
			logger.Error(err))
		h.writeError(w, err)
		return
	}

	h.logger.Info("Route planned",
		logger.String("origin", req.Origin),
		logger.String("destination", req.Destination),
		logger.Duration("elapsed", time.Since(start)))
	WriteJSON(w, http.StatusOK, plan)
}

// localPlanResponse is the local-mode plan: the center airport and the
// fields around it, nearest first.
type localPlanResponse struct {
	Airport      *airports.Airport        `json:"airport"`
	RadiusNM     float64                  `json:"radius_nm"`
	Airports     []airports.NearbyAirport `json:"airports"`
	Count        int                      `json:"count"`
	PlannedAtUTC string                   `json:"planned_at_utc"`
}

func (h *Handler) planLocal(w http.ResponseWriter, r *http.Request, req *planRequest) {
	code := req.Airport
	if code == "" {
		code = req.Origin
	}
	center := h.airports.Lookup(code)
	if center == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{
			"detail": "airport not found: " + strings.ToUpper(strings.TrimSpace(code)),
		})
		return
	}

	radius := req.RadiusNM
	if radius <= 0 {
		radius = localDefaultRadiusNM
	}

	nearby := h.airports.SearchNearby(center.Lat, center.Lon, radius, localMaxResults+1)

	// The center airport itself is always the nearest hit; drop it.
	filtered := make([]airports.NearbyAirport, 0, len(nearby))
	for _, n := range nearby {
		if n.Airport.ICAO == center.ICAO {
			continue
		}
		filtered = append(filtered, n)
	}
	if len(filtered) > localMaxResults {
		filtered = filtered[:localMaxResults]
	}

	WriteJSON(w, http.StatusOK, localPlanResponse{
		Airport:      center,
		RadiusNM:     radius,
		Airports:     filtered,
		Count:        len(filtered),
		PlannedAtUTC: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetAirport handles GET /api/airports/{code}.
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	a := h.airports.Lookup(code)
	if a == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{
			"detail": "airport not found: " + strings.ToUpper(strings.TrimSpace(code)),
		})
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

// SearchAirports handles GET /api/airports/search?q=...&limit=...
func (h *Handler) SearchAirports(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "query parameter q is required"})
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results := h.airports.Search(q, limit)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"results": results,
		"count":   len(results),
	})
}

// stationWeatherResponse is the GET /api/weather/{code} body.
type stationWeatherResponse struct {
	Station        string                 `json:"station"`
	METAR          string                 `json:"metar"`
	Parsed         weather.ParsedMETAR    `json:"parsed"`
	FlightCategory weather.FlightCategory `json:"flight_category"`
	Recommendation string                 `json:"recommendation"`
	Warnings       []string               `json:"warnings,omitempty"`
	FetchedAtUTC   string                 `json:"fetched_at_utc"`
}

// GetStationWeather handles GET /api/weather/{code}.
func (h *Handler) GetStationWeather(w http.ResponseWriter, r *http.Request) {
	if h.metar == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "weather service not available"})
		return
	}
	station := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	if station == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "station code is required"})
		return
	}

	raw, err := h.metar.FetchRaw(r.Context(), station)
	if err != nil {
		h.logger.Warn("METAR fetch failed", logger.String("station", station), logger.Error(err))
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "weather service unavailable"})
		return
	}
	if raw == "" {
		WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "no METAR available for " + station})
		return
	}

	parsed := weather.ParseMETAR(raw)
	ceiling := intToFloat(parsed.CeilingFt)
	wind := intToFloat(parsed.WindSpeedKt)
	category := weather.Categorize(parsed.VisibilitySM, ceiling)

	WriteJSON(w, http.StatusOK, stationWeatherResponse{
		Station:        station,
		METAR:          raw,
		Parsed:         parsed,
		FlightCategory: category,
		Recommendation: weather.RecommendationFor(category),
		Warnings:       weather.WarningsFor(parsed.VisibilitySM, ceiling, wind),
		FetchedAtUTC:   time.Now().UTC().Format(time.RFC3339),
	})
}

// forecastResponse is the GET /api/forecast body.
type forecastResponse struct {
	Lat         float64                   `json:"lat"`
	Lon         float64                   `json:"lon"`
	Days        int                       `json:"days"`
	Current     *weather.CurrentWeather   `json:"current,omitempty"`
	Daily       []weather.DailyForecast   `json:"daily"`
	BestWindows []weather.DepartureWindow `json:"best_departure_windows,omitempty"`
}

// GetForecast handles GET /api/forecast?lat=..&lon=..&days=..
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	if h.forecast == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "forecast service not available"})
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "lat and lon query parameters are required"})
		return
	}

	days := 7
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 16 {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "days must be between 1 and 16"})
			return
		}
		days = n
	}

	daily, err := h.forecast.GetDailyForecast(r.Context(), lat, lon, days)
	if err != nil {
		h.logger.Warn("Forecast fetch failed", logger.Error(err))
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "forecast service unavailable"})
		return
	}

	resp := forecastResponse{Lat: lat, Lon: lon, Days: days, Daily: daily}

	// Current conditions and departure windows are best-effort extras.
	if current, err := h.forecast.GetCurrentWeather(r.Context(), lat, lon); err == nil {
		resp.Current = current
	} else {
		h.logger.Warn("Current weather fetch failed", logger.Error(err))
	}
	if hourly, err := h.forecast.GetHourlyConditions(r.Context(), lat, lon, days); err == nil {
		resp.BestWindows = weather.BestDepartureWindows(hourly, 3, 5)
	} else {
		h.logger.Warn("Hourly forecast fetch failed", logger.Error(err))
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"time_utc": time.Now().UTC().Format(time.RFC3339),
	})
}

// Meta handles GET /api/meta.
func (h *Handler) Meta(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service":         "skyplan",
		"version":         Version,
		"airports":        h.airports.Count(),
		"airspace_zones":  h.zones.Count(),
		"airspace_loaded": h.zones.Loaded(),
	})
}

// WebSocket handles GET /ws.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

func (h *Handler) totalTimeout() time.Duration {
	return time.Duration(h.config.Planning.TotalTimeoutSecs * float64(time.Second))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	WriteJSON(w, planning.StatusCode(err), map[string]string{"detail": planning.Detail(err)})
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func intToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
