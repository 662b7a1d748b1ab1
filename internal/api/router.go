package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/internal/websocket"
	"github.com/skyplan/skyplan/pkg/logger"
)

// Router wires the API handlers into a chi router.
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates the API router.
func NewRouter(routePlanner RoutePlanner, gate *planning.Gate, apts *airports.Service, zones *airspace.Service,
	metar METARSource, forecast ForecastSource, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Router {
	handler := NewHandler(routePlanner, gate, apts, zones, metar, forecast, wsServer, cfg, log)
	if wsServer != nil {
		wsServer.SetMessageHandler(NewPlanMessageHandler(handler, log))
	}
	return &Router{
		handler: handler,
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the HTTP handler with all routes and middleware attached.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedOrigins: rt.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	r.Use(c.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/plan", rt.handler.Plan)
		r.Post("/plan/stream", rt.handler.StreamPlan)

		r.Get("/airports/search", rt.handler.SearchAirports)
		r.Get("/airports/{code}", rt.handler.GetAirport)

		r.Get("/weather/{code}", rt.handler.GetStationWeather)
		r.Get("/forecast", rt.handler.GetForecast)

		r.Get("/health", rt.handler.Health)
		r.Get("/meta", rt.handler.Meta)
	})

	r.Get("/ws", rt.handler.WebSocket)

	return r
}
