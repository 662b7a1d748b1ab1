package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyplan/skyplan/internal/airports"
	"github.com/skyplan/skyplan/internal/airspace"
	"github.com/skyplan/skyplan/internal/alternates"
	"github.com/skyplan/skyplan/internal/api"
	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/planner"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/internal/terrain"
	"github.com/skyplan/skyplan/internal/weather"
	"github.com/skyplan/skyplan/internal/websocket"
	"github.com/skyplan/skyplan/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	api.Version = Version
	log.Info("Starting skyplan server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Load static datasets
	airportService, err := airports.NewService(cfg.Data.AirportsFile, log)
	if err != nil {
		log.Error("Failed to load airport dataset", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Airport dataset loaded", logger.Int("airports", airportService.Count()))

	airspaceService, err := airspace.NewService(cfg.Data.AirspaceFile, log)
	if err != nil {
		log.Error("Failed to load airspace dataset", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Airspace dataset loaded",
		logger.Int("zones", airspaceService.Count()),
		logger.Bool("loaded", airspaceService.Loaded()))

	// Create weather clients
	metarClient := weather.NewMETARClient(cfg.Weather, log)
	openMeteoClient := weather.NewOpenMeteoClient(cfg.Weather, log)

	// Create terrain service
	terrainService, err := terrain.NewService(cfg.Terrain, cfg.Planning.TerrainSampleNM, log)
	if err != nil {
		log.Error("Failed to create terrain service", logger.Error(err))
		os.Exit(1)
	}
	if cfg.Terrain.APIKey == "" {
		log.Warn("No OpenTopography API key configured; terrain checks will fail until one is set")
	}

	// Create alternates recommender
	alternatesService := alternates.NewService(cfg.Alternates, airportService, metarClient, log)

	// Create the route planner and its admission gate
	plannerService := planner.NewService(
		cfg.Planning,
		airportService,
		airspaceService,
		openMeteoClient,
		terrainService,
		alternatesService,
		log,
	)
	gate := planning.NewGate(
		cfg.Planning.MaxConcurrency,
		time.Duration(cfg.Planning.QueueTimeoutSecs*float64(time.Second)),
	)

	// Create WebSocket server and plan bridge
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Create API router
	router := api.NewRouter(plannerService, gate, airportService, airspaceService,
		metarClient, openMeteoClient, wsServer, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Tell connected websocket clients to reconnect elsewhere before the
	// HTTP listener stops accepting their pings.
	wsServer.Broadcast(&websocket.Message{
		Type: "server_shutdown",
		Data: map[string]any{"reason": "shutdown"},
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Server fully stopped")
}
