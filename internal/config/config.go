package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Data       DataConfig       `toml:"data"`       // Static dataset locations
	Planning   PlanningConfig   `toml:"planning"`   // Route planning runtime settings
	Weather    WeatherConfig    `toml:"wx"`         // Weather fetching and caching settings
	Terrain    TerrainConfig    `toml:"terrain"`    // Terrain elevation provider settings
	Alternates AlternatesConfig `toml:"alternates"` // Alternate airport recommendation settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (["*"] for all)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 recommended for streaming)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// DataConfig points at the static datasets the planner needs.
type DataConfig struct {
	AirportsFile string `toml:"airports_file"` // Path to the airport cache JSON file
	AirspaceFile string `toml:"airspace_file"` // Path to the airspace polygon JSON file
}

// PlanningConfig contains the planning runtime tunables.
type PlanningConfig struct {
	TotalTimeoutSecs    float64 `toml:"total_timeout_seconds"`    // Wall-clock budget for a whole planning request
	PhaseTimeoutSecs    float64 `toml:"phase_timeout_seconds"`    // Budget for each enrichment phase
	MaxConcurrency      int     `toml:"max_concurrency"`          // Concurrent planning operations (0 disables limiting)
	QueueTimeoutSecs    float64 `toml:"queue_timeout_seconds"`    // Max wait for an admission slot (0 = wait indefinitely)
	EnrichmentWorkers   int     `toml:"enrichment_workers"`       // Worker pool size for terrain/wind/alternates
	MaxLegDistanceNM    float64 `toml:"max_leg_distance_nm"`      // Ceiling for computed fuel-stop leg distance
	DefaultRefuelMins   int     `toml:"default_refuel_minutes"`   // Ground time charged at each fuel stop
	AirspaceBufferNM    float64 `toml:"airspace_buffer_nm"`       // Detour offset from airspace boundaries
	TerrainSampleNM     float64 `toml:"terrain_sample_interval_nm"` // Sampling interval for terrain checks along a leg
	EconomyLegPenaltyNM float64 `toml:"economy_leg_penalty_nm"`   // Extra per-leg cost under the economy fuel strategy
}

// WeatherConfig contains settings for the weather clients and cache.
type WeatherConfig struct {
	OpenMeteoBaseURL      string `toml:"open_meteo_base_url"`     // Open-Meteo forecast API base URL
	METARBaseURL          string `toml:"metar_base_url"`          // aviationweather.gov data API base URL
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP timeout for weather requests
	MaxRetries            int    `toml:"max_retries"`             // Retry attempts for failed fetches
	METARCacheTTLSecs     int    `toml:"metar_cache_ttl_seconds"` // TTL for cached METAR entries
	DisableMETARFetch     bool   `toml:"disable_metar_fetch"`     // Skip METAR fetching entirely (offline/dev mode)
}

// TerrainConfig contains settings for the elevation provider.
type TerrainConfig struct {
	BaseURL               string `toml:"base_url"`                // OpenTopography global DEM API URL
	APIKey                string `toml:"api_key"`                 // OpenTopography API key (env OPENTOPOGRAPHY_API_KEY overrides)
	DEMType               string `toml:"dem_type"`                // DEM dataset identifier (e.g., "SRTMGL1")
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP timeout for elevation requests
	CacheSize             int    `toml:"cache_size"`              // Max entries in the elevation point cache
}

// AlternatesConfig contains settings for alternate recommendations.
type AlternatesConfig struct {
	RadiusNM              float64 `toml:"radius_nm"`               // Search radius around the destination
	Limit                 int     `toml:"limit"`                   // Max alternates returned
	MaxCandidates         int     `toml:"max_candidates"`          // Max nearby airports considered
	MaxMETARFetch         int     `toml:"max_metar_fetch"`         // METAR fetch budget per request
	MinVisibilitySM       float64 `toml:"min_visibility_sm"`       // Hard floor; candidates below are dropped
	MinCeilingFt          int     `toml:"min_ceiling_ft"`          // Hard floor; candidates below are dropped
	PreferredVisibilitySM float64 `toml:"preferred_visibility_sm"` // Soft floor; candidates below are penalized
	PreferredCeilingFt    int     `toml:"preferred_ceiling_ft"`    // Soft floor; candidates below are penalized
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Environment always wins for secrets so keys never have to live in the file.
	if key := os.Getenv("OPENTOPOGRAPHY_API_KEY"); key != "" {
		config.Terrain.APIKey = key
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Default returns a configuration populated with working defaults so a
// partial TOML file only has to override what it cares about.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Host:               "0.0.0.0",
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    30,
			WriteTimeoutSecs:   0,
			IdleTimeoutSecs:    60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Data: DataConfig{
			AirportsFile: "data/airports_cache.json",
			AirspaceFile: "data/airspaces_us.json",
		},
		Planning: PlanningConfig{
			TotalTimeoutSecs:    120,
			PhaseTimeoutSecs:    30,
			MaxConcurrency:      4,
			QueueTimeoutSecs:    0,
			EnrichmentWorkers:   4,
			MaxLegDistanceNM:    150,
			DefaultRefuelMins:   30,
			AirspaceBufferNM:    5,
			TerrainSampleNM:     10,
			EconomyLegPenaltyNM: 25,
		},
		Weather: WeatherConfig{
			OpenMeteoBaseURL:      "https://api.open-meteo.com/v1/forecast",
			METARBaseURL:          "https://aviationweather.gov/api/data",
			RequestTimeoutSeconds: 20,
			MaxRetries:            2,
			METARCacheTTLSecs:     300,
		},
		Terrain: TerrainConfig{
			BaseURL:               "https://portal.opentopography.org/API/globaldem",
			DEMType:               "SRTMGL1",
			RequestTimeoutSeconds: 30,
			CacheSize:             4096,
		},
		Alternates: AlternatesConfig{
			RadiusNM:              75,
			Limit:                 5,
			MaxCandidates:         30,
			MaxMETARFetch:         15,
			MinVisibilitySM:       3,
			MinCeilingFt:          1000,
			PreferredVisibilitySM: 5,
			PreferredCeilingFt:    2000,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Planning.TotalTimeoutSecs <= 0 {
		return fmt.Errorf("total_timeout_seconds must be greater than 0")
	}
	if c.Planning.PhaseTimeoutSecs <= 0 {
		return fmt.Errorf("phase_timeout_seconds must be greater than 0")
	}
	if c.Planning.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be 0 or greater")
	}
	if c.Planning.EnrichmentWorkers < 1 {
		return fmt.Errorf("enrichment_workers must be at least 1")
	}
	if c.Planning.MaxLegDistanceNM <= 0 {
		return fmt.Errorf("max_leg_distance_nm must be greater than 0")
	}

	if c.Weather.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be greater than 0")
	}
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be 0 or greater")
	}
	if c.Weather.METARCacheTTLSecs <= 0 {
		return fmt.Errorf("metar_cache_ttl_seconds must be greater than 0")
	}

	if c.Alternates.Limit <= 0 {
		return fmt.Errorf("alternates limit must be greater than 0")
	}

	return nil
}
