// Package terrain resolves ground elevation along a route using the
// OpenTopography global DEM API. Point lookups are cached in an LRU keyed
// by rounded coordinates.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/internal/geo"
	"github.com/skyplan/skyplan/pkg/logger"
)

const metersToFeet = 3.28084

// queryEps is the half-width of the bounding box requested around a point.
const queryEps = 1e-4

// ErrMissingAPIKey means no OpenTopography key is configured.
var ErrMissingAPIKey = errors.New("missing OpenTopography API key for terrain requests")

// Service fetches and caches terrain elevations.
type Service struct {
	cfg        config.TerrainConfig
	sampleNM   float64
	httpClient *http.Client
	cache      *lru.Cache[string, float64]
	log        *logger.Logger
}

// NewService creates the terrain service. sampleNM is the interval at which
// legs are sampled for the highest-terrain scan.
func NewService(cfg config.TerrainConfig, sampleNM float64, log *logger.Logger) (*Service, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, float64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create terrain cache: %w", err)
	}
	if sampleNM <= 0 {
		sampleNM = 10
	}
	return &Service{
		cfg:      cfg,
		sampleNM: sampleNM,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		cache: cache,
		log:   log.Named("terrain"),
	}, nil
}

// ElevationFt returns the terrain elevation at a point in feet, or false
// when the DEM has no data there.
func (s *Service) ElevationFt(ctx context.Context, lat, lon float64) (float64, bool, error) {
	m, ok, err := s.elevationM(ctx, lat, lon)
	if err != nil || !ok {
		return 0, ok, err
	}
	return m * metersToFeet, true, nil
}

// MaxElevationFt returns the highest terrain along the polyline, sampling
// each segment at the configured interval. Points without DEM coverage are
// skipped; with no coverage at all the result is 0 with no error.
func (s *Service) MaxElevationFt(ctx context.Context, points []geo.Point) (float64, error) {
	maxFt := 0.0
	found := false
	for i := 0; i < len(points); i++ {
		samples := []geo.Point{points[i]}
		if i+1 < len(points) {
			samples = geo.SamplePoints(points[i], points[i+1], s.sampleNM)
			samples = samples[:len(samples)-1] // endpoint belongs to the next segment
		}
		for _, p := range samples {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			ft, ok, err := s.ElevationFt(ctx, p.Lat, p.Lon)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			if !found || ft > maxFt {
				maxFt = ft
				found = true
			}
		}
	}
	return maxFt, nil
}

func cacheKey(lat, lon float64) string {
	// Round to ~11 m so nearby samples share entries.
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func (s *Service) elevationM(ctx context.Context, lat, lon float64) (float64, bool, error) {
	key := cacheKey(lat, lon)
	if v, ok := s.cache.Get(key); ok {
		return v, true, nil
	}

	if s.cfg.APIKey == "" {
		return 0, false, ErrMissingAPIKey
	}

	params := url.Values{
		"demtype":      {s.cfg.DEMType},
		"south":        {formatCoord(lat - queryEps)},
		"north":        {formatCoord(lat + queryEps)},
		"west":         {formatCoord(lon - queryEps)},
		"east":         {formatCoord(lon + queryEps)},
		"outputFormat": {"AAIGrid"},
		"API_Key":      {s.cfg.APIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, false, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("error making request to OpenTopography: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("unexpected status code from OpenTopography: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false, err
	}

	m, ok := ParseAAIGridElevationM(string(body))
	if !ok {
		return 0, false, nil
	}
	s.cache.Add(key, m)
	return m, true, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
