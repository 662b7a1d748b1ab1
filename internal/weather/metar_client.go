package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/pkg/logger"
)

// METARClient fetches raw METARs from the aviationweather.gov data API with
// a TTL cache and stale-on-error fallback.
type METARClient struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
	cache      *TTLCache
	log        *logger.Logger
}

// NewMETARClient creates a METAR client.
func NewMETARClient(cfg config.WeatherConfig, log *logger.Logger) *METARClient {
	return &METARClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		cache: NewTTLCache(),
		log:   log.Named("metar-client"),
	}
}

func (c *METARClient) ttl() time.Duration {
	return time.Duration(c.cfg.METARCacheTTLSecs) * time.Second
}

// FetchRaw returns the raw METAR for one station, or "" when the station
// has no current report. Cached for the configured TTL; on fetch failure a
// stale cached report is returned instead of an error.
func (c *METARClient) FetchRaw(ctx context.Context, station string) (string, error) {
	if c.cfg.DisableMETARFetch {
		return "", nil
	}
	station = strings.ToUpper(strings.TrimSpace(station))
	if station == "" {
		return "", nil
	}

	return c.cache.GetOrSet("metar:"+station, c.ttl(), func() (string, error) {
		body, err := c.fetchWithRetry(ctx, []string{station})
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				return line, nil
			}
		}
		return "", nil
	})
}

// FetchRawBatch returns raw METARs for several stations in one request.
// Stations already cached are served from cache; missing stations that the
// API does not report map to "".
func (c *METARClient) FetchRawBatch(ctx context.Context, stations []string) map[string]string {
	out := make(map[string]string)

	var ordered []string
	seen := make(map[string]bool)
	for _, s := range stations {
		su := strings.ToUpper(strings.TrimSpace(s))
		if su == "" || seen[su] {
			continue
		}
		seen[su] = true
		ordered = append(ordered, su)
		out[su] = ""
	}

	if c.cfg.DisableMETARFetch || len(ordered) == 0 {
		return out
	}

	var missing []string
	for _, s := range ordered {
		if v, ok := c.cache.Get("metar:" + s); ok {
			out[s] = v
			continue
		}
		missing = append(missing, s)
	}
	if len(missing) == 0 {
		return out
	}

	body, err := c.fetchWithRetry(ctx, missing)
	if err != nil {
		// Best effort: fall back to stale entries.
		for _, s := range missing {
			if v, ok := c.cache.GetStale("metar:" + s); ok {
				out[s] = v
			}
		}
		c.log.Warn("batch METAR fetch failed, using stale data where available",
			logger.Int("stations", len(missing)),
			logger.Error(err))
		return out
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		code := strings.ToUpper(strings.Fields(line)[0])
		if _, wanted := out[code]; wanted {
			out[code] = line
			c.cache.Set("metar:"+code, line, c.ttl())
		}
	}
	return out
}

// fetchWithRetry performs the HTTP request with exponential backoff.
func (c *METARClient) fetchWithRetry(ctx context.Context, stations []string) (string, error) {
	reqURL := fmt.Sprintf("%s/metar?ids=%s&format=raw",
		c.cfg.METARBaseURL, url.QueryEscape(strings.Join(stations, ",")))

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.log.Info("Retrying METAR fetch",
				logger.Int("attempt", attempt),
				logger.String("backoff", backoff.String()))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", "skyplan")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("error making request to METAR API: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			return "", nil
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("error reading METAR response: %w", err)
			continue
		}
		return string(body), nil
	}
	return "", lastErr
}
