package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skyplan/skyplan/internal/config"
	"github.com/skyplan/skyplan/pkg/logger"
)

// CurrentWeather is the Open-Meteo current conditions block. Temperatures
// are Fahrenheit and wind speeds knots (requested as such).
type CurrentWeather struct {
	TemperatureF     float64 `json:"temperature"`
	WindSpeedKt      float64 `json:"windspeed"`
	WindDirectionDeg float64 `json:"winddirection"`
	WeatherCode      int     `json:"weathercode"`
	Time             string  `json:"time"`
}

// DailyForecast is one day of the Open-Meteo daily forecast.
type DailyForecast struct {
	Date            string   `json:"date"`
	TempMaxF        *float64 `json:"temp_max_f"`
	TempMinF        *float64 `json:"temp_min_f"`
	PrecipitationMM *float64 `json:"precipitation_mm"`
	WindSpeedMaxKt  *float64 `json:"wind_speed_max_kt"`
}

type openMeteoResponse struct {
	CurrentWeather *CurrentWeather `json:"current_weather"`
	Daily          *struct {
		Time             []string   `json:"time"`
		TempMax          []*float64 `json:"temperature_2m_max"`
		TempMin          []*float64 `json:"temperature_2m_min"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		WindSpeedMax     []*float64 `json:"windspeed_10m_max"`
	} `json:"daily"`
	Hourly *struct {
		Time          []string  `json:"time"`
		Visibility    []float64 `json:"visibility"`
		CloudCover    []float64 `json:"cloudcover"`
		Precipitation []float64 `json:"precipitation"`
		WindSpeed     []float64 `json:"windspeed_10m"`
	} `json:"hourly"`
}

// OpenMeteoClient fetches current conditions and daily forecasts from the
// Open-Meteo forecast API.
type OpenMeteoClient struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewOpenMeteoClient creates an Open-Meteo client.
func NewOpenMeteoClient(cfg config.WeatherConfig, log *logger.Logger) *OpenMeteoClient {
	return &OpenMeteoClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		log: log.Named("open-meteo"),
	}
}

// GetCurrentWeather returns current conditions at a point.
func (c *OpenMeteoClient) GetCurrentWeather(ctx context.Context, lat, lon float64) (*CurrentWeather, error) {
	params := url.Values{
		"latitude":         {formatCoord(lat)},
		"longitude":        {formatCoord(lon)},
		"current_weather":  {"true"},
		"timezone":         {"UTC"},
		"temperature_unit": {"fahrenheit"},
		"windspeed_unit":   {"kn"},
	}

	var payload openMeteoResponse
	if err := c.fetch(ctx, params, &payload); err != nil {
		return nil, err
	}
	if payload.CurrentWeather == nil {
		return nil, fmt.Errorf("unexpected Open-Meteo current_weather schema")
	}
	return payload.CurrentWeather, nil
}

// CurrentWind adapts the client to the planner's wind provider interface.
func (c *OpenMeteoClient) CurrentWind(ctx context.Context, lat, lon float64) (float64, int, error) {
	cw, err := c.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	return cw.WindSpeedKt, int(cw.WindDirectionDeg), nil
}

// GetDailyForecast returns a daily forecast for 1 to 16 days.
func (c *OpenMeteoClient) GetDailyForecast(ctx context.Context, lat, lon float64, days int) ([]DailyForecast, error) {
	if days < 1 || days > 16 {
		return nil, fmt.Errorf("days must be between 1 and 16")
	}

	params := url.Values{
		"latitude":         {formatCoord(lat)},
		"longitude":        {formatCoord(lon)},
		"daily":            {"temperature_2m_max,temperature_2m_min,precipitation_sum,windspeed_10m_max"},
		"forecast_days":    {strconv.Itoa(days)},
		"timezone":         {"UTC"},
		"temperature_unit": {"fahrenheit"},
		"windspeed_unit":   {"kn"},
	}

	var payload openMeteoResponse
	if err := c.fetch(ctx, params, &payload); err != nil {
		return nil, err
	}
	if payload.Daily == nil {
		return nil, fmt.Errorf("unexpected Open-Meteo daily schema")
	}

	daily := payload.Daily
	out := make([]DailyForecast, 0, len(daily.Time))
	for i, date := range daily.Time {
		d := DailyForecast{Date: date}
		if i < len(daily.TempMax) {
			d.TempMaxF = daily.TempMax[i]
		}
		if i < len(daily.TempMin) {
			d.TempMinF = daily.TempMin[i]
		}
		if i < len(daily.PrecipitationSum) {
			d.PrecipitationMM = daily.PrecipitationSum[i]
		}
		if i < len(daily.WindSpeedMax) {
			d.WindSpeedMaxKt = daily.WindSpeedMax[i]
		}
		out = append(out, d)
	}
	return out, nil
}

// GetHourlyConditions returns hourly conditions for 1 to 16 days, for
// departure window scoring. Visibility arrives in meters.
func (c *OpenMeteoClient) GetHourlyConditions(ctx context.Context, lat, lon float64, days int) ([]HourlyConditions, error) {
	if days < 1 || days > 16 {
		return nil, fmt.Errorf("days must be between 1 and 16")
	}

	params := url.Values{
		"latitude":       {formatCoord(lat)},
		"longitude":      {formatCoord(lon)},
		"hourly":         {"visibility,cloudcover,precipitation,windspeed_10m"},
		"forecast_days":  {strconv.Itoa(days)},
		"timezone":       {"UTC"},
		"windspeed_unit": {"kn"},
	}

	var payload openMeteoResponse
	if err := c.fetch(ctx, params, &payload); err != nil {
		return nil, err
	}
	if payload.Hourly == nil {
		return nil, fmt.Errorf("unexpected Open-Meteo hourly schema")
	}

	hourly := payload.Hourly
	out := make([]HourlyConditions, 0, len(hourly.Time))
	for i, ts := range hourly.Time {
		h := HourlyConditions{Time: ts}
		if i < len(hourly.Visibility) {
			v := hourly.Visibility[i]
			h.VisibilityM = &v
		}
		if i < len(hourly.CloudCover) {
			v := hourly.CloudCover[i]
			h.CloudCoverPct = &v
		}
		if i < len(hourly.Precipitation) {
			v := hourly.Precipitation[i]
			h.PrecipitationMM = &v
		}
		if i < len(hourly.WindSpeed) {
			v := hourly.WindSpeed[i]
			h.WindSpeedKt = &v
		}
		out = append(out, h)
	}
	return out, nil
}

// fetch performs the request with retry and exponential backoff.
func (c *OpenMeteoClient) fetch(ctx context.Context, params url.Values, target interface{}) error {
	reqURL := c.cfg.OpenMeteoBaseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.log.Info("Retrying Open-Meteo fetch",
				logger.Int("attempt", attempt),
				logger.String("backoff", backoff.String()))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("error making request to Open-Meteo: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("error decoding Open-Meteo response: %w", err)
			continue
		}
		return nil
	}
	return lastErr
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
