// Package meteo is the HTTP client for the Open-Meteo geocoding and
// forecast APIs. Concurrent identical requests are collapsed into a single
// upstream call, and the total outbound rate is capped so a burst of cache
// misses cannot hammer the upstream.
package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cosmoweather/internal/models"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	GeocodeURL  string
	ForecastURL string
	Timeout     time.Duration
	// RPS/Burst bound outbound calls; RPS <= 0 disables the limiter.
	RPS   int
	Burst int
}

type Client struct {
	httpClient  *http.Client
	geocodeURL  string
	forecastURL string
	limiter     *rate.Limiter
	sf          singleflight.Group
}

type statusError struct {
	status int
	body   string
}

func (e statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("upstream returned status %d", e.status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.status, e.body)
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = cfg.Burst
		if burst <= 0 {
			burst = cfg.RPS
		}
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		geocodeURL:  cfg.GeocodeURL,
		forecastURL: cfg.ForecastURL,
		limiter:     rate.NewLimiter(limit, burst),
	}
}

// Suggestion is a raw geocoding match. Coordinates are pointers because the
// upstream may return a match without them; callers decide whether to pass
// the nulls through (autocomplete) or reject the match (weather lookup).
type Suggestion struct {
	Name      string   `json:"name"`
	Country   string   `json:"country,omitempty"`
	Admin1    string   `json:"admin1,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Search returns up to limit geocoding matches for a partial or full place
// name. An empty result list is not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("language", "en")
	params.Set("format", "json")

	body, err := c.fetchJSON(ctx, c.geocodeURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}

	var decoded struct {
		Results []Suggestion `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if decoded.Results == nil {
		return []Suggestion{}, nil
	}
	return decoded.Results, nil
}

// Forecast fetches current weather plus the requested hourly series for a
// coordinate pair.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, hourly []string) (models.Forecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current_weather", "true")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")
	if len(hourly) > 0 {
		params.Set("hourly", strings.Join(hourly, ","))
	}

	body, err := c.fetchJSON(ctx, c.forecastURL+"?"+params.Encode())
	if err != nil {
		return models.Forecast{}, fmt.Errorf("fetching forecast: %w", err)
	}

	var forecast models.Forecast
	if err := json.Unmarshal(body, &forecast); err != nil {
		return models.Forecast{}, fmt.Errorf("decoding forecast response: %w", err)
	}
	return forecast, nil
}

// fetchJSON performs a GET, de-duplicated per URL via singleflight so that
// racing cache misses for the same query share one upstream round trip.
func (c *Client) fetchJSON(ctx context.Context, u string) ([]byte, error) {
	v, err, _ := c.sf.Do(u, func() (any, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
