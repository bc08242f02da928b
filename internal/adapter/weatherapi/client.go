// Package weatherapi reads the latest observation for a location from an
// HTTP weather oracle.
package weatherapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// Client implements domain.WeatherFeed against GET {baseURL}/weather?location=...
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a weather API client. An empty token sends no
// Authorization header.
func NewClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// LatestWeather fetches the current observation for location. A 404 or an
// empty body maps to domain.ErrNoDataAvailable.
func (c *Client) LatestWeather(ctx context.Context, location string) (domain.WeatherData, error) {
	u := c.baseURL + "/weather?" + url.Values{"location": {location}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.WeatherData{}, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherData{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.WeatherRequests.WithLabelValues("empty").Inc()
		return domain.WeatherData{}, fmt.Errorf("weather for %q: %w", location, domain.ErrNoDataAvailable)
	case resp.StatusCode != http.StatusOK:
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.WeatherData{}, fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body)
	}

	var obs observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherData{}, fmt.Errorf("decode response: %w", err)
	}
	if obs.ObservedAt.IsZero() {
		c.metrics.WeatherRequests.WithLabelValues("empty").Inc()
		return domain.WeatherData{}, fmt.Errorf("weather for %q: %w", location, domain.ErrNoDataAvailable)
	}

	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather fetched", "location", location, "observed_at", obs.ObservedAt)
	return obs.toDomain(), nil
}

// Weather API response type.

type observation struct {
	Temperature int64     `json:"temperature"`
	WindSpeed   int64     `json:"wind_speed"`
	Rainfall    int64     `json:"rainfall"`
	Humidity    int64     `json:"humidity"`
	Pressure    int64     `json:"pressure"`
	ObservedAt  time.Time `json:"observed_at"`
}

func (o observation) toDomain() domain.WeatherData {
	return domain.WeatherData{
		Temperature: o.Temperature,
		WindSpeed:   o.WindSpeed,
		Rainfall:    o.Rainfall,
		Humidity:    o.Humidity,
		Pressure:    o.Pressure,
		Timestamp:   o.ObservedAt.UTC(),
	}
}
