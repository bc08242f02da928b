package weatherapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testToken, 5*time.Second, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_LatestWeather_Success(t *testing.T) {
	observed := time.Date(2025, 8, 28, 14, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "New Orleans", r.URL.Query().Get("location"))
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(observation{
			Temperature: 29,
			WindSpeed:   175,
			Rainfall:    240,
			Humidity:    92,
			Pressure:    920,
			ObservedAt:  observed,
		}))
	}))
	defer srv.Close()

	got, err := testClient(srv.URL+"/").LatestWeather(context.Background(), "New Orleans")
	require.NoError(t, err)
	assert.Equal(t, domain.WeatherData{
		Temperature: 29, WindSpeed: 175, Rainfall: 240, Humidity: 92, Pressure: 920, Timestamp: observed,
	}, got)
}

func TestClient_LatestWeather_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LatestWeather(context.Background(), "Atlantis")
	require.ErrorIs(t, err, domain.ErrNoDataAvailable)
}

func TestClient_LatestWeather_EmptyObservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LatestWeather(context.Background(), "Miami")
	require.ErrorIs(t, err, domain.ErrNoDataAvailable)
}

func TestClient_LatestWeather_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LatestWeather(context.Background(), "Miami")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoDataAvailable)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_LatestWeather_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LatestWeather(context.Background(), "Miami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_LatestWeather_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).LatestWeather(ctx, "Miami")
	require.Error(t, err)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, observability.NewMetricsForTesting(), slog.Default())
	_, err := c.LatestWeather(context.Background(), "Miami")
	require.ErrorIs(t, err, domain.ErrNoDataAvailable)
}
