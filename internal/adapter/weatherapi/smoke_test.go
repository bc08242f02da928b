//go:build weatherapi

package weatherapi

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// These tests hit a live weather oracle and require WEATHER_API_URL.
// Run with: go test -tags=weatherapi ./internal/adapter/weatherapi/ -v -count=1

func TestSmoke_LatestWeather(t *testing.T) {
	base := os.Getenv("WEATHER_API_URL")
	if base == "" {
		t.Fatal("WEATHER_API_URL must be set to run smoke tests")
	}
	c := NewClient(base, os.Getenv("WEATHER_API_TOKEN"), 10*time.Second, observability.NewMetricsForTesting(), slog.Default())

	w, err := c.LatestWeather(context.Background(), "San Francisco")
	if errors.Is(err, domain.ErrNoDataAvailable) {
		t.Skip("oracle has no observation for San Francisco")
	}
	require.NoError(t, err)
	require.False(t, w.Timestamp.IsZero())
}
