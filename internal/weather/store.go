// Package weather is the in-process weather oracle: the latest observation
// per location, pushed by an external feed.
package weather

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/locstore"
)

// Store keeps the most recent observation per location.
type Store struct {
	clock clockwork.Clock
	data  *locstore.Store[domain.WeatherData]
}

// NewStore returns an empty oracle table.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{clock: clock, data: locstore.New[domain.WeatherData]()}
}

// Update records an observation, stamping it with the current time when the
// timestamp is zero.
func (s *Store) Update(_ context.Context, location string, w domain.WeatherData) domain.WeatherData {
	if w.Timestamp.IsZero() {
		w.Timestamp = s.clock.Now().UTC()
	}
	s.data.Put(location, w)
	return w
}

// LatestWeather implements domain.WeatherFeed.
func (s *Store) LatestWeather(_ context.Context, location string) (domain.WeatherData, error) {
	w, ok := s.data.Get(location)
	if !ok {
		return domain.WeatherData{}, fmt.Errorf("weather for %q: %w", location, domain.ErrNoDataAvailable)
	}
	return w, nil
}

// Locations lists locations with an observation.
func (s *Store) Locations() []string {
	return s.data.Locations()
}
