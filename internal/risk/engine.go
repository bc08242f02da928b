// Package risk computes location risk scores from static geography, live
// weather, season and recorded disaster history. Scores are advisory and
// never gate settlement.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/history"
	"github.com/couchcryptid/storm-parametric-settlement/internal/locstore"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// DefaultHistoryCapacity bounds the historical event log per location.
const DefaultHistoryCapacity = 1024

// Profiles supplies static geography.
type Profiles interface {
	Profile(location string) (domain.LocationProfile, bool)
}

// Options tunes the engine.
type Options struct {
	Season          SeasonMode
	HistoryCapacity int
}

// Engine owns the current risk snapshot and historical log per location.
type Engine struct {
	profiles Profiles
	weather  domain.WeatherFeed
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options

	current *locstore.Store[domain.RiskScore]
	history *locstore.Store[*history.Ring[domain.HistoricalEvent]]
}

// NewEngine creates an engine with empty stores.
func NewEngine(p Profiles, w domain.WeatherFeed, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	if opts.Season == "" {
		opts.Season = SeasonEpoch30
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	return &Engine{
		profiles: p,
		weather:  w,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
		current:  locstore.New[domain.RiskScore](),
		history:  locstore.New[*history.Ring[domain.HistoricalEvent]](),
	}
}

// Calculate scores location for t and stores the result as the location's
// current snapshot, replacing any previous one.
func (e *Engine) Calculate(ctx context.Context, location string, t domain.DisasterType) (domain.RiskScore, error) {
	score, err := e.calculate(ctx, location, t)
	if err != nil {
		e.metrics.RiskCalculations.WithLabelValues(t.String(), outcome(err)).Inc()
		return domain.RiskScore{}, err
	}
	e.current.Put(location, score)
	e.metrics.RiskCalculations.WithLabelValues(t.String(), "success").Inc()
	e.logger.Debug("risk score calculated",
		"location", location, "disaster_type", t.String(), "final_score", score.FinalScore)
	return score, nil
}

func (e *Engine) calculate(ctx context.Context, location string, t domain.DisasterType) (domain.RiskScore, error) {
	if !t.Valid() {
		return domain.RiskScore{}, fmt.Errorf("calculate risk: %w: %d", domain.ErrUnknownDisasterType, uint8(t))
	}
	profile, ok := e.profiles.Profile(location)
	if !ok {
		return domain.RiskScore{}, fmt.Errorf("calculate risk for %q: %w", location, domain.ErrUnsupportedLocation)
	}

	weather := uint64(multiplierBase)
	if t != domain.Earthquake {
		w, err := e.weather.LatestWeather(ctx, location)
		if err != nil {
			return domain.RiskScore{}, fmt.Errorf("calculate risk for %q: %w", location, err)
		}
		weather = WeatherMultiplier(w, t)
	}

	now := e.clock.Now()
	var past []domain.HistoricalEvent
	if ring, ok := e.history.Get(location); ok {
		past = ring.Filter(func(h domain.HistoricalEvent) bool { return h.DisasterType == t })
	}

	score := domain.RiskScore{
		Location:             location,
		DisasterType:         t,
		BaseScore:            BaseScore(profile, t),
		WeatherMultiplier:    weather,
		SeasonalMultiplier:   SeasonalMultiplier(t, Month(now, e.opts.Season)),
		HistoricalMultiplier: HistoricalMultiplier(past, t, now),
		ComputedAt:           now.UTC(),
	}
	score.FinalScore = FinalScore(score.BaseScore, score.WeatherMultiplier, score.SeasonalMultiplier, score.HistoricalMultiplier)
	return score, nil
}

// Current returns the latest snapshot for location.
func (e *Engine) Current(_ context.Context, location string) (domain.RiskScore, error) {
	s, ok := e.current.Get(location)
	if !ok {
		return domain.RiskScore{}, fmt.Errorf("risk score for %q: %w", location, domain.ErrNoDataAvailable)
	}
	return s, nil
}

// RecordHistoricalEvent appends a past disaster to the location's log. No
// check is made against the event registry.
func (e *Engine) RecordHistoricalEvent(_ context.Context, location string, t domain.DisasterType, severity uint64, damage decimal.Decimal) domain.HistoricalEvent {
	ev := domain.HistoricalEvent{
		Location:     location,
		DisasterType: t,
		Severity:     severity,
		DamageAmount: damage,
		RecordedAt:   e.clock.Now().UTC(),
	}
	ring := e.history.Update(location, func(cur *history.Ring[domain.HistoricalEvent], ok bool) *history.Ring[domain.HistoricalEvent] {
		if ok {
			return cur
		}
		return history.NewRing[domain.HistoricalEvent](e.opts.HistoryCapacity)
	})
	ring.Append(ev)
	e.logger.Info("historical event recorded", "location", location, "disaster_type", t.String(), "severity", severity)
	return ev
}

// History returns the retained historical events for location, oldest first.
func (e *Engine) History(_ context.Context, location string) []domain.HistoricalEvent {
	ring, ok := e.history.Get(location)
	if !ok {
		return nil
	}
	return ring.Snapshot()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedLocation):
		return "unsupported_location"
	case errors.Is(err, domain.ErrNoDataAvailable):
		return "no_data"
	default:
		return "error"
	}
}
