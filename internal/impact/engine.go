// Package impact predicts the damage and disruption of a disaster at a
// location from its demographic model parameters.
package impact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/history"
	"github.com/couchcryptid/storm-parametric-settlement/internal/locstore"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// DefaultHistoryCapacity bounds the prediction log per location.
const DefaultHistoryCapacity = 256

// Models supplies per-location model parameters.
type Models interface {
	Model(location string) (domain.ModelParameters, bool)
}

// Engine computes predictions and keeps a bounded log of them per location.
type Engine struct {
	models   Models
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	capacity int
	history  *locstore.Store[*history.Ring[domain.ImpactPrediction]]
}

// NewEngine creates an engine. A non-positive capacity uses the default.
func NewEngine(m Models, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, capacity int) *Engine {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Engine{
		models:   m,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		capacity: capacity,
		history:  locstore.New[*history.Ring[domain.ImpactPrediction]](),
	}
}

// Predict estimates the impact of a t disaster of the given severity at
// location under weather w, and appends it to the location's history.
func (e *Engine) Predict(_ context.Context, location string, t domain.DisasterType, severity uint64, w domain.WeatherData) (domain.ImpactPrediction, error) {
	if !t.Valid() {
		return domain.ImpactPrediction{}, fmt.Errorf("predict impact: %w: %d", domain.ErrUnknownDisasterType, uint8(t))
	}
	params, ok := e.models.Model(location)
	if !ok {
		e.metrics.ImpactPredictions.WithLabelValues(t.String(), "unsupported_location").Inc()
		return domain.ImpactPrediction{}, fmt.Errorf("predict impact for %q: %w", location, domain.ErrUnsupportedLocation)
	}

	p := compute(params, t, severity, w)
	p.Location = location
	p.PredictedAt = e.clock.Now().UTC()

	ring := e.history.Update(location, func(cur *history.Ring[domain.ImpactPrediction], ok bool) *history.Ring[domain.ImpactPrediction] {
		if ok {
			return cur
		}
		return history.NewRing[domain.ImpactPrediction](e.capacity)
	})
	ring.Append(p)

	e.metrics.ImpactPredictions.WithLabelValues(t.String(), "success").Inc()
	e.logger.Debug("impact predicted",
		"location", location, "disaster_type", t.String(), "severity", severity,
		"estimated_damage_usd", p.EstimatedDamageUSD, "confidence", p.Confidence)
	return p, nil
}

func compute(params domain.ModelParameters, t domain.DisasterType, severity uint64, w domain.WeatherData) domain.ImpactPrediction {
	area := AffectedArea(t, severity)
	population := mulDiv(1, area, params.PopulationDensity)
	buildings := mulDiv(1, area, params.BuildingDensity)
	multiplier := DamageMultiplier(t, severity)
	damage := EstimatedDamage(buildings, params.AveragePropertyValue, multiplier)
	infra := InfrastructureRisk(t, severity, params.InfrastructureScore)

	return domain.ImpactPrediction{
		DisasterType:           t,
		Severity:               severity,
		AffectedAreaKM2:        area,
		PopulationAffected:     population,
		BuildingsAffected:      buildings,
		DamageMultiplier:       multiplier,
		EstimatedDamageUSD:     damage,
		InfrastructureRisk:     infra,
		EconomicDisruptionDays: DisruptionDays(infra, damage, population),
		AffectedFacilities:     AffectedFacilities(params.CriticalInfrastructure, severity),
		Confidence:             Confidence(t, severity, w),
	}
}

// History returns up to limit of the most recent predictions for location,
// oldest first. A non-positive limit returns everything retained.
func (e *Engine) History(_ context.Context, location string, limit int) []domain.ImpactPrediction {
	ring, ok := e.history.Get(location)
	if !ok {
		return nil
	}
	all := ring.Snapshot()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}
