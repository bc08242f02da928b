package impact_test

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/impact"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
	"github.com/couchcryptid/storm-parametric-settlement/internal/refdata"
)

var at = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, capacity int) (*impact.Engine, *refdata.Store) {
	t.Helper()
	ref := refdata.New()
	ref.SetModel("Testville", domain.ModelParameters{
		PopulationDensity:      1000,
		BuildingDensity:        400,
		AveragePropertyValue:   250_000,
		InfrastructureScore:    50,
		CriticalInfrastructure: []string{"Hospital", "Power Plant", "Airport", "Bridge"},
	})
	return impact.NewEngine(ref, clockwork.NewFakeClockAt(at), slog.Default(), observability.NewMetricsForTesting(), capacity), ref
}

func TestPredict_Earthquake(t *testing.T) {
	e, _ := newEngine(t, 0)
	p, err := e.Predict(context.Background(), "Testville", domain.Earthquake, 60, domain.WeatherData{})
	require.NoError(t, err)

	// area 360, mult 10+36, damage 144000×250000×46/100
	assert.Equal(t, uint64(360), p.AffectedAreaKM2)
	assert.Equal(t, uint64(360_000), p.PopulationAffected)
	assert.Equal(t, uint64(144_000), p.BuildingsAffected)
	assert.Equal(t, uint64(46), p.DamageMultiplier)
	assert.Equal(t, uint64(16_560_000_000), p.EstimatedDamageUSD)
	assert.Equal(t, uint64(75), p.InfrastructureRisk)
	assert.Equal(t, uint64(15+16+36), p.EconomicDisruptionDays)
	assert.Equal(t, []string{"Hospital", "Power Plant", "Airport"}, p.AffectedFacilities)
	assert.Equal(t, uint64(70), p.Confidence)
	assert.Equal(t, "Testville", p.Location)
	assert.Equal(t, at, p.PredictedAt)
}

func TestPredict_Formulas(t *testing.T) {
	tests := []struct {
		typ        domain.DisasterType
		sev        uint64
		area       uint64
		multiplier uint64
	}{
		{domain.Earthquake, 10, 10, 11},
		{domain.Hurricane, 10, 30, 15},
		{domain.Hurricane, 71, 1512, 45},
		{domain.Flood, 10, 4, 13},
		{domain.Flood, 2, 0, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.area, impact.AffectedArea(tt.typ, tt.sev), "%s area at %d", tt.typ, tt.sev)
		assert.Equal(t, tt.multiplier, impact.DamageMultiplier(tt.typ, tt.sev), "%s multiplier at %d", tt.typ, tt.sev)
	}
}

func TestInfrastructureRisk(t *testing.T) {
	tests := []struct {
		typ   domain.DisasterType
		sev   uint64
		score uint64
		want  uint64
	}{
		{domain.Earthquake, 30, 50, 50},
		{domain.Earthquake, 31, 50, 60},
		{domain.Earthquake, 51, 50, 75},
		{domain.Earthquake, 71, 50, 90},
		{domain.Hurricane, 71, 50, 85},
		{domain.Flood, 51, 50, 65},
		{domain.Earthquake, 90, 80, 100},
		{domain.Flood, 10, 100, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, impact.InfrastructureRisk(tt.typ, tt.sev, tt.score), "%s sev %d", tt.typ, tt.sev)
	}
}

func TestAffectedFacilities(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e"}
	assert.Empty(t, impact.AffectedFacilities(list, 29))
	assert.Equal(t, []string{"a", "b"}, impact.AffectedFacilities(list, 30))
	assert.Equal(t, []string{"a", "b", "c"}, impact.AffectedFacilities(list, 50))
	assert.Equal(t, list, impact.AffectedFacilities(list, 70))
	assert.Empty(t, impact.AffectedFacilities(nil, 90))
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name string
		typ  domain.DisasterType
		sev  uint64
		w    domain.WeatherData
		want uint64
	}{
		{"earthquake mid severity", domain.Earthquake, 50, domain.WeatherData{}, 70},
		{"earthquake low severity", domain.Earthquake, 10, domain.WeatherData{}, 80},
		{"earthquake high severity", domain.Earthquake, 90, domain.WeatherData{}, 60},
		{"hurricane strong signal", domain.Hurricane, 50, domain.WeatherData{WindSpeed: 150, Pressure: 950}, 95},
		{"hurricane contradicting signal", domain.Hurricane, 50, domain.WeatherData{WindSpeed: 10, Pressure: 1020}, 45},
		{"hurricane neutral", domain.Hurricane, 50, domain.WeatherData{WindSpeed: 60, Pressure: 1000}, 70},
		{"flood strong signal low severity", domain.Flood, 20, domain.WeatherData{Rainfall: 200, Humidity: 95}, 100},
		{"flood contradicting signal", domain.Flood, 80, domain.WeatherData{Rainfall: 0, Humidity: 20}, 35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, impact.Confidence(tt.typ, tt.sev, tt.w))
		})
	}
}

func TestEstimatedDamage_Saturates(t *testing.T) {
	assert.Equal(t, ^uint64(0), impact.EstimatedDamage(1<<40, 1<<40, 100))
	assert.Equal(t, uint64(5), impact.EstimatedDamage(1, 10, 50))
}

func TestPredict_MonotonicInSeverity(t *testing.T) {
	e, _ := newEngine(t, 0)
	ctx := context.Background()
	w := domain.WeatherData{WindSpeed: 80, Pressure: 1000, Rainfall: 50, Humidity: 60}

	for _, typ := range domain.DisasterTypes {
		prev, err := e.Predict(ctx, "Testville", typ, 10, w)
		require.NoError(t, err)
		for sev := uint64(20); sev <= 100; sev += 10 {
			cur, err := e.Predict(ctx, "Testville", typ, sev, w)
			require.NoError(t, err)
			assert.Greater(t, cur.EstimatedDamageUSD, prev.EstimatedDamageUSD, "%s damage at %d", typ, sev)
			assert.Greater(t, cur.AffectedAreaKM2, prev.AffectedAreaKM2, "%s area at %d", typ, sev)
			assert.GreaterOrEqual(t, cur.InfrastructureRisk, prev.InfrastructureRisk, "%s infra at %d", typ, sev)
			assert.LessOrEqual(t, cur.InfrastructureRisk, uint64(100))
			prev = cur
		}
	}
}

func TestPredict_LargeSeverityClampsInsteadOfWrapping(t *testing.T) {
	e, _ := newEngine(t, 0)
	ctx := context.Background()
	severities := []uint64{1_000_000, 1 << 32, 1 << 40, 1 << 62, math.MaxUint64}

	for _, typ := range domain.DisasterTypes {
		var prev domain.ImpactPrediction
		for i, sev := range severities {
			cur, err := e.Predict(ctx, "Testville", typ, sev, domain.WeatherData{})
			require.NoError(t, err)
			assert.NotZero(t, cur.AffectedAreaKM2, "%s area at %d", typ, sev)
			assert.NotZero(t, cur.PopulationAffected, "%s population at %d", typ, sev)
			assert.NotZero(t, cur.EstimatedDamageUSD, "%s damage at %d", typ, sev)
			if i > 0 {
				assert.GreaterOrEqual(t, cur.AffectedAreaKM2, prev.AffectedAreaKM2, "%s area at %d", typ, sev)
				assert.GreaterOrEqual(t, cur.PopulationAffected, prev.PopulationAffected, "%s population at %d", typ, sev)
				assert.GreaterOrEqual(t, cur.BuildingsAffected, prev.BuildingsAffected, "%s buildings at %d", typ, sev)
				assert.GreaterOrEqual(t, cur.EstimatedDamageUSD, prev.EstimatedDamageUSD, "%s damage at %d", typ, sev)
			}
			prev = cur
		}
	}

	quake, err := e.Predict(ctx, "Testville", domain.Earthquake, 1<<32, domain.WeatherData{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<64/10), quake.AffectedAreaKM2)
	assert.Equal(t, uint64(math.MaxUint64), quake.PopulationAffected)
	assert.Equal(t, uint64(math.MaxUint64), quake.BuildingsAffected)
	assert.Equal(t, uint64(math.MaxUint64), quake.EstimatedDamageUSD)
}

func TestAffectedArea_Saturates(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), impact.AffectedArea(domain.Earthquake, math.MaxUint64))
	assert.Equal(t, uint64(math.MaxUint64), impact.AffectedArea(domain.Hurricane, 1<<33))
	assert.Equal(t, uint64(math.MaxUint64), impact.DamageMultiplier(domain.Earthquake, math.MaxUint64))
	assert.Greater(t, impact.AffectedArea(domain.Flood, math.MaxUint64), impact.AffectedArea(domain.Flood, 1<<62))
}

func TestPredict_Errors(t *testing.T) {
	e, _ := newEngine(t, 0)
	ctx := context.Background()

	_, err := e.Predict(ctx, "Nowhere", domain.Flood, 50, domain.WeatherData{})
	require.ErrorIs(t, err, domain.ErrUnsupportedLocation)

	_, err = e.Predict(ctx, "Testville", domain.DisasterType(3), 50, domain.WeatherData{})
	require.ErrorIs(t, err, domain.ErrUnknownDisasterType)
}

func TestHistory(t *testing.T) {
	e, _ := newEngine(t, 3)
	ctx := context.Background()
	for sev := uint64(10); sev <= 50; sev += 10 {
		_, err := e.Predict(ctx, "Testville", domain.Flood, sev, domain.WeatherData{})
		require.NoError(t, err)
	}

	all := e.History(ctx, "Testville", 0)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(30), all[0].Severity)

	last := e.History(ctx, "Testville", 2)
	require.Len(t, last, 2)
	assert.Equal(t, uint64(40), last[0].Severity)
	assert.Equal(t, uint64(50), last[1].Severity)

	assert.Nil(t, e.History(ctx, "Elsewhere", 0))
}
