package impact

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

const baseConfidence = 70

var maxUint64 = u64(math.MaxUint64)

func u64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// AffectedArea in km2 for a disaster of the given severity, saturating at
// the uint64 range.
func AffectedArea(t domain.DisasterType, severity uint64) uint64 {
	switch t {
	case domain.Earthquake:
		return mulDiv(10, severity, severity)
	case domain.Hurricane:
		return mulDiv(10, 3, severity, severity)
	case domain.Flood:
		return mulDiv(10, 4, severity)
	}
	return 0
}

// DamageMultiplier is the percentage of property value lost, base 10.
func DamageMultiplier(t domain.DisasterType, severity uint64) uint64 {
	switch t {
	case domain.Earthquake:
		return addSat(10, mulDiv(100, severity, severity))
	case domain.Hurricane:
		return 10 + severity/2
	case domain.Flood:
		return 10 + severity/3
	}
	return 10
}

// EstimatedDamage is buildings × value × multiplier / 100, saturating at
// the uint64 range.
func EstimatedDamage(buildings, avgValue, multiplier uint64) uint64 {
	return mulDiv(100, buildings, avgValue, multiplier)
}

// mulDiv returns the product of factors divided by den, clamped to
// math.MaxUint64 instead of wrapping.
func mulDiv(den int64, factors ...uint64) uint64 {
	p := decimal.NewFromInt(1)
	for _, f := range factors {
		p = p.Mul(u64(f))
	}
	q, _ := p.QuoRem(decimal.NewFromInt(den), 0)
	if q.GreaterThan(maxUint64) {
		return math.MaxUint64
	}
	return q.BigInt().Uint64()
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

var tierBonus = map[domain.DisasterType][3]uint64{
	domain.Earthquake: {10, 25, 40},
	domain.Hurricane:  {10, 20, 35},
	domain.Flood:      {5, 15, 30},
}

// InfrastructureRisk adds a severity tier bonus to the location's
// infrastructure score, clamped to 100.
func InfrastructureRisk(t domain.DisasterType, severity, infraScore uint64) uint64 {
	bonus := tierBonus[t]
	risk := infraScore
	switch {
	case severity > 70:
		risk += bonus[2]
	case severity > 50:
		risk += bonus[1]
	case severity > 30:
		risk += bonus[0]
	}
	return min(risk, 100)
}

// DisruptionDays estimates economic disruption.
func DisruptionDays(infraRisk, damage, population uint64) uint64 {
	return infraRisk/5 + damage/1_000_000_000 + population/10_000
}

// AffectedFacilities returns the leading share of the critical list
// affected at this severity.
func AffectedFacilities(critical []string, severity uint64) []string {
	var pct int
	switch {
	case severity < 30:
		pct = 0
	case severity < 50:
		pct = 50
	case severity < 70:
		pct = 75
	default:
		pct = 100
	}
	n := len(critical) * pct / 100
	return append([]string{}, critical[:n]...)
}

// Confidence in the prediction (0-100) given the observed weather.
func Confidence(t domain.DisasterType, severity uint64, w domain.WeatherData) uint64 {
	c := int64(baseConfidence)
	switch t {
	case domain.Hurricane:
		c += band(w.WindSpeed, 100, 30, 15)
		switch {
		case w.Pressure < 990:
			c += 10
		case w.Pressure > 1010:
			c -= 10
		}
	case domain.Flood:
		c += band(w.Rainfall, 100, 10, 15)
		c += band(w.Humidity, 85, 40, 10)
	}
	switch {
	case severity > 70:
		c -= 10
	case severity < 30:
		c += 10
	}
	return uint64(max(0, min(c, 100)))
}

// band returns +step when v > high, -step when v < low, else 0.
func band(v, high, low, step int64) int64 {
	switch {
	case v > high:
		return step
	case v < low:
		return -step
	}
	return 0
}
