package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeatherData is the latest observation reported by the weather oracle.
// Units follow the oracle: degrees C, km/h, mm, percent, hPa.
type WeatherData struct {
	Temperature int64     `json:"temperature" toml:"temperature"`
	WindSpeed   int64     `json:"wind_speed" toml:"wind_speed"`
	Rainfall    int64     `json:"rainfall" toml:"rainfall"`
	Humidity    int64     `json:"humidity" toml:"humidity"`
	Pressure    int64     `json:"pressure" toml:"pressure"`
	Timestamp   time.Time `json:"timestamp" toml:"timestamp"`
}

// LocationProfile is the static geography used for base risk scores.
// Coordinates are microdegrees so scoring stays in integer arithmetic.
type LocationProfile struct {
	Latitude   int64 `json:"latitude" toml:"latitude"`
	Longitude  int64 `json:"longitude" toml:"longitude"`
	ElevationM int64 `json:"elevation_m" toml:"elevation_m"`
}

// ModelParameters are the static demographics used for impact predictions.
type ModelParameters struct {
	PopulationDensity      uint64   `json:"population_density" toml:"population_density"` // people per km2
	BuildingDensity        uint64   `json:"building_density" toml:"building_density"`     // buildings per km2
	AveragePropertyValue   uint64   `json:"average_property_value" toml:"average_property_value"`
	InfrastructureScore    uint64   `json:"infrastructure_score" toml:"infrastructure_score"` // 0-100
	CriticalInfrastructure []string `json:"critical_infrastructure" toml:"critical_infrastructure"`
}

// RiskScore is the latest risk snapshot for a location.
type RiskScore struct {
	Location             string       `json:"location"`
	DisasterType         DisasterType `json:"disaster_type"`
	BaseScore            uint64       `json:"base_score"`
	WeatherMultiplier    uint64       `json:"weather_multiplier"`
	SeasonalMultiplier   uint64       `json:"seasonal_multiplier"`
	HistoricalMultiplier uint64       `json:"historical_multiplier"`
	FinalScore           uint64       `json:"final_score"`
	ComputedAt           time.Time    `json:"computed_at"`
}

// HistoricalEvent is an underwriter-recorded past disaster.
type HistoricalEvent struct {
	Location     string          `json:"location"`
	DisasterType DisasterType    `json:"disaster_type"`
	Severity     uint64          `json:"severity"`
	DamageAmount decimal.Decimal `json:"damage_amount"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// ImpactPrediction is one damage/impact estimate.
type ImpactPrediction struct {
	Location               string       `json:"location"`
	DisasterType           DisasterType `json:"disaster_type"`
	Severity               uint64       `json:"severity"`
	AffectedAreaKM2        uint64       `json:"affected_area_km2"`
	PopulationAffected     uint64       `json:"population_affected"`
	BuildingsAffected      uint64       `json:"buildings_affected"`
	DamageMultiplier       uint64       `json:"damage_multiplier"`
	EstimatedDamageUSD     uint64       `json:"estimated_damage_usd"`
	InfrastructureRisk     uint64       `json:"infrastructure_risk"`
	EconomicDisruptionDays uint64       `json:"economic_disruption_days"`
	AffectedFacilities     []string     `json:"affected_facilities"`
	Confidence             uint64       `json:"confidence"`
	PredictedAt            time.Time    `json:"predicted_at"`
}
