package risk

import (
	"time"

	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

// SeasonMode selects how the current month is derived.
type SeasonMode string

const (
	// SeasonEpoch30 counts 30-day months since the unix epoch:
	// (unix / 2592000) % 12 + 1. It drifts from the calendar by about five
	// days a year and is kept for compatibility with existing scores.
	SeasonEpoch30 SeasonMode = "epoch30"
	// SeasonCalendar uses the UTC calendar month.
	SeasonCalendar SeasonMode = "calendar"
)

const (
	microdegrees   = 1e6
	thirtyDays     = 30 * 24 * 60 * 60
	historyWindow  = 365 * 24 * time.Hour
	multiplierBase = 100
)

var (
	// faultZone covers the Californian fault system, lon/lat degrees.
	faultZone = geom.NewBounds(geom.XY).Set(-125, 32, -114, 42)
	// hurricaneBelt is the latitude band exposed to landfalling hurricanes.
	hurricaneBelt = geom.NewBounds(geom.XY).Set(-180, 10, 180, 35)
)

var seasonal = map[domain.DisasterType][12]uint64{
	domain.Earthquake: {100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100},
	domain.Hurricane:  {50, 50, 50, 75, 100, 150, 200, 250, 250, 200, 150, 75},
	domain.Flood:      {80, 100, 150, 200, 150, 100, 80, 100, 150, 200, 150, 100},
}

func coord(p domain.LocationProfile) geom.Coord {
	return geom.Coord{float64(p.Longitude) / microdegrees, float64(p.Latitude) / microdegrees}
}

// BaseScore is the static geographic risk (0-100) of a profile for t.
func BaseScore(p domain.LocationProfile, t domain.DisasterType) uint64 {
	switch t {
	case domain.Earthquake:
		if faultZone.OverlapsPoint(geom.XY, coord(p)) {
			return 80
		}
		return 20
	case domain.Flood:
		switch {
		case p.ElevationM < 10:
			return 70
		case p.ElevationM < 50:
			return 50
		case p.ElevationM < 200:
			return 30
		default:
			return 10
		}
	case domain.Hurricane:
		inBelt := hurricaneBelt.OverlapsPoint(geom.XY, coord(p))
		switch {
		case inBelt && p.ElevationM < 30:
			return 75
		case inBelt:
			return 40
		default:
			return 10
		}
	}
	return 0
}

// WeatherMultiplier is 100 plus 50 per adverse condition. Earthquakes are
// unaffected by weather.
func WeatherMultiplier(w domain.WeatherData, t domain.DisasterType) uint64 {
	m := uint64(multiplierBase)
	switch t {
	case domain.Hurricane:
		if w.WindSpeed > 100 {
			m += 50
		}
		if w.Pressure < 990 {
			m += 50
		}
	case domain.Flood:
		if w.Rainfall > 100 {
			m += 50
		}
		if w.Humidity > 85 {
			m += 50
		}
	}
	return m
}

// Month returns the 1-based month used for the seasonal lookup.
func Month(now time.Time, mode SeasonMode) int {
	if mode == SeasonCalendar {
		return int(now.UTC().Month())
	}
	unix := now.Unix()
	if unix < 0 {
		unix = 0
	}
	return int((unix/thirtyDays)%12) + 1
}

// SeasonalMultiplier looks up the basis-point multiplier for t in month.
func SeasonalMultiplier(t domain.DisasterType, month int) uint64 {
	table, ok := seasonal[t]
	if !ok || month < 1 || month > 12 {
		return multiplierBase
	}
	return table[month-1]
}

// HistoricalMultiplier is 100 plus 25 per same-type event recorded within
// the trailing 365 days of now.
func HistoricalMultiplier(events []domain.HistoricalEvent, t domain.DisasterType, now time.Time) uint64 {
	m := uint64(multiplierBase)
	for _, e := range events {
		if e.DisasterType == t && now.Sub(e.RecordedAt) <= historyWindow {
			m += 25
		}
	}
	return m
}

// FinalScore combines the components, dividing out the three basis-point
// scalings.
func FinalScore(base, weather, season, historical uint64) uint64 {
	return base * weather * season * historical / 1_000_000
}
