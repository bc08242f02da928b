package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// WeatherFeed returns the latest weather observation for a location.
// Implementations return ErrNoDataAvailable when nothing is registered.
type WeatherFeed interface {
	LatestWeather(ctx context.Context, location string) (WeatherData, error)
}

// Treasury moves value in and out of the protocol. It is assumed to hold
// sufficient balance; a returned error aborts the calling operation.
type Treasury interface {
	Collect(ctx context.Context, from string, amount decimal.Decimal, memo string) error
	Pay(ctx context.Context, to string, amount decimal.Decimal, memo string) error
}
