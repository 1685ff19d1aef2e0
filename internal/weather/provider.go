package weather

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidStructure is returned when a payload parses but lacks the
	// hourly time/temperature arrays. Callers treat it as "no data", not as a failure.
	ErrInvalidStructure = errors.New("invalid weather payload structure")

	// ErrDataIncomplete is matched by *DataIncompleteError.
	ErrDataIncomplete = errors.New("weather data incomplete")
)

// DataIncompleteError reports that fewer samples were supplied than an
// aggregation needs.
type DataIncompleteError struct {
	Have int
	Want int
}

func (e *DataIncompleteError) Error() string {
	return fmt.Sprintf("weather data incomplete: have %d hourly samples, want %d", e.Have, e.Want)
}

func (e *DataIncompleteError) Is(target error) bool {
	return target == ErrDataIncomplete
}

// Source abstracts a supplier of hourly samples (Open-Meteo, WeatherAPI, mock data).
//
// A non-nil error is a retrieval failure. A Series with no samples and a nil
// error means the source answered but had nothing usable.
type Source interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (Series, error)
}

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, loc Location) (Location, error)
}
