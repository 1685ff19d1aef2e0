package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-station/internal/weather"
)

var errEmptyCity = errors.New("city is required for geocoding")

// geocoderMu guards the package-level API key the geocoder library reads.
var geocoderMu sync.Mutex

// GoogleGeocoder resolves city names through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
	lookup func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey, lookup: geocoder.Geocoding}
}

// Resolve returns loc with Lat/Lon filled from the city and country names.
// Timezone is cleared so the forecast source derives it from the new coordinates.
func (g *GoogleGeocoder) Resolve(ctx context.Context, loc weather.Location) (weather.Location, error) {
	if strings.TrimSpace(loc.City) == "" {
		return loc, errEmptyCity
	}
	if g.apiKey == "" {
		return loc, fmt.Errorf("geocoder api key is not configured")
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		geocoderMu.Lock()
		defer geocoderMu.Unlock()
		geocoder.ApiKey = g.apiKey
		l, err := g.lookup(geocoder.Address{City: loc.City, Country: loc.Country})
		done <- result{l, err}
	}()

	select {
	case <-ctx.Done():
		return loc, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return loc, fmt.Errorf("geocode %q: %w", loc.Key(), r.err)
		}
		lat, lon := r.loc.Latitude, r.loc.Longitude
		loc.Lat = &lat
		loc.Lon = &lon
		loc.Timezone = ""
		return loc, nil
	}
}
