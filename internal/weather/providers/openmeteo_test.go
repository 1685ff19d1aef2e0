package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station/internal/weather"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func sanJose() weather.Location {
	lat, lon := 37.3382, -121.8863
	return weather.Location{City: "San Jose", Country: "US", Lat: &lat, Lon: &lon, Timezone: "America/Los_Angeles"}
}

// openMeteoBody renders a payload with n hourly entries from start in Open-Meteo's local layout.
func openMeteoBody(t *testing.T, start time.Time, n int, temp float64) []byte {
	t.Helper()
	times := make([]string, n)
	temps := make([]float64, n)
	precip := make([]float64, n)
	chance := make([]float64, n)
	for i := range n {
		times[i] = start.Add(time.Duration(i) * time.Hour).Format(openMeteoLocalLayout)
		temps[i] = temp
		precip[i] = 0.25
		chance[i] = float64(i % 100)
	}
	body, err := json.Marshal(map[string]any{
		"latitude":           37.34,
		"longitude":          -121.89,
		"timezone":           "GMT",
		"utc_offset_seconds": 0,
		"current":            map[string]any{"time": times[0], "temperature_2m": temp + 1},
		"hourly_units":       map[string]any{"time": "iso8601", "temperature_2m": "°F"},
		"hourly": map[string]any{
			"time":                      times,
			"temperature_2m":            temps,
			"precipitation":             precip,
			"precipitation_probability": chance,
		},
	})
	require.NoError(t, err)
	return body
}

func TestParseOpenMeteo(t *testing.T) {
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	t.Run("parses parallel hourly arrays", func(t *testing.T) {
		series, err := ParseOpenMeteo(openMeteoBody(t, start, 168, 75))

		require.NoError(t, err)
		require.Len(t, series.Samples, 168)
		assert.True(t, series.Samples[0].Time.Equal(start))
		assert.True(t, series.Samples[167].Time.Equal(start.Add(167*time.Hour)))
		assert.Equal(t, 75.0, series.Samples[10].Temperature)
		assert.Equal(t, 0.25, series.Samples[10].Precipitation)
		assert.Equal(t, 10.0, series.Samples[10].RainChance)
		require.NotNil(t, series.Current)
		assert.Equal(t, 76.0, *series.Current)
		assert.Equal(t, weather.UnitFahrenheit, series.Unit)
	})

	t.Run("accepts RFC3339 timestamps", func(t *testing.T) {
		body := []byte(`{"hourly":{"time":["2026-10-15T07:00:00Z","2026-10-15T08:00:00Z"],"temperature_2m":[75,75]}}`)

		series, err := ParseOpenMeteo(body)

		require.NoError(t, err)
		require.Len(t, series.Samples, 2)
		assert.Equal(t, 8, series.Samples[1].Time.UTC().Hour())
		assert.Nil(t, series.Current)
	})

	t.Run("local times use the utc offset when the zone is unknown", func(t *testing.T) {
		body := []byte(`{"timezone":"Nowhere/Unknown","utc_offset_seconds":-25200,
			"hourly":{"time":["2026-10-15T00:00"],"temperature_2m":[61.2]}}`)

		series, err := ParseOpenMeteo(body)

		require.NoError(t, err)
		require.Len(t, series.Samples, 1)
		ts := series.Samples[0].Time
		assert.Equal(t, 0, ts.Hour())
		assert.Equal(t, 7, ts.UTC().Hour())
	})

	t.Run("optional arrays of the wrong length are ignored", func(t *testing.T) {
		body := []byte(`{"hourly":{"time":["2026-10-15T00:00","2026-10-15T01:00"],"temperature_2m":[1,2],"precipitation":[3]}}`)

		series, err := ParseOpenMeteo(body)

		require.NoError(t, err)
		assert.Zero(t, series.Samples[0].Precipitation)
	})

	invalid := map[string]string{
		"missing hourly":        `{"current":{"temperature_2m":70}}`,
		"missing time":          `{"hourly":{"temperature_2m":[1,2]}}`,
		"missing temperature":   `{"hourly":{"time":["2026-10-15T00:00"]}}`,
		"length mismatch":       `{"hourly":{"time":["2026-10-15T00:00"],"temperature_2m":[1,2]}}`,
		"null temperature":      `{"hourly":{"time":["2026-10-15T00:00"],"temperature_2m":[null]}}`,
		"bad timestamp":         `{"hourly":{"time":["yesterday"],"temperature_2m":[1]}}`,
		"time is not an array":  `{"hourly":{"time":"2026-10-15T00:00","temperature_2m":[1]}}`,
		"descending timestamps": `{"hourly":{"time":["2026-10-15T01:00","2026-10-15T00:00"],"temperature_2m":[1,2]}}`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOpenMeteo([]byte(body))
			assert.ErrorIs(t, err, weather.ErrInvalidStructure)
		})
	}

	t.Run("invalid json is not a structure error", func(t *testing.T) {
		_, err := ParseOpenMeteo([]byte(`{"hourly":`))
		require.Error(t, err)
		assert.False(t, errors.Is(err, weather.ErrInvalidStructure))
	})
}

func testOpenMeteo(srv *httptest.Server) *OpenMeteoSource {
	src := NewOpenMeteoSource(srv.Client(), weather.UnitFahrenheit, quietLog).WithBaseURL(srv.URL)
	src.http.backoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	return src
}

func TestOpenMeteoSource_Fetch(t *testing.T) {
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	t.Run("sends the forecast query", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			_, _ = w.Write(openMeteoBody(t, start, 168, 70))
		}))
		defer srv.Close()

		series, err := testOpenMeteo(srv).Fetch(context.Background(), sanJose())

		require.NoError(t, err)
		assert.Len(t, series.Samples, 168)
		require.NotNil(t, got)
		q := got.URL.Query()
		assert.Equal(t, "37.3382", q.Get("latitude"))
		assert.Equal(t, "-121.8863", q.Get("longitude"))
		assert.Equal(t, "temperature_2m", q.Get("current"))
		assert.Contains(t, q.Get("hourly"), "temperature_2m")
		assert.Equal(t, "fahrenheit", q.Get("temperature_unit"))
		assert.Equal(t, "America/Los_Angeles", q.Get("timezone"))
		assert.Equal(t, "7", q.Get("forecast_days"))
	})

	t.Run("missing hourly keys give an empty series, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{"latitude":37.3,"longitude":-121.9}`)
		}))
		defer srv.Close()

		series, err := testOpenMeteo(srv).Fetch(context.Background(), sanJose())

		require.NoError(t, err)
		assert.Empty(t, series.Samples)
	})

	t.Run("malformed json is a retrieval failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `<html>`)
		}))
		defer srv.Close()

		_, err := testOpenMeteo(srv).Fetch(context.Background(), sanJose())

		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "openmeteo decode"))
	})

	t.Run("requires coordinates", func(t *testing.T) {
		src := NewOpenMeteoSource(http.DefaultClient, weather.UnitCelsius, quietLog)
		_, err := src.Fetch(context.Background(), weather.Location{City: "Nowhere"})
		assert.Error(t, err)
	})
}
