package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station/internal/weather"
)

func weatherAPIBody(days int, firstDay time.Time) string {
	var sb strings.Builder
	sb.WriteString(`{"location":{"tz_id":"UTC"},"current":{"temp_c":20.5,"temp_f":68.9},"forecast":{"forecastday":[`)
	for d := range days {
		if d > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"hour":[`)
		for h := range 24 {
			if h > 0 {
				sb.WriteString(",")
			}
			ts := firstDay.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			fmt.Fprintf(&sb, `{"time":%q,"temp_c":%d,"temp_f":%d,"precip_mm":0.5,"precip_in":0.02,"chance_of_rain":%d}`,
				ts.Format(weatherAPILocalLayout), 10+d, 50+d, h)
		}
		sb.WriteString(`]}`)
	}
	sb.WriteString(`]}}`)
	return sb.String()
}

func TestWeatherAPISource_Fetch(t *testing.T) {
	first := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	t.Run("flattens forecast days into hourly samples", func(t *testing.T) {
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			_, _ = fmt.Fprint(w, weatherAPIBody(7, first))
		}))
		defer srv.Close()

		src := NewWeatherAPISource(srv.Client(), "secret", weather.UnitCelsius, quietLog).WithBaseURL(srv.URL)
		src.http.backoff = fastBackoff

		series, err := src.Fetch(context.Background(), sanJose())

		require.NoError(t, err)
		require.Len(t, series.Samples, 168)
		assert.True(t, series.Samples[25].Time.Equal(first.Add(25*time.Hour)))
		assert.Equal(t, 11.0, series.Samples[25].Temperature)
		assert.Equal(t, 0.5, series.Samples[25].Precipitation)
		assert.Equal(t, 1.0, series.Samples[25].RainChance)
		require.NotNil(t, series.Current)
		assert.Equal(t, 20.5, *series.Current)
		assert.Contains(t, query, "days=7")
		assert.Contains(t, query, "key=secret")
	})

	t.Run("fahrenheit picks the imperial fields", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, weatherAPIBody(3, first))
		}))
		defer srv.Close()

		src := NewWeatherAPISource(srv.Client(), "secret", weather.UnitFahrenheit, quietLog).WithBaseURL(srv.URL)
		series, err := src.Fetch(context.Background(), sanJose())

		require.NoError(t, err)
		require.Len(t, series.Samples, 72)
		assert.Equal(t, 50.0, series.Samples[0].Temperature)
		assert.Equal(t, 0.02, series.Samples[0].Precipitation)
		assert.Equal(t, 68.9, *series.Current)
	})

	t.Run("bad hour timestamps give an empty series", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `{"forecast":{"forecastday":[{"hour":[{"time":"soon","temp_c":1}]}]}}`)
		}))
		defer srv.Close()

		src := NewWeatherAPISource(srv.Client(), "secret", weather.UnitCelsius, quietLog).WithBaseURL(srv.URL)
		series, err := src.Fetch(context.Background(), sanJose())

		require.NoError(t, err)
		assert.Empty(t, series.Samples)
	})

	t.Run("requires an api key", func(t *testing.T) {
		src := NewWeatherAPISource(http.DefaultClient, "", weather.UnitCelsius, quietLog)
		_, err := src.Fetch(context.Background(), sanJose())
		assert.Error(t, err)
	})
}
