package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Jeffail/gabs"

	"github.com/i474232898/weather-station/internal/weather"
)

const openMeteoLocalLayout = "2006-01-02T15:04"

// OpenMeteoSource implements weather.Source for the Open-Meteo forecast API.
type OpenMeteoSource struct {
	name    string
	baseURL string
	unit    weather.TemperatureUnit
	http    *requester
	log     *slog.Logger
}

// NewOpenMeteoSource builds a source. Open-Meteo needs no API key.
func NewOpenMeteoSource(client *http.Client, unit weather.TemperatureUnit, log *slog.Logger) *OpenMeteoSource {
	if log == nil {
		log = slog.Default()
	}
	return &OpenMeteoSource{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		unit:    unit,
		http:    newRequester("openmeteo", client, DefaultBackoff, log),
		log:     log.With("source", "openmeteo"),
	}
}

// WithBaseURL points the source at another endpoint (tests, self-hosted Open-Meteo).
func (p *OpenMeteoSource) WithBaseURL(u string) *OpenMeteoSource {
	p.baseURL = u
	return p
}

func (p *OpenMeteoSource) Name() string {
	return p.name
}

func (p *OpenMeteoSource) Fetch(ctx context.Context, loc weather.Location) (weather.Series, error) {
	if !loc.HasCoordinates() {
		return weather.Series{}, fmt.Errorf("openmeteo requires latitude and longitude")
	}

	body, err := p.http.get(ctx, p.requestURL(loc))
	if err != nil {
		return weather.Series{}, fmt.Errorf("openmeteo fetch: %w", err)
	}

	series, err := ParseOpenMeteo(body)
	if errors.Is(err, weather.ErrInvalidStructure) {
		p.log.Warn("open-meteo payload has invalid structure", "location", loc.Key(), "error", err)
		return weather.Series{Unit: p.unit}, nil
	}
	if err != nil {
		return weather.Series{}, fmt.Errorf("openmeteo decode: %w", err)
	}
	if series.Unit == "" {
		series.Unit = p.unit
	}
	return series, nil
}

func (p *OpenMeteoSource) requestURL(loc weather.Location) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(*loc.Lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(*loc.Lon, 'f', 4, 64))
	values.Set("current", "temperature_2m")
	values.Set("hourly", "temperature_2m,precipitation,precipitation_probability")
	values.Set("forecast_days", strconv.Itoa(weather.ForecastDays))
	if p.unit == weather.UnitFahrenheit {
		values.Set("temperature_unit", "fahrenheit")
		values.Set("precipitation_unit", "inch")
	} else {
		values.Set("temperature_unit", "celsius")
		values.Set("precipitation_unit", "mm")
	}
	tz := loc.Timezone
	if tz == "" {
		tz = "auto"
	}
	values.Set("timezone", tz)

	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// ParseOpenMeteo decodes an Open-Meteo forecast body. Invalid JSON is returned
// as a plain error; a JSON document without parallel hourly.time and
// hourly.temperature_2m arrays yields weather.ErrInvalidStructure.
func ParseOpenMeteo(body []byte) (weather.Series, error) {
	doc, err := gabs.ParseJSON(body)
	if err != nil {
		return weather.Series{}, err
	}

	if !doc.Exists("hourly", "time") || !doc.Exists("hourly", "temperature_2m") {
		return weather.Series{}, fmt.Errorf("%w: missing hourly.time or hourly.temperature_2m", weather.ErrInvalidStructure)
	}
	times, ok := doc.Search("hourly", "time").Data().([]interface{})
	if !ok {
		return weather.Series{}, fmt.Errorf("%w: hourly.time is not an array", weather.ErrInvalidStructure)
	}
	temps, ok := doc.Search("hourly", "temperature_2m").Data().([]interface{})
	if !ok {
		return weather.Series{}, fmt.Errorf("%w: hourly.temperature_2m is not an array", weather.ErrInvalidStructure)
	}
	if len(times) != len(temps) {
		return weather.Series{}, fmt.Errorf("%w: %d timestamps for %d temperatures", weather.ErrInvalidStructure, len(times), len(temps))
	}

	precip := optionalArray(doc, len(times), "hourly", "precipitation")
	chance := optionalArray(doc, len(times), "hourly", "precipitation_probability")
	loc := payloadLocation(doc)

	samples := make([]weather.HourlySample, 0, len(times))
	for i := range times {
		raw, ok := times[i].(string)
		if !ok {
			return weather.Series{}, fmt.Errorf("%w: hourly.time[%d] is not a string", weather.ErrInvalidStructure, i)
		}
		ts, err := parseOpenMeteoTime(raw, loc)
		if err != nil {
			return weather.Series{}, fmt.Errorf("%w: hourly.time[%d]: %v", weather.ErrInvalidStructure, i, err)
		}
		temp, ok := toFloat(temps[i])
		if !ok {
			return weather.Series{}, fmt.Errorf("%w: hourly.temperature_2m[%d] is not a number", weather.ErrInvalidStructure, i)
		}
		if i > 0 && ts.Before(samples[i-1].Time) {
			return weather.Series{}, fmt.Errorf("%w: hourly.time not ascending at %d", weather.ErrInvalidStructure, i)
		}

		s := weather.HourlySample{Time: ts, Temperature: temp}
		if precip != nil {
			s.Precipitation, _ = toFloat(precip[i])
		}
		if chance != nil {
			s.RainChance, _ = toFloat(chance[i])
		}
		samples = append(samples, s)
	}

	series := weather.Series{Samples: samples}
	if v, ok := toFloat(doc.Search("current", "temperature_2m").Data()); ok {
		series.Current = &v
	}
	switch doc.Search("hourly_units", "temperature_2m").Data() {
	case "°F":
		series.Unit = weather.UnitFahrenheit
	case "°C":
		series.Unit = weather.UnitCelsius
	}
	return series, nil
}

// optionalArray returns the array at path when it exists and matches n in length.
func optionalArray(doc *gabs.Container, n int, path ...string) []interface{} {
	if !doc.Exists(path...) {
		return nil
	}
	arr, ok := doc.Search(path...).Data().([]interface{})
	if !ok || len(arr) != n {
		return nil
	}
	return arr
}

// payloadLocation picks the zone local timestamps are expressed in: the named
// IANA zone when it can be loaded, else a fixed offset.
func payloadLocation(doc *gabs.Container) *time.Location {
	name, _ := doc.Search("timezone").Data().(string)
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	offset, _ := toFloat(doc.Search("utc_offset_seconds").Data())
	if name == "" {
		name = "UTC"
	}
	if offset == 0 && name == "UTC" {
		return time.UTC
	}
	return time.FixedZone(name, int(offset))
}

func parseOpenMeteoTime(raw string, loc *time.Location) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.ParseInLocation(openMeteoLocalLayout, raw, loc)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
