package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-station/internal/weather"
)

const weatherAPILocalLayout = "2006-01-02 15:04"

// WeatherAPISource implements weather.Source for WeatherAPI.com's forecast endpoint.
// Free plans return fewer than seven days; the daily summary then reports
// incomplete data while the hourly window still works.
type WeatherAPISource struct {
	name    string
	apiKey  string
	baseURL string
	unit    weather.TemperatureUnit
	http    *requester
	log     *slog.Logger
}

func NewWeatherAPISource(client *http.Client, apiKey string, unit weather.TemperatureUnit, log *slog.Logger) *WeatherAPISource {
	if log == nil {
		log = slog.Default()
	}
	return &WeatherAPISource{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		unit:    unit,
		http:    newRequester("weatherapi", client, DefaultBackoff, log),
		log:     log.With("source", "weatherapi"),
	}
}

// WithBaseURL points the source at another endpoint.
func (p *WeatherAPISource) WithBaseURL(u string) *WeatherAPISource {
	p.baseURL = u
	return p
}

func (p *WeatherAPISource) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location struct {
		TzID string `json:"tz_id"`
	} `json:"location"`
	Current struct {
		TempC float64 `json:"temp_c"`
		TempF float64 `json:"temp_f"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Hour []struct {
				Time         string  `json:"time"`
				TempC        float64 `json:"temp_c"`
				TempF        float64 `json:"temp_f"`
				PrecipMm     float64 `json:"precip_mm"`
				PrecipIn     float64 `json:"precip_in"`
				ChanceOfRain float64 `json:"chance_of_rain"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPISource) Fetch(ctx context.Context, loc weather.Location) (weather.Series, error) {
	if p.apiKey == "" {
		return weather.Series{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	if loc.HasCoordinates() {
		values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}
	values.Set("days", strconv.Itoa(weather.ForecastDays))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	body, err := p.http.get(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.Series{}, fmt.Errorf("weatherapi fetch: %w", err)
	}

	var payload weatherAPIPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Series{}, fmt.Errorf("weatherapi decode: %w", err)
	}

	series, err := p.toSeries(payload)
	if err != nil {
		p.log.Warn("weatherapi payload has invalid structure", "location", loc.Key(), "error", err)
		return weather.Series{Unit: p.unit}, nil
	}
	return series, nil
}

func (p *WeatherAPISource) toSeries(payload weatherAPIPayload) (weather.Series, error) {
	zone := time.UTC
	if payload.Location.TzID != "" {
		if z, err := time.LoadLocation(payload.Location.TzID); err == nil {
			zone = z
		}
	}

	fahrenheit := p.unit == weather.UnitFahrenheit
	series := weather.Series{Unit: p.unit}

	current := payload.Current.TempC
	if fahrenheit {
		current = payload.Current.TempF
	}
	series.Current = &current

	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			ts, err := time.ParseInLocation(weatherAPILocalLayout, h.Time, zone)
			if err != nil {
				return weather.Series{}, fmt.Errorf("%w: hour time %q: %v", weather.ErrInvalidStructure, h.Time, err)
			}
			s := weather.HourlySample{
				Time:          ts,
				Temperature:   h.TempC,
				Precipitation: h.PrecipMm,
				RainChance:    h.ChanceOfRain,
			}
			if fahrenheit {
				s.Temperature = h.TempF
				s.Precipitation = h.PrecipIn
			}
			series.Samples = append(series.Samples, s)
		}
	}
	return series, nil
}
