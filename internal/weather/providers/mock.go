package providers

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/i474232898/weather-station/internal/weather"
)

// MockSource generates a synthetic week of hourly samples starting at today's
// midnight: a daily sine curve around a per-day base temperature plus noise.
// Coordinates are ignored; the city only labels the result.
type MockSource struct {
	clock clock.Clock
	zone  *time.Location
	unit  weather.TemperatureUnit

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockSource returns a mock source. A nil rnd seeds from the runtime.
func NewMockSource(clk clock.Clock, zone *time.Location, unit weather.TemperatureUnit, rnd *rand.Rand) *MockSource {
	if clk == nil {
		clk = clock.NewClock()
	}
	if zone == nil {
		zone = time.Local
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &MockSource{clock: clk, zone: zone, unit: unit, rnd: rnd}
}

func (m *MockSource) Name() string {
	return "mock"
}

func (m *MockSource) Fetch(ctx context.Context, _ weather.Location) (weather.Series, error) {
	if err := ctx.Err(); err != nil {
		return weather.Series{}, err
	}

	now := m.clock.Now().In(m.zone)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.zone)

	m.mu.Lock()
	defer m.mu.Unlock()

	samples := make([]weather.HourlySample, 0, weather.ForecastDays*weather.HoursPerDay)
	for day := range weather.ForecastDays {
		base := 15 + m.rnd.Float64()*10
		wet := m.rnd.Float64() < 0.4
		for hour := range weather.HoursPerDay {
			celsius := base + math.Sin(float64(hour)/24*math.Pi*2)*5 + m.rnd.Float64()*2

			s := weather.HourlySample{
				Time:        start.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour),
				Temperature: math.Round(m.convert(celsius)*10) / 10,
			}
			if wet {
				s.RainChance = math.Round(40 + m.rnd.Float64()*60)
				s.Precipitation = math.Round(m.rnd.Float64()*2*100) / 100
			} else {
				s.RainChance = math.Round(m.rnd.Float64() * 30)
			}
			samples = append(samples, s)
		}
	}

	current := samples[now.Hour()].Temperature
	return weather.Series{Samples: samples, Current: &current, Unit: m.unit}, nil
}

func (m *MockSource) convert(celsius float64) float64 {
	if m.unit == weather.UnitFahrenheit {
		return celsius*9/5 + 32
	}
	return celsius
}
