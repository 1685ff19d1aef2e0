package weather

import (
	"time"
)

// TemperatureUnit is the unit system a Series is expressed in.
type TemperatureUnit string

const (
	UnitCelsius    TemperatureUnit = "celsius"
	UnitFahrenheit TemperatureUnit = "fahrenheit"
)

// Symbol returns the display suffix for the unit.
func (u TemperatureUnit) Symbol() string {
	if u == UnitFahrenheit {
		return "°F"
	}
	return "°C"
}

// Location represents a logical place for which we build the dashboard.
// Lat/Lon are optional; live sources that need coordinates reject a location without them.
type Location struct {
	City     string   `json:"city"`
	Country  string   `json:"country"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Timezone string   `json:"timezone,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// HourlySample is one timestamped reading. Precipitation and RainChance are
// zero when the source does not report them.
type HourlySample struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation,omitempty"`
	RainChance    float64   `json:"rainChance,omitempty"`
}

// Series is what a Source returns for one fetch. Samples are ordered by Time
// ascending, one per hour.
type Series struct {
	Samples []HourlySample
	Current *float64
	Unit    TemperatureUnit
}

// HourlyDisplayPoint is one point of the next-24-hours chart.
type HourlyDisplayPoint struct {
	Hour        int `json:"hour"`
	Temperature int `json:"temperature"`
}

// DailySummary is the card for one calendar day.
type DailySummary struct {
	Day                string       `json:"day"`
	Weekday            time.Weekday `json:"-"`
	Date               time.Time    `json:"date"`
	AverageTemperature int          `json:"averageTemperature"`
	High               int          `json:"high"`
	Low                int          `json:"low"`
	Precipitation      float64      `json:"precipitation"`
	RainChance         int          `json:"rainChance"`
}
