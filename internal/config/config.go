package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-station/internal/weather"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	SourceOpenMeteo  = "openmeteo"
	SourceWeatherAPI = "weatherapi"
	SourceMock       = "mock"
)

type AppConfig struct {
	AppEnv   string     `validate:"oneof=dev prod"`
	LogLevel slog.Level `validate:"-"`
	Port     string     `validate:"required,numeric"`

	// DataSource selects where hourly samples come from.
	DataSource string                  `validate:"oneof=openmeteo weatherapi mock"`
	Unit       weather.TemperatureUnit `validate:"oneof=celsius fahrenheit"`
	Location   weather.Location        `validate:"-"`

	WeatherAPIKey  string `validate:"required_if=DataSource weatherapi"`
	GeocoderAPIKey string

	HTTPTimeout time.Duration `validate:"gt=0"`

	// RefreshInterval controls automatic refreshes; 0 disables them.
	RefreshInterval time.Duration `validate:"gte=0"`

	// In-memory history retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of snapshots (0 = unlimited)

	// SQLitePath is the sensor reading log; empty disables it.
	SQLitePath string

	MQTTBroker      string
	MQTTPort        int `validate:"gte=1,lte=65535"`
	MQTTClientID    string
	MQTTTopicPrefix string
}

var validate = validator.New()

// Load reads configuration from .env and the environment with sensible defaults.
// Location defaults to San Jose, US.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = strings.ToLower(getenvDefault("APP_ENV", EnvDev))
	cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.DataSource = strings.ToLower(getenvDefault("DATA_SOURCE", SourceOpenMeteo))
	cfg.Unit = weather.TemperatureUnit(strings.ToLower(getenvDefault("TEMPERATURE_UNIT", string(weather.UnitFahrenheit))))
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Location, err = loadLocation()
	if err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "data/readings.db")
	if strings.EqualFold(cfg.SQLitePath, "off") {
		cfg.SQLitePath = ""
	}

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTPort = getenvInt("MQTT_PORT", 1883)
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "weather-station")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "weather-station")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ZoneOrLocal returns the configured IANA zone, or time.Local when it is unset or unknown.
func (c *AppConfig) ZoneOrLocal() *time.Location {
	if c.Location.Timezone == "" || c.Location.Timezone == "auto" {
		return time.Local
	}
	z, err := time.LoadLocation(c.Location.Timezone)
	if err != nil {
		return time.Local
	}
	return z
}

func loadLocation() (weather.Location, error) {
	loc := weather.Location{
		City:     getenvDefault("WEATHER_LOCATION_CITY", "San Jose"),
		Country:  getenvDefault("WEATHER_LOCATION_COUNTRY", "US"),
		Timezone: getenvDefault("WEATHER_TIMEZONE", "America/Los_Angeles"),
	}

	lat, err := strconv.ParseFloat(getenvDefault("WEATHER_LATITUDE", "37.3382"), 64)
	if err != nil {
		return loc, fmt.Errorf("invalid WEATHER_LATITUDE: %w", err)
	}
	lon, err := strconv.ParseFloat(getenvDefault("WEATHER_LONGITUDE", "-121.8863"), 64)
	if err != nil {
		return loc, fmt.Errorf("invalid WEATHER_LONGITUDE: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return loc, fmt.Errorf("coordinates out of range: %f,%f", lat, lon)
	}
	loc.Lat = &lat
	loc.Lon = &lon
	return loc, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
