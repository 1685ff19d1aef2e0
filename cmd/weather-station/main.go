package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"code.cloudfoundry.org/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-station/internal/api/http"
	"github.com/i474232898/weather-station/internal/config"
	"github.com/i474232898/weather-station/internal/dashboard"
	"github.com/i474232898/weather-station/internal/db"
	"github.com/i474232898/weather-station/internal/logging"
	"github.com/i474232898/weather-station/internal/mqtt"
	"github.com/i474232898/weather-station/internal/readings"
	"github.com/i474232898/weather-station/internal/scheduler"
	"github.com/i474232898/weather-station/internal/store"
	"github.com/i474232898/weather-station/internal/weather"
	"github.com/i474232898/weather-station/internal/weather/providers"
)

const appName = "weather-station"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logging.New(cfg, os.Stdout, appName)
	slog.SetDefault(logr)

	clk := clock.NewClock()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	source := newSource(cfg, httpClient, clk, logr)

	// In-memory history with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge, clk)
	sinks := []dashboard.Sink{memStore}

	if cfg.MQTTBroker != "" {
		pub := mqtt.NewPublisher(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			Port:        cfg.MQTTPort,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, logr)
		connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := pub.Connect(connectCtx); err != nil {
			logr.Warn("mqtt unavailable; dashboard broadcast disabled", "error", err)
		} else {
			sinks = append(sinks, pub)
			defer pub.Disconnect()
		}
		cancel()
	}

	opts := []dashboard.Option{
		dashboard.WithClock(clk),
		dashboard.WithLogger(logr.With("component", "dashboard")),
		dashboard.WithSinks(sinks...),
	}
	if cfg.GeocoderAPIKey != "" {
		opts = append(opts, dashboard.WithGeocoder(providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)))
	}
	dash := dashboard.New(source, cfg.Location, opts...)

	var recorder *readings.Recorder
	if cfg.SQLitePath != "" {
		sqlDB, err := db.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open reading log: %v", err)
		}
		defer sqlDB.Close()

		repo, err := readings.NewRepository(context.Background(), sqlDB)
		if err != nil {
			log.Fatalf("failed to prepare reading log: %v", err)
		}
		recorder = readings.NewRecorder(readings.NewSensor(clk, nil), repo)
	}

	// Scheduler that periodically refreshes the dashboard; also does the first load.
	sched := scheduler.New(cfg.RefreshInterval, cfg.HTTPTimeout*3, dash, logr)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()
	if cfg.RefreshInterval <= 0 {
		go func() {
			if _, err := dash.Refresh(context.Background()); err != nil {
				logr.Warn("initial refresh failed", "error", err)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout*3 + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
			"source":  source.Name(),
		})
	})

	deps := httpapi.Deps{
		Dashboard:      dash,
		History:        memStore,
		RefreshTimeout: cfg.HTTPTimeout * 3,
		Log:            logr.With("component", "http"),
	}
	if recorder != nil {
		deps.Readings = recorder
	}
	httpapi.RegisterRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logr.Error("fiber server stopped", "error", err)
		}
	}()
	logr.Info("listening", "port", cfg.Port, "source", source.Name(), "location", cfg.Location.Key())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logr.Error("error during shutdown", "error", err)
	}
}

func newSource(cfg *config.AppConfig, client *http.Client, clk clock.Clock, logr *slog.Logger) weather.Source {
	switch cfg.DataSource {
	case config.SourceMock:
		return providers.NewMockSource(clk, cfg.ZoneOrLocal(), cfg.Unit, nil)
	case config.SourceWeatherAPI:
		return providers.NewWeatherAPISource(client, cfg.WeatherAPIKey, cfg.Unit, logr)
	default:
		return providers.NewOpenMeteoSource(client, cfg.Unit, logr)
	}
}
