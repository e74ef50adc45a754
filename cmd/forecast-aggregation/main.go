package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/forecast-aggregation/internal/api/http"
	"github.com/i474232898/forecast-aggregation/internal/config"
	"github.com/i474232898/forecast-aggregation/internal/logger"
	"github.com/i474232898/forecast-aggregation/internal/observability"
	"github.com/i474232898/forecast-aggregation/internal/publish"
	"github.com/i474232898/forecast-aggregation/internal/scheduler"
	"github.com/i474232898/forecast-aggregation/internal/store"
	"github.com/i474232898/forecast-aggregation/internal/weather"
	"github.com/i474232898/forecast-aggregation/internal/weather/providers"
)

func main() {
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, flush := newLogger(cfg)
	defer flush()
	if dotenvErr != nil {
		log.Debug("no .env file loaded", map[string]any{"error": dotenvErr.Error()})
	}

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", err)
		flush()
		os.Exit(1)
	}
}

// newLogger builds the application logger, forwarding errors to Sentry when a DSN is configured.
func newLogger(cfg *config.AppConfig) (*logger.Logger, func()) {
	if cfg.SentryDSN == "" {
		log := logger.New(cfg.AppName, cfg.AppEnv, cfg.LogLevel)
		return log, func() { _ = log.Sync() }
	}

	hook, err := logger.NewSentryHook(cfg.AppName, cfg.AppEnv, cfg.SentryDSN)
	if err != nil {
		log := logger.New(cfg.AppName, cfg.AppEnv, cfg.LogLevel)
		log.Error("sentry disabled", err)
		return log, func() { _ = log.Sync() }
	}
	log := logger.New(cfg.AppName, cfg.AppEnv, cfg.LogLevel, os.Stdout, hook)
	return log, func() {
		_ = log.Sync()
		hook.Flush()
	}
}

func run(cfg *config.AppConfig, log *logger.Logger) error {
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	forecasts, closeStore, err := newStore(cfg, clock)
	if err != nil {
		return err
	}
	defer closeStore()

	feed, err := newFeed(cfg, httpClient, metrics)
	if err != nil {
		return err
	}

	opts := []weather.Option{
		weather.WithLogger(log),
		weather.WithMetrics(metrics),
		weather.WithClock(clock),
	}
	if trigger, ok := feed.(weather.Trigger); ok && cfg.TriggerOnRefresh {
		opts = append(opts, weather.WithTrigger(trigger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := publish.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, metrics)
		defer func() {
			if err := pub.Close(); err != nil {
				log.Error("kafka publisher close failed", err)
			}
		}()
		opts = append(opts, weather.WithPublisher(pub))
	}

	// Core service orchestrating feed, pipeline and store.
	service := weather.NewService(cfg.Location(), feed, forecasts, opts...)

	sched := scheduler.New(service, cfg.RefreshInterval, cfg.RefreshTimeout, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RefreshTimeout + 5*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
	app.Use(cors.New())
	app.Use(healthcheck.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"service":    cfg.AppName,
			"refreshing": service.Busy(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]any{"port": cfg.Port, "feed": feed.Name(), "store": cfg.StoreDriver})
		errCh <- app.Listen(":" + cfg.Port)
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func newStore(cfg *config.AppConfig, clock clockwork.Clock) (weather.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.StoreDSN, cfg.StoreMaxHistory)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge, clock), func() {}, nil
	}
}

func newFeed(cfg *config.AppConfig, client *http.Client, metrics *observability.Metrics) (weather.Feed, error) {
	switch cfg.FeedSource {
	case config.SourceOpenWeather:
		return providers.NewOpenWeatherFeed(client, cfg.OpenWeatherAPIKey, cfg.Location(), metrics), nil
	case config.SourceWeatherAPI:
		return providers.NewWeatherAPIFeed(client, cfg.WeatherAPIKey, cfg.FeedDays, cfg.Location(), metrics), nil
	case config.SourceOpenMeteo:
		var geocode providers.GeocodeFunc
		if cfg.GeocoderAPIKey != "" {
			geocode = providers.GoogleGeocoder(cfg.GeocoderAPIKey)
		}
		return providers.NewOpenMeteoFeed(client, cfg.FeedDays, cfg.Location(), geocode, metrics), nil
	default:
		return providers.NewBackendFeed(client, providers.BackendConfig{
			BaseURL:  cfg.FeedBaseURL,
			ListPath: cfg.FeedListPath,
			SavePath: cfg.FeedSavePath,
			Token:    cfg.FeedToken,
		}, metrics)
	}
}
