package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// Feed sources.
const (
	SourceBackend     = "backend"
	SourceOpenWeather = "openweather"
	SourceWeatherAPI  = "weatherapi"
	SourceOpenMeteo   = "openmeteo"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type AppConfig struct {
	AppName   string `envconfig:"APP_NAME" yaml:"app_name"`
	AppEnv    string `envconfig:"APP_ENV" yaml:"app_env"`
	Port      string `envconfig:"PORT" yaml:"port"`
	LogLevel  string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	SentryDSN string `envconfig:"SENTRY_DSN" yaml:"sentry_dsn"`

	// FeedSource selects where observations come from.
	FeedSource       string        `envconfig:"FEED_SOURCE" yaml:"feed_source"`
	FeedBaseURL      string        `envconfig:"FEED_BASE_URL" yaml:"feed_base_url"`
	FeedToken        string        `envconfig:"FEED_TOKEN" yaml:"feed_token"`
	FeedListPath     string        `envconfig:"FEED_LIST_PATH" yaml:"feed_list_path"`
	FeedSavePath     string        `envconfig:"FEED_SAVE_PATH" yaml:"feed_save_path"`
	TriggerOnRefresh bool          `envconfig:"FEED_TRIGGER_ON_REFRESH" yaml:"feed_trigger_on_refresh"`
	FeedDays         int           `envconfig:"FEED_DAYS" yaml:"feed_days"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" yaml:"http_timeout"`

	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY" yaml:"openweather_api_key"`
	WeatherAPIKey     string `envconfig:"WEATHERAPI_API_KEY" yaml:"weatherapi_api_key"`
	GeocoderAPIKey    string `envconfig:"GEOCODER_API_KEY" yaml:"geocoder_api_key"`

	LocationCity    string   `envconfig:"LOCATION_CITY" yaml:"location_city"`
	LocationCountry string   `envconfig:"LOCATION_COUNTRY" yaml:"location_country"`
	LocationLat     *float64 `envconfig:"LOCATION_LAT" yaml:"location_lat"`
	LocationLon     *float64 `envconfig:"LOCATION_LON" yaml:"location_lon"`

	// RefreshInterval controls how often the forecast is refreshed; 0 disables the schedule.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" yaml:"refresh_interval"`
	RefreshTimeout  time.Duration `envconfig:"REFRESH_TIMEOUT" yaml:"refresh_timeout"`

	StoreDriver     string        `envconfig:"STORE_DRIVER" yaml:"store_driver"`
	StoreDSN        string        `envconfig:"STORE_DSN" yaml:"store_dsn"`
	StoreMaxHistory int           `envconfig:"STORE_MAX_HISTORY" yaml:"store_max_history"` // 0 = unlimited
	StoreMaxAge     time.Duration `envconfig:"STORE_MAX_AGE" yaml:"store_max_age"`         // 0 = unlimited

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" yaml:"kafka_topic"`
}

func defaults() *AppConfig {
	return &AppConfig{
		AppName:         "forecast-aggregation",
		AppEnv:          "development",
		Port:            "8080",
		LogLevel:        "info",
		FeedSource:      SourceBackend,
		FeedListPath:    "/weatherList",
		FeedSavePath:    "/weatherSave",
		FeedDays:        5,
		HTTPTimeout:     10 * time.Second,
		LocationCity:    "São Paulo",
		LocationCountry: "BR",
		RefreshInterval: 15 * time.Minute,
		RefreshTimeout:  30 * time.Second,
		StoreDriver:     DriverMemory,
		StoreDSN:        "forecast.db",
		StoreMaxHistory: 96, // roughly 24h at 15-minute intervals
		StoreMaxAge:     24 * time.Hour,
		KafkaTopic:      "forecast-days",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment variable parsing: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that would keep the service from starting.
func (c *AppConfig) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.LocationCity == "" || c.LocationCountry == "" {
		return errors.New("LOCATION_CITY and LOCATION_COUNTRY are required")
	}
	if (c.LocationLat == nil) != (c.LocationLon == nil) {
		return errors.New("LOCATION_LAT and LOCATION_LON must be set together")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.RefreshInterval < 0 {
		return errors.New("REFRESH_INTERVAL must not be negative")
	}
	if c.RefreshTimeout <= 0 {
		return errors.New("REFRESH_TIMEOUT must be positive")
	}
	if c.StoreMaxHistory < 0 || c.StoreMaxAge < 0 {
		return errors.New("STORE_MAX_HISTORY and STORE_MAX_AGE must not be negative")
	}

	switch c.FeedSource {
	case SourceBackend:
		if c.FeedBaseURL == "" {
			return errors.New("FEED_BASE_URL is required when FEED_SOURCE=backend")
		}
	case SourceOpenWeather:
		if c.OpenWeatherAPIKey == "" {
			return errors.New("OPENWEATHER_API_KEY is required when FEED_SOURCE=openweather")
		}
	case SourceWeatherAPI:
		if c.WeatherAPIKey == "" {
			return errors.New("WEATHERAPI_API_KEY is required when FEED_SOURCE=weatherapi")
		}
	case SourceOpenMeteo:
		if c.LocationLat == nil && c.GeocoderAPIKey == "" {
			return errors.New("FEED_SOURCE=openmeteo needs LOCATION_LAT/LOCATION_LON or GEOCODER_API_KEY")
		}
	default:
		return fmt.Errorf("unknown FEED_SOURCE %q", c.FeedSource)
	}
	if c.FeedSource != SourceBackend && c.FeedDays <= 0 {
		return errors.New("FEED_DAYS must be positive")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.StoreDSN == "" {
			return errors.New("STORE_DSN is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// Location is the place every refresh reports for.
func (c *AppConfig) Location() weather.Location {
	return weather.Location{
		City:    c.LocationCity,
		Country: c.LocationCountry,
		Lat:     c.LocationLat,
		Lon:     c.LocationLon,
	}
}

func (c *AppConfig) IsProduction() bool {
	return c.AppEnv == "production"
}
