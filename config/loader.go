// Package config loads application configuration from YAML, with
// secrets and overrides taken from the environment (and .env files).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding config file values.
const (
	EnvAPIKey      = "TIMETABLE_API_KEY"
	EnvAgency      = "TIMETABLE_AGENCY"
	EnvStatic      = "TIMETABLE_STATIC"
	EnvStorage     = "TIMETABLE_STORAGE"
	EnvDSN         = "TIMETABLE_DSN"
	EnvListen      = "TIMETABLE_LISTEN"
	EnvLogLevel    = "TIMETABLE_LOG_LEVEL"
	EnvMinDelaySec = "TIMETABLE_MIN_DELAY_SEC"
)

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Feed: FeedConfig{
			StopIDLength:   5,
			StopNameSuffix: " Caltrain",
			CacheTTLSec:    12 * 60 * 60,
		},
		Realtime: RealtimeConfig{
			BaseURL:      "https://api.511.org/transit",
			Agency:       "CT",
			MinDelaySec:  10,
			TimeoutSec:   30,
			RateLimitRPS: 1,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Server: ServerConfig{
			Listen: "localhost:8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (if not empty) over the defaults, loads .env files
// from the working directory, applies environment overrides and
// validates the result.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	// Missing .env files are fine.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString(EnvAPIKey, &cfg.Realtime.APIKey)
	setString(EnvAgency, &cfg.Realtime.Agency)
	setString(EnvStatic, &cfg.Feed.Static)
	setString(EnvStorage, &cfg.Storage.Backend)
	setString(EnvDSN, &cfg.Storage.DSN)
	setString(EnvListen, &cfg.Server.Listen)
	setString(EnvLogLevel, &cfg.Logging.Level)

	if v, ok := os.LookupEnv(EnvMinDelaySec); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMinDelaySec, err)
		}
		cfg.Realtime.MinDelaySec = n
	}

	return nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
