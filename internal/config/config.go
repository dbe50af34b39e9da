// Package config loads Harrier configuration from the environment.
// Defaults come from the tier (community or pro); HARRIER_* variables
// override individual settings. A .env file in the working directory is
// loaded first if present.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Load builds the configuration from tier defaults and environment
// overrides.
func Load() *domain.Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg := domain.DefaultConfig()
	if os.Getenv("HARRIER_TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *domain.Config) {
	setString(&cfg.Server.Host, "HARRIER_HOST")
	setInt(&cfg.Server.Port, "HARRIER_PORT")
	setInt(&cfg.Server.ReadTimeout, "HARRIER_READ_TIMEOUT")
	setInt(&cfg.Server.WriteTimeout, "HARRIER_WRITE_TIMEOUT")

	setString(&cfg.Repository.Driver, "HARRIER_DB_DRIVER")
	setString(&cfg.Repository.SQLitePath, "HARRIER_SQLITE_PATH")
	setString(&cfg.Repository.PostgresHost, "HARRIER_POSTGRES_HOST")
	setInt(&cfg.Repository.PostgresPort, "HARRIER_POSTGRES_PORT")
	setString(&cfg.Repository.PostgresUser, "HARRIER_POSTGRES_USER")
	setString(&cfg.Repository.PostgresPassword, "HARRIER_POSTGRES_PASSWORD")
	setString(&cfg.Repository.PostgresDB, "HARRIER_POSTGRES_DB")
	setString(&cfg.Repository.PostgresSSLMode, "HARRIER_POSTGRES_SSLMODE")

	setString(&cfg.Cache.Type, "HARRIER_CACHE_TYPE")
	setString(&cfg.Cache.RedisAddr, "HARRIER_REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "HARRIER_REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "HARRIER_REDIS_DB")
	setBool(&cfg.Cache.EnableTwoPhase, "HARRIER_CACHE_TWO_PHASE")

	setString(&cfg.EventBus.Type, "HARRIER_BUS_TYPE")
	setString(&cfg.EventBus.NATSUrl, "HARRIER_NATS_URL")
	setString(&cfg.EventBus.NATSToken, "HARRIER_NATS_TOKEN")

	setFloat(&cfg.AlertThreshold, "HARRIER_ALERT_THRESHOLD")

	setString(&cfg.Logging.Level, "HARRIER_LOG_LEVEL")
	setString(&cfg.Logging.Format, "HARRIER_LOG_FORMAT")
	setBool(&cfg.Tracing.Enabled, "HARRIER_TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "HARRIER_TRACING_ENDPOINT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			slog.Warn("ignoring invalid config value", "key", key, "value", v)
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		} else {
			slog.Warn("ignoring invalid config value", "key", key, "value", v)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else {
			slog.Warn("ignoring invalid config value", "key", key, "value", v)
		}
	}
}

// LogLevel maps the configured level name to a slog level.
func LogLevel(cfg *domain.Config) slog.Level {
	switch cfg.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
