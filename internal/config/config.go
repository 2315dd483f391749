package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the full runtime configuration, read once at boot from the
// environment. A missing or unparseable required value is fatal before any
// listener starts.
type Config struct {
	// DatabaseURL is the DSN for schema management (migrations, zone loads).
	DatabaseURL string
	// PoolURL is the DSN the serving pool connects with. Prefers
	// ASYNC_DATABASE_CONNECTION_STRING, falling back to DatabaseURL.
	PoolURL string

	// DeadVehicleTimeoutSeconds is the silence budget: seconds without
	// telemetry before a vehicle is considered dead.
	DeadVehicleTimeoutSeconds int
	// ScanIntervalSeconds spaces dead-vehicle scanner ticks.
	ScanIntervalSeconds int

	// TelemetryWSURL is the upstream feed endpoint.
	TelemetryWSURL string

	ListenAddr  string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	// AllowedOrigins restricts subscriber upgrades; empty allows all.
	AllowedOrigins []string
}

// DeadVehicleTimeout returns the silence budget as a duration.
func (c *Config) DeadVehicleTimeout() time.Duration {
	return time.Duration(c.DeadVehicleTimeoutSeconds) * time.Second
}

// ScanInterval returns the scanner period as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// Load reads the full configuration for the serving process. A .env file in
// the working directory is honoured when present.
func Load() (*Config, error) {
	loadDotenv()

	cfg := &Config{
		ListenAddr:  ":8000",
		MetricsAddr: ":9091",
		LogLevel:    "info",
		LogFormat:   "json",
	}

	var missing []string
	var invalid []string

	cfg.DatabaseURL = normalizeDSN(os.Getenv("DATABASE_CONNECTION_STRING"))
	cfg.PoolURL = normalizeDSN(os.Getenv("ASYNC_DATABASE_CONNECTION_STRING"))
	if cfg.PoolURL == "" {
		cfg.PoolURL = cfg.DatabaseURL
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.PoolURL
	}
	if cfg.PoolURL == "" {
		missing = append(missing, "DATABASE_CONNECTION_STRING or ASYNC_DATABASE_CONNECTION_STRING")
	}

	cfg.TelemetryWSURL = os.Getenv("TELEMETRY_WS_URL")
	if cfg.TelemetryWSURL == "" {
		missing = append(missing, "TELEMETRY_WS_URL")
	}

	if val := os.Getenv("DEAD_AUV_TIMEOUT_SECONDS"); val == "" {
		missing = append(missing, "DEAD_AUV_TIMEOUT_SECONDS")
	} else if n, err := strconv.Atoi(val); err != nil || n <= 0 {
		invalid = append(invalid, "DEAD_AUV_TIMEOUT_SECONDS")
	} else {
		cfg.DeadVehicleTimeoutSeconds = n
	}

	if val := os.Getenv("DEAD_AUV_SCAN_INTERVAL_SECONDS"); val == "" {
		missing = append(missing, "DEAD_AUV_SCAN_INTERVAL_SECONDS")
	} else if n, err := strconv.Atoi(val); err != nil || n <= 0 {
		invalid = append(invalid, "DEAD_AUV_SCAN_INTERVAL_SECONDS")
	} else {
		cfg.ScanIntervalSeconds = n
	}

	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		cfg.ListenAddr = val
	}
	if val, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.LogFormat = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		for _, origin := range strings.Split(val, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid configuration (expected positive integers): %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// LoadDatabaseURL reads just the store DSN, for commands that touch the
// schema without running the pipeline.
func LoadDatabaseURL() (string, error) {
	loadDotenv()
	dsn := normalizeDSN(os.Getenv("DATABASE_CONNECTION_STRING"))
	if dsn == "" {
		dsn = normalizeDSN(os.Getenv("ASYNC_DATABASE_CONNECTION_STRING"))
	}
	if dsn == "" {
		return "", fmt.Errorf("missing required configuration: DATABASE_CONNECTION_STRING")
	}
	return dsn, nil
}

func loadDotenv() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env file")
	}
}

// normalizeDSN strips SQLAlchemy-style driver suffixes so DSNs copied from
// the reference deployment (postgresql+asyncpg://...) work unchanged.
func normalizeDSN(dsn string) string {
	sep := strings.Index(dsn, "://")
	if sep < 0 {
		return dsn
	}
	scheme := dsn[:sep]
	if plus := strings.Index(scheme, "+"); plus >= 0 {
		scheme = scheme[:plus]
	}
	return scheme + dsn[sep:]
}
