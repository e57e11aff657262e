package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource    string
	StoreDriver string
	Port        string
	Env         string

	PageSize    int
	MaxPageSize int

	// RedisAddr enables the shared token revocation list when set.
	RedisAddr     string
	RevocationTTL time.Duration

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	MetricsNamespace string
}

// Load reads the environment. A .env file in the working directory is
// loaded first when present; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBSource:         os.Getenv("DB_SOURCE"),
		StoreDriver:      getEnv("STORE_DRIVER", DriverPostgres),
		Port:             getEnv("SERVER_PORT", "8080"),
		Env:              getEnv("ENVIRONMENT", "development"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "ledger"),
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DBSource == "" {
			return nil, fmt.Errorf("DB_SOURCE environment variable is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver)
	}

	var err error
	if cfg.PageSize, err = getInt("PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = getInt("MAX_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.PageSize > cfg.MaxPageSize {
		return nil, fmt.Errorf("PAGE_SIZE (%d) exceeds MAX_PAGE_SIZE (%d)", cfg.PageSize, cfg.MaxPageSize)
	}

	failures, err := getInt("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	cfg.BreakerMaxFailures = uint32(failures)

	if cfg.BreakerOpenTimeout, err = getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RevocationTTL, err = getDuration("REVOCATION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
