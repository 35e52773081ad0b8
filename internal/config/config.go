package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Cart merge policies applied when a shopper logs in.
const (
	MergeServerWins = "server-wins"
	MergeLocal      = "merge-local"
)

// Config holds all configuration for the storefront agent.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server for the UI
	HTTPPort       int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8090"`
	AllowedOrigins []string `env:"STOREFRONT_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000" envSeparator:","`
	PprofCIDRs     []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Shop backend
	ShopAPIBaseURL    string        `env:"SHOP_API_BASE_URL" envDefault:"http://localhost:8080/api"`
	ShopAPITimeout    time.Duration `env:"SHOP_API_TIMEOUT" envDefault:"10s"`
	ShopAPIMaxRetries int           `env:"SHOP_API_MAX_RETRIES" envDefault:"2"`
	ShopAPIRateLimit  float64       `env:"SHOP_API_RATE_LIMIT" envDefault:"0"`
	// Prefix for relative product image paths. Defaults to the API base URL.
	AssetBaseURL string `env:"SHOP_ASSET_BASE_URL"`

	// Local storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	StoragePath    string `env:"STORAGE_PATH" envDefault:"./data/storefront.db"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"storefront:"`
	// Zero disables slow query warnings.
	StorageSlowQuery time.Duration `env:"STORAGE_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	// Zero keeps keys forever.
	StorageTTLHours int `env:"STORAGE_TTL_HOURS" envDefault:"0"`

	// Cart behaviour
	CartMergePolicy       string `env:"CART_MERGE_POLICY" envDefault:"server-wins"`
	CartRollbackOnFailure bool   `env:"CART_ROLLBACK_ON_FAILURE" envDefault:"false"`

	// Cart activity forwarding. Empty brokers disable it.
	CartEventsBrokers []string `env:"CART_EVENTS_KAFKA_BROKERS" envSeparator:","`
	CartEventsTopic   string   `env:"CART_EVENTS_TOPIC" envDefault:"storefront.cart.activity"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// StorageTTL returns the key expiry for the redis backend.
func (c *Config) StorageTTL() time.Duration {
	return time.Duration(c.StorageTTLHours) * time.Hour
}

// AssetBase returns the prefix for relative product image paths.
func (c *Config) AssetBase() string {
	if c.AssetBaseURL != "" {
		return c.AssetBaseURL
	}
	return c.ShopAPIBaseURL
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if u, err := url.Parse(c.ShopAPIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SHOP_API_BASE_URL must be an absolute URL, got %q", c.ShopAPIBaseURL))
	}
	if c.ShopAPITimeout <= 0 {
		errs = append(errs, errors.New("SHOP_API_TIMEOUT must be positive"))
	}
	if c.ShopAPIMaxRetries < 0 {
		errs = append(errs, errors.New("SHOP_API_MAX_RETRIES must not be negative"))
	}
	if c.ShopAPIRateLimit < 0 {
		errs = append(errs, errors.New("SHOP_API_RATE_LIMIT must not be negative"))
	}
	switch c.StorageBackend {
	case StorageSQLite:
		if c.StoragePath == "" {
			errs = append(errs, errors.New("STORAGE_PATH is required for the sqlite backend"))
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be one of sqlite, redis, memory, got %q", c.StorageBackend))
	}
	if c.StorageTTLHours < 0 {
		errs = append(errs, errors.New("STORAGE_TTL_HOURS must not be negative"))
	}
	if c.CartMergePolicy != MergeServerWins && c.CartMergePolicy != MergeLocal {
		errs = append(errs, fmt.Errorf("CART_MERGE_POLICY must be %q or %q, got %q", MergeServerWins, MergeLocal, c.CartMergePolicy))
	}
	if len(c.CartEventsBrokers) > 0 && c.CartEventsTopic == "" {
		errs = append(errs, errors.New("CART_EVENTS_TOPIC is required when CART_EVENTS_KAFKA_BROKERS is set"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be between 0.0 and 1.0"))
	}
	return errors.Join(errs...)
}
