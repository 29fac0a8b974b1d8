package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      StorageConfig
	ImageBaseURL string        `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	StoreTimeout time.Duration `default:"5s" usage:"Upper bound for a single store call on the order path" flag:"store-timeout"`
	Defaults     DefaultsConfig
	JWT          JWTConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `default:"postgres" usage:"Storage driver: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// DefaultsConfig holds values filled into orders that the checkout form does
// not collect.
type DefaultsConfig struct {
	City        string `default:"Cairo" usage:"City recorded on new orders"`
	Governorate string `default:"Cairo" usage:"Governorate recorded on new orders"`
}

// JWTConfig controls admin access tokens.
type JWTConfig struct {
	Secret string        `usage:"HMAC secret for admin tokens" flag:"jwt-secret"`
	TTL    time.Duration `default:"24h" usage:"Admin token lifetime" flag:"jwt-ttl"`
}

// RedisConfig enables the product read-through cache when URL is set.
type RedisConfig struct {
	URL string        `usage:"Redis URL (STORE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	TTL time.Duration `default:"5m" usage:"Product cache entry lifetime" flag:"redis-ttl"`
}

// KafkaConfig enables the order event relay when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `usage:"Kafka broker addresses" flag:"kafka-brokers"`
	Topic        string        `default:"storefront.orders" usage:"Topic for order events" flag:"kafka-topic"`
	PollInterval time.Duration `default:"1s" usage:"Outbox poll interval" flag:"outbox-poll-interval"`
}

// RateLimitConfig controls the per-client token bucket limits.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// Guarded is the per-route budget for admin login and promo validation.
	Guarded GuardedLimitConfig
}

// GuardedLimitConfig is the budget for endpoints that answer guesses.
type GuardedLimitConfig struct {
	Max    int           `default:"10" usage:"Max login or promo validation attempts per window"`
	Window time.Duration `default:"1m" usage:"Guarded route window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STORE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required: set STORE_JWT_SECRET")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
