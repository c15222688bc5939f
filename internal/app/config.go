package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodhub-storefront/internal/domain/pricing"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
)

// Storage drivers for persisted carts.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (FOODHUB_ prefix), flags, or YAML config files.
type Config struct {
	Addr              string `default:"0.0.0.0:8080" usage:"API server listen address"`
	API               APIConfig
	Storage           StorageConfig
	Pricing           PricingConfig
	RateLimit         RateLimitConfig
	CheckoutRateLimit CheckoutRateLimitConfig
	CORS              CORSConfig
	Graceful          GracefulConfig
}

// APIConfig points at the remote FoodHub API and auth service.
type APIConfig struct {
	URL     string        `default:"https://foodhub-api.tariqul.dev/api" usage:"FoodHub REST API base URL" flag:"api-url"`
	AuthURL string        `default:"https://foodhub-api.tariqul.dev" usage:"Auth service base URL" flag:"auth-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request timeout for API calls"`
	Breaker BreakerConfig
}

// BreakerConfig controls the circuit breaker in front of the API.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `default:"5"   usage:"Consecutive failures that open the breaker"`
	MaxRequests         uint32        `default:"1"   usage:"Requests allowed while half-open"`
	Interval            time.Duration `default:"1m"  usage:"Window after which closed-state counts reset"`
	Timeout             time.Duration `default:"30s" usage:"How long the breaker stays open"`
}

// StorageConfig selects where carts are persisted.
type StorageConfig struct {
	Driver      string        `default:"memory" usage:"Cart storage driver: memory, redis or postgres" flag:"storage"`
	RedisURL    string        `usage:"Redis URL (FOODHUB_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	DatabaseURL string        `usage:"PostgreSQL URL (FOODHUB_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	CartTTL     time.Duration `default:"720h" usage:"Expiry of persisted carts in Redis; zero keeps them"`
	CartIdleTTL time.Duration `default:"30m" usage:"Eviction delay of idle in-memory carts"`
}

// PricingConfig holds the checkout pricing parameters.
type PricingConfig struct {
	DeliveryFee string `default:"2.00" usage:"Flat delivery fee"`
	TaxRate     string `default:"0.10" usage:"Tax rate applied to the subtotal"`
}

// RateLimitConfig controls a sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CheckoutRateLimitConfig limits checkout attempts per user.
type CheckoutRateLimitConfig struct {
	Max    int           `default:"5"  usage:"Max checkouts per user per window"`
	Window time.Duration `default:"1m" usage:"Checkout rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (session cookies)" flag:"cors-credentials"`
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
		EnvPrefix: "FOODHUB",
		Files:     []string{"config.yaml", "/etc/foodhub/config.yaml"},
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

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required: set FOODHUB_STORAGE_REDIS_URL or REDIS_URL")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set FOODHUB_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.CartIdleTTL <= 0 {
		return errors.New("cart idle TTL must be positive")
	}
	if c.RateLimit.Max <= 0 || c.CheckoutRateLimit.Max <= 0 {
		return errors.New("rate limits must allow at least one request")
	}
	if _, err := c.Pricing.Calculator(); err != nil {
		return err
	}
	return nil
}

// Calculator parses the pricing parameters.
func (p PricingConfig) Calculator() (pricing.Calculator, error) {
	fee, err := decimal.NewFromString(p.DeliveryFee)
	if err != nil {
		return pricing.Calculator{}, errors.Wrap(err, "parse delivery fee")
	}
	rate, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return pricing.Calculator{}, errors.Wrap(err, "parse tax rate")
	}
	if fee.IsNegative() || rate.IsNegative() {
		return pricing.Calculator{}, errors.New("delivery fee and tax rate must not be negative")
	}
	return pricing.Calculator{DeliveryFee: fee, TaxRate: rate}, nil
}

func (c APIConfig) client() foodapi.Config {
	return foodapi.Config{
		BaseURL: c.URL,
		Timeout: c.Timeout,
		Breaker: foodapi.BreakerConfig{
			ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
			MaxRequests:         c.Breaker.MaxRequests,
			Interval:            c.Breaker.Interval,
			Timeout:             c.Breaker.Timeout,
		},
	}
}
