package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"

	EnvAppEnv         = "SHOP_APP_ENV"
	EnvHTTPAddr       = "SHOP_HTTP_ADDR"
	EnvStorageDriver  = "SHOP_STORAGE_DRIVER"
	EnvDBDSN          = "SHOP_DB_DSN"
	EnvRedisURL       = "SHOP_REDIS_URL"
	EnvPayPalClientID = "SHOP_PAYPAL_CLIENT_ID"
	EnvPayPalSecret   = "SHOP_PAYPAL_CLIENT_SECRET"
	EnvPayPalEnv      = "SHOP_PAYPAL_ENV"
	EnvSessionSecret  = "SHOP_SESSION_SECRET"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	App      AppConfig
	Storage  StorageConfig
	DB       DBConfig
	Redis    RedisConfig
	Cart     CartConfig
	Checkout CheckoutConfig
	PayPal   PayPalConfig
	Session  SessionConfig
	CORS     CORSConfig
	Catalog  CatalogConfig
}

// Load builds Config with defaults, overridden by environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageFile:
	case StorageRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s=redis requires %s", EnvStorageDriver, EnvRedisURL)
		}
	case StoragePostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s=postgres requires %s", EnvStorageDriver, EnvDBDSN)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, c.Storage.Driver)
	}
	if c.App.IsProd() && c.Session.Secret == defaultSessionSecret {
		return fmt.Errorf("%s must be set in production", EnvSessionSecret)
	}
	return nil
}

type AppConfig struct {
	Env             string        `envconfig:"SHOP_APP_ENV" default:"dev"`
	ServiceName     string        `envconfig:"SHOP_SERVICE_NAME" default:"sidehustle-shop"`
	HTTPAddr        string        `envconfig:"SHOP_HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"SHOP_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"SHOP_LOG_FORMAT" default:"json"`
	LogWarnStack    bool          `envconfig:"SHOP_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHOP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	Driver   string `envconfig:"SHOP_STORAGE_DRIVER" default:"memory"`
	FilePath string `envconfig:"SHOP_STORAGE_FILE" default:"data/storage.json"`
}

type DBConfig struct {
	DSN             string        `envconfig:"SHOP_DB_DSN"`
	MaxConns        int32         `envconfig:"SHOP_DB_MAX_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOP_DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOP_DB_CONN_MAX_IDLE_TIME" default:"5m"`
	AutoMigrate     bool          `envconfig:"SHOP_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOP_REDIS_URL"`
	Address      string        `envconfig:"SHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
	Channel      string        `envconfig:"SHOP_REDIS_CHANNEL" default:"shop:storage"`
}

type CartConfig struct {
	Key           string `envconfig:"SHOP_CART_KEY" default:"sidehustle_cart"`
	VersionKey    string `envconfig:"SHOP_CART_VERSION_KEY" default:"sidehustle_cart_version"`
	SchemaVersion int    `envconfig:"SHOP_CART_SCHEMA_VERSION" default:"2"`
}

type CheckoutConfig struct {
	Currency    string        `envconfig:"SHOP_CHECKOUT_CURRENCY" default:"USD"`
	SuccessPage string        `envconfig:"SHOP_CHECKOUT_SUCCESS_PAGE" default:"checkout-success.html"`
	NoticeTTL   time.Duration `envconfig:"SHOP_CHECKOUT_NOTICE_TTL" default:"5s"`
	BrandName   string        `envconfig:"SHOP_CHECKOUT_BRAND_NAME" default:"Side Hustle Studio"`
	StateKey    string        `envconfig:"SHOP_CHECKOUT_STATE_KEY" default:"sidehustle_checkout"`
}

type PayPalConfig struct {
	ClientID         string        `envconfig:"SHOP_PAYPAL_CLIENT_ID"`
	ClientSecret     string        `envconfig:"SHOP_PAYPAL_CLIENT_SECRET"`
	Env              string        `envconfig:"SHOP_PAYPAL_ENV" default:"sandbox"`
	Timeout          time.Duration `envconfig:"SHOP_PAYPAL_TIMEOUT" default:"15s"`
	BreakerFailures  uint32        `envconfig:"SHOP_PAYPAL_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor   time.Duration `envconfig:"SHOP_PAYPAL_BREAKER_OPEN_FOR" default:"30s"`
	BreakerHalfOpenN uint32        `envconfig:"SHOP_PAYPAL_BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

// Configured reports whether credentials are present.
func (p PayPalConfig) Configured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

const defaultSessionSecret = "dev-session-secret-change-me-0000"

type SessionConfig struct {
	Secret     string `envconfig:"SHOP_SESSION_SECRET" default:"dev-session-secret-change-me-0000"`
	CookieName string `envconfig:"SHOP_SESSION_COOKIE" default:"sidehustle_session"`
	MaxAgeDays int    `envconfig:"SHOP_SESSION_MAX_AGE_DAYS" default:"30"`
	Secure     bool   `envconfig:"SHOP_SESSION_SECURE" default:"false"`
}

// MaxAge returns the cookie lifetime in seconds.
func (s SessionConfig) MaxAge() int {
	if s.MaxAgeDays <= 0 {
		return 0
	}
	return int((time.Duration(s.MaxAgeDays) * 24 * time.Hour).Seconds())
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:5500,http://127.0.0.1:5500"`
}

type CatalogConfig struct {
	Path string `envconfig:"SHOP_CATALOG_PATH"`
}
