package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/currency"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Store    StoreConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Sync     SyncConfig
	Checkout CheckoutConfig
}

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

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

type APIConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_API_BASE_URL" default:"https://panukonline.com"`
	Timeout time.Duration `envconfig:"STOREFRONT_API_TIMEOUT" default:"30s"`
}

type StoreConfig struct {
	Driver    string `envconfig:"STOREFRONT_STORE_DRIVER" default:"memory"`
	Namespace string `envconfig:"STOREFRONT_STORE_NAMESPACE" default:"storefront"`
	// QuotaBytes caps the memory driver, 0 means unlimited.
	QuotaBytes int `envconfig:"STOREFRONT_STORE_QUOTA_BYTES" default:"0"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PostgresConfig struct {
	DSN string `envconfig:"STOREFRONT_POSTGRES_DSN"`
}

type SyncConfig struct {
	Enabled  bool          `envconfig:"STOREFRONT_SYNC_ENABLED" default:"true"`
	Debounce time.Duration `envconfig:"STOREFRONT_SYNC_DEBOUNCE" default:"500ms"`
}

type CheckoutConfig struct {
	WhatsAppNumber string `envconfig:"STOREFRONT_WHATSAPP_NUMBER" default:"918921816174"`
	Currency       string `envconfig:"STOREFRONT_CURRENCY" default:"INR"`
}

// CurrencyUnit parses the configured ISO code; validate has already rejected bad codes.
func (c CheckoutConfig) CurrencyUnit() currency.Unit {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return currency.INR
	}
	return unit
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s_REDIS_URL or %s_REDIS_ADDR is required for the redis driver", EnvPrefix, EnvPrefix)
		}
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required for the postgres driver", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)

	if _, err := currency.ParseISO(c.Checkout.Currency); err != nil {
		return fmt.Errorf("currency[%s] is not valid: %w", c.Checkout.Currency, err)
	}
	if c.Sync.Debounce < 0 {
		return fmt.Errorf("sync debounce must not be negative")
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("%s_API_BASE_URL is required", EnvPrefix)
	}
	return nil
}
