package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingValue indicates a required configuration value was not provided.
var ErrMissingValue = errors.New("config: missing required value")

// Config is the explicit configuration object for the whole service. It is
// loaded once at startup and handed to components at construction time;
// nothing reads the environment after Load returns.
type Config struct {
	ListenAddr   string        `env:"COURSEGATE_LISTEN_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"COURSEGATE_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"COURSEGATE_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"COURSEGATE_IDLE_TIMEOUT" envDefault:"60s"`

	// Postgres is optional; without a DSN the attempt log stays in memory only.
	PostgresDSN string `env:"COURSEGATE_PG_DSN"`

	RateBurst  int `env:"COURSEGATE_RATE_BURST" envDefault:"20"`
	RatePerSec int `env:"COURSEGATE_RATE_PER_SEC" envDefault:"10"`

	Sales Sales
	Gate  Gate
}

// Sales holds credentials and endpoints for the merchant sales API.
type Sales struct {
	ClientID     string        `env:"COURSEGATE_SALES_CLIENT_ID"`
	ClientSecret string        `env:"COURSEGATE_SALES_CLIENT_SECRET"`
	AccountID    string        `env:"COURSEGATE_SALES_ACCOUNT_ID"`
	TokenURL     string        `env:"COURSEGATE_SALES_TOKEN_URL"`
	BaseURL      string        `env:"COURSEGATE_SALES_BASE_URL"`
	Timeout      time.Duration `env:"COURSEGATE_SALES_TIMEOUT" envDefault:"15s"`
}

// Gate holds the shared access password hash and the course-token settings.
type Gate struct {
	PasswordHash string        `env:"COURSEGATE_GATE_PASSWORD_HASH"`
	AdminToken   string        `env:"COURSEGATE_ADMIN_TOKEN"`
	TokenSecret  string        `env:"COURSEGATE_TOKEN_SECRET"`
	TokenTTL     time.Duration `env:"COURSEGATE_TOKEN_TTL" envDefault:"12h"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing required value at once so an operator does
// not discover them one restart at a time.
func (c Config) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("COURSEGATE_SALES_CLIENT_ID", c.Sales.ClientID)
	check("COURSEGATE_SALES_CLIENT_SECRET", c.Sales.ClientSecret)
	check("COURSEGATE_SALES_ACCOUNT_ID", c.Sales.AccountID)
	check("COURSEGATE_SALES_TOKEN_URL", c.Sales.TokenURL)
	check("COURSEGATE_SALES_BASE_URL", c.Sales.BaseURL)
	check("COURSEGATE_GATE_PASSWORD_HASH", c.Gate.PasswordHash)
	check("COURSEGATE_TOKEN_SECRET", c.Gate.TokenSecret)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingValue, strings.Join(missing, ", "))
	}
	if c.Sales.Timeout <= 0 {
		return errors.New("config: sales timeout must be positive")
	}
	if c.Gate.TokenTTL <= 0 {
		return errors.New("config: token ttl must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		return errors.New("config: rate limit values must be positive")
	}
	return nil
}
