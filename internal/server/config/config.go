// Package config assembles the server configuration from defaults, an
// optional JSON file, BOOKKEEPER_* environment variables and command-line
// flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/dbx"
	"github.com/dmitrijs2005/bookkeeper/internal/flagx"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is prepended (with an underscore) to every environment key.
const EnvPrefix = "BOOKKEEPER"

// Config holds runtime settings for the bookkeeper server.
//
// The two token secrets must differ so that a refresh token can never pass
// as an access token and vice versa.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR"`
	DBDriver    string `envconfig:"DB_DRIVER"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`

	AccessTokenSecret            string        `envconfig:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret           string        `envconfig:"REFRESH_TOKEN_SECRET"`
	AccessTokenValidityDuration  time.Duration `envconfig:"ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration time.Duration `envconfig:"REFRESH_TOKEN_TTL"`
	BcryptCost                   int           `envconfig:"BCRYPT_COST"`
	CookieSecure                 bool          `envconfig:"COOKIE_SECURE"`

	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogFormat      string `envconfig:"LOG_FORMAT"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED"`

	RequestTimeout       time.Duration `envconfig:"REQUEST_TIMEOUT"`
	ShutdownTimeout      time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	SessionPruneInterval time.Duration `envconfig:"SESSION_PRUNE_INTERVAL"`

	AppEnv string `envconfig:"APP_ENV"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":3000"
	c.DBDriver = dbx.DriverSQLite
	c.DatabaseDSN = "file:bookkeeper.db"
	c.AccessTokenSecret = "dev-access-secret"
	c.RefreshTokenSecret = "dev-refresh-secret"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.BcryptCost = 8
	c.CookieSecure = true
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.MetricsEnabled = true
	c.RequestTimeout = 30 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.SessionPruneInterval = time.Hour
	c.AppEnv = "development"
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then the environment, then the remaining flags in args
// (usually os.Args[1:]). The result is validated.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether AppEnv is "production".
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case dbx.DriverSQLite, dbx.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported db driver %q", c.DBDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn must be provided"))
	}
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("access and refresh token secrets must be provided"))
	} else if c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("token validity durations must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	if c.SessionPruneInterval < 0 {
		errs = append(errs, errors.New("session prune interval must not be negative"))
	}

	return errors.Join(errs...)
}
