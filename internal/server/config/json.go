package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bookkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of a config file. Durations accept either
// strings such as "15m" or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	DBDriver                     string         `json:"db_driver"`
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessTokenSecret            string         `json:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	CookieSecure                 bool           `json:"cookie_secure"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
	MetricsEnabled               bool           `json:"metrics_enabled"`
	RequestTimeout               timex.Duration `json:"request_timeout"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
	SessionPruneInterval         timex.Duration `json:"session_prune_interval"`
	AppEnv                       string         `json:"app_env"`
}

// parseJSON overlays the JSON file at path onto config. Keys missing from the
// file keep their current values. An empty path is a no-op.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJSON(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	config.HTTPAddr = c.HTTPAddr
	config.DBDriver = c.DBDriver
	config.DatabaseDSN = c.DatabaseDSN
	config.AccessTokenSecret = c.AccessTokenSecret
	config.RefreshTokenSecret = c.RefreshTokenSecret
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.BcryptCost = c.BcryptCost
	config.CookieSecure = c.CookieSecure
	config.LogLevel = c.LogLevel
	config.LogFormat = c.LogFormat
	config.MetricsEnabled = c.MetricsEnabled
	config.RequestTimeout = c.RequestTimeout.Duration
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
	config.SessionPruneInterval = c.SessionPruneInterval.Duration
	config.AppEnv = c.AppEnv
	return nil
}

func toJSON(config *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:                     config.HTTPAddr,
		DBDriver:                     config.DBDriver,
		DatabaseDSN:                  config.DatabaseDSN,
		AccessTokenSecret:            config.AccessTokenSecret,
		RefreshTokenSecret:           config.RefreshTokenSecret,
		AccessTokenValidityDuration:  timex.Duration{Duration: config.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: config.RefreshTokenValidityDuration},
		BcryptCost:                   config.BcryptCost,
		CookieSecure:                 config.CookieSecure,
		LogLevel:                     config.LogLevel,
		LogFormat:                    config.LogFormat,
		MetricsEnabled:               config.MetricsEnabled,
		RequestTimeout:               timex.Duration{Duration: config.RequestTimeout},
		ShutdownTimeout:              timex.Duration{Duration: config.ShutdownTimeout},
		SessionPruneInterval:         timex.Duration{Duration: config.SessionPruneInterval},
		AppEnv:                       config.AppEnv,
	}
}
