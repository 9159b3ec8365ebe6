package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/bookkeeper/internal/flagx"
)

var serverFlags = []string{
	"-a", "-driver", "-d", "-access-secret", "-refresh-secret", "-t", "-r",
	"-bcrypt-cost", "-cookie-secure", "-log-level", "-log-format", "-metrics",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string              HTTP bind address (":3000")
//	-driver string         database driver: sqlite or pgx
//	-d string              database DSN
//	-access-secret string  HMAC secret for access tokens
//	-refresh-secret string HMAC secret for refresh tokens
//	-t duration            access token validity ("15m")
//	-r duration            refresh token validity ("168h")
//	-bcrypt-cost int       bcrypt work factor
//	-cookie-secure bool    mark the refresh cookie Secure
//	-log-level string      debug, info, warn or error
//	-log-format string     json or text
//	-metrics bool          expose /metrics
//
// Flags not in this list (such as -c) are filtered out before parsing.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DBDriver, "driver", config.DBDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "access-secret", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "refresh-secret", config.RefreshTokenSecret, "refresh token secret")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.BoolVar(&config.CookieSecure, "cookie-secure", config.CookieSecure, "secure refresh cookie")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")
	fs.BoolVar(&config.MetricsEnabled, "metrics", config.MetricsEnabled, "expose prometheus metrics")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
