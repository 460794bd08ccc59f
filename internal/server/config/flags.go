package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-d string     PostgreSQL DSN
//	-u string     users backend: postgres or memory
//	-k string     refresh token backend: postgres, redis or memory
//	-r string     Redis address
//	-i string     token issuer
//	-t duration   access token TTL (e.g., "15m")
//	-x duration   refresh token TTL (e.g., "24h")
//	-l string     log level
//
// Arguments are filtered with flagx.FilterArgs first, so flags owned by other
// parsers (-c, -env-file) pass through untouched.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-u", "-k", "-r", "-i", "-t", "-x", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.UsersBackend, "u", config.UsersBackend, "users backend")
	fs.StringVar(&config.TokensBackend, "k", config.TokensBackend, "refresh token backend")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token TTL")
	fs.DurationVar(&config.RefreshTokenTTL, "x", config.RefreshTokenTTL, "refresh token TTL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
