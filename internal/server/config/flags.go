package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/flagx"
)

var serverFlags = []string{
	"-a", "-m", "-d", "-redis", "-amqp", "-s", "-t", "-r", "-rotate", "-revoke-on-password-change",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics and health HTTP bind address
//	-d string   PostgreSQL DSN, empty for the in-memory store
//	-redis string   Redis address for the revocation set
//	-amqp string    AMQP URL for audit events
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-rotate     rotate refresh tokens on use
//	-revoke-on-password-change  revoke tokens and sessions after a password change
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values when given.
//   - Boolean flags need the "-rotate=false" form to be switched off.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.GRPCAddr, "a", config.GRPCAddr, "address and port to run server")
	fs.StringVar(&config.HTTPAddr, "m", config.HTTPAddr, "address and port for metrics and health")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.AMQPURL, "amqp", config.AMQPURL, "AMQP URL")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTTL := fs.Int("t", int(config.AccessTTL.Minutes()), "access token validity (in minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTTL.Minutes()), "refresh token validity (in minutes)")

	fs.BoolVar(&config.RotateRefresh, "rotate", config.RotateRefresh, "rotate refresh tokens")
	fs.BoolVar(&config.RevokeOnPasswordChange, "revoke-on-password-change", config.RevokeOnPasswordChange, "revoke tokens on password change")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// only flags actually given override durations
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTTL = time.Duration(*accessTTL) * time.Minute
		case "r":
			config.RefreshTTL = time.Duration(*refreshTTL) * time.Minute
		}
	})
}
