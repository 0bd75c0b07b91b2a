package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/mdhender/promisance/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-m string     metrics bind address, "" disables
//	-d string     PostgreSQL DSN or "memory"
//	-s string     session token HMAC secret
//	-l string     log level
//	-t string     turn trigger: "external" or "request"
//	-i duration   built-in ticker interval in external mode, 0 disables
//	-r int        round id
//	-start string round start, RFC 3339
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name, "" disables archiving
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Only these flags are taken from args (see flagx.FilterArgs), so the JSON
// config flag and flags of other components pass through untouched.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "-m", "-d", "-s", "-l", "-t", "-i", "-r", "-start", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for /metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	trigger := fs.String("t", "", "turn trigger (external or request)")
	fs.DurationVar(&config.TickerInterval, "i", config.TickerInterval, "built-in ticker interval")
	fs.Int64Var(&config.Game.RoundID, "r", config.Game.RoundID, "round id")
	start := fs.String("start", "", "round start (RFC 3339)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	switch *trigger {
	case "":
	case TriggerExternal:
		config.TurnsExternal, config.TurnsOnRequest = true, false
	case TriggerRequest:
		config.TurnsExternal, config.TurnsOnRequest = false, true
	default:
		return fmt.Errorf("parse flags: unknown trigger %q", *trigger)
	}

	if *start != "" {
		t, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			return fmt.Errorf("parse flags: round start: %w", err)
		}
		config.Game.RoundStart = t
	}
	return nil
}
