// Command turns runs one scheduler pass and exits. It is meant to be run
// from a crontab entry when the server is configured with the external
// trigger and no built-in ticker.
package main

import (
	"context"
	"log"
	"os"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server"
	"github.com/mdhender/promisance/internal/server/config"
	"github.com/mdhender/promisance/internal/server/scheduler"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	stack, err := server.NewStack(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = scheduler.ExternalTrigger{Runner: stack.Engine, Logger: logger}.Run(ctx)
	_ = stack.Close()
	if err != nil {
		logger.Error(ctx, "turns run failed", "error", err)
		os.Exit(1)
	}
}
