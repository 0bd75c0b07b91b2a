// Package server wires the game server: storage backend, lock manager,
// scheduler and its trigger, the gRPC endpoint and the metrics listener.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/config"
	"github.com/mdhender/promisance/internal/server/metrics"
	"github.com/mdhender/promisance/internal/server/scheduler"

	gs "github.com/mdhender/promisance/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	stack  *Stack
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	stack, err := NewStack(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	return &App{config: c, logger: logger, stack: stack}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// trigger picks the scheduler invoker for the configured mode. In external
// mode with a zero interval passes come from cmd/turns and nil is returned.
func (app *App) trigger() (scheduler.Trigger, *scheduler.RequestTrigger) {
	engine := app.stack.Engine
	if app.config.TurnsOnRequest {
		rt := scheduler.NewRequestTrigger(engine, app.config.Rules, time.Now, app.logger)
		return rt, rt
	}
	if app.config.TickerInterval > 0 {
		return scheduler.NewTicker(engine, app.config.TickerInterval, app.logger), nil
	}
	return nil, nil
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc, poker *scheduler.RequestTrigger) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.stack.Logins, app.stack.Empires, app.stack.Sessions)
	if poker != nil {
		s.Trigger = poker
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.stack.Registry))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "round", app.config.Game.RoundID)

	app.initSignalHandler(cancelFunc)

	trig, poker := app.trigger()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc, poker)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	if trig != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := trig.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Error(ctx, "trigger stopped", "error", err)
			}
		}()
	}

	wg.Wait()

	if err := app.stack.Close(); err != nil {
		app.logger.Error(ctx, "close", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
