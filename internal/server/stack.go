package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/archive"
	"github.com/mdhender/promisance/internal/server/config"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/metrics"
	"github.com/mdhender/promisance/internal/server/notify"
	"github.com/mdhender/promisance/internal/server/repositories/repomanager"
	"github.com/mdhender/promisance/internal/server/rules"
	"github.com/mdhender/promisance/internal/server/scheduler"
	"github.com/mdhender/promisance/internal/server/services"
	"github.com/mdhender/promisance/internal/server/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Stack is the core wired from a Config, shared by the server, the turns
// runner and the admin CLI.
type Stack struct {
	Config   *config.Config
	Logger   logging.Logger
	DB       *sql.DB // nil with the memory backend
	Handle   dbx.DBTX
	Repos    repomanager.RepositoryManager
	Tx       dbx.Transactor
	Locks    locks.Manager
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Engine   *scheduler.Engine
	Sessions *session.Manager
	Logins   *services.LoginService
	Empires  *services.EmpireService
}

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

var newS3Archiver = func(ctx context.Context, c archive.S3Config) (archive.Archiver, error) {
	return archive.NewS3Archiver(ctx, c)
}

// NewStack opens the backend, runs migrations and wires the services.
func NewStack(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Stack, error) {
	s := &Stack{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	s.Metrics = metrics.New(s.Registry)

	var handle dbx.DBTX
	if cfg.DatabaseDSN == config.MemoryDSN {
		logger.Warn(ctx, "using in-memory store, nothing is persisted")
		s.Repos = repomanager.NewMemoryRepositoryManager()
		s.Tx = dbx.NopTransactor{}
		s.Locks = locks.NewMemoryManager(s.Metrics)
	} else {
		db, err := openDB(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db init error: %w", dbx.Classify(err))
		}
		pg := repomanager.NewPostgresRepositoryManager()
		if err := pg.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.DB = db
		handle = db
		s.Repos = pg
		s.Tx = dbx.SQLTransactor{DB: db}
		s.Locks = locks.NewPostgresManager(db, s.Metrics)
	}

	var arch archive.Archiver = archive.Nop{}
	if cfg.Archiving() {
		a, err := newS3Archiver(ctx, archive.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		arch = a
	}

	s.Handle = handle
	rulesFn := func() rules.Rules { return cfg.Rules() }
	notifier := notify.Multi{
		notify.Log{Logger: logger},
		notify.Store{Repo: s.Repos.Events(handle)},
	}

	s.Engine = scheduler.New(scheduler.Deps{
		Repos:    s.Repos,
		DB:       handle,
		Tx:       s.Tx,
		Locks:    s.Locks,
		Rules:    rulesFn,
		Notifier: notifier,
		Archiver: arch,
		Logger:   logger,
		Recorder: s.Metrics,
	})

	d := services.Deps{
		Repos:    s.Repos,
		DB:       handle,
		Tx:       s.Tx,
		Locks:    s.Locks,
		Rules:    rulesFn,
		Notifier: notifier,
		Logger:   logger,
	}
	s.Sessions = session.NewManager(s.Repos.Sessions(handle), []byte(cfg.SecretKey), cfg.SessionTTL)
	throttle := services.NewThrottle(cfg.LoginAttemptsPerMinute, cfg.LoginBurst)
	s.Logins = services.NewLoginService(d, s.Sessions, throttle, s.Metrics)
	s.Empires = services.NewEmpireService(d)

	return s, nil
}

// Close drops any locks a pass still holds and releases the database
// handle.
func (s *Stack) Close() error {
	var errs []error
	if s.Locks != nil {
		errs = append(errs, s.Locks.ReleaseAll(context.Background(), locks.OwnerTurns))
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}
