// Package repomanager wires repository constructors and schema migrations
// for the configured backend.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/migrations"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/repositories/events"
	"github.com/mdhender/promisance/internal/server/repositories/schedule"
	"github.com/mdhender/promisance/internal/server/repositories/sessions"
	"github.com/mdhender/promisance/internal/server/repositories/turnlog"
	"github.com/mdhender/promisance/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Empires(db dbx.DBTX) empires.Repository {
	return empires.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Schedule(db dbx.DBTX) schedule.Repository {
	return schedule.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Events(db dbx.DBTX) events.Repository {
	return events.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) TurnLog(db dbx.DBTX) turnlog.Repository {
	return turnlog.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", dbx.Classify(err))
	}
	return nil
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
