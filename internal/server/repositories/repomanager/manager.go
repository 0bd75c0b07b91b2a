package repomanager

import (
	"context"
	"database/sql"

	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/repositories/events"
	"github.com/mdhender/promisance/internal/server/repositories/schedule"
	"github.com/mdhender/promisance/internal/server/repositories/sessions"
	"github.com/mdhender/promisance/internal/server/repositories/turnlog"
	"github.com/mdhender/promisance/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a handle, which may be the
// pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Empires(db dbx.DBTX) empires.Repository
	Schedule(db dbx.DBTX) schedule.Repository
	Events(db dbx.DBTX) events.Repository
	TurnLog(db dbx.DBTX) turnlog.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
