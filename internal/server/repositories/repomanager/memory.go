package repomanager

import (
	"context"
	"database/sql"

	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/repositories/events"
	"github.com/mdhender/promisance/internal/server/repositories/memory"
	"github.com/mdhender/promisance/internal/server/repositories/schedule"
	"github.com/mdhender/promisance/internal/server/repositories/sessions"
	"github.com/mdhender/promisance/internal/server/repositories/turnlog"
	"github.com/mdhender/promisance/internal/server/repositories/users"
)

// MemoryRepositoryManager hands out repositories over one shared store and
// ignores the handle it is given. Pair it with dbx.NopTransactor.
type MemoryRepositoryManager struct {
	Store *memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{Store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository       { return m.Store.Users() }
func (m *MemoryRepositoryManager) Empires(dbx.DBTX) empires.Repository   { return m.Store.Empires() }
func (m *MemoryRepositoryManager) Schedule(dbx.DBTX) schedule.Repository { return m.Store.Schedule() }
func (m *MemoryRepositoryManager) Events(dbx.DBTX) events.Repository     { return m.Store.Events() }
func (m *MemoryRepositoryManager) TurnLog(dbx.DBTX) turnlog.Repository   { return m.Store.TurnLog() }
func (m *MemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository { return m.Store.Sessions() }
