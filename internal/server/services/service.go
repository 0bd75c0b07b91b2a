// Package services holds the player-facing operations: login, signup and the
// empire actions that read and modify the same records as the scheduler.
// Every mutation holds the entity locks for the whole read-modify-write and
// re-reads the records under them.
package services

import (
	"context"
	"time"

	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/notify"
	"github.com/mdhender/promisance/internal/server/repositories/repomanager"
	"github.com/mdhender/promisance/internal/server/rules"
)

// Deps are shared by the services. Repos, Locks and Rules are required.
type Deps struct {
	Repos    repomanager.RepositoryManager
	DB       dbx.DBTX
	Tx       dbx.Transactor
	Locks    locks.Manager
	Rules    func() rules.Rules
	Now      func() time.Time
	Notifier notify.Notifier
	Logger   logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Tx == nil {
		d.Tx = dbx.NopTransactor{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = notify.Multi{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	return d
}

func (d Deps) context() rules.Context {
	return rules.NewContext(d.Now(), d.Rules())
}

func (d Deps) notify(ctx context.Context, evs []models.Event) {
	if len(evs) == 0 {
		return
	}
	if err := d.Notifier.Notify(ctx, evs...); err != nil {
		d.Logger.Warn(ctx, "notify failed", "error", err)
	}
}
