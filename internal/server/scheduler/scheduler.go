// Package scheduler runs the periodic world pass: it grants turns, applies
// hourly and daily effects and drives empire lifecycle transitions, all
// independent of player requests.
//
// A pass serializes on the world-variables lock, works through every live
// empire under that empire's lock and only records the cycles as done in
// schedule state when every empire succeeded. A failed pass is simply run
// again; per-empire work is idempotent through the accrual clock and the
// period markers kept on each empire.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/ids"
	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/archive"
	"github.com/mdhender/promisance/internal/server/lifecycle"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/notify"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/repositories/repomanager"
	"github.com/mdhender/promisance/internal/server/rules"
	"github.com/mdhender/promisance/internal/server/turns"
)

// ErrIncomplete is returned by RunDue when some empires could not be
// processed. The cycles stay due and the next pass retries them.
var ErrIncomplete = errors.New("pass incomplete")

// DefaultLockWait bounds how long a pass waits for an empire a player holds.
const DefaultLockWait = 5 * time.Second

// Recorder receives pass statistics. Implemented by the metrics package.
type Recorder interface {
	PassFinished(cycle, result string, took time.Duration)
	EmpireFailed()
	TurnsAccrued(granted, discarded int)
	Transition(to string)
}

type nopRecorder struct{}

func (nopRecorder) PassFinished(string, string, time.Duration) {}
func (nopRecorder) EmpireFailed()                              {}
func (nopRecorder) TurnsAccrued(int, int)                      {}
func (nopRecorder) Transition(string)                          {}

// Deps are the collaborators of an Engine. Repos, Locks and Rules are
// required; the rest default to no-ops.
type Deps struct {
	Repos    repomanager.RepositoryManager
	DB       dbx.DBTX
	Tx       dbx.Transactor
	Locks    locks.Manager
	Rules    func() rules.Rules
	Now      func() time.Time
	Notifier notify.Notifier
	Archiver archive.Archiver
	Logger   logging.Logger
	Recorder Recorder

	Hourly   []Effect
	Daily    []Effect
	LockWait time.Duration
}

type Engine struct {
	d Deps

	// one pass at a time per process; other processes are kept out by the
	// vars lock
	passMu sync.Mutex
}

func New(d Deps) *Engine {
	if d.Tx == nil {
		d.Tx = dbx.NopTransactor{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = notify.Multi{}
	}
	if d.Archiver == nil {
		d.Archiver = archive.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.LockWait <= 0 {
		d.LockWait = DefaultLockWait
	}
	d.Logger = d.Logger.With("module", "scheduler")
	return &Engine{d: d}
}

// RunDue runs a pass if any cycle is due. Losing the race to another
// trigger is not an error.
func (e *Engine) RunDue(ctx context.Context) (ranHourly, ranDaily bool, err error) {
	rep, err := e.RunPass(ctx)
	if errors.Is(err, common.ErrStaleSchedule) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if rep != nil && !rep.OK() {
		return false, false, fmt.Errorf("%w: %d empires failed", ErrIncomplete, len(rep.Failures))
	}
	return rep.ran(models.CycleHourly), rep.ran(models.CycleDaily), nil
}

// RunPass performs one pass at the current time. It returns
// common.ErrStaleSchedule when another pass holds the schedule, and a nil
// report with no error when nothing is due.
func (e *Engine) RunPass(ctx context.Context) (*Report, error) {
	if !e.passMu.TryLock() {
		return nil, common.ErrStaleSchedule
	}
	defer e.passMu.Unlock()

	start := time.Now()
	c := rules.NewContext(e.d.Now(), e.d.Rules())
	log := e.d.Logger

	set, err := e.d.Locks.Acquire(ctx, locks.OwnerTurns, []locks.Ref{locks.Vars()}, 0)
	if err != nil {
		if errors.Is(err, common.ErrLockConflict) {
			log.Debug(ctx, "pass already running elsewhere")
			return nil, common.ErrStaleSchedule
		}
		return nil, err
	}
	defer set.Release()

	rep := newReport(c.Rules.RoundID, c.Now)
	ticks, err := e.dueCycles(ctx, c, rep)
	if err != nil {
		e.d.Recorder.PassFinished(string(models.CycleTurns), "error", time.Since(start))
		return nil, err
	}
	if len(rep.Due) == 0 {
		e.d.Recorder.PassFinished(string(models.CycleTurns), "skipped", time.Since(start))
		return nil, nil
	}

	e.turnlog(ctx, c.Now, models.TurnLogStart, ticks, c.Rules.TurnsFreq, "")

	if err := e.runEmpires(ctx, c, rep); err != nil {
		log.Error(ctx, "pass aborted", "error", err)
		e.turnlog(ctx, c.Now, models.TurnLogAbort, ticks, c.Rules.TurnsFreq, err.Error())
		e.d.Recorder.PassFinished(string(models.CycleTurns), "error", time.Since(start))
		return rep, err
	}

	result := "ok"
	if rep.OK() {
		if err := e.advance(ctx, rep); err != nil {
			log.Error(ctx, "schedule state not advanced", "error", err)
			e.turnlog(ctx, c.Now, models.TurnLogAbort, ticks, c.Rules.TurnsFreq, err.Error())
			e.d.Recorder.PassFinished(string(models.CycleTurns), "error", time.Since(start))
			return rep, err
		}
		e.turnlog(ctx, c.Now, models.TurnLogEnd, ticks, c.Rules.TurnsFreq, rep.String())
	} else {
		result = "partial"
		log.Warn(ctx, "pass incomplete, will retry", "failures", len(rep.Failures))
		e.turnlog(ctx, c.Now, models.TurnLogAbort, ticks, c.Rules.TurnsFreq, rep.String())
	}

	log.Info(ctx, "pass finished", "result", result, "empires", rep.Empires,
		"granted", rep.Granted, "purged", rep.Purged, "events", rep.Events, "took", time.Since(start))
	e.d.Recorder.PassFinished(string(models.CycleTurns), result, time.Since(start))
	return rep, nil
}

// dueCycles fills rep.Due and returns the number of turn periods behind.
func (e *Engine) dueCycles(ctx context.Context, c rules.Context, rep *Report) (int, error) {
	r := c.Rules
	now := r.Clamp(c.Now)
	if !r.Started(now) || r.TurnsFreq <= 0 {
		return 0, nil
	}

	repo := e.d.Repos.Schedule(e.d.DB)
	ticks := 0
	for _, cycle := range models.Cycles {
		grid, _ := r.CycleGrid(string(cycle))
		target := grid.Index(now)
		st, err := repo.Get(ctx, r.RoundID, cycle)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			rep.Due[cycle] = target
			if cycle == models.CycleTurns {
				ticks = 1
			}
		case err != nil:
			return 0, fmt.Errorf("schedule state %s: %w", cycle, err)
		case st.LastPeriod < target:
			rep.Due[cycle] = target
			if cycle == models.CycleTurns {
				ticks = int(target - st.LastPeriod)
			}
		}
	}
	return ticks, nil
}

func (e *Engine) runEmpires(ctx context.Context, c rules.Context, rep *Report) error {
	idsList, err := e.d.Repos.Empires(e.d.DB).ListLiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list empires: %w", err)
	}

	for _, id := range idsList {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Empires++

		events, err := e.processEmpire(ctx, id, c, rep)
		if err != nil {
			rep.Failures[id] = err
			e.d.Recorder.EmpireFailed()
			e.d.Logger.Warn(ctx, "empire skipped", "empire", id, "retryable", common.IsRetryable(err), "error", err)
			continue
		}
		if len(events) == 0 {
			continue
		}
		rep.Events += len(events)
		if err := e.d.Notifier.Notify(ctx, events...); err != nil {
			e.d.Logger.Warn(ctx, "notify failed", "empire", id, "error", err)
		}
	}
	return nil
}

// processEmpire does the read-modify-write of one empire under its lock and
// returns the events to publish once the lock is gone.
func (e *Engine) processEmpire(ctx context.Context, id int64, c rules.Context, rep *Report) ([]models.Event, error) {
	var events []models.Event
	var delta turns.Delta
	purged := false

	err := locks.With(ctx, e.d.Locks, locks.OwnerTurns, []locks.Ref{locks.Empire(id)}, e.d.LockWait, func(ctx context.Context) error {
		events, delta, purged = nil, turns.Delta{}, false
		return e.d.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			repo := e.d.Repos.Empires(tx)
			emp, err := empires.LoadChecked(ctx, repo, e.d.Logger, id)
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			delta = turns.Accrue(emp, c)
			if delta.Granted > 0 {
				events = append(events, turnsGranted(emp, delta, c.Now))
			}

			if p, ok := rep.Due[models.CycleHourly]; ok && emp.LastHourlyPeriod < p {
				for _, fx := range e.d.Hourly {
					fx.Apply(emp, c)
				}
				emp.LastHourlyPeriod = p
			}
			if p, ok := rep.Due[models.CycleDaily]; ok && emp.LastDailyPeriod < p {
				for _, fx := range e.d.Daily {
					fx.Apply(emp, c)
				}
				emp.LastDailyPeriod = p
			}

			events = append(events, lifecycle.Advance(emp, c)...)

			if emp.State == models.StatePurged {
				purged = true
				if err := e.d.Archiver.Archive(ctx, c.Rules.RoundID, emp, c.Now); err != nil {
					return err
				}
				return repo.Delete(ctx, id)
			}
			return repo.Save(ctx, emp)
		})
	})
	if err != nil {
		return nil, err
	}

	rep.Granted += delta.Granted
	rep.Discarded += delta.Discarded
	e.d.Recorder.TurnsAccrued(delta.Granted, delta.Discarded)
	if purged {
		rep.Purged++
	}
	for _, ev := range events {
		if to, ok := ev.Details["to"].(string); ok {
			e.d.Recorder.Transition(to)
		}
	}
	return events, nil
}

func (e *Engine) advance(ctx context.Context, rep *Report) error {
	repo := e.d.Repos.Schedule(e.d.DB)
	for _, cycle := range models.Cycles {
		p, ok := rep.Due[cycle]
		if !ok {
			continue
		}
		moved, err := repo.Advance(ctx, rep.RoundID, cycle, p, rep.At)
		if err != nil {
			return fmt.Errorf("advance %s: %w", cycle, err)
		}
		if !moved {
			e.d.Logger.Warn(ctx, "schedule state already advanced", "cycle", cycle, "period", p)
			continue
		}
		rep.Advanced = append(rep.Advanced, cycle)
	}
	return nil
}

func (e *Engine) turnlog(ctx context.Context, at time.Time, typ models.TurnLogType, ticks int, interval time.Duration, text string) {
	entry := models.TurnLogEntry{
		ID:       ids.New(at),
		At:       at,
		Type:     typ,
		Ticks:    ticks,
		Interval: interval.String(),
		Text:     text,
	}
	if err := e.d.Repos.TurnLog(e.d.DB).Append(ctx, entry); err != nil {
		e.d.Logger.Warn(ctx, "turn log write failed", "type", typ, "error", err)
	}
}

func turnsGranted(emp *models.Empire, d turns.Delta, at time.Time) models.Event {
	return models.Event{
		Kind:     models.EventTurnsGranted,
		EmpireID: emp.ID,
		At:       at,
		Details: map[string]any{
			"periods":   d.Periods,
			"granted":   d.Granted,
			"stored":    d.Stored,
			"released":  d.Released,
			"discarded": d.Discarded,
		},
	}
}
