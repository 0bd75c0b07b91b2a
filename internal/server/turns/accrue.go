// Package turns grants turns to empires on the round's turn grid.
//
// Accrual is period by period: each grid boundary crossed adds TurnsCount
// turns, spills anything above TurnsMaximum into storage (anything above
// TurnsStored is lost), then releases up to TurnsUnstore stored turns into
// the current balance when there is room. Because the last-accrual time only
// ever moves to grid boundaries, splitting one interval into many calls
// yields exactly the same balances as a single call.
package turns

import (
	"errors"
	"time"

	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/rules"
)

var ErrNotEnoughTurns = errors.New("not enough turns")

// Delta describes what one accrual did to an empire.
type Delta struct {
	EmpireID  int64
	Periods   int64
	Granted   int // turns produced by the grid, before caps
	Stored    int // overflow moved into storage
	Released  int // stored turns moved back into the current balance
	Discarded int // turns lost above both caps
	From      time.Time
	To        time.Time
}

func (d Delta) Empty() bool {
	return d.Periods == 0
}

// Accrue brings e up to date at c.Now and returns what changed. The caller
// must hold the empire lock. Calling it again with the same time is a no-op.
func Accrue(e *models.Empire, c rules.Context) Delta {
	r := c.Rules
	d := Delta{EmpireID: e.ID, From: e.LastAccrualAt, To: e.LastAccrualAt}

	if r.TurnsFreq <= 0 || e.State == models.StateAbandoned || e.State == models.StatePurged {
		return d
	}

	now := r.Clamp(c.Now)
	if !r.Started(now) || now.Before(e.SignupAt) {
		return d
	}

	grid := r.TurnGrid()
	last := e.LastAccrualAt
	if last.IsZero() {
		start := e.SignupAt
		if start.Before(r.RoundStart) {
			start = r.RoundStart
		}
		last = grid.Boundary(grid.Index(start))
		d.From = last
	}

	periods := grid.Periods(last, now)
	if periods == 0 {
		if e.LastAccrualAt.IsZero() {
			e.LastAccrualAt = last
			d.To = last
		}
		return d
	}

	d.Periods = periods
	d.To = grid.Boundary(grid.Index(now))
	e.LastAccrualAt = d.To

	// the clock keeps moving while on vacation, nothing is granted
	if !e.State.Accrues() {
		return d
	}

	cur, stored := e.Turns.Current, e.Turns.Stored
	for i := int64(0); i < periods; i++ {
		d.Granted += r.TurnsCount
		cur += r.TurnsCount
		cur, stored = spill(cur, stored, r, &d)

		if cur < r.TurnsMaximum && stored > 0 {
			rel := min(r.TurnsUnstore, stored, r.TurnsMaximum-cur)
			cur += rel
			stored -= rel
			d.Released += rel
		}

		if cur >= r.TurnsMaximum && stored >= r.TurnsStored {
			rest := int(periods-i-1) * r.TurnsCount
			d.Granted += rest
			d.Discarded += rest
			break
		}
	}
	e.Turns.Current, e.Turns.Stored = cur, stored

	return d
}

// Grant adds n turns outside the grid (bonus turns) under the same caps.
// No stored turns are released.
func Grant(e *models.Empire, n int, r rules.Rules) Delta {
	d := Delta{EmpireID: e.ID, Granted: n, From: e.LastAccrualAt, To: e.LastAccrualAt}
	cur := e.Turns.Current + n
	e.Turns.Current, e.Turns.Stored = spill(cur, e.Turns.Stored, r, &d)
	return d
}

// Spend takes n turns from the current balance and counts them as used.
func Spend(e *models.Empire, n int) error {
	if n <= 0 {
		return nil
	}
	if e.Turns.Current < n {
		return ErrNotEnoughTurns
	}
	e.Turns.Current -= n
	e.Turns.Used += n
	return nil
}

func spill(cur, stored int, r rules.Rules, d *Delta) (int, int) {
	if cur <= r.TurnsMaximum {
		return cur, stored
	}
	over := cur - r.TurnsMaximum
	cur = r.TurnsMaximum
	room := max(r.TurnsStored-stored, 0)
	moved := min(over, room)
	stored += moved
	d.Stored += moved
	d.Discarded += over - moved
	return cur, stored
}
