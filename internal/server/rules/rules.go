// Package rules holds the immutable game-rule snapshot handed to every
// scheduler pass and player action, together with the period grid math
// shared by turn accrual and the hourly/daily runner.
package rules

import (
	"time"

	"github.com/mdhender/promisance/internal/timex"
)

// Rules is a read-only snapshot of the game settings. It is passed by value.
type Rules struct {
	RoundID    int64
	RoundStart time.Time
	RoundEnd   time.Time // zero means open-ended

	TurnsFreq         time.Duration
	TurnsOffset       time.Duration
	TurnsOffsetHourly time.Duration
	TurnsOffsetDaily  time.Duration

	TurnsCount   int // turns per grant period
	TurnsUnstore int // stored turns released per grant period
	TurnsInitial int
	TurnsMaximum int
	TurnsStored  int

	// TurnsValidate is the number of turns used before a new empire is
	// prompted to validate.
	TurnsValidate int
	// Protection ends at ProtectionPeriod after signup or once TurnsProtection
	// turns were used, whichever comes first.
	TurnsProtection  int
	ProtectionPeriod time.Duration

	VacationStart time.Duration // delay between request and effect
	VacationLimit time.Duration // minimum vacation length after it starts

	IdleTimeoutNew      time.Duration
	IdleTimeoutValidate time.Duration
	IdleTimeoutAbandon  time.Duration
	IdleTimeoutDelete   time.Duration
	IdleGrace           time.Duration // IdleWarned -> Abandoned; zero means next pass

	BonusTurns     bool
	EmpiresPerUser int
	SignupClosed   bool
}

// Default returns the stock round settings.
func Default() Rules {
	return Rules{
		RoundID:             1,
		TurnsFreq:           10 * time.Minute,
		TurnsOffset:         0,
		TurnsOffsetHourly:   0,
		TurnsOffsetDaily:    12 * time.Hour,
		TurnsCount:          1,
		TurnsUnstore:        1,
		TurnsInitial:        100,
		TurnsMaximum:        250,
		TurnsStored:         100,
		TurnsValidate:       150,
		TurnsProtection:     200,
		ProtectionPeriod:    200 * 10 * time.Minute,
		VacationStart:       12 * time.Hour,
		VacationLimit:       72 * time.Hour,
		IdleTimeoutNew:      timex.Days(3),
		IdleTimeoutValidate: timex.Days(2),
		IdleTimeoutAbandon:  timex.Days(14),
		IdleTimeoutDelete:   timex.Days(3),
		IdleGrace:           0,
		BonusTurns:          true,
		EmpiresPerUser:      1,
	}
}

// Context is what every core operation receives instead of reading the
// clock or global settings.
type Context struct {
	Now   time.Time
	Rules Rules
}

func NewContext(now time.Time, r Rules) Context {
	return Context{Now: now, Rules: r}
}

// Started reports whether the round has begun at now.
func (r Rules) Started(now time.Time) bool {
	return !now.Before(r.RoundStart)
}

// Ended reports whether the round is over at now.
func (r Rules) Ended(now time.Time) bool {
	return !r.RoundEnd.IsZero() && !now.Before(r.RoundEnd)
}

// Clamp limits now to the round end so nothing accrues past it.
func (r Rules) Clamp(now time.Time) time.Time {
	if r.Ended(now) {
		return r.RoundEnd
	}
	return now
}

func (r Rules) TurnGrid() Grid {
	return Grid{Base: r.RoundStart.Add(r.TurnsOffset), Freq: r.TurnsFreq}
}

func (r Rules) HourlyGrid() Grid {
	return Grid{Base: r.RoundStart.Add(r.TurnsOffsetHourly), Freq: time.Hour}
}

func (r Rules) DailyGrid() Grid {
	return Grid{Base: r.RoundStart.Add(r.TurnsOffsetDaily), Freq: 24 * time.Hour}
}

// CycleGrid returns the grid for a named cycle.
func (r Rules) CycleGrid(cycle string) (Grid, bool) {
	switch cycle {
	case "turns":
		return r.TurnGrid(), true
	case "hourly":
		return r.HourlyGrid(), true
	case "daily":
		return r.DailyGrid(), true
	}
	return Grid{}, false
}

// BonusTurnAmount is one hour's worth of turns.
func (r Rules) BonusTurnAmount() int {
	if r.TurnsFreq <= 0 {
		return 0
	}
	return int(time.Hour/r.TurnsFreq) * r.TurnsCount
}

// Grid is a sequence of period boundaries Base + k*Freq, k any integer.
type Grid struct {
	Base time.Time
	Freq time.Duration
}

// Index returns the index of the last boundary at or before t.
func (g Grid) Index(t time.Time) int64 {
	return timex.FloorDiv(int64(t.Sub(g.Base)), int64(g.Freq))
}

// Boundary returns the time of boundary k.
func (g Grid) Boundary(k int64) time.Time {
	return g.Base.Add(time.Duration(k) * g.Freq)
}

// Periods counts the boundaries in (from, to]. Never negative.
func (g Grid) Periods(from, to time.Time) int64 {
	n := g.Index(to) - g.Index(from)
	if n < 0 {
		return 0
	}
	return n
}
