package turns

import (
	"testing"
	"time"

	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testRules() rules.Rules {
	r := rules.Default()
	r.RoundStart = roundStart
	return r
}

func newEmpire(current, stored int) *models.Empire {
	return &models.Empire{
		ID:            1,
		State:         models.StateActive,
		SignupAt:      roundStart,
		LastAccrualAt: roundStart,
		Turns:         models.Turns{Current: current, Stored: stored},
	}
}

func at(minutes int) time.Time {
	return roundStart.Add(time.Duration(minutes) * time.Minute)
}

func TestAccrue_CarriesLeftoverTime(t *testing.T) {
	e := newEmpire(0, 0)

	d := Accrue(e, rules.NewContext(at(35), testRules()))

	assert.Equal(t, int64(3), d.Periods)
	assert.Equal(t, 3, d.Granted)
	assert.Equal(t, 3, e.Turns.Current)
	assert.Equal(t, at(30), e.LastAccrualAt)
	assert.Equal(t, at(30), d.To)
}

func TestAccrue_IdempotentAtSameTime(t *testing.T) {
	e := newEmpire(10, 0)
	c := rules.NewContext(at(95), testRules())

	first := Accrue(e, c)
	require.False(t, first.Empty())
	snapshot := *e

	second := Accrue(e, c)
	assert.True(t, second.Empty())
	assert.Equal(t, snapshot, *e)
}

func TestAccrue_GranularityIndependent(t *testing.T) {
	r := testRules()
	r.TurnsCount = 3
	end := 2000

	single := newEmpire(230, 90)
	whole := Accrue(single, rules.NewContext(at(end), r))

	split := newEmpire(230, 90)
	var granted, discarded int
	for m, step := 0, 1; m < end; step = step%17 + 1 {
		m = min(m+step, end)
		d := Accrue(split, rules.NewContext(at(m), r))
		granted += d.Granted
		discarded += d.Discarded
	}

	assert.Equal(t, single.Turns, split.Turns)
	assert.Equal(t, single.LastAccrualAt, split.LastAccrualAt)
	assert.Equal(t, whole.Granted, granted)
	assert.Equal(t, whole.Discarded, discarded)
	assert.LessOrEqual(t, split.Turns.Current, r.TurnsMaximum)
	assert.LessOrEqual(t, split.Turns.Stored, r.TurnsStored)
}

func TestAccrue_OverflowMovesToStorageThenDiscards(t *testing.T) {
	r := testRules()
	r.TurnsCount = 5
	e := newEmpire(r.TurnsMaximum, r.TurnsStored-2)

	d := Accrue(e, rules.NewContext(at(10), r))

	assert.Equal(t, r.TurnsMaximum, e.Turns.Current)
	assert.Equal(t, r.TurnsStored, e.Turns.Stored)
	assert.Equal(t, 2, d.Stored)
	assert.Equal(t, 3, d.Discarded)
	assert.Equal(t, 0, d.Released)
}

func TestAccrue_ReleasesStoredTurnsOncePerPeriod(t *testing.T) {
	r := testRules()
	e := newEmpire(100, 50)

	d := Accrue(e, rules.NewContext(at(40), r))

	// four periods: +1 granted and +1 released each
	assert.Equal(t, 108, e.Turns.Current)
	assert.Equal(t, 46, e.Turns.Stored)
	assert.Equal(t, 4, d.Released)
}

func TestAccrue_SaturatedDiscardsEverything(t *testing.T) {
	r := testRules()
	e := newEmpire(r.TurnsMaximum, r.TurnsStored)

	d := Accrue(e, rules.NewContext(at(24*60), r))

	assert.Equal(t, int64(144), d.Periods)
	assert.Equal(t, 144, d.Granted)
	assert.Equal(t, 144, d.Discarded)
	assert.Equal(t, r.TurnsMaximum, e.Turns.Current)
	assert.Equal(t, r.TurnsStored, e.Turns.Stored)
}

func TestAccrue_Ineligible(t *testing.T) {
	r := testRules()

	t.Run("abandoned", func(t *testing.T) {
		e := newEmpire(5, 0)
		e.State = models.StateAbandoned
		d := Accrue(e, rules.NewContext(at(60), r))
		assert.True(t, d.Empty())
		assert.Equal(t, 5, e.Turns.Current)
		assert.Equal(t, roundStart, e.LastAccrualAt)
	})

	t.Run("purged", func(t *testing.T) {
		e := newEmpire(5, 0)
		e.State = models.StatePurged
		assert.True(t, Accrue(e, rules.NewContext(at(60), r)).Empty())
	})

	t.Run("signup in the future", func(t *testing.T) {
		e := newEmpire(5, 0)
		e.SignupAt = at(100)
		e.LastAccrualAt = time.Time{}
		assert.True(t, Accrue(e, rules.NewContext(at(60), r)).Empty())
		assert.True(t, e.LastAccrualAt.IsZero())
	})

	t.Run("round not started", func(t *testing.T) {
		e := newEmpire(5, 0)
		assert.True(t, Accrue(e, rules.NewContext(at(-30), r)).Empty())
	})
}

func TestAccrue_VacationAdvancesClockOnly(t *testing.T) {
	e := newEmpire(7, 3)
	e.State = models.StateOnVacation

	d := Accrue(e, rules.NewContext(at(65), testRules()))

	assert.Equal(t, int64(6), d.Periods)
	assert.Equal(t, 0, d.Granted)
	assert.Equal(t, models.Turns{Current: 7, Stored: 3}, e.Turns)
	assert.Equal(t, at(60), e.LastAccrualAt)
}

func TestAccrue_FirstAccrualStartsAtSignupBoundary(t *testing.T) {
	e := newEmpire(0, 0)
	e.SignupAt = at(13)
	e.LastAccrualAt = time.Time{}

	d := Accrue(e, rules.NewContext(at(13), testRules()))
	assert.True(t, d.Empty())
	assert.Equal(t, at(10), e.LastAccrualAt)

	d = Accrue(e, rules.NewContext(at(31), testRules()))
	assert.Equal(t, int64(2), d.Periods)
	assert.Equal(t, 2, e.Turns.Current)
	assert.Equal(t, at(30), e.LastAccrualAt)
}

func TestAccrue_StopsAtRoundEnd(t *testing.T) {
	r := testRules()
	r.RoundEnd = at(50)
	e := newEmpire(0, 0)

	Accrue(e, rules.NewContext(at(500), r))

	assert.Equal(t, 5, e.Turns.Current)
	assert.Equal(t, at(50), e.LastAccrualAt)
}

func TestAccrue_RespectsOffset(t *testing.T) {
	r := testRules()
	r.TurnsOffset = 5 * time.Minute
	e := newEmpire(0, 0)

	d := Accrue(e, rules.NewContext(at(35), r))

	// boundaries at 5, 15, 25, 35
	assert.Equal(t, int64(4), d.Periods)
	assert.Equal(t, at(35), e.LastAccrualAt)
}

func TestGrant(t *testing.T) {
	r := testRules()
	e := newEmpire(r.TurnsMaximum-2, r.TurnsStored-1)

	d := Grant(e, 6, r)

	assert.Equal(t, r.TurnsMaximum, e.Turns.Current)
	assert.Equal(t, r.TurnsStored, e.Turns.Stored)
	assert.Equal(t, 1, d.Stored)
	assert.Equal(t, 3, d.Discarded)
}

func TestSpend(t *testing.T) {
	e := newEmpire(5, 0)

	require.NoError(t, Spend(e, 3))
	assert.Equal(t, 2, e.Turns.Current)
	assert.Equal(t, 3, e.Turns.Used)

	require.ErrorIs(t, Spend(e, 3), ErrNotEnoughTurns)
	assert.Equal(t, 2, e.Turns.Current)

	require.NoError(t, Spend(e, 0))
}
