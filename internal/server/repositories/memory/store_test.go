package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/repositories/events"
	"github.com/mdhender/promisance/internal/server/repositories/schedule"
	"github.com/mdhender/promisance/internal/server/repositories/sessions"
	"github.com/mdhender/promisance/internal/server/repositories/turnlog"
	"github.com/mdhender/promisance/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ users.Repository    = (*Users)(nil)
	_ empires.Repository  = (*Empires)(nil)
	_ schedule.Repository = (*Schedule)(nil)
	_ events.Repository   = (*Events)(nil)
	_ turnlog.Repository  = (*TurnLog)(nil)
	_ sessions.Repository = (*Sessions)(nil)
)

func TestUsers_FindByNameIgnoresCase(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	u, err := repo.Create(ctx, &models.User{Username: "Alice"})
	require.NoError(t, err)

	id, err := repo.FindByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = repo.FindByName(ctx, "bob")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEmpires_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Empires()

	e, err := repo.Create(ctx, &models.Empire{Name: "Avalon", State: models.StateNew})
	require.NoError(t, err)

	loaded, err := repo.Load(ctx, e.ID)
	require.NoError(t, err)
	loaded.Turns.Current = 99

	again, err := repo.Load(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Turns.Current)
}

func TestEmpires_Listings(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Empires()
	repo.Put(&models.Empire{ID: 3, UserID: 1, State: models.StateActive})
	repo.Put(&models.Empire{ID: 1, UserID: 1, State: models.StateAbandoned})
	repo.Put(&models.Empire{ID: 2, UserID: 2, State: models.StatePurged})

	live, err := repo.ListLiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, live)

	mine, err := repo.ListIDsForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, mine)

	n, err := repo.CountRegistered(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Delete(ctx, 3))
	assert.ErrorIs(t, repo.Save(ctx, &models.Empire{ID: 3}), common.ErrorNotFound)
}

func TestSchedule_AdvanceIsTestAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Schedule()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, err := repo.Advance(ctx, 1, models.CycleTurns, 5, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Advance(ctx, 1, models.CycleTurns, 5, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Advance(ctx, 1, models.CycleTurns, 4, now)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := repo.Get(ctx, 1, models.CycleTurns)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.LastPeriod)

	_, err = repo.Get(ctx, 1, models.CycleDaily)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSessions_UpsertReplacesUserSession(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Sessions()

	require.NoError(t, repo.Upsert(ctx, models.Session{ID: "a", UserID: 1}))
	require.NoError(t, repo.Upsert(ctx, models.Session{ID: "b", UserID: 1}))

	_, err := repo.Get(ctx, "a")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	got, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
}

func TestEventsAndTurnLog_NewestFirst(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.Events().Append(ctx, models.Event{ID: "1", EmpireID: 7, At: t0}))
	require.NoError(t, st.Events().Append(ctx, models.Event{ID: "2", EmpireID: 8, At: t0}))
	require.NoError(t, st.Events().Append(ctx, models.Event{ID: "3", EmpireID: 7, At: t0.Add(time.Minute)}))

	evs, err := st.Events().ListForEmpire(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "3", evs[0].ID)

	require.NoError(t, st.TurnLog().Append(ctx, models.TurnLogEntry{ID: "s", At: t0, Type: models.TurnLogStart}))
	require.NoError(t, st.TurnLog().Append(ctx, models.TurnLogEntry{ID: "e", At: t0.Add(time.Second), Type: models.TurnLogEnd}))
	recent, err := st.TurnLog().Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.TurnLogEnd, recent[0].Type)
}
