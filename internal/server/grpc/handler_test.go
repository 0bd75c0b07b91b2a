package grpc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func requireCode(t *testing.T, err error, code codes.Code) *status.Status {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	require.Equal(t, code, st.Code(), st.Message())
	return st
}

func TestSignupLoginAndPlay(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	emp, err := c.Signup(ctx, "alice", "pw", "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, "Atlantis", emp["name"])
	assert.Equal(t, "new", emp["state"])

	res, err := c.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, emp["id"], res["empire_id"])
	assert.NotEmpty(t, c.Token())

	got, err := c.UseTurns(ctx, 5)
	require.NoError(t, err)
	turns := got["turns"].(map[string]any)
	assert.Equal(t, float64(95), turns["current"])
	assert.Equal(t, float64(5), turns["used"])
	assert.Equal(t, true, got["online"])

	got, err = c.Do(ctx, MethodValidate)
	require.NoError(t, err)
	assert.Equal(t, "protected", got["state"])

	got, err = c.Do(ctx, MethodClaimBonus)
	require.NoError(t, err)
	assert.Equal(t, true, got["bonus_claimed"])

	_, err = c.Do(ctx, MethodClaimBonus)
	requireCode(t, err, codes.FailedPrecondition)

	_, err = c.UseTurns(ctx, 1000)
	requireCode(t, err, codes.FailedPrecondition)

	token := c.Token()
	require.NoError(t, c.Logout(ctx))

	c.SetToken(token)
	_, err = c.Empire(ctx)
	st := requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "invalid session", st.Message())
}

func TestStatusIsPublic(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, err := c.Signup(context.Background(), "alice", "pw", "Atlantis")
	require.NoError(t, err)

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(1), st["round_id"])
	assert.Equal(t, true, st["started"])
	assert.Equal(t, float64(1), st["registered"])
}

func TestMissingToken(t *testing.T) {
	c := newFixture(t).dial(t)

	_, err := c.Empire(context.Background())
	st := requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "missing session token", st.Message())
}

func TestExpiredSession(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	_, err := c.Signup(ctx, "alice", "pw", "Atlantis")
	require.NoError(t, err)
	_, err = c.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.now = f.now.Add(15 * 24 * time.Hour)
	_, err = c.Empire(ctx)
	st := requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "session expired", st.Message())
}

func TestLoginMessages(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	_, err := c.Signup(ctx, "alice", "pw", "Atlantis")
	require.NoError(t, err)

	_, err = c.Login(ctx, "alice", "wrong")
	st := requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "The password you entered is incorrect.", st.Message())

	_, err = c.Login(ctx, "nobody", "pw")
	st = requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "No account exists with that username.", st.Message())

	_, err = c.Login(ctx, "", "pw")
	requireCode(t, err, codes.InvalidArgument)
}

func TestBusyEmpire(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	emp, err := c.Signup(ctx, "alice", "pw", "Atlantis")
	require.NoError(t, err)
	_, err = c.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	held, err := f.locks.Acquire(ctx, locks.OwnerTurns, []locks.Ref{locks.Empire(int64(emp["id"].(float64)))}, 0)
	require.NoError(t, err)
	defer held.Release()

	_, err = c.UseTurns(ctx, 1)
	st := requireCode(t, err, codes.Aborted)
	assert.NotContains(t, st.Message(), "lock")
}

type countingPoker struct{ n atomic.Int32 }

func (p *countingPoker) Poke(context.Context) bool {
	p.n.Add(1)
	return true
}

func TestTriggerIsPokedOnEveryRequest(t *testing.T) {
	f := newFixture(t)
	p := &countingPoker{}
	f.server.Trigger = p
	c := f.dial(t)

	_, err := c.Status(context.Background())
	require.NoError(t, err)
	_, err = c.Empire(context.Background())
	requireCode(t, err, codes.Unauthenticated)

	assert.Equal(t, int32(2), p.n.Load())
}
