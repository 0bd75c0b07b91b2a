package promctl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server"
	"github.com/mdhender/promisance/internal/server/archive"
	"github.com/mdhender/promisance/internal/server/config"
	"github.com/mdhender/promisance/internal/server/models"
	gs "github.com/mdhender/promisance/internal/server/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func stubPassword(t *testing.T, pw string, err error) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), err }
	t.Cleanup(func() { readPassword = orig })
}

// sharedStack makes every command in a test see the same memory store.
func sharedStack(t *testing.T) *server.Stack {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDSN = config.MemoryDSN
	s, err := server.NewStack(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)

	orig := newStack
	newStack = func(context.Context, *config.Config, logging.Logger) (*server.Stack, error) { return s, nil }
	t.Cleanup(func() { newStack = orig })
	return s
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUserAndEmpireCreate(t *testing.T) {
	sharedStack(t)
	stubPassword(t, "hunter2", nil)

	out, err := run(t, "user", "create", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "(alice)")

	_, err = run(t, "user", "create", "alice")
	assert.Error(t, err)

	out, err = run(t, "empire", "create", "alice", "Atlantis")
	require.NoError(t, err)
	assert.Contains(t, out, "Atlantis")
	assert.Contains(t, out, "new")

	_, err = run(t, "empire", "create", "bob", "Lemuria")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserCreate_PasswordErrors(t *testing.T) {
	sharedStack(t)

	stubPassword(t, "", nil)
	_, err := run(t, "user", "create", "alice")
	assert.ErrorContains(t, err, "empty password")

	stubPassword(t, "", errors.New("no tty"))
	_, err = run(t, "user", "create", "alice")
	assert.ErrorContains(t, err, "no tty")
}

func TestTurnsRun(t *testing.T) {
	s := sharedStack(t)
	_, err := s.Empires.Signup(context.Background(), "alice", "pw", "Atlantis")
	require.NoError(t, err)

	out, err := run(t, "turns", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "turns")
	assert.Contains(t, out, "round 1")
	assert.Contains(t, out, "1 empires")

	// the second pass in the same turn period has nothing to do
	out, err = run(t, "turns", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing due")
}

func TestTurnsLog(t *testing.T) {
	sharedStack(t)

	_, err := run(t, "turns", "run")
	require.NoError(t, err)

	out, err := run(t, "turns", "log", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "start")
	assert.Contains(t, out, "end")
}

func TestEmpireEvents(t *testing.T) {
	s := sharedStack(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := s.Repos.Events(s.Handle)
	require.NoError(t, repo.Append(context.Background(), models.Event{
		ID: "a", Kind: models.EventIdleWarned, EmpireID: 7, At: at, Details: map[string]any{"idle_days": 14},
	}))
	require.NoError(t, repo.Append(context.Background(), models.Event{
		ID: "b", Kind: models.EventPurged, EmpireID: 8, At: at,
	}))

	out, err := run(t, "empire", "events", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "idle_warned")
	assert.Contains(t, out, "idle_days=14")
	assert.NotContains(t, out, "purged")

	_, err = run(t, "empire", "events", "seven")
	assert.ErrorContains(t, err, "empire id")
}

func TestArchiveShow(t *testing.T) {
	e := &models.Empire{ID: 42, UserID: 3, Name: "Mu", State: models.StatePurged, Land: 250}
	data, digest, err := archive.Encode(1, e, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "empire-42.json.lz4")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := run(t, "archive", "show", path, "--digest", digest)
	require.NoError(t, err)
	assert.Contains(t, out, "Mu")
	assert.Contains(t, out, "purged")

	_, err = run(t, "archive", "show", path, "--digest", "00")
	assert.ErrorContains(t, err, "digest mismatch")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "--config", "/does/not/exist.json", "turns", "run")
	assert.ErrorContains(t, err, "read config")
}

type fakeConn struct {
	calls  []string
	tokens []string
	resp   map[string]map[string]any
	err    error
}

func (f *fakeConn) Invoke(ctx context.Context, method string, _ any, reply any, _ ...grpc.CallOption) error {
	f.calls = append(f.calls, method)
	md, _ := metadata.FromOutgoingContext(ctx)
	f.tokens = append(f.tokens, first(md.Get(common.SessionTokenHeaderName)))
	if f.err != nil {
		return f.err
	}
	s, err := structpb.NewStruct(f.resp[method])
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), s)
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not supported")
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func stubDial(t *testing.T, f *fakeConn) {
	t.Helper()
	orig := dial
	dial = func(string) (grpc.ClientConnInterface, io.Closer, error) { return f, nopCloser{}, nil }
	t.Cleanup(func() { dial = orig })
}

func TestStatus(t *testing.T) {
	f := &fakeConn{resp: map[string]map[string]any{
		gs.FullMethod(gs.MethodStatus): {"round_id": 3, "started": true, "registered": 12},
	}}
	stubDial(t, f)

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "round_id")
	assert.Contains(t, out, "12")
	assert.Equal(t, []string{gs.FullMethod(gs.MethodStatus)}, f.calls)
}

func TestLogin(t *testing.T) {
	stubPassword(t, "pw", nil)
	login := map[string]any{"session_token": "tok", "expires_at": "2026-11-01T00:00:00Z"}
	empire := map[string]any{
		"name":         "Atlantis",
		"turns":        map[string]any{"current": 100},
		"vacation_end": nil,
	}
	f := &fakeConn{resp: map[string]map[string]any{
		gs.FullMethod(gs.MethodLogin):     login,
		gs.FullMethod(gs.MethodGetEmpire): empire,
	}}
	stubDial(t, f)

	out, err := run(t, "login", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "token: tok")
	assert.Contains(t, out, "turns.current")
	assert.NotContains(t, out, "vacation_end")
	assert.Equal(t, []string{"", "tok"}, f.tokens)
}

func TestRemoteError(t *testing.T) {
	stubDial(t, &fakeConn{err: errors.New("unavailable")})
	_, err := run(t, "status")
	assert.ErrorContains(t, err, "unavailable")
}

func TestMapRows(t *testing.T) {
	rows := mapRows(map[string]any{"b": 2.0, "a": map[string]any{"c": "x"}, "z": nil})
	assert.Equal(t, [][]string{{"a.c", "x"}, {"b", "2"}}, rows)
}
