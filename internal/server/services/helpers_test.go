package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/notify"
	"github.com/mdhender/promisance/internal/server/repositories/repomanager"
	"github.com/mdhender/promisance/internal/server/rules"
	"github.com/mdhender/promisance/internal/server/session"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type logLine struct {
	msg  string
	args map[string]any
}

// recordingLogger keeps every line for assertions.
type recordingLogger struct {
	mu    *sync.Mutex
	lines *[]logLine
	base  []any
}

func newRecordingLogger() recordingLogger {
	return recordingLogger{mu: &sync.Mutex{}, lines: &[]logLine{}}
}

func (l recordingLogger) record(msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := append(append([]any{}, l.base...), args...)
	m := make(map[string]any)
	for i := 0; i+1 < len(all); i += 2 {
		if k, ok := all[i].(string); ok {
			m[k] = all[i+1]
		}
	}
	*l.lines = append(*l.lines, logLine{msg: msg, args: m})
}

func (l recordingLogger) Debug(_ context.Context, msg string, args ...any) { l.record(msg, args) }
func (l recordingLogger) Info(_ context.Context, msg string, args ...any)  { l.record(msg, args) }
func (l recordingLogger) Warn(_ context.Context, msg string, args ...any)  { l.record(msg, args) }
func (l recordingLogger) Error(_ context.Context, msg string, args ...any) { l.record(msg, args) }

func (l recordingLogger) With(args ...any) logging.Logger {
	return recordingLogger{mu: l.mu, lines: l.lines, base: append(append([]any{}, l.base...), args...)}
}

func (l recordingLogger) find(msg string) []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logLine
	for _, ln := range *l.lines {
		if ln.msg == msg {
			out = append(out, ln)
		}
	}
	return out
}

type env struct {
	repos *repomanager.MemoryRepositoryManager
	locks *locks.MemoryManager
	log   recordingLogger
	now   time.Time
	rules rules.Rules
}

func newEnv(t *testing.T) *env {
	t.Helper()
	r := rules.Default()
	r.RoundStart = t0
	return &env{
		repos: repomanager.NewMemoryRepositoryManager(),
		locks: locks.NewMemoryManager(nil),
		log:   newRecordingLogger(),
		now:   t0.Add(time.Hour),
		rules: r,
	}
}

func (e *env) deps() Deps {
	return Deps{
		Repos:    e.repos,
		Locks:    e.locks,
		Rules:    func() rules.Rules { return e.rules },
		Now:      func() time.Time { return e.now },
		Notifier: notify.Multi{notify.Store{Repo: e.repos.Store.Events()}},
		Logger:   e.log,
	}
}

func (e *env) empires() *EmpireService { return NewEmpireService(e.deps()) }

func (e *env) login(th *Throttle) *LoginService {
	sm := session.NewManager(e.repos.Store.Sessions(), []byte("secret"), 0)
	return NewLoginService(e.deps(), sm, th, nil)
}

// signup creates a user with one empire.
func (e *env) signup(t *testing.T, username, password string) (*models.User, *models.Empire) {
	t.Helper()
	ctx := context.Background()
	u, err := e.empires().CreateUser(ctx, username, password)
	require.NoError(t, err)
	emp, err := e.empires().CreateEmpire(ctx, u.ID, username+"'s empire")
	require.NoError(t, err)
	return u, emp
}

func (e *env) empire(t *testing.T, id int64) *models.Empire {
	t.Helper()
	emp, err := e.repos.Store.Empires().Load(context.Background(), id)
	require.NoError(t, err)
	return emp
}
