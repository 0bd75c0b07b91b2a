package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/notify"
	"github.com/mdhender/promisance/internal/server/repositories/repomanager"
	"github.com/mdhender/promisance/internal/server/rules"
	"github.com/mdhender/promisance/internal/server/services"
	"github.com/mdhender/promisance/internal/server/session"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	repos  *repomanager.MemoryRepositoryManager
	locks  *locks.MemoryManager
	server *GRPCServer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos: repomanager.NewMemoryRepositoryManager(),
		locks: locks.NewMemoryManager(nil),
		now:   t0.Add(time.Hour),
	}
	r := rules.Default()
	r.RoundStart = t0
	d := services.Deps{
		Repos:    f.repos,
		Locks:    f.locks,
		Rules:    func() rules.Rules { return r },
		Now:      func() time.Time { return f.now },
		Notifier: notify.Multi{notify.Store{Repo: f.repos.Store.Events()}},
	}
	sm := session.NewManager(f.repos.Store.Sessions(), []byte("secret"), 0)
	f.server = NewGRPCServer("127.0.0.1:0", logging.Nop{},
		services.NewLoginService(d, sm, nil, nil), services.NewEmpireService(d), sm)
	f.server.Now = func() time.Time { return f.now }
	return f
}

const bufSize = 1024 * 1024

// dial serves f over an in-memory listener and returns a client for it.
func (f *fixture) dial(t *testing.T) *Client {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	srv := f.server.NewServer()
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.GracefulStop()
		_ = conn.Close()
		_ = listener.Close()
	})
	return NewClient(conn)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := newFixture(t).server

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := newFixture(t).server
	srv.address = "127.0.0.1:99999"

	require.Error(t, srv.Run(context.Background()))
}
