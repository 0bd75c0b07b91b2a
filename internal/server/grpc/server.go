// Package grpc exposes the player operations over gRPC and, in on-request
// mode, starts scheduler passes as requests arrive.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/services"
	"github.com/mdhender/promisance/internal/server/session"
	"google.golang.org/grpc"
)

// Poker starts a scheduler pass when one is due. See scheduler.RequestTrigger.
type Poker interface {
	Poke(ctx context.Context) bool
}

type GRPCServer struct {
	address  string
	logins   *services.LoginService
	empires  *services.EmpireService
	sessions *session.Manager
	logger   logging.Logger

	// Trigger, when set, is poked before every request.
	Trigger Poker
	Now     func() time.Time
}

func NewGRPCServer(a string, l logging.Logger, ls *services.LoginService, es *services.EmpireService, sm *session.Manager) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		logins:   ls,
		empires:  es,
		sessions: sm,
		Now:      time.Now,
	}
}

// NewServer builds a grpc.Server with the interceptors and the game
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.triggerInterceptor, s.sessionInterceptor))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
