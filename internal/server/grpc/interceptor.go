package grpc

import (
	"context"
	"errors"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func sessionToken(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.SessionTokenHeaderName); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// sessionInterceptor resolves the session token of non-public methods and
// attaches the session to the context.
func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := sessionToken(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing session token")
	}

	sess, err := s.sessions.Authenticate(ctx, token, s.Now())
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return nil, status.Error(codes.Unauthenticated, "session expired")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		return nil, status.Error(codes.Unauthenticated, "invalid session")
	case err != nil:
		s.logger.Error(ctx, "authenticate", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unavailable, "try again later")
	}

	return handler(session.WithSession(ctx, sess), req)
}

// triggerInterceptor lets requests drive the scheduler in on-request mode.
// The pass runs in the background; the request does not wait for it.
func (s *GRPCServer) triggerInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.Trigger != nil {
		s.Trigger.Poke(ctx)
	}
	return handler(ctx, req)
}
