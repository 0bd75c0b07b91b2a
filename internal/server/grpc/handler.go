package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/services"
	"github.com/mdhender/promisance/internal/server/session"
	"github.com/mdhender/promisance/internal/server/turns"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Login takes {username, password} and returns
// {user_id, empire_id, session_token, expires_at}.
func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.logins.Login(ctx, services.LoginRequest{
		Username:   str(in, "username"),
		Password:   str(in, "password"),
		RemoteAddr: remoteAddr(ctx),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{
		"user_id":       res.UserID,
		"empire_id":     res.EmpireID,
		"session_token": res.Session.Token,
		"expires_at":    res.Session.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*emptypb.Empty, error) {
	sess, ok := session.Current(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no session")
	}
	if err := s.logins.Logout(ctx, sess.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

// Signup takes {username, password, empire} and returns the new empire.
func (s *GRPCServer) Signup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	emp, err := s.empires.Signup(ctx, str(in, "username"), str(in, "password"), str(in, "empire"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return empireStruct(emp)
}

func (s *GRPCServer) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.empires.Status(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{
		"round_id":   st.RoundID,
		"started":    st.Started,
		"ended":      st.Ended,
		"registered": st.Registered,
		"now":        st.Now.Format(time.RFC3339),
	})
}

func (s *GRPCServer) GetEmpire(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.act(ctx, s.empires.Get)
}

// UseTurns takes {turns}.
func (s *GRPCServer) UseTurns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n := int(in.GetFields()["turns"].GetNumberValue())
	return s.act(ctx, func(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
		return s.empires.UseTurns(ctx, userID, empireID, n)
	})
}

func (s *GRPCServer) Validate(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.act(ctx, s.empires.Validate)
}

// RequestVacation takes an optional {until} in RFC 3339.
func (s *GRPCServer) RequestVacation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var until time.Time
	if v := str(in, "until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "until: expected RFC 3339 time")
		}
		until = t
	}
	return s.act(ctx, func(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
		return s.empires.RequestVacation(ctx, userID, empireID, until)
	})
}

func (s *GRPCServer) EndVacation(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.act(ctx, s.empires.EndVacation)
}

func (s *GRPCServer) DeleteEmpire(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.act(ctx, s.empires.Delete)
}

func (s *GRPCServer) ClaimBonus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.act(ctx, s.empires.ClaimBonusTurns)
}

// act runs a player action on the session's empire.
func (s *GRPCServer) act(ctx context.Context, fn func(ctx context.Context, userID, empireID int64) (*models.Empire, error)) (*structpb.Struct, error) {
	sess, ok := session.Current(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no session")
	}
	emp, err := fn(ctx, sess.UserID, sess.EmpireID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return empireStruct(emp)
}

// toStatus maps service errors to gRPC codes. Unknown errors are logged and
// reported as internal without details.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var le *services.LoginError
	if errors.As(err, &le) {
		code := codes.Unauthenticated
		switch le.Code {
		case services.LoginBusy:
			code = codes.Unavailable
		case services.LoginThrottled:
			code = codes.ResourceExhausted
		case services.LoginNeedUsername, services.LoginNeedPassword, services.LoginBadInput:
			code = codes.InvalidArgument
		case services.LoginNoEmpire, services.LoginNoEmpireClosed, services.LoginNeedSignup, services.LoginEmpireNotFound:
			code = codes.NotFound
		}
		return status.Error(code, le.Message)
	}

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, services.ErrSignupClosed),
		errors.Is(err, services.ErrRoundOver),
		errors.Is(err, services.ErrTooManyEmpires),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrBonusDisabled),
		errors.Is(err, services.ErrBonusClaimed),
		errors.Is(err, services.ErrVacationTooShort),
		errors.Is(err, turns.ErrNotEnoughTurns):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrLockConflict):
		return status.Error(codes.Aborted, "your empire is busy, try again")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.PermissionDenied, "unauthorized")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrRepositoryUnavailable):
		s.logger.Error(ctx, "repository unavailable", "error", err)
		return status.Error(codes.Unavailable, "try again later")
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func str(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func remoteAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func rfc3339(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func empireStruct(e *models.Empire) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":      e.ID,
		"user_id": e.UserID,
		"name":    e.Name,
		"state":   string(e.State),
		"online":  e.Flags.Online,
		"turns": map[string]any{
			"current": e.Turns.Current,
			"stored":  e.Turns.Stored,
			"used":    e.Turns.Used,
		},
		"land":                 e.Land,
		"cash":                 e.Resources.Cash,
		"food":                 e.Resources.Food,
		"runes":                e.Resources.Runes,
		"peasants":             e.Resources.Peasants,
		"bonus_claimed":        e.BonusClaimed,
		"signup_at":            rfc3339(e.SignupAt),
		"validated_at":         rfc3339(e.ValidatedAt),
		"validation_prompt_at": rfc3339(e.ValidationPromptedAt),
		"protected_until":      rfc3339(e.ProtectionExpiry),
		"vacation_requested":   rfc3339(e.VacationRequestedAt),
		"vacation_started":     rfc3339(e.VacationStartedAt),
		"vacation_end":         rfc3339(e.VacationEndAt),
		"last_accrual":         rfc3339(e.LastAccrualAt),
	})
}
