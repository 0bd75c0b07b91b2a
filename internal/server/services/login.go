package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/auth"
	"github.com/mdhender/promisance/internal/server/lifecycle"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/session"
)

type LoginRequest struct {
	Username   string
	Password   string
	RemoteAddr string
}

type LoginResult struct {
	UserID   int64
	EmpireID int64
	Session  *session.Handle
}

// LoginRecorder counts login outcomes. Implemented by the metrics package.
type LoginRecorder interface {
	Login(result string)
}

type nopLoginRecorder struct{}

func (nopLoginRecorder) Login(string) {}

type LoginService struct {
	d        Deps
	sessions *session.Manager
	throttle *Throttle
	metrics  LoginRecorder
}

// NewLoginService builds the service. throttle and rec may be nil.
func NewLoginService(d Deps, sessions *session.Manager, throttle *Throttle, rec LoginRecorder) *LoginService {
	d = d.withDefaults()
	d.Logger = d.Logger.With("module", "login")
	if rec == nil {
		rec = nopLoginRecorder{}
	}
	return &LoginService{d: d, sessions: sessions, throttle: throttle, metrics: rec}
}

// Login checks the credentials, opens a session on the user's first empire
// and marks it as seen. Refusals are *LoginError; anything else is an
// infrastructure failure.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	res, err := s.login(ctx, req)
	var le *LoginError
	switch {
	case err == nil:
		s.metrics.Login("ok")
	case errors.As(err, &le):
		s.metrics.Login(string(le.Code))
	default:
		s.metrics.Login("error")
	}
	return res, err
}

func (s *LoginService) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	log := s.d.Logger
	c := s.d.context()

	if !s.throttle.Allow(req.RemoteAddr, c.Now) {
		log.Warn(ctx, "login throttled", "username", req.Username, "addr", req.RemoteAddr)
		return nil, loginError(LoginThrottled)
	}
	if req.Username == "" {
		return nil, loginError(LoginNeedUsername)
	}
	if req.Password == "" {
		return nil, loginError(LoginNeedPassword)
	}
	if strings.TrimSpace(req.Username) != req.Username || strings.TrimSpace(req.Password) != req.Password {
		return nil, loginError(LoginBadInput)
	}

	fail := func(code LoginCode, reason string) (*LoginResult, error) {
		log.Info(ctx, "login failed", "username", req.Username, "reason", reason, "addr", req.RemoteAddr)
		return nil, loginError(code)
	}

	users := s.d.Repos.Users(s.d.DB)
	userID, err := users.FindByName(ctx, req.Username)
	if errors.Is(err, common.ErrorNotFound) {
		return fail(LoginUserNotFound, "username")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user, err := users.Load(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return fail(LoginUserNotFound, "load")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return fail(LoginBadPassword, "password")
	}
	if user.Flags.Closed {
		return fail(LoginUserClosed, "closed")
	}

	empireIDs, err := s.d.Repos.Empires(s.d.DB).ListIDsForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list empires: %w", err)
	}
	if len(empireIDs) == 0 {
		switch {
		case c.Rules.Ended(c.Now):
			return fail(LoginNoEmpire, "no empire")
		case c.Rules.SignupClosed:
			return fail(LoginNoEmpireClosed, "no empire")
		}
		return nil, loginError(LoginNeedSignup)
	}
	empireID := empireIDs[0]

	var res *LoginResult
	var events []models.Event
	refs := []locks.Ref{locks.User(user.ID), locks.Empire(empireID)}
	err = locks.With(ctx, s.d.Locks, locks.Owner(user.ID), refs, 0, func(ctx context.Context) error {
		return s.d.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			user, err := s.d.Repos.Users(tx).Load(ctx, user.ID)
			if err != nil {
				return err
			}
			emps := s.d.Repos.Empires(tx)
			emp, err := empires.LoadChecked(ctx, emps, log, empireID)
			if errors.Is(err, common.ErrorNotFound) {
				return loginError(LoginEmpireNotFound)
			}
			if err != nil {
				return err
			}
			if emp.State == models.StatePurged || emp.State == models.StateAbandoned {
				return loginError(LoginEmpireNotFound)
			}

			if auth.IsLegacyHash(user.PasswordHash) {
				h, err := auth.HashPassword(req.Password)
				if err != nil {
					return fmt.Errorf("convert password: %w", err)
				}
				user.PasswordHash = h
			}

			h, err := s.sessions.Start(ctx, s.d.Repos.Sessions(tx), user.ID, emp.ID, c.Now)
			if err != nil {
				return err
			}

			user.LastIP = req.RemoteAddr
			user.LastLogin = c.Now
			if ev, ok := lifecycle.Login(emp, c); ok {
				events = append(events, ev)
			}
			if c.Rules.Started(c.Now) {
				emp.Flags.Online = true
			}

			if err := s.d.Repos.Users(tx).Save(ctx, user); err != nil {
				return err
			}
			if err := emps.Save(ctx, emp); err != nil {
				return err
			}
			res = &LoginResult{UserID: user.ID, EmpireID: emp.ID, Session: h}
			return nil
		})
	})

	var le *LoginError
	switch {
	case errors.As(err, &le):
		return fail(le.Code, string(le.Code))
	case errors.Is(err, common.ErrLockConflict):
		log.Warn(ctx, "login lock conflict", "username", req.Username, "error", err)
		return nil, loginError(LoginBusy)
	case err != nil:
		return nil, fmt.Errorf("login: %w", err)
	}

	log.Info(ctx, "login", "username", req.Username, "user", res.UserID, "empire", res.EmpireID, "addr", req.RemoteAddr)
	s.d.notify(ctx, events)
	return res, nil
}

// Logout ends a session.
func (s *LoginService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}
