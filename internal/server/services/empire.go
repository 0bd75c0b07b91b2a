package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/auth"
	"github.com/mdhender/promisance/internal/server/lifecycle"
	"github.com/mdhender/promisance/internal/server/locks"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/repositories/empires"
	"github.com/mdhender/promisance/internal/server/rules"
	"github.com/mdhender/promisance/internal/server/turns"
)

// EmpireService runs signup and player actions on empires.
type EmpireService struct {
	d Deps
}

func NewEmpireService(d Deps) *EmpireService {
	d = d.withDefaults()
	d.Logger = d.Logger.With("module", "empires")
	return &EmpireService{d: d}
}

// CreateUser registers an account.
func (s *EmpireService) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	repo := s.d.Repos.Users(s.d.DB)
	if _, err := repo.FindByName(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := repo.Create(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		Flags:        models.UserFlags{Valid: true},
		CreatedAt:    s.d.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.d.Logger.Info(ctx, "user created", "user", u.ID, "username", username)
	return u, nil
}

// CreateEmpire signs a user up for the running round.
func (s *EmpireService) CreateEmpire(ctx context.Context, userID int64, name string) (*models.Empire, error) {
	c := s.d.context()
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if c.Rules.Ended(c.Now) {
		return nil, ErrRoundOver
	}
	if c.Rules.SignupClosed {
		return nil, ErrSignupClosed
	}

	var created *models.Empire
	err := locks.With(ctx, s.d.Locks, locks.OwnerNew, []locks.Ref{locks.User(userID)}, time.Second, func(ctx context.Context) error {
		return s.d.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			if _, err := s.d.Repos.Users(tx).Load(ctx, userID); err != nil {
				return err
			}
			repo := s.d.Repos.Empires(tx)
			owned, err := repo.ListIDsForUser(ctx, userID)
			if err != nil {
				return err
			}
			if limit := c.Rules.EmpiresPerUser; limit > 0 && len(owned) >= limit {
				return ErrTooManyEmpires
			}
			created, err = repo.Create(ctx, NewEmpire(userID, name, c))
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.d.Logger.Info(ctx, "empire created", "user", userID, "empire", created.ID, "name", name)
	return created, nil
}

// Signup creates the account when it does not exist yet, then an empire
// for it. An existing account must present its password.
func (s *EmpireService) Signup(ctx context.Context, username, password, empireName string) (*models.Empire, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	users := s.d.Repos.Users(s.d.DB)
	var userID int64
	id, err := users.FindByName(ctx, username)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		u, err := s.CreateUser(ctx, username, password)
		if err != nil {
			return nil, err
		}
		userID = u.ID
	case err != nil:
		return nil, fmt.Errorf("find user: %w", err)
	default:
		u, err := users.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		if u.Flags.Closed || !auth.CheckPassword(u.PasswordHash, password) {
			return nil, common.ErrorUnauthorized
		}
		userID = u.ID
	}
	return s.CreateEmpire(ctx, userID, empireName)
}

// NewEmpire returns the starting record for a signup at c.Now.
func NewEmpire(userID int64, name string, c rules.Context) *models.Empire {
	r := c.Rules
	e := &models.Empire{
		UserID:    userID,
		Name:      name,
		State:     models.StateNew,
		Resources: models.Resources{Cash: 100000, Food: 10000, Runes: 500, Peasants: 500},
		Troops:    models.Troops{Arm: 100, Lnd: 50, Fly: 50, Sea: 50, Wiz: 25},
		Land:      250,
		Buildings: models.Buildings{Pop: 5, Cash: 10, Trp: 5, Cost: 5, Wiz: 5, Food: 15, Def: 5, Free: 200},
		Turns:     models.Turns{Current: r.TurnsInitial},
		SignupAt:  c.Now,
	}
	if r.ProtectionPeriod > 0 {
		e.ProtectionExpiry = c.Now.Add(r.ProtectionPeriod)
	}
	// effects of periods that began before signup do not apply
	e.LastHourlyPeriod = r.HourlyGrid().Index(c.Now)
	e.LastDailyPeriod = r.DailyGrid().Index(c.Now)
	return e
}

// UseTurns spends n turns on behalf of the player.
func (s *EmpireService) UseTurns(ctx context.Context, userID, empireID int64, n int) (*models.Empire, error) {
	if n <= 0 {
		return nil, ErrInvalidInput
	}
	return s.mutate(ctx, userID, empireID, true, func(emp *models.Empire, c rules.Context) ([]models.Event, error) {
		if !playable(emp) {
			return nil, ErrInvalidState
		}
		if err := turns.Spend(emp, n); err != nil {
			return nil, err
		}
		if !emp.Validated() && emp.ValidationPromptedAt.IsZero() && emp.Turns.Used >= c.Rules.TurnsValidate {
			emp.ValidationPromptedAt = c.Now
		}
		return nil, nil
	})
}

// Validate marks the empire as validated.
func (s *EmpireService) Validate(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
	return s.mutate(ctx, userID, empireID, true, func(emp *models.Empire, c rules.Context) ([]models.Event, error) {
		if emp.Validated() {
			return nil, nil
		}
		if emp.State != models.StateNew {
			return nil, ErrInvalidState
		}
		emp.ValidatedAt = c.Now
		return nil, nil
	})
}

// RequestVacation schedules a vacation. It starts VacationStart after now
// and lasts at least VacationLimit; until, when later, extends it.
func (s *EmpireService) RequestVacation(ctx context.Context, userID, empireID int64, until time.Time) (*models.Empire, error) {
	return s.mutate(ctx, userID, empireID, true, func(emp *models.Empire, c rules.Context) ([]models.Event, error) {
		if emp.State != models.StateActive || !emp.VacationRequestedAt.IsZero() {
			return nil, ErrInvalidState
		}
		emp.VacationRequestedAt = c.Now
		emp.VacationEndAt = until
		return nil, nil
	})
}

// EndVacation cancels a pending vacation request, or ends a running vacation
// once its minimum length has passed.
func (s *EmpireService) EndVacation(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
	return s.mutate(ctx, userID, empireID, true, func(emp *models.Empire, c rules.Context) ([]models.Event, error) {
		switch {
		case emp.State == models.StateActive && !emp.VacationRequestedAt.IsZero():
			emp.VacationRequestedAt = time.Time{}
			emp.VacationEndAt = time.Time{}
			return nil, nil
		case emp.State == models.StateOnVacation:
			if c.Now.Before(emp.VacationStartedAt.Add(c.Rules.VacationLimit)) {
				return nil, ErrVacationTooShort
			}
			emp.VacationEndAt = c.Now
			return nil, nil
		}
		return nil, ErrInvalidState
	})
}

// Delete abandons the empire at the player's request.
func (s *EmpireService) Delete(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
	return s.mutate(ctx, userID, empireID, true, func(emp *models.Empire, c rules.Context) ([]models.Event, error) {
		ev, ok := lifecycle.MarkForDeletion(emp, c)
		if !ok {
			return nil, ErrInvalidState
		}
		return []models.Event{ev}, nil
	})
}

// ClaimBonusTurns grants one hour's worth of turns once per day.
func (s *EmpireService) ClaimBonusTurns(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
	return s.mutate(ctx, userID, empireID, true, func(emp *models.Empire, c rules.Context) ([]models.Event, error) {
		if !c.Rules.BonusTurns {
			return nil, ErrBonusDisabled
		}
		if !playable(emp) {
			return nil, ErrInvalidState
		}
		if emp.BonusClaimed {
			return nil, ErrBonusClaimed
		}
		d := turns.Grant(emp, c.Rules.BonusTurnAmount(), c.Rules)
		emp.BonusClaimed = true
		return []models.Event{{
			Kind:     models.EventTurnsGranted,
			EmpireID: emp.ID,
			At:       c.Now,
			Details: map[string]any{
				"bonus":     true,
				"granted":   d.Granted,
				"stored":    d.Stored,
				"discarded": d.Discarded,
			},
		}}, nil
	})
}

// Get returns the empire after bringing its turns up to date.
func (s *EmpireService) Get(ctx context.Context, userID, empireID int64) (*models.Empire, error) {
	return s.mutate(ctx, userID, empireID, false, func(*models.Empire, rules.Context) ([]models.Event, error) {
		return nil, nil
	})
}

// Status is the public round summary.
type Status struct {
	RoundID    int64
	Started    bool
	Ended      bool
	Registered int
	Now        time.Time
}

func (s *EmpireService) Status(ctx context.Context) (*Status, error) {
	c := s.d.context()
	n, err := s.d.Repos.Empires(s.d.DB).CountRegistered(ctx)
	if err != nil {
		return nil, fmt.Errorf("count empires: %w", err)
	}
	return &Status{
		RoundID:    c.Rules.RoundID,
		Started:    c.Rules.Started(c.Now),
		Ended:      c.Rules.Ended(c.Now),
		Registered: n,
		Now:        c.Now,
	}, nil
}

func playable(e *models.Empire) bool {
	switch e.State {
	case models.StateNew, models.StateActive, models.StateProtected, models.StateIdleWarned:
		return !e.Flags.Disabled
	}
	return false
}

type action func(emp *models.Empire, c rules.Context) ([]models.Event, error)

// mutate runs fn on the player's empire under its lock. Turns are accrued
// first and lifecycle transitions applied after, so the record saved is
// always current. touch counts the call as player activity.
func (s *EmpireService) mutate(ctx context.Context, userID, empireID int64, touch bool, fn action) (*models.Empire, error) {
	c := s.d.context()
	var out *models.Empire
	var events []models.Event

	err := locks.With(ctx, s.d.Locks, locks.Owner(userID), []locks.Ref{locks.Empire(empireID)}, 0, func(ctx context.Context) error {
		return s.d.Tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.d.Repos.Empires(tx)
			emp, err := empires.LoadChecked(ctx, repo, s.d.Logger, empireID)
			if err != nil {
				return err
			}
			if emp.UserID != userID || emp.State == models.StatePurged {
				return common.ErrorUnauthorized
			}

			turns.Accrue(emp, c)
			evs, err := fn(emp, c)
			if err != nil {
				return err
			}
			events = append(events, evs...)

			if touch && emp.State != models.StateAbandoned {
				emp.LastActionAt = c.Now
				if c.Rules.Started(c.Now) && emp.State != models.StateOnVacation {
					emp.Flags.Online = true
				}
			}
			// purging archives the record, which only the scheduler does
			if emp.State != models.StateAbandoned {
				next := emp.Clone()
				if evs := lifecycle.Advance(next, c); next.State != models.StatePurged {
					emp = next
					events = append(events, evs...)
				}
			}

			if err := repo.Save(ctx, emp); err != nil {
				return err
			}
			out = emp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.d.notify(ctx, events)
	return out, nil
}
