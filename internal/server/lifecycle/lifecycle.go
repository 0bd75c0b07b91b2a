// Package lifecycle moves empires between lifecycle states based on the
// timestamps they carry and the time of the scheduler pass.
//
// Evaluate is pure: it looks at a snapshot and reports the transition that is
// due, if any. Apply performs it. Only an applied transition produces an
// event, so evaluating the same snapshot twice without time passing never
// fires anything twice.
package lifecycle

import (
	"time"

	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/rules"
)

// Transition is one state change.
type Transition struct {
	From   models.LifecycleState
	To     models.LifecycleState
	Event  models.EventKind
	Reason string
}

const (
	ReasonValidated         = "validated"
	ReasonValidationTimeout = "validation_timeout"
	ReasonIdleNew           = "idle_new"
	ReasonProtectionExpired = "protection_expired"
	ReasonProtectionTurns   = "protection_turns_used"
	ReasonVacationStart     = "vacation_start"
	ReasonVacationEnd       = "vacation_end"
	ReasonIdle              = "idle"
	ReasonLogin             = "login"
	ReasonGraceExpired      = "grace_expired"
	ReasonDeleteDelay       = "delete_delay"
	ReasonProtectedDelete   = "protected_delete"
	ReasonPlayerDelete      = "player_delete"
)

// Evaluate returns the transition due for e at c.Now. e is not modified.
func Evaluate(e *models.Empire, c rules.Context) (Transition, bool) {
	now, r := c.Now, c.Rules

	to := func(s models.LifecycleState, ev models.EventKind, reason string) (Transition, bool) {
		return Transition{From: e.State, To: s, Event: ev, Reason: reason}, true
	}

	switch e.State {
	case models.StateNew:
		if e.Validated() {
			if e.Protected(now) {
				return to(models.StateProtected, models.EventActivated, ReasonValidated)
			}
			return to(models.StateActive, models.EventActivated, ReasonValidated)
		}
		if !e.ValidationPromptedAt.IsZero() {
			if elapsed(e.ValidationPromptedAt, now, r.IdleTimeoutValidate) {
				return to(models.StatePurged, models.EventPurged, ReasonValidationTimeout)
			}
			return Transition{}, false
		}
		if elapsed(LastSeen(e), now, r.IdleTimeoutNew) {
			return to(models.StatePurged, models.EventPurged, ReasonIdleNew)
		}

	case models.StateProtected:
		if !e.Protected(now) {
			return to(models.StateActive, models.EventProtectionExpired, ReasonProtectionExpired)
		}
		if r.TurnsProtection > 0 && e.Turns.Used >= r.TurnsProtection {
			return to(models.StateActive, models.EventProtectionExpired, ReasonProtectionTurns)
		}

	case models.StateActive:
		if !e.VacationRequestedAt.IsZero() && elapsed(e.VacationRequestedAt, now, r.VacationStart) {
			return to(models.StateOnVacation, models.EventVacationStarted, ReasonVacationStart)
		}
		if e.Flags.Disabled || e.Protected(now) {
			return Transition{}, false
		}
		if elapsed(LastSeen(e), now, r.IdleTimeoutAbandon) {
			return to(models.StateIdleWarned, models.EventIdleWarned, ReasonIdle)
		}

	case models.StateOnVacation:
		if !now.Before(VacationEnd(e, r)) {
			return to(models.StateActive, models.EventVacationEnded, ReasonVacationEnd)
		}

	case models.StateIdleWarned:
		if !e.IdleSince.IsZero() && e.LastLoginAt.After(e.IdleSince) {
			return to(models.StateActive, models.EventActivated, ReasonLogin)
		}
		if e.IdleSince.IsZero() || elapsed(e.IdleSince, now, r.IdleGrace) {
			return to(models.StateAbandoned, models.EventAbandoned, ReasonGraceExpired)
		}

	case models.StateAbandoned:
		if e.Protected(now) {
			return to(models.StatePurged, models.EventPurged, ReasonProtectedDelete)
		}
		if e.AbandonedAt.IsZero() || elapsed(e.AbandonedAt, now, r.IdleTimeoutDelete) {
			return to(models.StatePurged, models.EventPurged, ReasonDeleteDelay)
		}
	}

	return Transition{}, false
}

// Apply performs t on e and returns the event describing it.
func Apply(e *models.Empire, t Transition, c rules.Context) models.Event {
	now := c.Now

	switch t.To {
	case models.StateOnVacation:
		e.VacationStartedAt = e.VacationRequestedAt.Add(c.Rules.VacationStart)
		e.VacationRequestedAt = time.Time{}
		e.Flags.Online = false
	case models.StateIdleWarned:
		e.IdleSince = now
	case models.StateAbandoned:
		e.AbandonedAt = now
		e.IdleSince = time.Time{}
		e.Flags.Online = false
	case models.StatePurged:
		e.Flags.Online = false
	case models.StateActive, models.StateProtected:
		if t.From == models.StateOnVacation {
			// idle time restarts when the vacation ends
			e.LastActionAt = now
			e.VacationStartedAt = time.Time{}
			e.VacationEndAt = time.Time{}
		}
		e.IdleSince = time.Time{}
	}
	e.State = t.To

	return models.Event{
		Kind:     t.Event,
		EmpireID: e.ID,
		At:       now,
		Details: map[string]any{
			"from":   string(t.From),
			"to":     string(t.To),
			"reason": t.Reason,
		},
	}
}

// Advance applies due transitions until none is left. It returns the events
// of the applied transitions in order.
func Advance(e *models.Empire, c rules.Context) []models.Event {
	var events []models.Event
	// every state is visited at most once per pass
	for i := 0; i < 7; i++ {
		t, ok := Evaluate(e, c)
		if !ok {
			break
		}
		events = append(events, Apply(e, t, c))
		if e.State == models.StatePurged {
			break
		}
	}
	return events
}

// MarkForDeletion is the player-initiated delete. It moves any live empire
// to Abandoned.
func MarkForDeletion(e *models.Empire, c rules.Context) (models.Event, bool) {
	if e.State == models.StateAbandoned || e.State == models.StatePurged {
		return models.Event{}, false
	}
	t := Transition{From: e.State, To: models.StateAbandoned, Event: models.EventAbandoned, Reason: ReasonPlayerDelete}
	return Apply(e, t, c), true
}

// Login records a login at now. An IdleWarned empire becomes Active again.
func Login(e *models.Empire, c rules.Context) (models.Event, bool) {
	e.LastLoginAt = c.Now
	e.LastActionAt = c.Now
	if e.State != models.StateIdleWarned {
		return models.Event{}, false
	}
	t := Transition{From: e.State, To: models.StateActive, Event: models.EventActivated, Reason: ReasonLogin}
	return Apply(e, t, c), true
}

// LastSeen is the latest of signup, last login and last action.
func LastSeen(e *models.Empire) time.Time {
	seen := e.SignupAt
	if e.LastLoginAt.After(seen) {
		seen = e.LastLoginAt
	}
	if e.LastActionAt.After(seen) {
		seen = e.LastActionAt
	}
	return seen
}

// VacationEnd is when an empire on vacation may return: the later of the
// player's chosen end and the minimum vacation length.
func VacationEnd(e *models.Empire, r rules.Rules) time.Time {
	minEnd := e.VacationStartedAt.Add(r.VacationLimit)
	if e.VacationEndAt.After(minEnd) {
		return e.VacationEndAt
	}
	return minEnd
}

func elapsed(since, now time.Time, d time.Duration) bool {
	return !now.Before(since.Add(d))
}
