// Package models holds the records persisted by the repositories and passed
// between the scheduler, the lifecycle machine and the services.
package models

import (
	"fmt"
	"time"

	"github.com/mdhender/promisance/internal/common"
)

// LifecycleState is the tagged lifecycle state of an empire. It is kept
// separate from the capability flags.
type LifecycleState string

const (
	StateNew        LifecycleState = "new"
	StateActive     LifecycleState = "active"
	StateProtected  LifecycleState = "protected"
	StateOnVacation LifecycleState = "vacation"
	StateIdleWarned LifecycleState = "idle_warned"
	StateAbandoned  LifecycleState = "abandoned"
	StatePurged     LifecycleState = "purged"
)

func (s LifecycleState) Valid() bool {
	switch s {
	case StateNew, StateActive, StateProtected, StateOnVacation,
		StateIdleWarned, StateAbandoned, StatePurged:
		return true
	}
	return false
}

// Accrues reports whether empires in this state collect turns.
func (s LifecycleState) Accrues() bool {
	switch s {
	case StateAbandoned, StatePurged, StateOnVacation:
		return false
	}
	return true
}

// EmpireFlags are independent capability bits.
type EmpireFlags struct {
	Online   bool
	Closed   bool
	Disabled bool
	Admin    bool
}

type Resources struct {
	Cash     int64
	Food     int64
	Runes    int64
	Peasants int64
}

type Troops struct {
	Arm int64
	Lnd int64
	Fly int64
	Sea int64
	Wiz int64
}

// Buildings are acre counts per building category, free land included.
type Buildings struct {
	Pop  int64
	Cash int64
	Trp  int64
	Cost int64
	Wiz  int64
	Food int64
	Def  int64
	Free int64
}

func (b Buildings) Total() int64 {
	return b.Pop + b.Cash + b.Trp + b.Cost + b.Wiz + b.Food + b.Def + b.Free
}

type Turns struct {
	Current int
	Stored  int
	Used    int
}

type Empire struct {
	ID     int64
	UserID int64
	Name   string
	State  LifecycleState
	Flags  EmpireFlags

	Resources Resources
	Troops    Troops
	Land      int64
	Buildings Buildings

	Turns Turns

	SignupAt             time.Time
	ValidatedAt          time.Time
	ValidationPromptedAt time.Time
	LastAccrualAt        time.Time
	LastLoginAt          time.Time
	LastActionAt         time.Time
	VacationRequestedAt  time.Time
	VacationStartedAt    time.Time
	VacationEndAt        time.Time
	ProtectionExpiry     time.Time
	IdleSince            time.Time
	AbandonedAt          time.Time

	// Period indexes of the last hourly/daily effects applied to this empire.
	LastHourlyPeriod int64
	LastDailyPeriod  int64

	BonusClaimed bool

	// NeedsReconciliation is set when the record loaded with an integrity
	// problem. It is never cleared automatically.
	NeedsReconciliation bool
}

// Validated reports whether the empire passed validation.
func (e *Empire) Validated() bool {
	return !e.ValidatedAt.IsZero()
}

// Protected reports whether protection is still in force at now.
func (e *Empire) Protected(now time.Time) bool {
	return !e.ProtectionExpiry.IsZero() && now.Before(e.ProtectionExpiry)
}

// CheckIntegrity verifies the land invariant. On violation it sets
// NeedsReconciliation and returns an error wrapping ErrInvariantViolation.
func (e *Empire) CheckIntegrity() error {
	if total := e.Buildings.Total(); total != e.Land {
		e.NeedsReconciliation = true
		return fmt.Errorf("%w: empire %d building acres %d != land %d",
			common.ErrInvariantViolation, e.ID, total, e.Land)
	}
	return nil
}

// Clone returns a copy safe to mutate independently.
func (e *Empire) Clone() *Empire {
	c := *e
	return &c
}

const (
	empireFlagAdmin    = 0x0002
	empireFlagDisabled = 0x0004
	empireFlagOnline   = 0x0080
	empireFlagClosed   = 0x0400
)

// Bits packs the flags into the integer stored in the empires table.
func (f EmpireFlags) Bits() int {
	var b int
	if f.Admin {
		b |= empireFlagAdmin
	}
	if f.Disabled {
		b |= empireFlagDisabled
	}
	if f.Online {
		b |= empireFlagOnline
	}
	if f.Closed {
		b |= empireFlagClosed
	}
	return b
}

func EmpireFlagsFromBits(b int) EmpireFlags {
	return EmpireFlags{
		Admin:    b&empireFlagAdmin != 0,
		Disabled: b&empireFlagDisabled != 0,
		Online:   b&empireFlagOnline != 0,
		Closed:   b&empireFlagClosed != 0,
	}
}
