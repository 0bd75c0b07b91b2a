package scheduler

import (
	"time"

	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/rules"
)

// Effect is a world event applied to each empire once per hourly or daily
// period. Apply must only touch the empire it is given.
type Effect interface {
	Name() string
	Apply(e *models.Empire, c rules.Context)
}

// ClearOnline drops the online flag of empires that did nothing in the last
// hour.
type ClearOnline struct{}

func (ClearOnline) Name() string { return "clear_online" }

func (ClearOnline) Apply(e *models.Empire, c rules.Context) {
	if e.Flags.Online && !e.LastActionAt.After(c.Now.Add(-time.Hour)) {
		e.Flags.Online = false
	}
}

// ResetBonus lets empires claim bonus turns again.
type ResetBonus struct{}

func (ResetBonus) Name() string { return "reset_bonus" }

func (ResetBonus) Apply(e *models.Empire, _ rules.Context) {
	e.BonusClaimed = false
}

// DefaultHourly and DefaultDaily are the effects the server runs.
func DefaultHourly() []Effect { return []Effect{ClearOnline{}} }
func DefaultDaily() []Effect  { return []Effect{ResetBonus{}} }
