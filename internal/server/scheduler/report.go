package scheduler

import (
	"fmt"
	"time"

	"github.com/mdhender/promisance/internal/server/models"
)

// Report summarizes one pass.
type Report struct {
	RoundID int64
	At      time.Time
	// Due holds the target period of every cycle that was due.
	Due map[models.Cycle]int64
	// Advanced lists the cycles whose schedule state moved forward.
	Advanced []models.Cycle

	Empires   int
	Purged    int
	Granted   int
	Discarded int
	Events    int

	Failures map[int64]error
}

func newReport(roundID int64, at time.Time) *Report {
	return &Report{RoundID: roundID, At: at, Due: make(map[models.Cycle]int64), Failures: make(map[int64]error)}
}

// OK reports whether every empire was processed.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

func (r *Report) ran(c models.Cycle) bool {
	if r == nil {
		return false
	}
	for _, a := range r.Advanced {
		if a == c {
			return true
		}
	}
	return false
}

func (r *Report) String() string {
	return fmt.Sprintf("%d empires, %d turns granted, %d discarded, %d purged, %d events, %d failures",
		r.Empires, r.Granted, r.Discarded, r.Purged, r.Events, len(r.Failures))
}
