package models

import "time"

// Cycle names a periodic cycle tracked in schedule state.
type Cycle string

const (
	CycleTurns  Cycle = "turns"
	CycleHourly Cycle = "hourly"
	CycleDaily  Cycle = "daily"
)

var Cycles = []Cycle{CycleTurns, CycleHourly, CycleDaily}

// ScheduleState is the last period boundary a cycle ran for in a round.
type ScheduleState struct {
	RoundID    int64
	Cycle      Cycle
	LastPeriod int64
	RanAt      time.Time
}
