package models

import "time"

type EventKind string

const (
	EventTurnsGranted      EventKind = "turns_granted"
	EventIdleWarned        EventKind = "idle_warned"
	EventAbandoned         EventKind = "abandoned"
	EventPurged            EventKind = "purged"
	EventActivated         EventKind = "activated"
	EventProtectionExpired EventKind = "protection_expired"
	EventVacationStarted   EventKind = "vacation_started"
	EventVacationEnded     EventKind = "vacation_ended"
)

// Event is a structured lifecycle notification. Rendering is up to the
// consumer.
type Event struct {
	ID       string
	Kind     EventKind
	EmpireID int64
	At       time.Time
	Details  map[string]any
}

type TurnLogType string

const (
	TurnLogEvent TurnLogType = "event"
	TurnLogStart TurnLogType = "start"
	TurnLogEnd   TurnLogType = "end"
	TurnLogAbort TurnLogType = "abort"
)

// TurnLogEntry records one step of a scheduler pass.
type TurnLogEntry struct {
	ID       string
	At       time.Time
	Type     TurnLogType
	Ticks    int
	Interval string
	Text     string
}
