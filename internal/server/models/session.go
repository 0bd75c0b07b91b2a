package models

import "time"

type Session struct {
	ID        string
	UserID    int64
	EmpireID  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}
