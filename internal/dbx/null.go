package dbx

import (
	"database/sql"
	"time"
)

// NullTime stores the zero time as NULL.
func NullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// TimeOf turns NULL back into the zero time.
func TimeOf(n sql.NullTime) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return n.Time
}
