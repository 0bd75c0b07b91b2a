package dbx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNullTime_RoundTrip(t *testing.T) {
	assert.False(t, NullTime(time.Time{}).Valid)
	assert.True(t, TimeOf(NullTime(time.Time{})).IsZero())

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	n := NullTime(now)
	assert.True(t, n.Valid)
	assert.Equal(t, now, TimeOf(n))
}
