// Package schedule stores the last period each periodic cycle ran for.
package schedule

import (
	"context"
	"time"

	"github.com/mdhender/promisance/internal/server/models"
)

type Repository interface {
	// Get returns the state of a cycle or common.ErrorNotFound if it never ran.
	Get(ctx context.Context, roundID int64, cycle models.Cycle) (*models.ScheduleState, error)
	// Advance moves the cycle forward to period. It is a test-and-set:
	// it reports false, changing nothing, when the stored period is already
	// at or past period.
	Advance(ctx context.Context, roundID int64, cycle models.Cycle, period int64, at time.Time) (bool, error)
}
