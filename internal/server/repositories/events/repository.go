// Package events stores lifecycle events emitted by the scheduler and the
// player services.
package events

import (
	"context"

	"github.com/mdhender/promisance/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, event models.Event) error
	// ListForEmpire returns the newest events of an empire first.
	ListForEmpire(ctx context.Context, empireID int64, limit int) ([]models.Event, error)
}
