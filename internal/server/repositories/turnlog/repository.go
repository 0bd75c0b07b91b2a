// Package turnlog keeps the log written by every scheduler pass.
package turnlog

import (
	"context"

	"github.com/mdhender/promisance/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry models.TurnLogEntry) error
	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]models.TurnLogEntry, error)
}
