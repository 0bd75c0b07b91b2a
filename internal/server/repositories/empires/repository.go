package empires

import (
	"context"
	"errors"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/logging"
	"github.com/mdhender/promisance/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, empire *models.Empire) (*models.Empire, error)
	Load(ctx context.Context, id int64) (*models.Empire, error)
	Save(ctx context.Context, empire *models.Empire) error
	Delete(ctx context.Context, id int64) error
	// ListIDsForUser returns the ids of the user's empires that are neither
	// abandoned nor purged, ascending.
	ListIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	// ListLiveIDs returns the ids of all empires not yet purged, ascending.
	ListLiveIDs(ctx context.Context) ([]int64, error)
	// CountRegistered counts empires that are neither abandoned nor purged.
	CountRegistered(ctx context.Context) (int, error)
}

// LoadChecked loads an empire and verifies its land invariant. A violation
// is logged and the empire is returned flagged for reconciliation.
func LoadChecked(ctx context.Context, repo Repository, log logging.Logger, id int64) (*models.Empire, error) {
	e, err := repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.CheckIntegrity(); err != nil {
		if !errors.Is(err, common.ErrInvariantViolation) {
			return nil, err
		}
		log.Warn(ctx, "empire needs reconciliation", "empire", id, "error", err)
	}
	return e, nil
}
