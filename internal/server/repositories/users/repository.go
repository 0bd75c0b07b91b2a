package users

import (
	"context"

	"github.com/mdhender/promisance/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByName returns the id of the named user or common.ErrorNotFound.
	FindByName(ctx context.Context, username string) (int64, error)
	Load(ctx context.Context, id int64) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}
