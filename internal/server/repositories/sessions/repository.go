// Package sessions persists login sessions. A user holds at most one session;
// a new login replaces the old one.
package sessions

import (
	"context"

	"github.com/mdhender/promisance/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, s models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}
