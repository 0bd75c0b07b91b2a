package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, s models.Session) error {
	query :=
		`INSERT INTO sessions (id, user_id, empire_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET id = EXCLUDED.id, empire_id = EXCLUDED.empire_id,
		     created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
		 `

	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.EmpireID, s.CreatedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query :=
		`SELECT id, user_id, empire_id, created_at, expires_at FROM sessions WHERE id = $1`

	var s models.Session
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.EmpireID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return &s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}
