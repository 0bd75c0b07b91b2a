// Package users stores player accounts.
package users

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, password_hash, flags, created_at)
         VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.PasswordHash, user.Flags.Bits(), user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return user, nil
}

func (r *PostgresRepository) FindByName(ctx context.Context, username string) (int64, error) {
	query :=
		`SELECT id FROM users
		 WHERE lower(username) = lower($1)
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query, username).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return id, nil
}

func (r *PostgresRepository) Load(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, flags, created_at, last_login, last_ip FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	var flags int
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &flags, &user.CreatedAt, &lastLogin, &user.LastIP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	user.Flags = models.UserFlagsFromBits(flags)
	user.LastLogin = dbx.TimeOf(lastLogin)

	return user, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users SET password_hash = $2, flags = $3, last_login = $4, last_ip = $5
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.PasswordHash, user.Flags.Bits(), dbx.NullTime(user.LastLogin), user.LastIP)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
