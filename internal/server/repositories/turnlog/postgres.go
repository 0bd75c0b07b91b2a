package turnlog

import (
	"context"
	"fmt"

	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e models.TurnLogEntry) error {
	query :=
		`INSERT INTO turnlog (id, at, type, ticks, interval, text)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	if _, err := r.db.ExecContext(ctx, query, e.ID, e.At, string(e.Type), e.Ticks, e.Interval, e.Text); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]models.TurnLogEntry, error) {
	query :=
		`SELECT id, at, type, ticks, interval, text FROM turnlog
		 ORDER BY at DESC, id DESC
		 LIMIT $1
		 `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	out := make([]models.TurnLogEntry, 0)
	for rows.Next() {
		var e models.TurnLogEntry
		var typ string
		if err := rows.Scan(&e.ID, &e.At, &typ, &e.Ticks, &e.Interval, &e.Text); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Type = models.TurnLogType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return out, nil
}
