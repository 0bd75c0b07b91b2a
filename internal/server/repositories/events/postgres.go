package events

import (
	"context"
	"encoding/json"
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

func (r *PostgresRepository) Append(ctx context.Context, ev models.Event) error {
	query :=
		`INSERT INTO events (id, kind, empire_id, at, details)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, ev.ID, string(ev.Kind), ev.EmpireID, ev.At, details); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) ListForEmpire(ctx context.Context, empireID int64, limit int) ([]models.Event, error) {
	query :=
		`SELECT id, kind, empire_id, at, details FROM events
		 WHERE empire_id = $1
		 ORDER BY at DESC, id DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, empireID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	out := make([]models.Event, 0)
	for rows.Next() {
		var ev models.Event
		var kind string
		var details []byte
		if err := rows.Scan(&ev.ID, &kind, &ev.EmpireID, &ev.At, &details); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ev.Kind = models.EventKind(kind)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &ev.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return out, nil
}
