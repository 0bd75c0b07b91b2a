package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Get(ctx context.Context, roundID int64, cycle models.Cycle) (*models.ScheduleState, error) {
	query :=
		`SELECT round_id, cycle, last_period, ran_at FROM schedule_state
		 WHERE round_id = $1 AND cycle = $2
		 `

	s := &models.ScheduleState{}
	var c string
	err := r.db.QueryRowContext(ctx, query, roundID, string(cycle)).Scan(&s.RoundID, &c, &s.LastPeriod, &s.RanAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	s.Cycle = models.Cycle(c)
	return s, nil
}

func (r *PostgresRepository) Advance(ctx context.Context, roundID int64, cycle models.Cycle, period int64, at time.Time) (bool, error) {
	query :=
		`INSERT INTO schedule_state (round_id, cycle, last_period, ran_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (round_id, cycle) DO UPDATE
		 SET last_period = EXCLUDED.last_period, ran_at = EXCLUDED.ran_at
		 WHERE schedule_state.last_period < EXCLUDED.last_period
		 `

	res, err := r.db.ExecContext(ctx, query, roundID, string(cycle), period, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
