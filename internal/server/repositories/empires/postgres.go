// Package empires stores empire records.
package empires

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/dbx"
	"github.com/mdhender/promisance/internal/server/models"
)

const columns = `id, user_id, name, state, flags,
	cash, food, runes, peasants,
	trp_arm, trp_lnd, trp_fly, trp_sea, trp_wiz,
	land, bld_pop, bld_cash, bld_trp, bld_cost, bld_wiz, bld_food, bld_def, free_land,
	turns, stored_turns, turns_used,
	signup_at, validated_at, validation_prompted_at, last_accrual_at, last_login_at, last_action_at,
	vacation_requested_at, vacation_started_at, vacation_end_at, protection_expiry, idle_since, abandoned_at,
	last_hourly_period, last_daily_period, bonus_claimed, needs_reconciliation`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// values returns every column after id, in column order.
func values(e *models.Empire) []any {
	return []any{
		e.UserID, e.Name, string(e.State), e.Flags.Bits(),
		e.Resources.Cash, e.Resources.Food, e.Resources.Runes, e.Resources.Peasants,
		e.Troops.Arm, e.Troops.Lnd, e.Troops.Fly, e.Troops.Sea, e.Troops.Wiz,
		e.Land, e.Buildings.Pop, e.Buildings.Cash, e.Buildings.Trp, e.Buildings.Cost,
		e.Buildings.Wiz, e.Buildings.Food, e.Buildings.Def, e.Buildings.Free,
		e.Turns.Current, e.Turns.Stored, e.Turns.Used,
		e.SignupAt, dbx.NullTime(e.ValidatedAt), dbx.NullTime(e.ValidationPromptedAt),
		dbx.NullTime(e.LastAccrualAt), dbx.NullTime(e.LastLoginAt), dbx.NullTime(e.LastActionAt),
		dbx.NullTime(e.VacationRequestedAt), dbx.NullTime(e.VacationStartedAt), dbx.NullTime(e.VacationEndAt),
		dbx.NullTime(e.ProtectionExpiry), dbx.NullTime(e.IdleSince), dbx.NullTime(e.AbandonedAt),
		e.LastHourlyPeriod, e.LastDailyPeriod, e.BonusClaimed, e.NeedsReconciliation,
	}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Empire) (*models.Empire, error) {
	query :=
		`INSERT INTO empires (` + columns[len("id, "):] + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		         $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41)
		 RETURNING id
		 `

	if err := r.db.QueryRowContext(ctx, query, values(e)...).Scan(&e.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return e, nil
}

func (r *PostgresRepository) Load(ctx context.Context, id int64) (*models.Empire, error) {
	query := `SELECT ` + columns + ` FROM empires WHERE id = $1`

	e := &models.Empire{}
	var state string
	var flags int
	var validated, prompted, accrual, login, action, vacReq, vacStart, vacEnd, protection, idle, abandoned sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.UserID, &e.Name, &state, &flags,
		&e.Resources.Cash, &e.Resources.Food, &e.Resources.Runes, &e.Resources.Peasants,
		&e.Troops.Arm, &e.Troops.Lnd, &e.Troops.Fly, &e.Troops.Sea, &e.Troops.Wiz,
		&e.Land, &e.Buildings.Pop, &e.Buildings.Cash, &e.Buildings.Trp, &e.Buildings.Cost,
		&e.Buildings.Wiz, &e.Buildings.Food, &e.Buildings.Def, &e.Buildings.Free,
		&e.Turns.Current, &e.Turns.Stored, &e.Turns.Used,
		&e.SignupAt, &validated, &prompted, &accrual, &login, &action,
		&vacReq, &vacStart, &vacEnd, &protection, &idle, &abandoned,
		&e.LastHourlyPeriod, &e.LastDailyPeriod, &e.BonusClaimed, &e.NeedsReconciliation,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	e.State = models.LifecycleState(state)
	e.Flags = models.EmpireFlagsFromBits(flags)
	e.ValidatedAt = dbx.TimeOf(validated)
	e.ValidationPromptedAt = dbx.TimeOf(prompted)
	e.LastAccrualAt = dbx.TimeOf(accrual)
	e.LastLoginAt = dbx.TimeOf(login)
	e.LastActionAt = dbx.TimeOf(action)
	e.VacationRequestedAt = dbx.TimeOf(vacReq)
	e.VacationStartedAt = dbx.TimeOf(vacStart)
	e.VacationEndAt = dbx.TimeOf(vacEnd)
	e.ProtectionExpiry = dbx.TimeOf(protection)
	e.IdleSince = dbx.TimeOf(idle)
	e.AbandonedAt = dbx.TimeOf(abandoned)

	return e, nil
}

func (r *PostgresRepository) Save(ctx context.Context, e *models.Empire) error {
	query :=
		`UPDATE empires SET
		 user_id = $2, name = $3, state = $4, flags = $5,
		 cash = $6, food = $7, runes = $8, peasants = $9,
		 trp_arm = $10, trp_lnd = $11, trp_fly = $12, trp_sea = $13, trp_wiz = $14,
		 land = $15, bld_pop = $16, bld_cash = $17, bld_trp = $18, bld_cost = $19,
		 bld_wiz = $20, bld_food = $21, bld_def = $22, free_land = $23,
		 turns = $24, stored_turns = $25, turns_used = $26,
		 signup_at = $27, validated_at = $28, validation_prompted_at = $29,
		 last_accrual_at = $30, last_login_at = $31, last_action_at = $32,
		 vacation_requested_at = $33, vacation_started_at = $34, vacation_end_at = $35,
		 protection_expiry = $36, idle_since = $37, abandoned_at = $38,
		 last_hourly_period = $39, last_daily_period = $40, bonus_claimed = $41, needs_reconciliation = $42
		 WHERE id = $1
		 `

	args := append([]any{e.ID}, values(e)...)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM empires WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) ListIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM empires WHERE user_id = $1 AND state NOT IN ($2, $3) ORDER BY id`,
		userID, string(models.StateAbandoned), string(models.StatePurged))
}

func (r *PostgresRepository) ListLiveIDs(ctx context.Context) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM empires WHERE state <> $1 ORDER BY id`, string(models.StatePurged))
}

func (r *PostgresRepository) CountRegistered(ctx context.Context) (int, error) {
	query := `SELECT count(*) FROM empires WHERE state NOT IN ($1, $2)`

	var n int
	err := r.db.QueryRowContext(ctx, query, string(models.StateAbandoned), string(models.StatePurged)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return n, nil
}

func (r *PostgresRepository) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return ids, nil
}
