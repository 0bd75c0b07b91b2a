package locks

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mdhender/promisance/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tryLockRe   = regexp.QuoteMeta(tryLockQuery)
	unlockRe    = regexp.QuoteMeta(unlockQuery)
	unlockAllRe = regexp.QuoteMeta(unlockAllQuery)
)

func newPostgresManager(t *testing.T) (*PostgresManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := NewPostgresManager(db, nil)
	m.backoff = time.Millisecond
	return m, mock
}

func lockRow(ok bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(ok)
}

func TestAdvisoryKey(t *testing.T) {
	assert.Equal(t, int64(2)<<48|7, AdvisoryKey(Empire(7)))
	assert.Equal(t, int64(1)<<48|3, AdvisoryKey(User(3)))
	assert.Equal(t, int64(4)<<48, AdvisoryKey(Vars()))
	assert.NotEqual(t, AdvisoryKey(User(7)), AdvisoryKey(Empire(7)))
}

func TestPostgresManager_AcquireInOrderAndRelease(t *testing.T) {
	m, mock := newPostgresManager(t)

	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(User(3))).WillReturnRows(lockRow(true))
	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(Empire(7))).WillReturnRows(lockRow(true))
	mock.ExpectExec(unlockRe).WithArgs(AdvisoryKey(Empire(7))).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(unlockRe).WithArgs(AdvisoryKey(User(3))).WillReturnResult(sqlmock.NewResult(0, 1))

	set, err := m.Acquire(context.Background(), 1, []Ref{Empire(7), User(3)}, 0)
	require.NoError(t, err)
	assert.Equal(t, []Ref{User(3), Empire(7)}, set.Refs)

	set.Release()
	set.Release()

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, m.owners)
}

func TestPostgresManager_FailFastGivesBackPartialSet(t *testing.T) {
	m, mock := newPostgresManager(t)

	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(User(3))).WillReturnRows(lockRow(true))
	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(Empire(7))).WillReturnRows(lockRow(false))
	mock.ExpectExec(unlockRe).WithArgs(AdvisoryKey(User(3))).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := m.Acquire(context.Background(), 2, []Ref{User(3), Empire(7)}, 0)
	require.ErrorIs(t, err, common.ErrLockConflict)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, m.owners)
}

func TestPostgresManager_WaitRetriesUntilFree(t *testing.T) {
	m, mock := newPostgresManager(t)

	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(Empire(7))).WillReturnRows(lockRow(false))
	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(Empire(7))).WillReturnRows(lockRow(true))
	mock.ExpectExec(unlockRe).WithArgs(AdvisoryKey(Empire(7))).WillReturnResult(sqlmock.NewResult(0, 1))

	set, err := m.Acquire(context.Background(), OwnerTurns, []Ref{Empire(7)}, time.Second)
	require.NoError(t, err)
	set.Release()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_SameOwnerIsReentrant(t *testing.T) {
	m, mock := newPostgresManager(t)
	ctx := context.Background()

	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(Vars())).WillReturnRows(lockRow(true))
	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(Empire(1))).WillReturnRows(lockRow(true))
	mock.ExpectExec(unlockRe).WithArgs(AdvisoryKey(Empire(1))).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(unlockRe).WithArgs(AdvisoryKey(Vars())).WillReturnResult(sqlmock.NewResult(0, 1))

	outer, err := m.Acquire(ctx, OwnerTurns, []Ref{Vars()}, 0)
	require.NoError(t, err)
	inner, err := m.Acquire(ctx, OwnerTurns, []Ref{Empire(1), Vars()}, 0)
	require.NoError(t, err)

	inner.Release()
	outer.Release()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_QueryErrorIsReported(t *testing.T) {
	m, mock := newPostgresManager(t)

	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(User(1))).WillReturnError(errors.New("boom"))

	_, err := m.Acquire(context.Background(), 1, []Ref{User(1)}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NotErrorIs(t, err, common.ErrLockConflict)
}

func TestPostgresManager_ReleaseAll(t *testing.T) {
	m, mock := newPostgresManager(t)
	ctx := context.Background()

	mock.ExpectQuery(tryLockRe).WithArgs(AdvisoryKey(User(1))).WillReturnRows(lockRow(true))
	mock.ExpectExec(unlockAllRe).WillReturnResult(sqlmock.NewResult(0, 0))

	set, err := m.Acquire(ctx, 5, []Ref{User(1)}, 0)
	require.NoError(t, err)

	require.NoError(t, m.ReleaseAll(ctx, 5))
	set.Release()
	require.NoError(t, m.ReleaseAll(ctx, 5))
	require.NoError(t, mock.ExpectationsWereMet())
}
