package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertRe = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*password_hash,\s*flags,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id\s*$`
	findRe   = `(?s)^SELECT\s+id\s+FROM\s+users\s+WHERE\s+lower\(username\)\s*=\s*lower\(\$1\)\s*$`
	loadRe   = `(?s)^SELECT\s+id,\s*username,\s*password_hash,\s*flags,\s*created_at,\s*last_login,\s*last_ip\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
	saveRe   = `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*flags\s*=\s*\$3,\s*last_login\s*=\s*\$4,\s*last_ip\s*=\s*\$5\s+WHERE\s+id\s*=\s*\$1\s*$`
)

var created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertRe).
		WithArgs("alice", "$2a$hash", 0x08, created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	u := &models.User{Username: "alice", PasswordHash: "$2a$hash", Flags: models.UserFlags{Valid: true}, CreatedAt: created}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertRe).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findRe).WithArgs("Alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(findRe).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	id, err := repo.FindByName(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = repo.FindByName(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByName_ConnectionLost(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findRe).WithArgs("alice").WillReturnError(sql.ErrConnDone)

	_, err := repo.FindByName(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrRepositoryUnavailable)
}

func TestLoad(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	login := created.Add(time.Hour)
	mock.ExpectQuery(loadRe).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "flags", "created_at", "last_login", "last_ip"}).
			AddRow(int64(7), "alice", "hash", 0x12, created, login, "10.0.0.1"))
	mock.ExpectQuery(loadRe).WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)

	u, err := repo.Load(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.Flags.Closed)
	assert.True(t, u.Flags.Admin)
	assert.Equal(t, login, u.LastLogin)
	assert.Equal(t, "10.0.0.1", u.LastIP)

	_, err = repo.Load(context.Background(), 8)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSave(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	u := &models.User{ID: 7, PasswordHash: "new", LastLogin: created, LastIP: "::1"}
	mock.ExpectExec(saveRe).WithArgs(int64(7), "new", 0, sqlmock.AnyArg(), "::1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(saveRe).WithArgs(int64(9), "", 0, sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Save(context.Background(), u))
	assert.ErrorIs(t, repo.Save(context.Background(), &models.User{ID: 9}), common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
