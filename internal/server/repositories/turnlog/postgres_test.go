package turnlog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	at := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	entry := models.TurnLogEntry{ID: "01", At: at, Type: models.TurnLogEnd, Ticks: 1, Interval: "10m0s", Text: "42 empires"}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+turnlog\s*\(id,\s*at,\s*type,\s*ticks,\s*interval,\s*text\)`).
		WithArgs("01", at, "end", 1, "10m0s", "42 empires").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*at,\s*type,\s*ticks,\s*interval,\s*text\s+FROM\s+turnlog.*LIMIT\s+\$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "at", "type", "ticks", "interval", "text"}).
			AddRow("01", at, "end", 1, "10m0s", "42 empires"))

	require.NoError(t, repo.Append(context.Background(), entry))

	got, err := repo.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []models.TurnLogEntry{entry}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
