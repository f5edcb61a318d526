package runlog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO dwq.run_log").
		WithArgs(KindLoad).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := New(mock).Start(context.Background(), KindLoad)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO dwq.run_log").
		WithArgs(KindCheck).
		WillReturnError(errors.New("relation does not exist"))

	_, err = New(mock).Start(context.Background(), KindCheck)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runlog: start check run")
}

func TestComplete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'complete'")).
		WithArgs(int64(1500), []byte(`{"run_id":"abc"}`), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).Complete(context.Background(), 7, &Result{
		Rows:     1500,
		Metadata: map[string]any{"run_id": "abc"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_NilResult(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'complete'")).
		WithArgs(int64(0), []byte(nil), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, New(mock).Complete(context.Background(), 3, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'failed'")).
		WithArgs("extract customers: feed down", int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, New(mock).Fail(context.Background(), 9, "extract customers: feed down"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2026, 10, 1, 2, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT started_at FROM dwq.run_log").
		WithArgs(KindLoad).
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(ts))

	got, err := New(mock).LastSuccess(context.Background(), KindLoad)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(ts))
}

func TestLastSuccess_NeverRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT started_at FROM dwq.run_log").
		WithArgs(KindCheck).
		WillReturnError(pgx.ErrNoRows)

	got, err := New(mock).LastSuccess(context.Background(), KindCheck)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 10, 1, 2, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	msg := "record store unavailable"

	rows := pgxmock.NewRows([]string{"id", "kind", "status", "started_at", "completed_at", "rows", "error", "metadata"}).
		AddRow(int64(2), KindCheck, StatusFailed, started, &completed, int64(0), &msg, []byte(nil)).
		AddRow(int64(1), KindLoad, StatusComplete, started, &completed, int64(1500), (*string)(nil), []byte(`{"run_id":"abc"}`))
	mock.ExpectQuery(regexp.QuoteMeta("FROM dwq.run_log ORDER BY started_at DESC LIMIT $1")).
		WithArgs(10).
		WillReturnRows(rows)

	entries, err := New(mock).ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, msg, entries[0].Error)
	assert.Equal(t, 90*time.Second, entries[0].Duration())
	assert.Equal(t, int64(1500), entries[1].Rows)
	assert.Equal(t, "abc", entries[1].Metadata["run_id"])
	assert.Empty(t, entries[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM dwq.run_log").WillReturnError(errors.New("boom"))

	_, err = New(mock).ListAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runlog: list runs")
}

func TestEntry_DurationRunning(t *testing.T) {
	assert.Zero(t, Entry{StartedAt: time.Now()}.Duration())
}
