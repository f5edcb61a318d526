package quality

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var checkTime = time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return checkTime }

func TestRunner_ConfigErrorDoesNotStopLaterChecks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg := NewRegistry(testCatalog(t))
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "email"})
	_ = reg.Add(Spec{Kind: Validity, Table: "staging.transactions", Column: "amount", DataType: "money"})
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "phone"})

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("email")`)).WillReturnRows(countRows(100, 100))
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("phone")`)).WillReturnRows(countRows(100, 90))

	core, logs := observer.New(zap.WarnLevel)
	results := NewRunner(mock, reg, RunnerOptions{Concurrency: 1, Now: fixedClock}, zap.New(core)).Run(context.Background())

	require.Len(t, results, 3)
	assert.Equal(t, StatusPassed, results[0].Status)

	assert.Equal(t, StatusErrored, results[1].Status)
	assert.False(t, results[1].Passed)
	var ce *ConfigError
	assert.ErrorAs(t, results[1].Err, &ce)

	assert.Equal(t, StatusFailed, results[2].Status)
	assert.Equal(t, int64(10), results[2].ErrorCount)
	assert.Equal(t, checkTime, results[2].CheckedAt)

	assert.Equal(t, 1, logs.FilterMessage("check misconfigured").Len())
	assert.Equal(t, 1, logs.FilterMessage("quality check failed").Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_ExecutionErrorIsContained(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg := NewRegistry(testCatalog(t))
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "email"})
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.transactions", Column: "amount"})

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("email")`)).WillReturnError(errors.New("canceling statement due to statement timeout"))
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("amount")`)).WillReturnRows(countRows(5, 5))

	results := NewRunner(mock, reg, RunnerOptions{Concurrency: 1}, nil).Run(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, StatusErrored, results[0].Status)
	var ee *ExecutionError
	require.ErrorAs(t, results[0].Err, &ee)
	assert.Equal(t, "completeness:staging.customers.email", ee.Check)

	assert.Equal(t, StatusPassed, results[1].Status)
	assert.False(t, ee.Unreachable)
}

func TestRunner_UnreachableStoreErrorsEveryCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg := NewRegistry(testCatalog(t))
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "email"})
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "phone"})

	refused := fmt.Errorf("dial tcp 127.0.0.1:5432: %w", syscall.ECONNREFUSED)
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("email")`)).WillReturnError(refused)
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("phone")`)).WillReturnError(refused)

	results := NewRunner(mock, reg, RunnerOptions{Concurrency: 1, Now: fixedClock}, nil).Run(context.Background())
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Equal(t, StatusErrored, res.Status)
		var ee *ExecutionError
		require.ErrorAs(t, res.Err, &ee)
		assert.True(t, ee.Unreachable)
		assert.Equal(t, true, res.Details["store_unreachable"])
	}

	rep := Generate(results, checkTime)
	assert.Equal(t, 2, rep.ErroredChecks)
	assert.False(t, rep.GatePassed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_ZeroRowsIsNoData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg := NewRegistry(testCatalog(t))
	_ = reg.Add(Spec{Kind: Consistency, Table: "staging.transactions", Column: "branch_id",
		ReferenceTable: "core.branch", ReferenceColumn: "branch_id"})
	mock.ExpectQuery("NOT EXISTS").WillReturnRows(countRows(0, 0))

	results := NewRunner(mock, reg, RunnerOptions{}, nil).Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusNoData, results[0].Status)
	assert.False(t, results[0].Passed)
	assert.Zero(t, results[0].ErrorRate())
}

func TestRunner_ConcurrentKeepsRegistryOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	reg := NewRegistry(testCatalog(t))
	cols := []string{"email", "phone", "first_name", "last_name", "city", "state"}
	for _, c := range cols {
		_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: c})
	}
	for i, c := range cols {
		mock.ExpectQuery(regexp.QuoteMeta(`COUNT("` + c + `")`)).WillReturnRows(countRows(100, int64(100-i)))
	}

	results := NewRunner(mock, reg, RunnerOptions{Concurrency: 4, CheckTimeout: time.Second}, nil).Run(context.Background())
	require.Len(t, results, len(cols))
	for i, c := range cols {
		assert.Equal(t, c, results[i].Spec.Column)
		assert.Equal(t, int64(i), results[i].ErrorCount)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewResult(t *testing.T) {
	spec := Spec{Kind: Completeness, Table: "t", Column: "c"}

	r := NewResult(spec, Measurement{Total: 10, Errors: 15}, checkTime)
	assert.Equal(t, int64(10), r.ErrorCount, "errors clamp to total")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, 1.0, r.ErrorRate())

	r = NewResult(spec, Measurement{Total: 10, Errors: -1}, checkTime)
	assert.Zero(t, r.ErrorCount)
	assert.True(t, r.Passed)
}
