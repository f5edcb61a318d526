package quality

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dwq/internal/runlog"
)

type stubRecorder struct {
	completed *runlog.Result
	failed    string
}

func (r *stubRecorder) Start(context.Context, string) (int64, error) { return 5, nil }

func (r *stubRecorder) Complete(_ context.Context, _ int64, res *runlog.Result) error {
	r.completed = res
	return nil
}

func (r *stubRecorder) Fail(_ context.Context, _ int64, msg string) error {
	r.failed = msg
	return nil
}

type reportObserver struct{ got *Report }

func (o *reportObserver) ObserveReport(r *Report) { o.got = r }

func gateRegistry(t *testing.T) *Registry {
	reg := NewRegistry(testCatalog(t))
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "email"})
	_ = reg.Add(Spec{Kind: Timeliness, Table: "staging.customers", Column: "last_interaction_date"})
	return reg
}

func TestGate_Run_FailedGate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("email")`)).WillReturnRows(countRows(10, 10))

	sink := &recordingSink{}
	rec := &stubRecorder{}
	obs := &reportObserver{}
	runner := NewRunner(mock, gateRegistry(t), RunnerOptions{Concurrency: 1, Now: fixedClock}, nil)
	gate := NewGate(runner, sink, rec, nil)
	gate.Observe(obs)

	rep, err := gate.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalChecks)
	assert.Equal(t, 1, rep.ErroredChecks)
	assert.False(t, rep.GatePassed())
	assert.Same(t, rep, sink.got)
	assert.Same(t, rep, obs.got)
	assert.Equal(t, "1 of 2 checks failed (1 errored, 0 no data)", rec.failed)
	assert.Equal(t, checkTime, rep.Timestamp)
}

func TestGate_Run_PassedGateAndSinkError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery(regexp.QuoteMeta(`COUNT("email")`)).WillReturnRows(countRows(10, 10))

	reg := NewRegistry(testCatalog(t))
	_ = reg.Add(Spec{Kind: Completeness, Table: "staging.customers", Column: "email"})

	rec := &stubRecorder{}
	boom := errors.New("read-only file system")
	gate := NewGate(NewRunner(mock, reg, RunnerOptions{}, nil), failingSink{err: boom}, rec, nil)

	rep, err := gate.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, rep, "report is produced even when the sink fails")
	assert.True(t, rep.GatePassed())
	require.NotNil(t, rec.completed)
	assert.Equal(t, int64(1), rec.completed.Rows)
}
