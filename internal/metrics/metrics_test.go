package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dwq/internal/etl"
	"github.com/sells-group/dwq/internal/model"
	"github.com/sells-group/dwq/internal/quality"
)

// gaugeValue finds a gauge in the gathered families by name and label set.
func gaugeValue(t *testing.T, r *Recorder, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return len(got) == len(want)
}

func TestObserveLoad(t *testing.T) {
	r := New()
	finished := time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC)
	r.ObserveLoad(&etl.RunResult{
		FinishedAt: finished,
		Entities: []etl.EntityResult{
			{Entity: model.EntityTransactions, Extracted: 1000, Dropped: 3, Loaded: 997, Stage: etl.StageDone},
			{Entity: model.EntityCustomers, Extracted: 500, Stage: etl.StageLoad, Err: errors.New("deadlock")},
		},
	})

	v, ok := gaugeValue(t, r, "dwq_load_rows_loaded", map[string]string{"entity": "transactions"})
	require.True(t, ok)
	assert.Equal(t, 997.0, v)

	v, _ = gaugeValue(t, r, "dwq_load_rows_dropped", map[string]string{"entity": "transactions"})
	assert.Equal(t, 3.0, v)

	v, _ = gaugeValue(t, r, "dwq_load_entity_success", map[string]string{"entity": "customers"})
	assert.Equal(t, 0.0, v)

	v, _ = gaugeValue(t, r, "dwq_load_last_run_timestamp_seconds", nil)
	assert.Equal(t, float64(finished.Unix()), v)
}

func TestObserveReport(t *testing.T) {
	r := New()
	at := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	spec := quality.Spec{Kind: quality.Completeness, Table: "staging.customers", Column: "email"}
	rep := quality.Generate([]quality.Result{
		quality.NewResult(spec, quality.Measurement{Total: 100, Errors: 10}, at),
		quality.ErroredResult(quality.Spec{Kind: quality.Validity, Table: "staging.transactions", Column: "amount"}, errors.New("bad"), at),
	}, at)

	r.ObserveReport(rep)

	v, ok := gaugeValue(t, r, "dwq_quality_check_error_ratio",
		map[string]string{"check_type": "completeness", "table": "staging.customers", "column": "email"})
	require.True(t, ok)
	assert.InDelta(t, 0.1, v, 1e-9)

	v, _ = gaugeValue(t, r, "dwq_quality_checks", map[string]string{"status": "errored"})
	assert.Equal(t, 1.0, v)
	v, _ = gaugeValue(t, r, "dwq_quality_checks", map[string]string{"status": "passed"})
	assert.Equal(t, 0.0, v)

	v, _ = gaugeValue(t, r, "dwq_quality_gate_passed", nil)
	assert.Equal(t, 0.0, v)

	// A later run without the email check drops its series.
	r.ObserveReport(quality.Generate(nil, at))
	_, ok = gaugeValue(t, r, "dwq_quality_check_error_ratio",
		map[string]string{"check_type": "completeness", "table": "staging.customers", "column": "email"})
	assert.False(t, ok)
}

func TestPush(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotMethod = req.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.ObserveReport(quality.Generate(nil, time.Now()))
	require.NoError(t, r.Push(context.Background(), srv.URL, "dwq_check"))
	assert.Equal(t, "/metrics/job/dwq_check", gotPath)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestPush_NoURL(t *testing.T) {
	assert.NoError(t, New().Push(context.Background(), "", "dwq"))
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "dwq")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics: push")
}
