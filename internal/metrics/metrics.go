// Package metrics exposes load and quality outcomes as Prometheus gauges.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dwq/internal/etl"
	"github.com/sells-group/dwq/internal/quality"
)

const namespace = "dwq"

// Recorder holds the dwq collectors on a dedicated registry. It observes
// pipeline runs and quality reports.
type Recorder struct {
	reg *prometheus.Registry

	rowsExtracted *prometheus.GaugeVec
	rowsDropped   *prometheus.GaugeVec
	rowsLoaded    *prometheus.GaugeVec
	entityOK      *prometheus.GaugeVec
	lastLoad      prometheus.Gauge

	checkErrorRatio *prometheus.GaugeVec
	checkPassed     *prometheus.GaugeVec
	checksByStatus  *prometheus.GaugeVec
	gatePassed      prometheus.Gauge
	lastCheck       prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rowsExtracted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "load", Name: "rows_extracted",
			Help: "Rows extracted in the last load run.",
		}, []string{"entity"}),
		rowsDropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "load", Name: "rows_dropped",
			Help: "Rows dropped by the transformer in the last load run.",
		}, []string{"entity"}),
		rowsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "load", Name: "rows_loaded",
			Help: "Rows upserted in the last load run.",
		}, []string{"entity"}),
		entityOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "load", Name: "entity_success",
			Help: "1 if the entity completed its last load, else 0.",
		}, []string{"entity"}),
		lastLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "load", Name: "last_run_timestamp_seconds",
			Help: "Finish time of the last load run.",
		}),
		checkErrorRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "quality", Name: "check_error_ratio",
			Help: "error_count/total_count of each check in the last run.",
		}, []string{"check_type", "table", "column"}),
		checkPassed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "quality", Name: "check_passed",
			Help: "1 if the check passed in the last run, else 0.",
		}, []string{"check_type", "table", "column"}),
		checksByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "quality", Name: "checks",
			Help: "Checks in the last run by status.",
		}, []string{"status"}),
		gatePassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "quality", Name: "gate_passed",
			Help: "1 if every check passed in the last run, else 0.",
		}),
		lastCheck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "quality", Name: "last_run_timestamp_seconds",
			Help: "Time of the last quality run.",
		}),
	}
	r.reg.MustRegister(
		r.rowsExtracted, r.rowsDropped, r.rowsLoaded, r.entityOK, r.lastLoad,
		r.checkErrorRatio, r.checkPassed, r.checksByStatus, r.gatePassed, r.lastCheck,
	)
	return r
}

// Registry returns the registry for serving or pushing.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// ObserveLoad implements etl.Observer.
func (r *Recorder) ObserveLoad(res *etl.RunResult) {
	for _, e := range res.Entities {
		entity := string(e.Entity)
		r.rowsExtracted.WithLabelValues(entity).Set(float64(e.Extracted))
		r.rowsDropped.WithLabelValues(entity).Set(float64(e.Dropped))
		r.rowsLoaded.WithLabelValues(entity).Set(float64(e.Loaded))
		r.entityOK.WithLabelValues(entity).Set(boolFloat(e.OK()))
	}
	r.lastLoad.Set(float64(res.FinishedAt.Unix()))
}

// ObserveReport implements quality.Observer.
func (r *Recorder) ObserveReport(rep *quality.Report) {
	// Checks can be removed between runs; stale series would linger.
	r.checkErrorRatio.Reset()
	r.checkPassed.Reset()

	byStatus := map[quality.Status]int{
		quality.StatusPassed:  0,
		quality.StatusFailed:  0,
		quality.StatusNoData:  0,
		quality.StatusErrored: 0,
	}
	for _, d := range rep.CheckDetails {
		labels := []string{string(d.CheckType), d.TableName, d.ColumnName}
		r.checkErrorRatio.WithLabelValues(labels...).Set(d.ErrorRate)
		r.checkPassed.WithLabelValues(labels...).Set(boolFloat(d.Passed))
		byStatus[d.Status]++
	}
	for s, n := range byStatus {
		r.checksByStatus.WithLabelValues(string(s)).Set(float64(n))
	}
	r.gatePassed.Set(boolFloat(rep.GatePassed()))
	r.lastCheck.Set(float64(rep.Timestamp.Unix()))
}

// Push sends the current values to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return eris.Wrapf(err, "metrics: push to %s", url)
	}
	return nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
