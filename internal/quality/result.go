package quality

import (
	"time"
)

// Status is the outcome class of a check.
type Status string

const (
	// StatusPassed means the check ran and met its threshold.
	StatusPassed Status = "passed"
	// StatusFailed means the check ran and missed its threshold.
	StatusFailed Status = "failed"
	// StatusNoData means the check ran over zero rows. It does not pass.
	StatusNoData Status = "no_data"
	// StatusErrored means the check could not run: bad configuration or a
	// failed query.
	StatusErrored Status = "errored"
)

// Result is the outcome of one check.
type Result struct {
	Spec       Spec
	CheckedAt  time.Time
	Status     Status
	Passed     bool
	ErrorCount int64
	TotalCount int64
	Details    map[string]any
	Err        error
	Duration   time.Duration
}

// NewResult classifies a measurement. Counts are clamped so that
// 0 <= ErrorCount <= TotalCount.
func NewResult(spec Spec, m Measurement, at time.Time) Result {
	total := max(m.Total, 0)
	bad := clamp(m.Errors, total)

	r := Result{
		Spec:       spec,
		CheckedAt:  at,
		ErrorCount: bad,
		TotalCount: total,
		Details:    m.Details,
	}
	switch {
	case total == 0:
		r.Status = StatusNoData
	case Passes(spec.Kind, bad, total):
		r.Status = StatusPassed
		r.Passed = true
	default:
		r.Status = StatusFailed
	}
	return r
}

// ErroredResult records a check that could not run.
func ErroredResult(spec Spec, err error, at time.Time) Result {
	return Result{Spec: spec, CheckedAt: at, Status: StatusErrored, Err: err}
}

// ErrorRate is ErrorCount/TotalCount, 0 when there are no rows.
func (r Result) ErrorRate() float64 {
	if r.TotalCount <= 0 {
		return 0
	}
	return float64(r.ErrorCount) / float64(r.TotalCount)
}
