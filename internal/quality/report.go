package quality

import (
	"time"
)

// Report is the persisted outcome of a quality run.
type Report struct {
	Timestamp     time.Time     `json:"timestamp"`
	TotalChecks   int           `json:"total_checks"`
	PassedChecks  int           `json:"passed_checks"`
	FailedChecks  int           `json:"failed_checks"`
	ErroredChecks int           `json:"errored_checks"`
	NoDataChecks  int           `json:"no_data_checks"`
	CheckDetails  []CheckDetail `json:"check_details"`
}

// CheckDetail is one check's entry in a Report.
type CheckDetail struct {
	CheckType  Kind           `json:"check_type"`
	TableName  string         `json:"table_name"`
	ColumnName string         `json:"column_name"`
	Status     Status         `json:"status"`
	Passed     bool           `json:"passed"`
	ErrorCount int64          `json:"error_count"`
	TotalCount int64          `json:"total_count"`
	ErrorRate  float64        `json:"error_rate"`
	Details    map[string]any `json:"details"`
	Error      string         `json:"error,omitempty"`
}

// Generate aggregates results into a Report. Errored and no-data checks
// count as failed and are also broken out separately, so
// PassedChecks + FailedChecks == TotalChecks always holds.
func Generate(results []Result, now time.Time) *Report {
	rep := &Report{
		Timestamp:    now,
		TotalChecks:  len(results),
		CheckDetails: make([]CheckDetail, 0, len(results)),
	}

	for _, r := range results {
		if r.Passed {
			rep.PassedChecks++
		} else {
			rep.FailedChecks++
		}
		switch r.Status {
		case StatusErrored:
			rep.ErroredChecks++
		case StatusNoData:
			rep.NoDataChecks++
		}

		d := CheckDetail{
			CheckType:  r.Spec.Kind,
			TableName:  r.Spec.Table,
			ColumnName: r.Spec.Column,
			Status:     r.Status,
			Passed:     r.Passed,
			ErrorCount: r.ErrorCount,
			TotalCount: r.TotalCount,
			ErrorRate:  r.ErrorRate(),
			Details:    r.Details,
		}
		if d.Details == nil {
			d.Details = map[string]any{}
		}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		rep.CheckDetails = append(rep.CheckDetails, d)
	}
	return rep
}

// GatePassed reports whether downstream consumers may proceed: every check
// ran and passed.
func (r *Report) GatePassed() bool {
	return r.FailedChecks == 0
}

// Failed returns the details of checks that did not pass.
func (r *Report) Failed() []CheckDetail {
	var out []CheckDetail
	for _, d := range r.CheckDetails {
		if !d.Passed {
			out = append(out, d)
		}
	}
	return out
}
