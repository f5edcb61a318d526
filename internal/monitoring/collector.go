package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dwq/internal/runlog"
)

// maxEntries bounds how much of the run log one snapshot reads.
const maxEntries = 1000

// KindSummary aggregates run-log entries of one kind.
type KindSummary struct {
	Total       int        `json:"total"`
	Complete    int        `json:"complete"`
	Failed      int        `json:"failed"`
	Running     int        `json:"running"`
	FailRate    float64    `json:"fail_rate"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastRows    int64      `json:"last_rows"`
	LastError   string     `json:"last_error,omitempty"`
}

// Snapshot is a point-in-time view of load and check health.
type Snapshot struct {
	Loads         KindSummary `json:"loads"`
	Checks        KindSummary `json:"checks"`
	LookbackHours int         `json:"lookback_hours"`
	CollectedAt   time.Time   `json:"collected_at"`
}

// RunLister abstracts the run-log read needed by the collector.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]runlog.Entry, error)
}

// Collector builds snapshots from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarizes run-log entries started within the lookback window.
// LastSuccess considers the whole page read, not just the window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	entries, err := c.runs.ListRecent(ctx, maxEntries)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list run log")
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	lastSeen := map[string]bool{}

	// Entries arrive newest first.
	for _, e := range entries {
		var sum *KindSummary
		switch e.Kind {
		case runlog.KindLoad:
			sum = &snap.Loads
		case runlog.KindCheck:
			sum = &snap.Checks
		default:
			continue
		}

		if e.Status == runlog.StatusComplete && sum.LastSuccess == nil {
			sum.LastSuccess = e.CompletedAt
			sum.LastRows = e.Rows
		}
		if e.Status == runlog.StatusFailed && !lastSeen[e.Kind] {
			sum.LastError = e.Error
		}
		if e.Status != runlog.StatusRunning {
			lastSeen[e.Kind] = true
		}

		if e.StartedAt.Before(cutoff) {
			continue
		}
		sum.Total++
		switch e.Status {
		case runlog.StatusComplete:
			sum.Complete++
		case runlog.StatusFailed:
			sum.Failed++
		case runlog.StatusRunning:
			sum.Running++
		}
	}

	snap.Loads.FailRate = failRate(snap.Loads)
	snap.Checks.FailRate = failRate(snap.Checks)

	return snap, nil
}

func failRate(s KindSummary) float64 {
	finished := s.Complete + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Failed) / float64(finished)
}
