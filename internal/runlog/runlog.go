// Package runlog records pipeline and quality runs in dwq.run_log.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dwq/internal/db"
)

// Run kinds.
const (
	KindLoad  = "load"
	KindCheck = "check"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Entry represents a row in dwq.run_log.
type Entry struct {
	ID          int64          `json:"id"`
	Kind        string         `json:"kind"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Rows        int64          `json:"rows"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (e Entry) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// Result holds the outcome of a run, passed to Complete.
type Result struct {
	Rows     int64          `json:"rows"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Recorder persists run outcomes. *Log satisfies it.
type Recorder interface {
	Start(ctx context.Context, kind string) (int64, error)
	Complete(ctx context.Context, id int64, result *Result) error
	Fail(ctx context.Context, id int64, errMsg string) error
}

// Log provides read/write access to the dwq.run_log table.
type Log struct {
	pool db.Pool
}

// New creates a Log backed by the given pool.
func New(pool db.Pool) *Log {
	return &Log{pool: pool}
}

// LastSuccess returns the started_at time of the most recent completed run
// of kind, or nil if there is none.
func (l *Log) LastSuccess(ctx context.Context, kind string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM dwq.run_log
		 WHERE kind = $1 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		kind,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runlog: last success for %s", kind)
	}
	return &t, nil
}

// Start records the beginning of a run and returns its ID.
func (l *Log) Start(ctx context.Context, kind string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO dwq.run_log (kind, status, started_at)
		 VALUES ($1, 'running', now()) RETURNING id`,
		kind,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start %s run", kind)
	}
	return id, nil
}

// Complete marks a run as completed.
func (l *Log) Complete(ctx context.Context, id int64, result *Result) error {
	var metaJSON []byte
	var rows int64
	if result != nil {
		rows = result.Rows
		if result.Metadata != nil {
			var err error
			metaJSON, err = json.Marshal(result.Metadata)
			if err != nil {
				return eris.Wrap(err, "runlog: marshal metadata")
			}
		}
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE dwq.run_log
		 SET status = 'complete', completed_at = now(), rows = $1, metadata = $2
		 WHERE id = $3`,
		rows, metaJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %d", id)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *Log) Fail(ctx context.Context, id int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE dwq.run_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %d", id)
	}
	return nil
}

// ListAll returns every run, most recent first.
func (l *Log) ListAll(ctx context.Context) ([]Entry, error) {
	return l.list(ctx, 0)
}

// ListRecent returns at most limit runs, most recent first.
func (l *Log) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return l.list(ctx, limit)
}

func (l *Log) list(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, kind, status, started_at, completed_at, rows, error, metadata
		 FROM dwq.run_log ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.Status, &e.StartedAt, &e.CompletedAt, &e.Rows, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
