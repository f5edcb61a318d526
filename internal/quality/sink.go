package quality

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/db"
)

// DefaultReportPath is where FileSink writes when no path is configured.
const DefaultReportPath = "quality_report.json"

// DefaultReportTable is where PostgresSink writes when no table is configured.
const DefaultReportTable = "dwq.quality_report"

// Sink persists a report. Sink errors are surfaced to the caller but never
// change the outcome of the run.
type Sink interface {
	Write(ctx context.Context, r *Report) error
}

// FileSink writes the report as indented JSON. The file is replaced
// atomically so readers never see a partial report.
type FileSink struct {
	Path string
}

// Write implements Sink.
func (s *FileSink) Write(_ context.Context, r *Report) error {
	path := s.Path
	if path == "" {
		path = DefaultReportPath
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return eris.Wrap(err, "quality: marshal report")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".quality_report-*.json")
	if err != nil {
		return eris.Wrap(err, "quality: create temp report")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "quality: write temp report")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "quality: close temp report")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "quality: replace %s", path)
	}
	return nil
}

// Latest reads the report back, or nil if none has been written yet.
func (s *FileSink) Latest(_ context.Context) (*Report, error) {
	path := s.Path
	if path == "" {
		path = DefaultReportPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "quality: read %s", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "quality: decode %s", path)
	}
	return &r, nil
}

// PostgresSink stores each report as a JSONB row.
type PostgresSink struct {
	pool  db.Pool
	table string
}

// NewPostgresSink creates a PostgresSink writing to table (schema-qualified).
func NewPostgresSink(pool db.Pool, table string) *PostgresSink {
	if table == "" {
		table = DefaultReportTable
	}
	return &PostgresSink{pool: pool, table: table}
}

// Write implements Sink.
func (s *PostgresSink) Write(ctx context.Context, r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "quality: marshal report")
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO "+db.SanitizeTable(s.table)+" (created_at, gate_passed, total_checks, failed_checks, report) VALUES ($1, $2, $3, $4, $5)",
		r.Timestamp, r.GatePassed(), r.TotalChecks, r.FailedChecks, data,
	)
	if err != nil {
		return eris.Wrapf(err, "quality: insert report into %s", s.table)
	}
	return nil
}

// Latest returns the most recently stored report, or nil if there is none.
func (s *PostgresSink) Latest(ctx context.Context) (*Report, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT report FROM "+db.SanitizeTable(s.table)+" ORDER BY created_at DESC LIMIT 1")
	if err != nil {
		return nil, eris.Wrapf(err, "quality: query latest report from %s", s.table)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var data []byte
	if err := rows.Scan(&data); err != nil {
		return nil, eris.Wrap(err, "quality: scan report")
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "quality: decode report")
	}
	return &r, nil
}

// MultiSink writes to every sink, continuing past failures.
type MultiSink struct {
	sinks []Sink
	log   *zap.Logger
}

// NewMultiSink fans a report out to sinks.
func NewMultiSink(log *zap.Logger, sinks ...Sink) *MultiSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &MultiSink{sinks: sinks, log: log.With(zap.String("component", "quality.sink"))}
}

// Write implements Sink. Failures are logged and returned joined.
func (m *MultiSink) Write(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, r); err != nil {
			m.log.Error("report sink failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
