package quality

import (
	"context"
	"fmt"

	"github.com/sells-group/dwq/internal/db"
)

type consistencyCheck struct {
	target
	sql string
}

func newConsistency(t target, catalog *db.Catalog) (Check, error) {
	if t.spec.ReferenceTable == "" || t.spec.ReferenceColumn == "" {
		return nil, configErrorf(t.spec, "consistency check needs reference_table and reference_column")
	}
	refTable, refColumn, err := catalog.Column(t.spec.ReferenceTable, t.spec.ReferenceColumn)
	if err != nil {
		return nil, configErrorf(t.spec, "%v", err)
	}

	// Orphans are rows whose key is present but has no reference row.
	// A NULL key references nothing and is not an orphan.
	sql := fmt.Sprintf(
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE t.%[2]s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %[3]s r WHERE r.%[4]s = t.%[2]s)) FROM %[1]s t",
		t.table, t.column, refTable, refColumn,
	)
	return &consistencyCheck{target: t, sql: sql}, nil
}

// Evaluate counts orphaned foreign keys.
func (c *consistencyCheck) Evaluate(ctx context.Context, q db.Querier) (Measurement, error) {
	var total, orphaned int64
	if err := q.QueryRow(ctx, c.sql).Scan(&total, &orphaned); err != nil {
		return Measurement{}, err
	}
	m := measure(total, total-orphaned)
	m.Details = map[string]any{
		"consistency_percentage": Percentage(m.Total-m.Errors, m.Total),
		"orphaned_count":         m.Errors,
		"reference_table":        c.spec.ReferenceTable,
		"reference_column":       c.spec.ReferenceColumn,
	}
	return m, nil
}
