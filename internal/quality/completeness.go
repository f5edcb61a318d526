package quality

import (
	"context"
	"fmt"

	"github.com/sells-group/dwq/internal/db"
)

type completenessCheck struct {
	target
	sql string
}

func newCompleteness(t target) (Check, error) {
	return &completenessCheck{
		target: t,
		sql:    fmt.Sprintf("SELECT COUNT(*), COUNT(%s) FROM %s", t.column, t.table),
	}, nil
}

// Evaluate counts NULLs in the column.
func (c *completenessCheck) Evaluate(ctx context.Context, q db.Querier) (Measurement, error) {
	total, nonNull, err := countGood(ctx, q, c.sql)
	if err != nil {
		return Measurement{}, err
	}
	m := measure(total, nonNull)
	m.Details = map[string]any{
		"completeness_percentage": Percentage(m.Total-m.Errors, m.Total),
		"null_count":              m.Errors,
		"non_null_count":          m.Total - m.Errors,
	}
	return m, nil
}
