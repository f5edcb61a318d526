package quality

import (
	"context"
	"fmt"

	"github.com/sells-group/dwq/internal/db"
)

type timelinessCheck struct {
	target
	sql string
}

func newTimeliness(t target) (Check, error) {
	if t.spec.MaxAgeHours <= 0 {
		return nil, configErrorf(t.spec, "timeliness check needs a positive max_age_hours")
	}
	return &timelinessCheck{
		target: t,
		sql: fmt.Sprintf("SELECT COUNT(*), COUNT(*) FILTER (WHERE %s >= now() - make_interval(hours => $1)) FROM %s",
			t.column, t.table),
	}, nil
}

// Evaluate counts rows dated within max_age_hours of the store's now().
func (c *timelinessCheck) Evaluate(ctx context.Context, q db.Querier) (Measurement, error) {
	total, recent, err := countGood(ctx, q, c.sql, c.spec.MaxAgeHours)
	if err != nil {
		return Measurement{}, err
	}
	m := measure(total, recent)
	m.Details = map[string]any{
		"timeliness_percentage": Percentage(m.Total-m.Errors, m.Total),
		"outdated_count":        m.Errors,
		"recent_count":          m.Total - m.Errors,
		"max_age_hours":         c.spec.MaxAgeHours,
	}
	return m, nil
}
