package quality

import (
	"context"
	"fmt"

	"github.com/sells-group/dwq/internal/db"
)

// Validity type tags.
const (
	TypeNumeric = "numeric"
	TypeDate    = "date"
)

// NumericPattern is the unsigned decimal shape a numeric column must match.
const NumericPattern = `^[0-9]+\.?[0-9]*$`

type validityCheck struct {
	target
	sql  string
	args []any
}

func newValidity(t target) (Check, error) {
	var cond string
	var args []any
	switch t.spec.DataType {
	case TypeNumeric:
		cond = fmt.Sprintf("%s::text ~ $1", t.column)
		args = []any{NumericPattern}
	case TypeDate:
		// pg_input_is_valid needs PostgreSQL 16 or later.
		cond = fmt.Sprintf("pg_input_is_valid(%s::text, 'date')", t.column)
	default:
		return nil, configErrorf(t.spec, "unsupported data type %q (valid: numeric, date)", t.spec.DataType)
	}

	return &validityCheck{
		target: t,
		sql:    fmt.Sprintf("SELECT COUNT(*), COUNT(*) FILTER (WHERE %s) FROM %s", cond, t.table),
		args:   args,
	}, nil
}

// Evaluate counts values that have the expected shape. NULL is invalid.
func (c *validityCheck) Evaluate(ctx context.Context, q db.Querier) (Measurement, error) {
	total, valid, err := countGood(ctx, q, c.sql, c.args...)
	if err != nil {
		return Measurement{}, err
	}
	m := measure(total, valid)
	m.Details = map[string]any{
		"validity_percentage": Percentage(m.Total-m.Errors, m.Total),
		"invalid_count":       m.Errors,
		"valid_count":         m.Total - m.Errors,
		"data_type":           c.spec.DataType,
	}
	return m, nil
}
