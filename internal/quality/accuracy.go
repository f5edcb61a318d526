package quality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/dwq/internal/db"
)

// Accuracy rule keys.
const (
	RuleMin           = "min"
	RuleMax           = "max"
	RuleAllowedValues = "allowed_values"
)

type accuracyCheck struct {
	target
	sql  string
	args []any
}

func newAccuracy(t target) (Check, error) {
	if len(t.spec.Rules) == 0 {
		return nil, configErrorf(t.spec, "accuracy check needs at least one rule (min, max, allowed_values)")
	}

	// Sorted so the statement text is stable across runs.
	keys := make([]string, 0, len(t.spec.Rules))
	for k := range t.spec.Rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	var args []any
	for _, k := range keys {
		v := t.spec.Rules[k]
		n := len(args) + 1
		switch k {
		case RuleMin, RuleMax:
			f, ok := toFloat(v)
			if !ok {
				return nil, configErrorf(t.spec, "rule %s must be a number, got %v", k, v)
			}
			op := ">="
			if k == RuleMax {
				op = "<="
			}
			conds = append(conds, fmt.Sprintf("%s %s $%d::numeric", t.column, op, n))
			args = append(args, f)
		case RuleAllowedValues:
			values, ok := toStrings(v)
			if !ok || len(values) == 0 {
				return nil, configErrorf(t.spec, "rule allowed_values must be a non-empty list")
			}
			conds = append(conds, fmt.Sprintf("%s::text = ANY($%d::text[])", t.column, n))
			args = append(args, values)
		default:
			return nil, configErrorf(t.spec, "unknown accuracy rule %q (valid: min, max, allowed_values)", k)
		}
	}

	return &accuracyCheck{
		target: t,
		sql: fmt.Sprintf("SELECT COUNT(*), COUNT(*) FILTER (WHERE %s) FROM %s",
			strings.Join(conds, " AND "), t.table),
		args: args,
	}, nil
}

// Evaluate counts rows satisfying every rule. NULL satisfies none.
func (c *accuracyCheck) Evaluate(ctx context.Context, q db.Querier) (Measurement, error) {
	total, valid, err := countGood(ctx, q, c.sql, c.args...)
	if err != nil {
		return Measurement{}, err
	}
	m := measure(total, valid)
	m.Details = map[string]any{
		"accuracy_percentage": Percentage(m.Total-m.Errors, m.Total),
		"invalid_count":       m.Errors,
		"valid_count":         m.Total - m.Errors,
		"validation_rules":    c.spec.Rules,
	}
	return m, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) ([]string, bool) {
	switch vals := v.(type) {
	case []string:
		return vals, true
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			switch s := x.(type) {
			case string:
				out = append(out, s)
			case int, int64, float64, bool:
				out = append(out, fmt.Sprint(s))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
