// Package quality evaluates data-quality rules against the warehouse and
// aggregates the outcomes into a pass/fail report.
package quality

import (
	"github.com/rotisserie/eris"
)

// Kind is the family a check belongs to.
type Kind string

const (
	Completeness Kind = "completeness"
	Accuracy     Kind = "accuracy"
	Consistency  Kind = "consistency"
	Validity     Kind = "validity"
	Timeliness   Kind = "timeliness"
)

// Kinds lists every check kind in report order.
var Kinds = []Kind{Completeness, Accuracy, Consistency, Validity, Timeliness}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", eris.Errorf("quality: unknown check kind %q", s)
}

// threshold is the pass rule for a kind: the good-row percentage must reach
// pct, or with exact, every row must be good.
type threshold struct {
	pct   int64
	exact bool
}

var thresholds = map[Kind]threshold{
	Completeness: {pct: 95},
	Accuracy:     {pct: 98},
	Consistency:  {pct: 100, exact: true},
	Validity:     {pct: 100, exact: true},
	Timeliness:   {pct: 95},
}

// Threshold returns the pass percentage for kind and whether it is exact.
func Threshold(kind Kind) (pct int64, exact bool) {
	t := thresholds[kind]
	return t.pct, t.exact
}

// Passes reports whether bad rows out of total meets kind's threshold. Zero
// rows never pass. Integer arithmetic keeps 95/100 on the passing side.
func Passes(kind Kind, bad, total int64) bool {
	if total <= 0 {
		return false
	}
	bad = clamp(bad, total)
	t, ok := thresholds[kind]
	if !ok {
		return false
	}
	if t.exact {
		return bad == 0
	}
	good := total - bad
	return good*100 >= t.pct*total
}

// Percentage returns good/total as a percentage, 0 when total is 0.
func Percentage(good, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(good) / float64(total) * 100
}

func clamp(bad, total int64) int64 {
	return min(max(bad, 0), max(total, 0))
}
