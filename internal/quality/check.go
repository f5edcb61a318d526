package quality

import (
	"context"
	"fmt"

	"github.com/sells-group/dwq/internal/db"
)

// Spec configures one check. Which optional fields apply depends on Kind.
type Spec struct {
	Kind   Kind   `yaml:"kind" json:"check_type"`
	Table  string `yaml:"table" json:"table_name"`
	Column string `yaml:"column" json:"column_name"`

	// Accuracy: any of min, max, allowed_values. All supplied rules must hold.
	Rules map[string]any `yaml:"rules,omitempty" json:"rules,omitempty"`

	// Consistency.
	ReferenceTable  string `yaml:"reference_table,omitempty" json:"reference_table,omitempty"`
	ReferenceColumn string `yaml:"reference_column,omitempty" json:"reference_column,omitempty"`

	// Validity: numeric or date.
	DataType string `yaml:"data_type,omitempty" json:"data_type,omitempty"`

	// Timeliness.
	MaxAgeHours int `yaml:"max_age_hours,omitempty" json:"max_age_hours,omitempty"`
}

// Name identifies the check in logs and errors, e.g. "completeness:staging.customers.email".
func (s Spec) Name() string {
	return fmt.Sprintf("%s:%s.%s", s.Kind, s.Table, s.Column)
}

// Measurement is what a check observed: how many rows it looked at, how many
// failed the rule, and kind-specific details.
type Measurement struct {
	Total   int64
	Errors  int64
	Details map[string]any
}

// Check evaluates one rule against the record store.
type Check interface {
	Spec() Spec
	Evaluate(ctx context.Context, q db.Querier) (Measurement, error)
}

// Build validates spec against the catalog and returns the check for its
// kind. Every configuration problem surfaces here as a *ConfigError.
func Build(spec Spec, catalog *db.Catalog) (Check, error) {
	if catalog == nil {
		return nil, configErrorf(spec, "no catalog")
	}
	table, column, err := catalog.Column(spec.Table, spec.Column)
	if err != nil {
		return nil, configErrorf(spec, "%v", err)
	}
	target := target{spec: spec, table: table, column: column}

	switch spec.Kind {
	case Completeness:
		return newCompleteness(target)
	case Accuracy:
		return newAccuracy(target)
	case Consistency:
		return newConsistency(target, catalog)
	case Validity:
		return newValidity(target)
	case Timeliness:
		return newTimeliness(target)
	default:
		return nil, configErrorf(spec, "unknown check kind %q", spec.Kind)
	}
}

// target carries the validated, quoted identifiers a check queries.
type target struct {
	spec   Spec
	table  string
	column string
}

func (t target) Spec() Spec { return t.spec }

// countGood runs a two-column COUNT query and returns (total, good).
func countGood(ctx context.Context, q db.Querier, sql string, args ...any) (int64, int64, error) {
	var total, good int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&total, &good); err != nil {
		return 0, 0, err
	}
	return total, good, nil
}

// measure builds a Measurement from total and good counts, clamped so that
// 0 <= errors <= total.
func measure(total, good int64) Measurement {
	total = max(total, 0)
	good = min(max(good, 0), total)
	return Measurement{Total: total, Errors: total - good}
}
