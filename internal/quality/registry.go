package quality

import (
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dwq/internal/db"
	"github.com/sells-group/dwq/internal/model"
)

// Entry is a registered check. Exactly one of Check and Err is set.
type Entry struct {
	Spec  Spec
	Check Check
	Err   error
}

// Registry is the ordered list of checks a run evaluates. Report order
// follows registration order.
type Registry struct {
	catalog *db.Catalog
	entries []Entry
}

// NewRegistry creates an empty registry validating against catalog.
func NewRegistry(catalog *db.Catalog) *Registry {
	return &Registry{catalog: catalog}
}

// Add builds and registers spec. A configuration error is returned so
// callers can fail fast, and the entry is kept so the run reports it as
// errored rather than dropping it.
func (r *Registry) Add(spec Spec) error {
	c, err := Build(spec, r.catalog)
	r.entries = append(r.entries, Entry{Spec: spec, Check: c, Err: err})
	return err
}

// Entries returns the registered checks in order.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Err joins every configuration error in the registry, or nil.
func (r *Registry) Err() error {
	var errs []error
	for _, e := range r.entries {
		if e.Err != nil {
			errs = append(errs, e.Err)
		}
	}
	return errors.Join(errs...)
}

// DefaultSpecs returns the standard battery against the staging tables.
func DefaultSpecs(t model.Tables) []Spec {
	score := map[string]any{RuleMin: 0, RuleMax: 10}
	return []Spec{
		{Kind: Completeness, Table: t.Customers, Column: "email"},
		{Kind: Completeness, Table: t.Customers, Column: "phone"},
		{Kind: Completeness, Table: t.Transactions, Column: "amount"},

		{Kind: Accuracy, Table: t.Customers, Column: "satisfaction_score", Rules: score},
		{Kind: Accuracy, Table: t.Customers, Column: "nps_score", Rules: score},
		{Kind: Accuracy, Table: t.Transactions, Column: "status", Rules: map[string]any{
			RuleAllowedValues: []string{model.TxnCompleted, model.TxnPending, model.TxnFailed},
		}},

		{Kind: Consistency, Table: t.Transactions, Column: "customer_id", ReferenceTable: t.Customers, ReferenceColumn: "customer_id"},
		{Kind: Consistency, Table: t.Transactions, Column: "branch_id", ReferenceTable: t.Branches, ReferenceColumn: "branch_id"},
		{Kind: Consistency, Table: t.Transactions, Column: "product_id", ReferenceTable: t.Products, ReferenceColumn: "product_id"},

		{Kind: Validity, Table: t.Transactions, Column: "amount", DataType: TypeNumeric},
		{Kind: Validity, Table: t.Customers, Column: "date_of_birth", DataType: TypeDate},
		{Kind: Validity, Table: t.Transactions, Column: "transaction_date", DataType: TypeDate},

		{Kind: Timeliness, Table: t.Transactions, Column: "transaction_date", MaxAgeHours: 24},
		{Kind: Timeliness, Table: t.Customers, Column: "last_interaction_date", MaxAgeHours: 30 * 24},
	}
}

// DefaultRegistry registers DefaultSpecs. The returned error joins any
// configuration errors; the registry is usable either way.
func DefaultRegistry(catalog *db.Catalog, t model.Tables) (*Registry, error) {
	r := NewRegistry(catalog)
	for _, s := range DefaultSpecs(t) {
		_ = r.Add(s)
	}
	return r, r.Err()
}

// File is the YAML shape of a check registry file.
type File struct {
	// Catalog extends the identifier allow-list before checks are built.
	Catalog []CatalogEntry `yaml:"catalog"`
	Checks  []Spec         `yaml:"checks"`
}

// CatalogEntry adds a table and its columns to the allow-list.
type CatalogEntry struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
}

// LoadRegistry reads a YAML registry file. Catalog extensions are applied
// to catalog first. A read or parse failure returns a nil registry; check
// configuration errors return the registry alongside the joined errors.
func LoadRegistry(path string, catalog *db.Catalog) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "quality: read registry %s", path)
	}
	return ParseRegistry(data, catalog)
}

// ParseRegistry is LoadRegistry over bytes.
func ParseRegistry(data []byte, catalog *db.Catalog) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "quality: parse registry")
	}
	if len(f.Checks) == 0 {
		return nil, eris.New("quality: registry defines no checks")
	}
	for _, c := range f.Catalog {
		if err := catalog.Register(c.Table, c.Columns...); err != nil {
			return nil, eris.Wrap(err, "quality: registry catalog")
		}
	}

	r := NewRegistry(catalog)
	for _, s := range f.Checks {
		_ = r.Add(s)
	}
	return r, r.Err()
}
