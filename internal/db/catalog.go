package db

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dwq/internal/model"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Catalog is the allow-list of table and column identifiers that may be
// spliced into statements. Anything outside it is rejected before it reaches
// SQL, and anything inside it is quoted with pgx.Identifier.
type Catalog struct {
	tables map[string]map[string]bool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]map[string]bool)}
}

// Register adds a table (optionally schema-qualified) and its columns.
// Registering an existing table extends its column set.
func (c *Catalog) Register(table string, columns ...string) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	cols, ok := c.tables[table]
	if !ok {
		cols = make(map[string]bool, len(columns))
		c.tables[table] = cols
	}
	for _, col := range columns {
		if !identPattern.MatchString(col) {
			return eris.Errorf("db: catalog: invalid column identifier %q for %s", col, table)
		}
		cols[col] = true
	}
	return nil
}

// Table returns the quoted form of a registered table.
func (c *Catalog) Table(table string) (string, error) {
	if _, ok := c.tables[table]; !ok {
		return "", eris.Errorf("db: catalog: table %q is not in the allow-list", table)
	}
	return SanitizeTable(table), nil
}

// Column returns the quoted table and column for a registered pair.
func (c *Catalog) Column(table, column string) (string, string, error) {
	qt, err := c.Table(table)
	if err != nil {
		return "", "", err
	}
	if !c.tables[table][column] {
		return "", "", eris.Errorf("db: catalog: column %q is not in the allow-list for %s", column, table)
	}
	return qt, pgx.Identifier{column}.Sanitize(), nil
}

// Has reports whether table.column is registered.
func (c *Catalog) Has(table, column string) bool {
	return c.tables[table][column]
}

// Tables returns registered table names, sorted.
func (c *Catalog) Tables() []string {
	out := make([]string, 0, len(c.tables))
	for t := range c.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func validateTableName(table string) error {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return eris.Errorf("db: catalog: invalid table identifier %q", table)
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return eris.Errorf("db: catalog: invalid table identifier %q", table)
		}
	}
	return nil
}

// DefaultCatalog registers the staging tables the loader writes, including
// the last_updated stamp, plus the branch and product reference keys.
func DefaultCatalog(t model.Tables) (*Catalog, error) {
	c := NewCatalog()
	txnCols := append(append([]string{}, model.TransactionColumns...), model.LastUpdatedColumn)
	custCols := append(append([]string{}, model.CustomerColumns...), model.LastUpdatedColumn)
	if err := c.Register(t.Transactions, txnCols...); err != nil {
		return nil, err
	}
	if err := c.Register(t.Customers, custCols...); err != nil {
		return nil, err
	}
	if err := c.Register(t.Branches, "branch_id"); err != nil {
		return nil, err
	}
	if err := c.Register(t.Products, "product_id"); err != nil {
		return nil, err
	}
	return c, nil
}
