package etl

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/db"
	"github.com/sells-group/dwq/internal/model"
)

// Loader writes transformed batches to the warehouse staging tables.
type Loader interface {
	LoadTransactions(ctx context.Context, batch []model.Transaction) (int64, error)
	LoadCustomers(ctx context.Context, batch []model.Customer) (int64, error)
}

// PostgresLoader upserts batches through db.BulkUpsert. Only mutable columns
// change on conflict, and every touched row gets a fresh last_updated.
type PostgresLoader struct {
	pool   db.Pool
	tables model.Tables
	log    *zap.Logger
}

// NewPostgresLoader creates a PostgresLoader writing to tables.
func NewPostgresLoader(pool db.Pool, tables model.Tables, log *zap.Logger) *PostgresLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresLoader{pool: pool, tables: tables, log: log.With(zap.String("component", "etl.load"))}
}

// LoadTransactions implements Loader.
func (l *PostgresLoader) LoadTransactions(ctx context.Context, batch []model.Transaction) (int64, error) {
	rows := make([][]any, 0, len(batch))
	for _, t := range batch {
		clock, err := clockValue(t.TransactionTime)
		if err != nil {
			return 0, &LoadError{Entity: model.EntityTransactions, Err: eris.Wrapf(err, "etl: transaction %d", t.TransactionID)}
		}
		rows = append(rows, []any{
			t.TransactionID, dateValue(t.TransactionDate), clock,
			t.BranchID, t.CustomerID, t.ProductID, t.Amount,
			t.TransactionTypeID, t.EmployeeID, t.ChannelID,
			t.Status, t.IsWeekend, t.IsHoliday,
		})
	}

	n, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        l.tables.Transactions,
		Columns:      model.TransactionColumns,
		ConflictKeys: []string{"transaction_id"},
		UpdateCols:   model.TransactionMutableColumns,
		StampColumn:  model.LastUpdatedColumn,
	}, rows)
	if err != nil {
		return 0, &LoadError{Entity: model.EntityTransactions, Err: err}
	}

	l.log.Info("loaded transactions", zap.Int64("rows", n), zap.String("table", l.tables.Transactions))
	return n, nil
}

// LoadCustomers implements Loader.
func (l *PostgresLoader) LoadCustomers(ctx context.Context, batch []model.Customer) (int64, error) {
	rows := make([][]any, 0, len(batch))
	for _, c := range batch {
		rows = append(rows, []any{
			c.CustomerID, c.FirstName, c.LastName, dateValue(c.DateOfBirth),
			c.Address, c.City, c.State, c.ZipCode, c.Email, c.Phone,
			c.CustomerSegmentID, dateValue(c.AcquisitionDate), timestampValue(c.LastInteractionDate),
			c.SatisfactionScore, c.NPSScore, c.Status, c.Age, c.TenureDays,
		})
	}

	n, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        l.tables.Customers,
		Columns:      model.CustomerColumns,
		ConflictKeys: []string{"customer_id"},
		UpdateCols:   model.CustomerMutableColumns,
		StampColumn:  model.LastUpdatedColumn,
	}, rows)
	if err != nil {
		return 0, &LoadError{Entity: model.EntityCustomers, Err: err}
	}

	l.log.Info("loaded customers", zap.Int64("rows", n), zap.String("table", l.tables.Customers))
	return n, nil
}

// dateValue maps the zero time to NULL.
func dateValue(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: civil(t), Valid: true}
}

func timestampValue(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// clockValue converts HH:MM:SS to a time column; empty is NULL.
func clockValue(s string) (pgtype.Time, error) {
	if s == "" {
		return pgtype.Time{}, nil
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return pgtype.Time{}, eris.Wrapf(err, "etl: parse transaction_time %q", s)
	}
	us := int64(t.Hour())*int64(time.Hour/time.Microsecond) +
		int64(t.Minute())*int64(time.Minute/time.Microsecond) +
		int64(t.Second())*int64(time.Second/time.Microsecond)
	return pgtype.Time{Microseconds: us, Valid: true}, nil
}
