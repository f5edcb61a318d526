package etl

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/model"
)

// CustomerMode selects which customers an extraction returns.
type CustomerMode string

const (
	// CustomerModeFull re-extracts the whole population every run.
	CustomerModeFull CustomerMode = "full"
	// CustomerModeIncremental keeps customers whose last interaction falls in the window.
	CustomerModeIncremental CustomerMode = "incremental"
)

// ParseCustomerMode converts a config string into a CustomerMode; empty means full.
func ParseCustomerMode(s string) (CustomerMode, error) {
	switch CustomerMode(s) {
	case "", CustomerModeFull:
		return CustomerModeFull, nil
	case CustomerModeIncremental:
		return CustomerModeIncremental, nil
	default:
		return "", eris.Errorf("etl: unknown customer_mode %q (valid: full, incremental)", s)
	}
}

// Extractor pulls raw batches from a Source and scopes them to the window.
type Extractor struct {
	source Source
	mode   CustomerMode
	log    *zap.Logger
}

// NewExtractor creates an Extractor over source.
func NewExtractor(source Source, mode CustomerMode, log *zap.Logger) *Extractor {
	if mode == "" {
		mode = CustomerModeFull
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		source: source,
		mode:   mode,
		log:    log.With(zap.String("component", "etl.extract"), zap.String("source", source.Name())),
	}
}

// Transactions returns the transactions dated inside w.
func (e *Extractor) Transactions(ctx context.Context, w model.Window) ([]model.Transaction, error) {
	raw, err := e.source.Transactions(ctx, w)
	if err != nil {
		return nil, &ExtractionError{Entity: model.EntityTransactions, Err: err}
	}

	out := raw[:0]
	for _, t := range raw {
		if w.Contains(t.TransactionDate) {
			out = append(out, t)
		}
	}
	if skipped := len(raw) - len(out); skipped > 0 {
		e.log.Debug("skipped transactions outside window",
			zap.Int("skipped", skipped), zap.Stringer("window", w))
	}

	e.log.Info("extracted transactions", zap.Int("count", len(out)), zap.Stringer("window", w))
	return out, nil
}

// Customers returns the customer population, or only customers touched in w
// when running incrementally.
func (e *Extractor) Customers(ctx context.Context, w model.Window) ([]model.Customer, error) {
	raw, err := e.source.Customers(ctx, w)
	if err != nil {
		return nil, &ExtractionError{Entity: model.EntityCustomers, Err: err}
	}

	out := raw
	if e.mode == CustomerModeIncremental {
		out = raw[:0]
		for _, c := range raw {
			if w.Contains(c.LastInteractionDate) {
				out = append(out, c)
			}
		}
	}

	e.log.Info("extracted customers", zap.Int("count", len(out)), zap.String("mode", string(e.mode)))
	return out, nil
}
