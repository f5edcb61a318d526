package etl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dwq/internal/model"
)

func fixedNow() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

func TestSyntheticSource_Defaults(t *testing.T) {
	src := NewSyntheticSource(SyntheticOptions{Seed: 7, Now: fixedNow})
	w := testWindow()

	txns, err := src.Transactions(context.Background(), w)
	require.NoError(t, err)
	assert.Len(t, txns, 1000)

	custs, err := src.Customers(context.Background(), w)
	require.NoError(t, err)
	assert.Len(t, custs, 500)

	ids := make(map[int64]bool, len(custs))
	for _, c := range custs {
		ids[c.CustomerID] = true
		assert.True(t, model.ValidScore(c.SatisfactionScore))
		assert.True(t, model.ValidStatus(model.CustomerStatuses, c.Status))
	}
	assert.Len(t, ids, 500, "customer ids are unique")

	for _, tx := range txns {
		assert.True(t, w.Contains(tx.TransactionDate), "dated inside window")
		assert.True(t, ids[tx.CustomerID], "references a generated customer")
		assert.GreaterOrEqual(t, tx.Amount, 0.0)
		assert.True(t, model.ValidStatus(model.TransactionStatuses, tx.Status))
	}
}

func TestSyntheticSource_Deterministic(t *testing.T) {
	a := NewSyntheticSource(SyntheticOptions{Transactions: 20, Customers: 10, Seed: 42, Now: fixedNow})
	b := NewSyntheticSource(SyntheticOptions{Transactions: 20, Customers: 10, Seed: 42, Now: fixedNow})

	ta, err := a.Transactions(context.Background(), testWindow())
	require.NoError(t, err)
	tb, err := b.Transactions(context.Background(), testWindow())
	require.NoError(t, err)
	assert.Equal(t, ta, tb)
}

func TestSyntheticSource_TransformsCleanly(t *testing.T) {
	src := NewSyntheticSource(SyntheticOptions{Transactions: 50, Customers: 25, Seed: 1, Now: fixedNow})

	txns, err := src.Transactions(context.Background(), testWindow())
	require.NoError(t, err)
	kept, drops := TransformTransactions(txns, fixedNow())
	assert.Empty(t, drops)
	assert.Len(t, kept, 50)

	custs, err := src.Customers(context.Background(), testWindow())
	require.NoError(t, err)
	keptC, dropsC := TransformCustomers(custs, fixedNow())
	assert.Empty(t, dropsC)
	assert.Len(t, keptC, 25)
}

func TestSyntheticSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSyntheticSource(SyntheticOptions{}).Transactions(ctx, testWindow())
	assert.ErrorIs(t, err, context.Canceled)
}
