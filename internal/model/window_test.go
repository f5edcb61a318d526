package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("transactions")
	require.NoError(t, err)
	assert.Equal(t, EntityTransactions, e)

	e, err = ParseEntity("customers")
	require.NoError(t, err)
	assert.Equal(t, EntityCustomers, e)

	_, err = ParseEntity("branches")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity")
}

func TestDefaultWindow(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	w := DefaultWindow(now)
	assert.Equal(t, now.Add(-24*time.Hour), w.Start)
	assert.Equal(t, now, w.End)
	assert.Equal(t, 2, w.Days())
}

func TestWindow_Contains_Inclusive(t *testing.T) {
	w := Window{
		Start: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"start date before start time", time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), true},
		{"end date after end time", time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC), true},
		{"day before", time.Date(2026, 10, 13, 23, 59, 0, 0, time.UTC), false},
		{"day after", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.t))
		})
	}
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	w, err := ParseWindow("2026-10-01", "2026-10-07", now)
	require.NoError(t, err)
	assert.Equal(t, 7, w.Days())
	assert.Equal(t, "2026-10-01..2026-10-07", w.String())

	w, err = ParseWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow(now), w)

	_, err = ParseWindow("2026-10-08", "2026-10-07", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is after end")

	_, err = ParseWindow("10/01/2026", "", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse window start")
}

func TestValidStatusAndScore(t *testing.T) {
	assert.True(t, ValidStatus(TransactionStatuses, "PENDING"))
	assert.False(t, ValidStatus(TransactionStatuses, "pending"))
	assert.True(t, ValidStatus(CustomerStatuses, "INACTIVE"))
	assert.False(t, ValidStatus(CustomerStatuses, "COMPLETED"))

	assert.True(t, ValidScore(0))
	assert.True(t, ValidScore(10))
	assert.False(t, ValidScore(-1))
	assert.False(t, ValidScore(11))
}

func TestWindow_Contains_AcrossLocations(t *testing.T) {
	chicago := time.FixedZone("CDT", -5*3600)
	w := Window{
		Start: time.Date(2026, 10, 14, 0, 0, 0, 0, chicago),
		End:   time.Date(2026, 10, 14, 23, 0, 0, 0, chicago),
	}
	// A feed date parsed at UTC midnight is still the 14th.
	assert.True(t, w.Contains(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)))
}

func TestWindow_DayAt(t *testing.T) {
	w := Window{
		Start: time.Date(2026, 10, 30, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 11, 1, 6, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 3, w.Days())
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), w.DayAt(2))
}
