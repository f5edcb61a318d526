package etl

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dwq/internal/model"
)

// Source produces raw batches for each entity. Implementations may return
// records outside the window; the Extractor filters them.
type Source interface {
	Name() string
	Transactions(ctx context.Context, w model.Window) ([]model.Transaction, error)
	Customers(ctx context.Context, w model.Window) ([]model.Customer, error)
}

// Source names accepted by config.
const (
	SourceSynthetic = "synthetic"
	SourceFeed      = "feed"
)

var dateLayouts = []string{
	model.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseDate accepts a bare date or a timestamp; the empty string is the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("etl: unparseable date %q", s)
}

// parseClock normalizes a time-of-day to HH:MM:SS.
func parseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, layout := range []string{"15:04:05", "15:04", "15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", eris.Errorf("etl: unparseable time %q", s)
}

// fieldParser accumulates the first conversion error across a CSV row.
type fieldParser struct {
	row map[string]string
	err error
}

func (p *fieldParser) asString(key string) string {
	return p.row[key]
}

func (p *fieldParser) asInt64(key string) int64 {
	v := p.row[key]
	if v == "" || p.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.err = eris.Wrapf(err, "etl: field %s", key)
	}
	return n
}

func (p *fieldParser) asInt(key string) int {
	return int(p.asInt64(key))
}

func (p *fieldParser) asFloat(key string) float64 {
	v := p.row[key]
	if v == "" || p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = eris.Wrapf(err, "etl: field %s", key)
	}
	return f
}

func (p *fieldParser) optional(key string) *string {
	v, ok := p.row[key]
	if !ok {
		return nil
	}
	return &v
}
