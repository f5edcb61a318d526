package etl

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/dwq/internal/model"
)

// Drop records a row the transformer filtered out. Drops are data-quality
// signals, not errors; the run continues.
type Drop struct {
	Key    int64  `json:"key"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"` // offending value, when there is one
}

// CountReasons tallies drops by reason.
func CountReasons(drops []Drop) map[string]int {
	if len(drops) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, d := range drops {
		out[d.Reason]++
	}
	return out
}

// Drop reasons.
const (
	ReasonNegativeAmount = "negative amount"
	ReasonUnknownStatus  = "unknown status"
	ReasonScoreRange     = "score out of range"
	ReasonInvalidKey     = "non-positive id"
	ReasonDuplicateKey   = "duplicate id in batch"
)

// TransformTransactions derives is_weekend and is_holiday, conforms text
// fields, and filters rows that violate the staging invariants. A duplicate
// transaction_id keeps its last occurrence.
func TransformTransactions(batch []model.Transaction, _ time.Time) ([]model.Transaction, []Drop) {
	var drops []Drop
	valid := make([]model.Transaction, 0, len(batch))

	for _, t := range batch {
		switch {
		case t.TransactionID <= 0:
			drops = append(drops, Drop{Key: t.TransactionID, Reason: ReasonInvalidKey})
			continue
		case t.Amount < 0:
			drops = append(drops, Drop{Key: t.TransactionID, Reason: ReasonNegativeAmount, Value: strconv.FormatFloat(t.Amount, 'f', -1, 64)})
			continue
		}

		t.Status = conform(t.Status)
		if !model.ValidStatus(model.TransactionStatuses, t.Status) {
			drops = append(drops, Drop{Key: t.TransactionID, Reason: ReasonUnknownStatus, Value: t.Status})
			continue
		}

		t.IsWeekend = IsWeekend(t.TransactionDate)
		t.IsHoliday = IsHoliday(t.TransactionDate)
		valid = append(valid, t)
	}

	kept, dupes := lastByKey(valid, func(t model.Transaction) int64 { return t.TransactionID })
	return kept, append(drops, dupes...)
}

// TransformCustomers derives age and customer_tenure_days relative to now,
// conforms text fields, and filters rows that violate the staging invariants.
// A duplicate customer_id keeps its last occurrence.
func TransformCustomers(batch []model.Customer, now time.Time) ([]model.Customer, []Drop) {
	var drops []Drop
	valid := make([]model.Customer, 0, len(batch))

	for _, c := range batch {
		if c.CustomerID <= 0 {
			drops = append(drops, Drop{Key: c.CustomerID, Reason: ReasonInvalidKey})
			continue
		}
		if !model.ValidScore(c.SatisfactionScore) || !model.ValidScore(c.NPSScore) {
			drops = append(drops, Drop{Key: c.CustomerID, Reason: ReasonScoreRange})
			continue
		}

		c.Status = conform(c.Status)
		if !model.ValidStatus(model.CustomerStatuses, c.Status) {
			drops = append(drops, Drop{Key: c.CustomerID, Reason: ReasonUnknownStatus, Value: c.Status})
			continue
		}

		c.FirstName = conform(c.FirstName)
		c.LastName = conform(c.LastName)
		c.Address = conform(c.Address)
		c.City = conform(c.City)
		c.State = conform(c.State)
		c.ZipCode = conform(c.ZipCode)
		c.Email = conformOptional(c.Email, strings.ToLower)
		c.Phone = conformOptional(c.Phone, nil)

		c.Age = YearsBetween(c.DateOfBirth, now)
		c.TenureDays = DaysBetween(c.AcquisitionDate, now)
		valid = append(valid, c)
	}

	kept, dupes := lastByKey(valid, func(c model.Customer) int64 { return c.CustomerID })
	return kept, append(drops, dupes...)
}

// IsWeekend reports whether d falls on a Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// fixedHolidays are US federal holidays observed on a fixed calendar date.
var fixedHolidays = map[[2]int]bool{
	{1, 1}:   true, // New Year's Day
	{6, 19}:  true, // Juneteenth
	{7, 4}:   true, // Independence Day
	{11, 11}: true, // Veterans Day
	{12, 25}: true, // Christmas Day
}

// IsHoliday reports whether d is a weekend or a fixed-date federal holiday.
func IsHoliday(d time.Time) bool {
	if IsWeekend(d) {
		return true
	}
	_, m, day := d.Date()
	return fixedHolidays[[2]int{int(m), day}]
}

// YearsBetween returns whole years elapsed from born to now, counting a year
// only once its anniversary has passed. The zero time yields 0.
func YearsBetween(born, now time.Time) int {
	if born.IsZero() || born.After(now) {
		return 0
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return years
}

// DaysBetween returns whole calendar days from since to now. The zero time
// and future dates yield 0.
func DaysBetween(since, now time.Time) int {
	if since.IsZero() {
		return 0
	}
	d := int(civil(now).Sub(civil(since)).Hours() / 24)
	return max(d, 0)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// conform trims surrounding whitespace and applies NFC normalization.
func conform(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// conformOptional conforms a nullable field; blank values become NULL.
func conformOptional(s *string, fn func(string) string) *string {
	if s == nil {
		return nil
	}
	v := conform(*s)
	if v == "" {
		return nil
	}
	if fn != nil {
		v = fn(v)
	}
	return &v
}

// lastByKey keeps the last row for each key, in first-seen key order, and
// reports the earlier rows as drops.
func lastByKey[T any](rows []T, key func(T) int64) ([]T, []Drop) {
	pos := make(map[int64]int, len(rows))
	out := make([]T, 0, len(rows))
	var drops []Drop
	for _, r := range rows {
		k := key(r)
		if i, ok := pos[k]; ok {
			out[i] = r
			drops = append(drops, Drop{Key: k, Reason: ReasonDuplicateKey})
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out, drops
}
