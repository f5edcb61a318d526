package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the calendar-date format used for window flags and feed params.
const DateLayout = "2006-01-02"

// Entity identifies a source entity type handled by the load pipeline.
type Entity string

const (
	EntityTransactions Entity = "transactions"
	EntityCustomers    Entity = "customers"
)

// Entities lists every entity in the order the pipeline reports them.
var Entities = []Entity{EntityTransactions, EntityCustomers}

// ParseEntity converts a string into an Entity.
func ParseEntity(s string) (Entity, error) {
	switch Entity(s) {
	case EntityTransactions, EntityCustomers:
		return Entity(s), nil
	default:
		return "", eris.Errorf("model: unknown entity %q (valid: transactions, customers)", s)
	}
}

// Window is an extraction window. Both ends are inclusive at date granularity.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultWindow returns the daily-load window ending at now.
func DefaultWindow(now time.Time) Window {
	return Window{Start: now.Add(-24 * time.Hour), End: now}
}

// ParseWindow builds a Window from YYYY-MM-DD strings. Empty values fall back
// to DefaultWindow(now).
func ParseWindow(start, end string, now time.Time) (Window, error) {
	w := DefaultWindow(now)
	if start != "" {
		t, err := time.ParseInLocation(DateLayout, start, now.Location())
		if err != nil {
			return Window{}, eris.Wrapf(err, "model: parse window start %q", start)
		}
		w.Start = t
	}
	if end != "" {
		t, err := time.ParseInLocation(DateLayout, end, now.Location())
		if err != nil {
			return Window{}, eris.Wrapf(err, "model: parse window end %q", end)
		}
		w.End = t
	}
	return w, w.Validate()
}

// Validate rejects windows whose start date falls after the end date.
func (w Window) Validate() error {
	if dateKey(w.Start) > dateKey(w.End) {
		return eris.Errorf("model: window start %s is after end %s",
			w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return nil
}

// Contains reports whether t falls on a date inside the window. Dates are
// compared on the calendar, each in its own location, so a feed date parsed
// as UTC midnight matches a window built in local time.
func (w Window) Contains(t time.Time) bool {
	d := dateKey(t)
	return d >= dateKey(w.Start) && d <= dateKey(w.End)
}

// Days returns the number of calendar days covered by the window.
func (w Window) Days() int {
	return int(civilDay(w.End).Sub(civilDay(w.Start)).Hours()/24) + 1
}

// DayAt returns the calendar date n days after the window start, at UTC midnight.
func (w Window) DayAt(n int) time.Time {
	return civilDay(w.Start).AddDate(0, 0, n)
}

// String formats the window as "start..end".
func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// civilDay maps t's calendar date to UTC midnight.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
