//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dwq/internal/runlog"
)

func sampleEntries() []runlog.Entry {
	started := time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC)
	done := started.Add(95 * time.Second)
	return []runlog.Entry{
		{ID: 3, Kind: runlog.KindCheck, Status: runlog.StatusRunning, StartedAt: started.Add(time.Hour)},
		{ID: 2, Kind: runlog.KindCheck, Status: runlog.StatusFailed, StartedAt: started, CompletedAt: &done, Rows: 14, Error: "quality gate failed: 3 of 14 checks did not pass"},
		{ID: 1, Kind: runlog.KindLoad, Status: runlog.StatusComplete, StartedAt: started, CompletedAt: &done, Rows: 1488},
	}
}

func TestFilterKind(t *testing.T) {
	entries := sampleEntries()

	assert.Len(t, filterKind(entries, ""), 3)

	loads := filterKind(entries, runlog.KindLoad)
	assert.Len(t, loads, 1)
	assert.Equal(t, int64(1), loads[0].ID)

	assert.Empty(t, filterKind(entries, "export"))
	assert.Len(t, entries, 3, "input slice untouched")
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, sampleEntries())

	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "2026-10-15 02:00")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "1488")
	assert.Contains(t, out, "quality gate failed")
	assert.Contains(t, out, "running")
}
