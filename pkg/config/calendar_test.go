package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

func TestDefaultCalendarGrid(t *testing.T) {
	cal := DefaultCalendar()

	grid := cal.Grid()
	require.Len(t, grid, 40)
	assert.Len(t, timetable.OpenSlots(grid), 25)
}

func TestLoadCalendarFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar.yaml")
	doc := `working_days: [monday, wednesday]
periods:
  - number: 2
    start: "08:10"
    end: "08:50"
  - number: 1
    start: "07:30"
    end: "08:10"
blocked:
  - label: Assembly
    days: [MONDAY]
    start: "07:30"
    end: "08:10"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cal, err := LoadCalendar(path)
	require.NoError(t, err)

	assert.Equal(t, []timetable.Day{timetable.Monday, timetable.Wednesday}, cal.WorkingDays)
	require.Len(t, cal.Periods, 2)
	assert.Equal(t, 1, cal.Periods[0].Number)
	require.Len(t, cal.Blocked, 1)
	assert.Equal(t, []timetable.Day{timetable.Monday}, cal.Blocked[0].Days)

	grid := cal.Grid()
	require.Len(t, grid, 4)
	assert.True(t, grid[0].IsBreak)
	assert.False(t, grid[2].IsBreak, "assembly only blocks Monday")
}

func TestLoadCalendarRejectsInvalidPeriods(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar.yaml")
	doc := `working_days: [monday]
periods:
  - number: 1
    start: "09:00"
    end: "08:00"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := LoadCalendar(path)
	assert.Error(t, err)
}

func TestLoadCalendarMissingFile(t *testing.T) {
	_, err := LoadCalendar(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCalendarEmptyPathUsesDefault(t *testing.T) {
	cal, err := LoadCalendar("")
	require.NoError(t, err)
	assert.Len(t, cal.WorkingDays, 5)
}
