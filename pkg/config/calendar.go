package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// Calendar is the static weekly bell schedule used by the generator.
type Calendar struct {
	WorkingDays []timetable.Day
	Periods     []timetable.Period
	Blocked     []timetable.BlockedInterval
}

// Grid builds the weekly slot grid for the calendar.
func (c *Calendar) Grid() []timetable.TimeSlot {
	return timetable.BuildWeeklyGrid(c.WorkingDays, c.Periods, c.Blocked)
}

type calendarFile struct {
	WorkingDays []string        `mapstructure:"working_days"`
	Periods     []periodEntry   `mapstructure:"periods"`
	Blocked     []intervalEntry `mapstructure:"blocked"`
}

type periodEntry struct {
	Number int    `mapstructure:"number"`
	Start  string `mapstructure:"start"`
	End    string `mapstructure:"end"`
}

type intervalEntry struct {
	Label string   `mapstructure:"label"`
	Days  []string `mapstructure:"days"`
	Start string   `mapstructure:"start"`
	End   string   `mapstructure:"end"`
}

// LoadCalendar reads a YAML (or JSON/TOML, by extension) calendar document.
// An empty path yields DefaultCalendar.
func LoadCalendar(path string) (*Calendar, error) {
	if path == "" {
		return DefaultCalendar(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read calendar %s: %w", path, err)
	}

	var raw calendarFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode calendar %s: %w", path, err)
	}
	return raw.toCalendar()
}

// DefaultCalendar is a Monday-Friday day of eight periods where period 1 is
// assembly, period 5 the interval and period 8 pack-up.
func DefaultCalendar() *Calendar {
	raw := calendarFile{
		WorkingDays: []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"},
		Periods: []periodEntry{
			{Number: 1, Start: "07:30", End: "07:50"},
			{Number: 2, Start: "07:50", End: "08:30"},
			{Number: 3, Start: "08:30", End: "09:10"},
			{Number: 4, Start: "09:10", End: "09:50"},
			{Number: 5, Start: "09:50", End: "10:10"},
			{Number: 6, Start: "10:10", End: "10:50"},
			{Number: 7, Start: "10:50", End: "11:30"},
			{Number: 8, Start: "11:30", End: "11:50"},
		},
		Blocked: []intervalEntry{
			{Label: "Assembly", Start: "07:30", End: "07:50"},
			{Label: "Interval", Start: "09:50", End: "10:10"},
			{Label: "Pack-up", Start: "11:30", End: "11:50"},
		},
	}
	cal, err := raw.toCalendar()
	if err != nil {
		panic(err)
	}
	return cal
}

func (f calendarFile) toCalendar() (*Calendar, error) {
	cal := &Calendar{}

	seenDays := make(map[timetable.Day]bool)
	for _, name := range f.WorkingDays {
		day, err := timetable.ParseDay(name)
		if err != nil {
			return nil, fmt.Errorf("working_days: %w", err)
		}
		if seenDays[day] {
			return nil, fmt.Errorf("working_days: duplicate %s", day)
		}
		seenDays[day] = true
		cal.WorkingDays = append(cal.WorkingDays, day)
	}
	if len(cal.WorkingDays) == 0 {
		return nil, fmt.Errorf("working_days must not be empty")
	}

	seenPeriods := make(map[int]bool)
	for _, entry := range f.Periods {
		if entry.Number < 1 {
			return nil, fmt.Errorf("periods: number must be >= 1, got %d", entry.Number)
		}
		if seenPeriods[entry.Number] {
			return nil, fmt.Errorf("periods: duplicate period %d", entry.Number)
		}
		seenPeriods[entry.Number] = true
		start, end, err := parseRange(entry.Start, entry.End)
		if err != nil {
			return nil, fmt.Errorf("periods[%d]: %w", entry.Number, err)
		}
		cal.Periods = append(cal.Periods, timetable.Period{Number: entry.Number, Start: start, End: end})
	}
	if len(cal.Periods) == 0 {
		return nil, fmt.Errorf("periods must not be empty")
	}
	sort.Slice(cal.Periods, func(i, j int) bool { return cal.Periods[i].Number < cal.Periods[j].Number })

	for _, entry := range f.Blocked {
		start, end, err := parseRange(entry.Start, entry.End)
		if err != nil {
			return nil, fmt.Errorf("blocked %q: %w", entry.Label, err)
		}
		interval := timetable.BlockedInterval{Label: entry.Label, Start: start, End: end}
		for _, name := range entry.Days {
			day, err := timetable.ParseDay(name)
			if err != nil {
				return nil, fmt.Errorf("blocked %q: %w", entry.Label, err)
			}
			interval.Days = append(interval.Days, day)
		}
		cal.Blocked = append(cal.Blocked, interval)
	}
	return cal, nil
}

func parseRange(rawStart, rawEnd string) (timetable.ClockTime, timetable.ClockTime, error) {
	start, err := timetable.ParseClock(rawStart)
	if err != nil {
		return 0, 0, err
	}
	end, err := timetable.ParseClock(rawEnd)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return start, end, nil
}
