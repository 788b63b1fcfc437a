// Package timetable holds the pure scheduling core: weekly grid construction,
// quota allocation, greedy slot assignment and conflict detection. Nothing in
// this package performs I/O.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Day is a weekday index where Monday is 1.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = map[Day]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

// String returns the upper-case day name.
func (d Day) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DAY(%d)", int(d))
}

// Valid reports whether d is between Monday and Sunday.
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

// ParseDay accepts day names in any case ("monday", "MON") or their 1-7 index.
func ParseDay(raw string) (Day, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("empty day")
	}
	if idx, err := strconv.Atoi(value); err == nil {
		day := Day(idx)
		if !day.Valid() {
			return 0, fmt.Errorf("day index %d out of range", idx)
		}
		return day, nil
	}
	for day, name := range dayNames {
		if name == value || (len(value) == 3 && strings.HasPrefix(name, value)) {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", raw)
}

// ClockTime is a wall-clock time expressed in minutes since midnight.
type ClockTime int

// ParseClock parses HH:MM.
func ParseClock(raw string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return ClockTime(hours*60 + minutes), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Period is one row of the daily bell schedule.
type Period struct {
	Number int
	Start  ClockTime
	End    ClockTime
}

// BlockedInterval marks time that never receives a lesson (assembly, interval,
// pack-up). An empty Days set applies to every working day.
type BlockedInterval struct {
	Label string
	Days  []Day
	Start ClockTime
	End   ClockTime
}

// AppliesTo reports whether the interval covers the given day.
func (b BlockedInterval) AppliesTo(day Day) bool {
	if len(b.Days) == 0 {
		return true
	}
	for _, d := range b.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Contains reports whether t lies in [Start, End).
func (b BlockedInterval) Contains(t ClockTime) bool {
	return t >= b.Start && t < b.End
}

// TimeSlot is a single (day, period) coordinate of the weekly grid.
type TimeSlot struct {
	Day        Day
	Period     int
	Start      ClockTime
	End        ClockTime
	IsBreak    bool
	BreakLabel string
}

// TeacherRef identifies a teacher for availability bookkeeping.
type TeacherRef struct {
	ID   string
	Name string
}

// Subject is a schedulable subject with its eligible teacher pool.
type Subject struct {
	ID               string
	Name             string
	EligibleTeachers []TeacherRef
	PriorityWeight   float64
}

// Schedulable reports whether at least one teacher can take the subject.
func (s Subject) Schedulable() bool {
	return len(s.EligibleTeachers) > 0
}

// Assignment binds a subject and teacher to one slot of a class.
type Assignment struct {
	ClassID   string
	Day       Day
	Period    int
	SubjectID string
	TeacherID string
}

// ConflictType classifies detected conflicts.
type ConflictType string

const (
	ConflictTeacherDoubleBooking ConflictType = "TEACHER_DOUBLE_BOOKING"
	ConflictOther                ConflictType = "OTHER"
)

// Severity ranks conflicts for dashboards.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Conflict is a derived violation found in a set of assignments.
type Conflict struct {
	Type        ConflictType
	Day         Day
	Period      int
	TeacherID   string
	TeacherName string
	ClassIDs    []string
	Description string
	Severity    Severity
}

type busyKey struct {
	day     Day
	period  int
	teacher string
}

// BusyMap tracks teachers already bound to a (day, period).
type BusyMap map[busyKey]struct{}

// NewBusyMap returns an empty busy map.
func NewBusyMap() BusyMap {
	return make(BusyMap)
}

// Mark records the teacher as busy for the slot.
func (b BusyMap) Mark(day Day, period int, teacherID string) {
	b[busyKey{day: day, period: period, teacher: teacherID}] = struct{}{}
}

// Busy reports whether the teacher is already booked for the slot.
func (b BusyMap) Busy(day Day, period int, teacherID string) bool {
	_, ok := b[busyKey{day: day, period: period, teacher: teacherID}]
	return ok
}

// MarkAll books every teacher referenced by the assignments.
func (b BusyMap) MarkAll(assignments []Assignment) {
	for _, a := range assignments {
		b.Mark(a.Day, a.Period, a.TeacherID)
	}
}
