package timetable

import (
	"fmt"
	"sort"
	"strings"
)

// TeacherDirectory resolves teacher display names for conflict reports.
type TeacherDirectory interface {
	TeacherName(id string) (string, bool)
}

// TeacherNames is a map-backed TeacherDirectory.
type TeacherNames map[string]string

// TeacherName implements TeacherDirectory.
func (n TeacherNames) TeacherName(id string) (string, bool) {
	name, ok := n[id]
	return name, ok
}

type slotKey struct {
	day    Day
	period int
}

// DetectConflicts reports teacher double-bookings across classes and
// duplicate cells within one class. It never mutates its input and returns the
// same list for the same assignments.
//
// A teacher bound to N classes at one (day, period) yields exactly one
// TEACHER_DOUBLE_BOOKING conflict naming all N classes.
func DetectConflicts(assignments []Assignment, directory TeacherDirectory) []Conflict {
	byTeacher := make(map[busyKey]map[string]struct{})
	byClass := make(map[slotKey]map[string]int)

	for _, a := range assignments {
		tk := busyKey{day: a.Day, period: a.Period, teacher: a.TeacherID}
		if byTeacher[tk] == nil {
			byTeacher[tk] = make(map[string]struct{})
		}
		byTeacher[tk][a.ClassID] = struct{}{}

		ck := slotKey{day: a.Day, period: a.Period}
		if byClass[ck] == nil {
			byClass[ck] = make(map[string]int)
		}
		byClass[ck][a.ClassID]++
	}

	conflicts := make([]Conflict, 0)
	for key, classes := range byTeacher {
		if key.teacher == "" || len(classes) < 2 {
			continue
		}
		classIDs := sortedKeys(classes)
		name := key.teacher
		if directory != nil {
			if resolved, ok := directory.TeacherName(key.teacher); ok && resolved != "" {
				name = resolved
			}
		}
		conflicts = append(conflicts, Conflict{
			Type:        ConflictTeacherDoubleBooking,
			Day:         key.day,
			Period:      key.period,
			TeacherID:   key.teacher,
			TeacherName: name,
			ClassIDs:    classIDs,
			Description: fmt.Sprintf("%s is assigned to classes %s on %s period %d", name, strings.Join(classIDs, ", "), key.day, key.period),
			Severity:    SeverityHigh,
		})
	}

	for key, counts := range byClass {
		for classID, count := range counts {
			if count < 2 {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Type:        ConflictOther,
				Day:         key.day,
				Period:      key.period,
				ClassIDs:    []string{classID},
				Description: fmt.Sprintf("class %s has %d lessons on %s period %d", classID, count, key.day, key.period),
				Severity:    SeverityMedium,
			})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.TeacherID != b.TeacherID {
			return a.TeacherID < b.TeacherID
		}
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		return strings.Join(a.ClassIDs, ",") < strings.Join(b.ClassIDs, ",")
	})
	return conflicts
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
