package service

import (
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// DefaultSubjectWeight applies to subjects outside the core table.
const DefaultSubjectWeight = 2.0

// coreSubjectWeights are the priority weights of the core curriculum, keyed by
// lower-case subject name.
var coreSubjectWeights = map[string]float64{
	"mathematics":    5,
	"science":        5,
	"english":        4,
	"first language": 4,
	"religion":       3,
	"history":        3,
}

// SubjectWeight resolves the priority weight of a subject: a usable explicit
// override wins, then the core table, then fallback. Overrides that are not
// positive finite numbers are ignored, and an unusable fallback becomes
// DefaultSubjectWeight.
func SubjectWeight(name string, override *float64, fallback float64) float64 {
	if override != nil && timetable.ValidWeight(*override) {
		return *override
	}
	if weight, ok := coreSubjectWeights[strings.ToLower(strings.TrimSpace(name))]; ok {
		return weight
	}
	if !timetable.ValidWeight(fallback) {
		return DefaultSubjectWeight
	}
	return fallback
}

// buildSubjects folds directory rows into scheduling subjects, keeping row
// order for both subjects and teacher pools. Rows without a teacher only
// register the subject.
func buildSubjects(rows []models.SubjectTeacherRow, fallbackWeight float64) []timetable.Subject {
	index := make(map[string]int)
	subjects := make([]timetable.Subject, 0)
	for _, row := range rows {
		pos, ok := index[row.SubjectID]
		if !ok {
			pos = len(subjects)
			index[row.SubjectID] = pos
			subjects = append(subjects, timetable.Subject{
				ID:             row.SubjectID,
				Name:           row.SubjectName,
				PriorityWeight: SubjectWeight(row.SubjectName, row.PriorityWeight, fallbackWeight),
			})
		}
		if row.TeacherID == nil {
			continue
		}
		name := ""
		if row.TeacherName != nil {
			name = *row.TeacherName
		}
		subject := &subjects[pos]
		duplicate := false
		for _, existing := range subject.EligibleTeachers {
			if existing.ID == *row.TeacherID {
				duplicate = true
				break
			}
		}
		if !duplicate {
			subject.EligibleTeachers = append(subject.EligibleTeachers, timetable.TeacherRef{ID: *row.TeacherID, Name: name})
		}
	}
	return subjects
}
