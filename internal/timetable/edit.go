package timetable

import "errors"

var (
	// ErrUnknownSlot is returned when an edit targets a coordinate outside the grid.
	ErrUnknownSlot = errors.New("slot is not part of the weekly grid")
	// ErrBreakSlot is returned when an edit targets a break.
	ErrBreakSlot = errors.New("slot is reserved for a break")
	// ErrInvalidEdit is returned when an edit lacks its class, subject or teacher.
	ErrInvalidEdit = errors.New("edit requires class, subject and teacher")
)

// Edit sets or clears one cell of a class timetable.
type Edit struct {
	ClassID   string
	Day       Day
	Period    int
	SubjectID string
	TeacherID string
	Clear     bool
}

// ApplyEdit returns a copy of assignments with the edit applied. Existing
// cells of the class at the edited coordinate are replaced (or removed when
// Clear is set). Callers re-run DetectConflicts on the result.
func ApplyEdit(grid []TimeSlot, assignments []Assignment, edit Edit) ([]Assignment, error) {
	if edit.ClassID == "" {
		return nil, ErrInvalidEdit
	}
	slot, ok := Lookup(grid, edit.Day, edit.Period)
	if !ok {
		return nil, ErrUnknownSlot
	}
	if slot.IsBreak && !edit.Clear {
		return nil, ErrBreakSlot
	}
	if !edit.Clear && (edit.SubjectID == "" || edit.TeacherID == "") {
		return nil, ErrInvalidEdit
	}

	out := make([]Assignment, 0, len(assignments)+1)
	for _, a := range assignments {
		if a.ClassID == edit.ClassID && a.Day == edit.Day && a.Period == edit.Period {
			continue
		}
		out = append(out, a)
	}
	if !edit.Clear {
		out = append(out, Assignment{
			ClassID:   edit.ClassID,
			Day:       edit.Day,
			Period:    edit.Period,
			SubjectID: edit.SubjectID,
			TeacherID: edit.TeacherID,
		})
	}
	return out, nil
}
