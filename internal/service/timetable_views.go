package service

import (
	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

func gridSlotView(slot timetable.TimeSlot) dto.GridSlotView {
	return dto.GridSlotView{
		Day:        slot.Day.String(),
		DayOfWeek:  int(slot.Day),
		Period:     slot.Period,
		Start:      slot.Start.String(),
		End:        slot.End.String(),
		IsBreak:    slot.IsBreak,
		BreakLabel: slot.BreakLabel,
	}
}

func gridSlotViews(slots []timetable.TimeSlot) []dto.GridSlotView {
	views := make([]dto.GridSlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, gridSlotView(slot))
	}
	return views
}

func conflictViews(conflicts []timetable.Conflict) []dto.ConflictView {
	views := make([]dto.ConflictView, 0, len(conflicts))
	for _, c := range conflicts {
		views = append(views, dto.ConflictView{
			Type:        string(c.Type),
			Day:         c.Day.String(),
			DayOfWeek:   int(c.Day),
			Period:      c.Period,
			TeacherID:   c.TeacherID,
			TeacherName: c.TeacherName,
			ClassIDs:    c.ClassIDs,
			Description: c.Description,
			Severity:    string(c.Severity),
		})
	}
	return views
}

// nameBook resolves display names for subjects and teachers.
type nameBook struct {
	subjects map[string]string
	teachers map[string]string
}

func newNameBook(subjects []timetable.Subject) nameBook {
	book := nameBook{subjects: make(map[string]string), teachers: make(map[string]string)}
	for _, subject := range subjects {
		book.subjects[subject.ID] = subject.Name
		for _, teacher := range subject.EligibleTeachers {
			book.teachers[teacher.ID] = teacher.Name
		}
	}
	return book
}

func assignmentViews(grid []timetable.TimeSlot, assignments []timetable.Assignment, names nameBook) []dto.TimetableSlotView {
	views := make([]dto.TimetableSlotView, 0, len(assignments))
	for _, a := range assignments {
		view := dto.TimetableSlotView{
			Day:         a.Day.String(),
			DayOfWeek:   int(a.Day),
			Period:      a.Period,
			SubjectID:   a.SubjectID,
			SubjectName: names.subjects[a.SubjectID],
			TeacherID:   a.TeacherID,
			TeacherName: names.teachers[a.TeacherID],
		}
		if slot, ok := timetable.Lookup(grid, a.Day, a.Period); ok {
			view.Start = slot.Start.String()
			view.End = slot.End.String()
		}
		views = append(views, view)
	}
	return views
}

func slotDetailViews(grid []timetable.TimeSlot, slots []models.TimetableSlotDetail) []dto.TimetableSlotView {
	views := make([]dto.TimetableSlotView, 0, len(slots))
	for _, s := range slots {
		day := timetable.Day(s.DayOfWeek)
		view := dto.TimetableSlotView{
			Day:         day.String(),
			DayOfWeek:   s.DayOfWeek,
			Period:      s.Period,
			SubjectID:   s.SubjectID,
			SubjectName: s.SubjectName,
			TeacherID:   s.TeacherID,
			TeacherName: s.TeacherName,
		}
		if slot, ok := timetable.Lookup(grid, day, s.Period); ok {
			view.Start = slot.Start.String()
			view.End = slot.End.String()
		}
		views = append(views, view)
	}
	return views
}

func slotsToAssignments(slots []models.TimetableSlot) []timetable.Assignment {
	out := make([]timetable.Assignment, 0, len(slots))
	for _, s := range slots {
		out = append(out, timetable.Assignment{
			ClassID:   s.ClassID,
			Day:       timetable.Day(s.DayOfWeek),
			Period:    s.Period,
			SubjectID: s.SubjectID,
			TeacherID: s.TeacherID,
		})
	}
	return out
}

func detailsToAssignments(slots []models.TimetableSlotDetail) []timetable.Assignment {
	plain := make([]models.TimetableSlot, 0, len(slots))
	for _, s := range slots {
		plain = append(plain, s.TimetableSlot)
	}
	return slotsToAssignments(plain)
}

func assignmentsToSlots(assignments []timetable.Assignment) []models.TimetableSlot {
	out := make([]models.TimetableSlot, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, models.TimetableSlot{
			ClassID:   a.ClassID,
			DayOfWeek: int(a.Day),
			Period:    a.Period,
			SubjectID: a.SubjectID,
			TeacherID: a.TeacherID,
		})
	}
	return out
}
