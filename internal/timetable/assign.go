package timetable

// Result is the outcome of one generation run for a class.
type Result struct {
	ClassID     string
	Assignments []Assignment
	// Remaining is the quota left per subject after the run.
	Remaining map[string]int
	// Overflow counts fallback placements per subject, i.e. periods granted
	// beyond the subject's quota.
	Overflow map[string]int
	// Unfilled lists open slots where every eligible teacher was busy.
	Unfilled []TimeSlot
}

// Engine places subjects on the grid greedily.
type Engine struct {
	arbiter Arbiter
}

// NewEngine returns an engine using the given arbiter; nil means StableArbiter.
func NewEngine(arbiter Arbiter) *Engine {
	if arbiter == nil {
		arbiter = StableArbiter{}
	}
	return &Engine{arbiter: arbiter}
}

// Strategy reports the arbitration policy in use.
func (e *Engine) Strategy() Strategy {
	return e.arbiter.Strategy()
}

// Assign fills one class's grid starting from an empty busy map.
func (e *Engine) Assign(classID string, grid []TimeSlot, subjects []Subject, quotas map[string]int) Result {
	return e.AssignWithBusy(classID, grid, subjects, quotas, NewBusyMap())
}

// AssignWithBusy fills the grid treating every teacher already in busy as
// unavailable. busy is updated in place with the new placements, which lets
// callers chain classes sequentially.
func (e *Engine) AssignWithBusy(classID string, grid []TimeSlot, subjects []Subject, quotas map[string]int, busy BusyMap) Result {
	if busy == nil {
		busy = NewBusyMap()
	}
	eligible := EligibleSubjects(subjects)

	remaining := make(map[string]int, len(eligible))
	for _, subject := range eligible {
		remaining[subject.ID] = quotas[subject.ID]
	}

	result := Result{
		ClassID:   classID,
		Remaining: remaining,
		Overflow:  make(map[string]int),
	}

	for _, slot := range grid {
		if slot.IsBreak {
			continue
		}
		order := e.arbiter.Order(slot, eligible)

		placed := false
		for _, subject := range order {
			if remaining[subject.ID] <= 0 {
				continue
			}
			if teacher, ok := freeTeacher(busy, slot, subject); ok {
				result.Assignments = append(result.Assignments, bind(classID, slot, subject, teacher))
				busy.Mark(slot.Day, slot.Period, teacher.ID)
				remaining[subject.ID]--
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		for _, subject := range order {
			if teacher, ok := freeTeacher(busy, slot, subject); ok {
				result.Assignments = append(result.Assignments, bind(classID, slot, subject, teacher))
				busy.Mark(slot.Day, slot.Period, teacher.ID)
				result.Overflow[subject.ID]++
				placed = true
				break
			}
		}
		if !placed {
			result.Unfilled = append(result.Unfilled, slot)
		}
	}
	return result
}

func freeTeacher(busy BusyMap, slot TimeSlot, subject Subject) (TeacherRef, bool) {
	for _, teacher := range subject.EligibleTeachers {
		if !busy.Busy(slot.Day, slot.Period, teacher.ID) {
			return teacher, true
		}
	}
	return TeacherRef{}, false
}

func bind(classID string, slot TimeSlot, subject Subject, teacher TeacherRef) Assignment {
	return Assignment{
		ClassID:   classID,
		Day:       slot.Day,
		Period:    slot.Period,
		SubjectID: subject.ID,
		TeacherID: teacher.ID,
	}
}
