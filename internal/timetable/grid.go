package timetable

// BuildWeeklyGrid enumerates workingDays × periods in day-then-period order.
// A slot is a break when its start time falls inside any blocked interval that
// applies to its day. The order of the result is significant: the assignment
// engine walks it sequentially.
func BuildWeeklyGrid(workingDays []Day, periods []Period, blocked []BlockedInterval) []TimeSlot {
	grid := make([]TimeSlot, 0, len(workingDays)*len(periods))
	for _, day := range workingDays {
		for _, period := range periods {
			slot := TimeSlot{
				Day:    day,
				Period: period.Number,
				Start:  period.Start,
				End:    period.End,
			}
			for _, interval := range blocked {
				if interval.AppliesTo(day) && interval.Contains(period.Start) {
					slot.IsBreak = true
					slot.BreakLabel = interval.Label
					break
				}
			}
			grid = append(grid, slot)
		}
	}
	return grid
}

// OpenSlots returns the assignable (non-break) slots, preserving grid order.
func OpenSlots(grid []TimeSlot) []TimeSlot {
	open := make([]TimeSlot, 0, len(grid))
	for _, slot := range grid {
		if !slot.IsBreak {
			open = append(open, slot)
		}
	}
	return open
}

// Lookup finds the slot at (day, period).
func Lookup(grid []TimeSlot, day Day, period int) (TimeSlot, bool) {
	for _, slot := range grid {
		if slot.Day == day && slot.Period == period {
			return slot, true
		}
	}
	return TimeSlot{}, false
}
