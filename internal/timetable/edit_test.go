package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEditReplacesCell(t *testing.T) {
	grid := BuildWeeklyGrid(weekdays, schoolPeriods(), schoolBlocks())
	current := []Assignment{
		{ClassID: "10A", Day: Monday, Period: 2, SubjectID: "math", TeacherID: "t1"},
		{ClassID: "10B", Day: Monday, Period: 2, SubjectID: "math", TeacherID: "t2"},
	}

	updated, err := ApplyEdit(grid, current, Edit{ClassID: "10A", Day: Monday, Period: 2, SubjectID: "english", TeacherID: "t2"})
	require.NoError(t, err)

	require.Len(t, updated, 2)
	assert.Equal(t, "math", current[0].SubjectID, "input is not mutated")
	conflicts := DetectConflicts(updated, nil)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "t2", conflicts[0].TeacherID)
}

func TestApplyEditClear(t *testing.T) {
	grid := BuildWeeklyGrid(weekdays, schoolPeriods(), schoolBlocks())
	current := []Assignment{{ClassID: "10A", Day: Monday, Period: 2, SubjectID: "math", TeacherID: "t1"}}

	updated, err := ApplyEdit(grid, current, Edit{ClassID: "10A", Day: Monday, Period: 2, Clear: true})
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestApplyEditRejectsInvalidTargets(t *testing.T) {
	grid := BuildWeeklyGrid(weekdays, schoolPeriods(), schoolBlocks())

	_, err := ApplyEdit(grid, nil, Edit{ClassID: "10A", Day: Monday, Period: 1, SubjectID: "math", TeacherID: "t1"})
	assert.ErrorIs(t, err, ErrBreakSlot)

	_, err = ApplyEdit(grid, nil, Edit{ClassID: "10A", Day: Saturday, Period: 2, SubjectID: "math", TeacherID: "t1"})
	assert.ErrorIs(t, err, ErrUnknownSlot)

	_, err = ApplyEdit(grid, nil, Edit{ClassID: "10A", Day: Monday, Period: 2, SubjectID: "math"})
	assert.ErrorIs(t, err, ErrInvalidEdit)

	_, err = ApplyEdit(grid, nil, Edit{Day: Monday, Period: 2, SubjectID: "math", TeacherID: "t1"})
	assert.ErrorIs(t, err, ErrInvalidEdit)
}
