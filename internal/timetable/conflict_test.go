package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflictsDoubleBooking(t *testing.T) {
	assignments := []Assignment{
		{ClassID: "10A", Day: Monday, Period: 1, SubjectID: "math", TeacherID: "t1"},
		{ClassID: "10B", Day: Monday, Period: 1, SubjectID: "math", TeacherID: "t1"},
		{ClassID: "10B", Day: Monday, Period: 2, SubjectID: "science", TeacherID: "t2"},
	}

	conflicts := DetectConflicts(assignments, TeacherNames{"t1": "Ms. Perera"})

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, ConflictTeacherDoubleBooking, c.Type)
	assert.Equal(t, Monday, c.Day)
	assert.Equal(t, 1, c.Period)
	assert.Equal(t, []string{"10A", "10B"}, c.ClassIDs)
	assert.Equal(t, SeverityHigh, c.Severity)
	assert.Equal(t, "Ms. Perera", c.TeacherName)
	assert.Contains(t, c.Description, "Ms. Perera")
}

func TestDetectConflictsOnePerGroup(t *testing.T) {
	assignments := []Assignment{
		{ClassID: "10C", Day: Tuesday, Period: 3, TeacherID: "t1"},
		{ClassID: "10A", Day: Tuesday, Period: 3, TeacherID: "t1"},
		{ClassID: "10B", Day: Tuesday, Period: 3, TeacherID: "t1"},
	}

	conflicts := DetectConflicts(assignments, nil)

	require.Len(t, conflicts, 1)
	assert.Equal(t, []string{"10A", "10B", "10C"}, conflicts[0].ClassIDs)
	assert.Equal(t, "t1", conflicts[0].TeacherName)
}

func TestDetectConflictsIgnoresDifferentSlots(t *testing.T) {
	assignments := []Assignment{
		{ClassID: "10A", Day: Monday, Period: 1, TeacherID: "t1"},
		{ClassID: "10B", Day: Monday, Period: 2, TeacherID: "t1"},
		{ClassID: "10C", Day: Tuesday, Period: 1, TeacherID: "t1"},
	}

	assert.Empty(t, DetectConflicts(assignments, nil))
}

func TestDetectConflictsDuplicateClassCell(t *testing.T) {
	assignments := []Assignment{
		{ClassID: "10A", Day: Friday, Period: 4, SubjectID: "math", TeacherID: "t1"},
		{ClassID: "10A", Day: Friday, Period: 4, SubjectID: "english", TeacherID: "t3"},
	}

	conflicts := DetectConflicts(assignments, nil)

	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictOther, conflicts[0].Type)
	assert.Equal(t, SeverityMedium, conflicts[0].Severity)
	assert.Equal(t, []string{"10A"}, conflicts[0].ClassIDs)
}

func TestDetectConflictsIsIdempotentAndPure(t *testing.T) {
	assignments := []Assignment{
		{ClassID: "10B", Day: Wednesday, Period: 2, TeacherID: "t2"},
		{ClassID: "10A", Day: Wednesday, Period: 2, TeacherID: "t2"},
		{ClassID: "10A", Day: Monday, Period: 1, TeacherID: "t1"},
		{ClassID: "10C", Day: Monday, Period: 1, TeacherID: "t1"},
	}
	snapshot := append([]Assignment(nil), assignments...)

	first := DetectConflicts(assignments, nil)
	second := DetectConflicts(assignments, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, assignments)
	require.Len(t, first, 2)
	assert.Equal(t, Monday, first[0].Day)
	assert.Equal(t, Wednesday, first[1].Day)
}

func TestDetectConflictsAcrossGeneratedClasses(t *testing.T) {
	grid := flatGrid([]Day{Monday}, 2)
	shared := []Subject{{ID: "math", PriorityWeight: 1, EligibleTeachers: []TeacherRef{teacher("t1")}}}
	quotas := map[string]int{"math": 2}

	// independent runs each own their busy map, so the shared teacher collides
	a := NewEngine(nil).Assign("10A", grid, shared, quotas)
	b := NewEngine(nil).Assign("10B", grid, shared, quotas)
	all := append(append([]Assignment{}, a.Assignments...), b.Assignments...)

	assert.Len(t, DetectConflicts(all, nil), 2)

	// a shared busy map removes the collisions at the cost of unfilled slots
	busy := NewBusyMap()
	a = NewEngine(nil).AssignWithBusy("10A", grid, shared, quotas, busy)
	b = NewEngine(nil).AssignWithBusy("10B", grid, shared, quotas, busy)
	all = append(append([]Assignment{}, a.Assignments...), b.Assignments...)

	assert.Empty(t, DetectConflicts(all, nil))
	assert.Len(t, b.Unfilled, 2)
}
