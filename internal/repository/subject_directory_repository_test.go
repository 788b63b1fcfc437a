package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectDirectoryRepositoryListForGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectDirectoryRepository(db)

	rows := sqlmock.NewRows([]string{"subject_id", "subject_code", "subject_name", "priority_weight", "teacher_id", "teacher_name"}).
		AddRow("math", "MTK", "Mathematics", nil, "t-1", "Ana").
		AddRow("math", "MTK", "Mathematics", nil, "t-2", "Budi").
		AddRow("art", "ART", "Art", 1.5, nil, nil)
	mock.ExpectQuery("FROM subjects s\\s+LEFT JOIN subject_teachers st ON st.subject_id = s.id AND st.grade = \\$1").
		WithArgs("10").
		WillReturnRows(rows)

	list, err := repo.ListForGrade(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Nil(t, list[0].PriorityWeight)
	require.NotNil(t, list[1].TeacherID)
	assert.Equal(t, "t-2", *list[1].TeacherID)
	assert.Nil(t, list[2].TeacherID)
	require.NotNil(t, list[2].PriorityWeight)
	assert.Equal(t, 1.5, *list[2].PriorityWeight)
	assert.NoError(t, mock.ExpectationsWereMet())
}
