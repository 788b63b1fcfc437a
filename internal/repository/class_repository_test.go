package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "grade", "track", "homeroom_teacher_id", "created_at", "updated_at"})
}

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("class-1").
		WillReturnRows(classRows().AddRow("class-1", "10A", "10", nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	class, err := repo.FindByID(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "10", class.Grade)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes ORDER BY grade ASC, name ASC")).
		WillReturnRows(classRows().
			AddRow("class-1", "10A", "10", nil, nil, time.Now(), time.Now()).
			AddRow("class-2", "10B", "10", "science", nil, time.Now(), time.Now()))

	classes, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 2)
	require.NotNil(t, classes[1].Track)
	assert.Equal(t, "science", *classes[1].Track)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(classRows().AddRow("class-2", "10B", "10", nil, nil, time.Now(), time.Now()))

	classes, err := repo.ListByIDs(context.Background(), []string{"class-2"})
	require.NoError(t, err)
	assert.Len(t, classes, 1)

	empty, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
