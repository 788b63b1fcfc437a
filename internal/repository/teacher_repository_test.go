package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherRepositoryListNames(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name FROM teachers")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).
			AddRow("t-1", "Ana").
			AddRow("t-2", "Budi"))

	names, err := repo.ListNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t-1": "Ana", "t-2": "Budi"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListNamesError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name FROM teachers")).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListNames(context.Background())
	assert.ErrorContains(t, err, "list teacher names")
	assert.NoError(t, mock.ExpectationsWereMet())
}
