package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableSlotRepositoryReplaceForClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "class-1", 1, 2, "math", "t-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "class-1", 1, 3, "sci", "t-2", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	slots := []models.TimetableSlot{
		{ClassID: "class-1", DayOfWeek: 1, Period: 2, SubjectID: "math", TeacherID: "t-1"},
		{ClassID: "class-1", DayOfWeek: 1, Period: 3, SubjectID: "sci", TeacherID: "t-2"},
	}
	require.NoError(t, repo.ReplaceForClass(context.Background(), tx, "class-1", slots))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, slots[0].ID)
	assert.False(t, slots[1].UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryReplaceForClassRejectsForeignSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReplaceForClass(context.Background(), nil, "class-1", []models.TimetableSlot{{ClassID: "class-2"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec("INSERT INTO timetable_slots .* ON CONFLICT \\(class_id, day_of_week, period\\) DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "class-1", 3, 4, "eng", "t-3", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot := &models.TimetableSlot{ClassID: "class-1", DayOfWeek: 3, Period: 4, SubjectID: "eng", TeacherID: "t-3"}
	require.NoError(t, repo.Upsert(context.Background(), nil, slot))
	assert.NotEmpty(t, slot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryDeleteSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	query := regexp.QuoteMeta("DELETE FROM timetable_slots WHERE class_id = $1 AND day_of_week = $2 AND period = $3")
	mock.ExpectExec(query).WithArgs("class-1", 2, 6).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("class-1", 2, 7).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteSlot(context.Background(), nil, "class-1", 2, 6))
	err := repo.DeleteSlot(context.Background(), nil, "class-1", 2, 7)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "day_of_week", "period", "subject_id", "teacher_id", "created_at", "updated_at", "subject_name", "teacher_name"}).
		AddRow("slot-1", "class-1", 1, 2, "math", "t-1", now, now, "Mathematics", "Ana")
	mock.ExpectQuery("SELECT ts.id, .* FROM timetable_slots ts .* WHERE ts.class_id = \\$1").
		WithArgs("class-1").
		WillReturnRows(rows)

	slots, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "Mathematics", slots[0].SubjectName)
	assert.Equal(t, 2, slots[0].Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "day_of_week", "period", "subject_id", "teacher_id", "created_at", "updated_at"}).
		AddRow("slot-1", "class-1", 1, 2, "math", "t-1", now, now).
		AddRow("slot-2", "class-2", 1, 2, "sci", "t-1", now, now)
	mock.ExpectQuery("SELECT id, class_id, day_of_week, period, subject_id, teacher_id, created_at, updated_at\\s+FROM timetable_slots ORDER BY").
		WillReturnRows(rows)

	slots, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
