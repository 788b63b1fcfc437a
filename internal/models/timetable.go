package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableSlot is one persisted (class, day, period) cell.
type TimetableSlot struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Period    int       `db:"period" json:"period"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableSlotDetail joins display names onto a slot for reads.
type TimetableSlotDetail struct {
	TimetableSlot
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// TimetableRun records one persisted generation for auditing.
type TimetableRun struct {
	ID        string         `db:"id" json:"id"`
	ClassID   string         `db:"class_id" json:"class_id"`
	Version   int            `db:"version" json:"version"`
	Strategy  string         `db:"strategy" json:"strategy"`
	Seed      *int64         `db:"seed" json:"seed,omitempty"`
	Meta      types.JSONText `db:"meta" json:"meta"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
