package models

import "time"

// Subject represents an academic subject. PriorityWeight overrides the
// built-in weight table when set.
type Subject struct {
	ID             string    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Name           string    `db:"name" json:"name"`
	PriorityWeight *float64  `db:"priority_weight" json:"priority_weight,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectTeacherRow is one row of the subject directory join: a subject and,
// when the pool is not empty, one eligible teacher for a grade.
type SubjectTeacherRow struct {
	SubjectID      string   `db:"subject_id"`
	SubjectCode    string   `db:"subject_code"`
	SubjectName    string   `db:"subject_name"`
	PriorityWeight *float64 `db:"priority_weight"`
	TeacherID      *string  `db:"teacher_id"`
	TeacherName    *string  `db:"teacher_name"`
}
