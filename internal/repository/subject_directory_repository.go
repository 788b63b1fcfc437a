package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SubjectDirectoryRepository lists subjects with their eligible teacher pools.
type SubjectDirectoryRepository struct {
	db *sqlx.DB
}

// NewSubjectDirectoryRepository constructs repository.
func NewSubjectDirectoryRepository(db *sqlx.DB) *SubjectDirectoryRepository {
	return &SubjectDirectoryRepository{db: db}
}

// ListForGrade returns one row per (subject, eligible active teacher) for the
// grade. Subjects without eligible teachers still appear once with a NULL
// teacher so the caller can report them. Rows of a subject are in pool order.
func (r *SubjectDirectoryRepository) ListForGrade(ctx context.Context, grade string) ([]models.SubjectTeacherRow, error) {
	const query = `SELECT s.id AS subject_id, s.code AS subject_code, s.name AS subject_name, s.priority_weight,
t.id AS teacher_id, t.full_name AS teacher_name
FROM subjects s
LEFT JOIN subject_teachers st ON st.subject_id = s.id AND st.grade = $1
LEFT JOIN teachers t ON t.id = st.teacher_id AND t.active = TRUE
ORDER BY s.id ASC, st.position ASC, t.id ASC`
	var rows []models.SubjectTeacherRow
	if err := r.db.SelectContext(ctx, &rows, query, grade); err != nil {
		return nil, fmt.Errorf("list subject directory for grade %s: %w", grade, err)
	}
	return rows, nil
}
