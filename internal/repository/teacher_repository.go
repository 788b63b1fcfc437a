package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TeacherRepository reads the teacher directory.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// ListNames maps every teacher id to the teacher's full name.
func (r *TeacherRepository) ListNames(ctx context.Context) (map[string]string, error) {
	const query = `SELECT id, full_name FROM teachers`
	var rows []struct {
		ID       string `db:"id"`
		FullName string `db:"full_name"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teacher names: %w", err)
	}
	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.FullName
	}
	return names, nil
}
