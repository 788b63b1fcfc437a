package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableRunRepository records each persisted generation with a per-class version.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for the class.
func (r *TimetableRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ClassID == "" {
		return fmt.Errorf("class_id is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_runs WHERE class_id = $1`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.ClassID); err != nil {
		return fmt.Errorf("compute next timetable run version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_runs (id, class_id, version, strategy, seed, meta, created_at)
VALUES (:id, :class_id, :version, :strategy, :seed, :meta, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// ListByClass returns all runs of a class, newest first.
func (r *TimetableRunRepository) ListByClass(ctx context.Context, classID string) ([]models.TimetableRun, error) {
	const query = `SELECT id, class_id, version, strategy, seed, meta, created_at
FROM timetable_runs WHERE class_id = $1 ORDER BY version DESC`
	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, query, classID); err != nil {
		return nil, fmt.Errorf("list timetable runs: %w", err)
	}
	return runs, nil
}
