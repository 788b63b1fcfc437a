package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableSlotRepository persists the active timetable of every class.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository builds repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const insertTimetableSlotQuery = `
INSERT INTO timetable_slots (id, class_id, day_of_week, period, subject_id, teacher_id, created_at, updated_at)
VALUES (:id, :class_id, :day_of_week, :period, :subject_id, :teacher_id, :created_at, :updated_at)`

// ReplaceForClass deletes every slot of the class and inserts slots. Callers
// pass a transaction so readers never observe a partial timetable.
func (r *TimetableSlotRepository) ReplaceForClass(ctx context.Context, exec sqlx.ExtContext, classID string, slots []models.TimetableSlot) error {
	if classID == "" {
		return fmt.Errorf("class_id is required")
	}
	target := r.exec(exec)

	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_slots WHERE class_id = $1`, classID); err != nil {
		return fmt.Errorf("clear timetable slots for class %s: %w", classID, err)
	}

	now := time.Now().UTC()
	for i := range slots {
		slot := &slots[i]
		if slot.ClassID != classID {
			return fmt.Errorf("slot %d belongs to class %q, want %q", i, slot.ClassID, classID)
		}
		prepareSlot(slot, now)
		if _, err := sqlx.NamedExecContext(ctx, target, insertTimetableSlotQuery, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}
	return nil
}

// Upsert writes a single cell, replacing whatever the class had at that day and period.
func (r *TimetableSlotRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	if slot == nil {
		return fmt.Errorf("slot payload is nil")
	}
	prepareSlot(slot, time.Now().UTC())

	const query = insertTimetableSlotQuery + `
ON CONFLICT (class_id, day_of_week, period) DO UPDATE
SET subject_id = EXCLUDED.subject_id,
    teacher_id = EXCLUDED.teacher_id,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot); err != nil {
		return fmt.Errorf("upsert timetable slot: %w", err)
	}
	return nil
}

// DeleteSlot clears one cell. It returns sql.ErrNoRows when the cell was already empty.
func (r *TimetableSlotRepository) DeleteSlot(ctx context.Context, exec sqlx.ExtContext, classID string, day, period int) error {
	const query = `DELETE FROM timetable_slots WHERE class_id = $1 AND day_of_week = $2 AND period = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, classID, day, period)
	if err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByClass returns the class timetable with subject and teacher names, ordered by day then period.
func (r *TimetableSlotRepository) ListByClass(ctx context.Context, classID string) ([]models.TimetableSlotDetail, error) {
	const query = `SELECT ts.id, ts.class_id, ts.day_of_week, ts.period, ts.subject_id, ts.teacher_id, ts.created_at, ts.updated_at,
s.name AS subject_name, t.full_name AS teacher_name
FROM timetable_slots ts
JOIN subjects s ON s.id = ts.subject_id
JOIN teachers t ON t.id = ts.teacher_id
WHERE ts.class_id = $1
ORDER BY ts.day_of_week ASC, ts.period ASC`
	var slots []models.TimetableSlotDetail
	if err := r.db.SelectContext(ctx, &slots, query, classID); err != nil {
		return nil, fmt.Errorf("list timetable slots for class %s: %w", classID, err)
	}
	return slots, nil
}

// ListAll returns every persisted slot of the school.
func (r *TimetableSlotRepository) ListAll(ctx context.Context) ([]models.TimetableSlot, error) {
	const query = `SELECT id, class_id, day_of_week, period, subject_id, teacher_id, created_at, updated_at
FROM timetable_slots ORDER BY day_of_week ASC, period ASC, class_id ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

func prepareSlot(slot *models.TimetableSlot, now time.Time) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
}
