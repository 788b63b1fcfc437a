package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema creates only the tables the timetable service reads and writes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grade TEXT NOT NULL,
		track TEXT,
		homeroom_teacher_id TEXT REFERENCES teachers(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		priority_weight DOUBLE PRECISION CHECK (priority_weight > 0 AND priority_weight < 'Infinity'),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subject_teachers (
		subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		teacher_id TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		grade TEXT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (subject_id, teacher_id, grade)
	)`,
	`CREATE TABLE IF NOT EXISTS timetable_slots (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
		period SMALLINT NOT NULL CHECK (period >= 1),
		subject_id TEXT NOT NULL REFERENCES subjects(id),
		teacher_id TEXT NOT NULL REFERENCES teachers(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (class_id, day_of_week, period)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_slots_teacher ON timetable_slots (day_of_week, period, teacher_id)`,
	`CREATE TABLE IF NOT EXISTS timetable_runs (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		version INT NOT NULL,
		strategy TEXT NOT NULL,
		seed BIGINT,
		meta JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (class_id, version)
	)`,
}

// Migrate applies the schema statements in order. Every statement is
// idempotent so it is safe to run on each start.
func Migrate(ctx context.Context, db sqlx.ExecerContext) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
