package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is portable between SQLite and PostgreSQL. Dates are stored as YYYY-MM-DD text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id          TEXT PRIMARY KEY,
		first_name  TEXT NOT NULL,
		last_name   TEXT NOT NULL,
		grade       TEXT,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		grade       TEXT,
		capacity    INTEGER,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS class_students (
		class_id    TEXT NOT NULL,
		student_id  TEXT NOT NULL,
		PRIMARY KEY (class_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id               TEXT PRIMARY KEY,
		student_id       TEXT NOT NULL,
		date             TEXT NOT NULL,
		status           TEXT NOT NULL,
		late             BOOLEAN NOT NULL DEFAULT FALSE,
		early_dismissal  BOOLEAN NOT NULL DEFAULT FALSE,
		excused          BOOLEAN NOT NULL DEFAULT FALSE,
		notes            TEXT,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL,
		UNIQUE (student_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_date ON attendance_records(date)`,
	`CREATE TABLE IF NOT EXISTS days_off (
		id          TEXT PRIMARY KEY,
		date        TEXT NOT NULL,
		reason      TEXT NOT NULL,
		class_id    TEXT,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_days_off_date ON days_off(date)`,
	`CREATE TABLE IF NOT EXISTS threshold_settings (
		id                   INTEGER PRIMARY KEY,
		absences_30_day      INTEGER NOT NULL,
		absences_cumulative  INTEGER NOT NULL,
		lateness_30_day      INTEGER NOT NULL,
		lateness_cumulative  INTEGER NOT NULL,
		updated_at           TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS export_jobs (
		id           TEXT PRIMARY KEY,
		format       TEXT NOT NULL,
		filter       TEXT NOT NULL,
		status       TEXT NOT NULL,
		progress     INTEGER NOT NULL DEFAULT 0,
		file_path    TEXT,
		result_url   TEXT,
		error        TEXT,
		created_by   TEXT,
		created_at   TIMESTAMP NOT NULL,
		updated_at   TIMESTAMP NOT NULL,
		finished_at  TIMESTAMP
	)`,
}

// Migrate creates missing tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}
