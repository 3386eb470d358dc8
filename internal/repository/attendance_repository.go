package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

const attendanceColumns = "id, student_id, date, status, late, early_dismissal, excused, notes, created_at, updated_at"

// AttendanceRepository persists attendance records keyed by (student_id, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Find returns records matching the query ordered by date then student.
func (r *AttendanceRepository) Find(ctx context.Context, q models.AttendanceQuery) ([]models.AttendanceRecord, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if len(q.StudentIDs) > 0 {
		conditions = append(conditions, "student_id IN (?)")
		args = append(args, q.StudentIDs)
	}
	if q.DateFrom != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, q.DateFrom)
	}
	if q.DateTo != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, q.DateTo)
	}

	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE %s ORDER BY date ASC, student_id ASC", attendanceColumns, strings.Join(conditions, " AND "))
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build attendance query: %w", err)
	}

	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return records, nil
}

// FindByStudent returns the full history of one student.
func (r *AttendanceRepository) FindByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	return r.Find(ctx, models.AttendanceQuery{StudentIDs: []string{studentID}})
}

// FindByDate returns stored records for the given students on one date.
func (r *AttendanceRepository) FindByDate(ctx context.Context, date string, studentIDs []string) ([]models.AttendanceRecord, error) {
	if len(studentIDs) == 0 {
		return []models.AttendanceRecord{}, nil
	}
	return findByDate(ctx, r.db, date, studentIDs)
}

// SaveBatch writes records for a single date in one transaction. Without override any
// existing (student_id, date) pair aborts the batch with a DuplicateAttendanceError.
func (r *AttendanceRepository) SaveBatch(ctx context.Context, date string, records []models.AttendanceRecord, override bool) (models.SaveOutcome, error) {
	outcome := models.SaveOutcome{UpdatedIDs: map[string]bool{}}
	if len(records) == 0 {
		return outcome, nil
	}

	studentIDs := make([]string, len(records))
	for i := range records {
		studentIDs[i] = records[i].StudentID
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("begin attendance batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := findByDate(ctx, tx, date, studentIDs)
	if err != nil {
		return outcome, err
	}
	if len(existing) > 0 && !override {
		return outcome, &models.DuplicateAttendanceError{Existing: existing}
	}
	stored := make(map[string]models.AttendanceRecord, len(existing))
	for _, rec := range existing {
		stored[rec.StudentID] = rec
	}

	now := time.Now().UTC()
	insert := tx.Rebind(`INSERT INTO attendance_records (` + attendanceColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if override {
		insert += ` ON CONFLICT (student_id, date) DO UPDATE SET status = excluded.status, late = excluded.late,
early_dismissal = excluded.early_dismissal, excused = excluded.excused, notes = excluded.notes, updated_at = excluded.updated_at
RETURNING id`
	}
	update := tx.Rebind(`UPDATE attendance_records SET status = ?, late = ?, early_dismissal = ?, excused = ?, notes = ?, updated_at = ?
WHERE student_id = ? AND date = ?`)

	for i := range records {
		rec := &records[i]
		rec.Date = date
		rec.UpdatedAt = now

		if prev, ok := stored[rec.StudentID]; ok {
			rec.ID = prev.ID
			rec.CreatedAt = prev.CreatedAt
			if _, err := tx.ExecContext(ctx, update, rec.Status, rec.Late, rec.EarlyDismissal, rec.Excused, rec.Notes, rec.UpdatedAt, rec.StudentID, date); err != nil {
				return outcome, fmt.Errorf("update attendance %s: %w", rec.StudentID, err)
			}
			outcome.Updated++
			outcome.UpdatedIDs[rec.StudentID] = true
			continue
		}

		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
		if override {
			// The pre-check missed a row written since; the upsert keeps that row's id.
			merged, err := upsertAttendance(ctx, tx, insert, rec)
			if err != nil {
				return outcome, err
			}
			if merged {
				outcome.Updated++
				outcome.UpdatedIDs[rec.StudentID] = true
			} else {
				outcome.Created++
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, insert, rec.ID, rec.StudentID, date, rec.Status, rec.Late, rec.EarlyDismissal, rec.Excused, rec.Notes, rec.CreatedAt, rec.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				// Lost a race with a concurrent submission for the same key.
				_ = tx.Rollback()
				return outcome, r.duplicateAfterRace(ctx, date, studentIDs)
			}
			return outcome, fmt.Errorf("insert attendance %s: %w", rec.StudentID, err)
		}
		outcome.Created++
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return outcome, r.duplicateAfterRace(ctx, date, studentIDs)
		}
		return outcome, fmt.Errorf("commit attendance batch: %w", err)
	}
	return outcome, nil
}

// upsertAttendance runs the override insert and reports whether it landed on an existing row,
// in which case rec takes that row's id and created_at.
func upsertAttendance(ctx context.Context, tx *sqlx.Tx, query string, rec *models.AttendanceRecord) (bool, error) {
	var id string
	if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.StudentID, rec.Date, rec.Status, rec.Late, rec.EarlyDismissal, rec.Excused, rec.Notes, rec.CreatedAt, rec.UpdatedAt).Scan(&id); err != nil {
		return false, fmt.Errorf("upsert attendance %s: %w", rec.StudentID, err)
	}
	if id == rec.ID {
		return false, nil
	}
	rec.ID = id
	existing, err := findByDate(ctx, tx, rec.Date, []string{rec.StudentID})
	if err != nil {
		return true, err
	}
	if len(existing) > 0 {
		rec.CreatedAt = existing[0].CreatedAt
	}
	return true, nil
}

func (r *AttendanceRepository) duplicateAfterRace(ctx context.Context, date string, studentIDs []string) error {
	existing, err := findByDate(ctx, r.db, date, studentIDs)
	if err != nil {
		return err
	}
	return &models.DuplicateAttendanceError{Existing: existing}
}

func findByDate(ctx context.Context, q sqlx.QueryerContext, date string, studentIDs []string) ([]models.AttendanceRecord, error) {
	query, args, err := sqlx.In("SELECT "+attendanceColumns+" FROM attendance_records WHERE date = ? AND student_id IN (?) ORDER BY student_id ASC", date, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build existing attendance query: %w", err)
	}
	records := []models.AttendanceRecord{}
	if err := sqlx.SelectContext(ctx, q, &records, rebind(q, query), args...); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find existing attendance: %w", err)
	}
	return records, nil
}

// rebind converts ? placeholders for the driver behind q.
func rebind(q sqlx.QueryerContext, query string) string {
	if b, ok := q.(interface{ Rebind(string) string }); ok {
		return b.Rebind(query)
	}
	return query
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
