package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

const studentColumns = "s.id, s.first_name, s.last_name, s.grade, s.created_at, s.updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ClassID != "" {
		conditions = append(conditions, "s.id IN (SELECT cs.student_id FROM class_students cs WHERE cs.class_id = ?)")
		args = append(args, filter.ClassID)
	}
	if filter.Grade != "" {
		conditions = append(conditions, "s.grade = ?")
		args = append(args, filter.Grade)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(s.first_name) LIKE ? OR LOWER(s.last_name) LIKE ? OR LOWER(s.first_name || ' ' || s.last_name) LIKE ?)")
		term := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		args = append(args, term, term, term)
	}

	base := "FROM students s WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":       "s.last_name %[1]s, s.first_name %[1]s",
		"first_name": "s.first_name %[1]s",
		"last_name":  "s.last_name %[1]s",
		"grade":      "s.grade %[1]s, s.last_name ASC",
		"created_at": "s.created_at %[1]s",
	}
	orderExpr, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderExpr = allowedSorts["name"]
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", studentColumns, base, fmt.Sprintf(orderExpr, order), size, (page-1)*size)

	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID. A missing row yields sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	query := r.db.Rebind("SELECT " + studentColumns + " FROM students s WHERE s.id = ?")
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIDs returns the subset of ids that exist, in no particular order.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	students := []models.Student{}
	if len(ids) == 0 {
		return students, nil
	}
	query, args, err := sqlx.In("SELECT "+studentColumns+" FROM students s WHERE s.id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build students query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	return students, nil
}

// All returns every student; the report aggregator joins names in memory.
func (r *StudentRepository) All(ctx context.Context) ([]models.Student, error) {
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, "SELECT "+studentColumns+" FROM students s ORDER BY s.last_name, s.first_name"); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, first_name, last_name, grade, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :grade, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student and reports whether a row matched.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) (bool, error) {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, grade = :grade, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return false, fmt.Errorf("update student: %w", err)
	}
	return affected(res)
}

// Delete removes a student and their class memberships. Attendance history is kept.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM class_students WHERE student_id = ?"), id); err != nil {
		return false, fmt.Errorf("delete student memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM students WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	found, err := affected(res)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete student: %w", err)
	}
	return found, nil
}
