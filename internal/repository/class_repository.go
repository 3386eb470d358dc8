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

const classColumns = "c.id, c.name, c.grade, c.capacity, c.created_at, c.updated_at"

// ClassRepository persists classes and their student membership.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes with their member ids.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		conditions = append(conditions, "LOWER(c.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
	}
	if filter.Grade != "" {
		conditions = append(conditions, "c.grade = ?")
		args = append(args, filter.Grade)
	}
	base := "FROM classes c WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":       "c.name",
		"grade":      "c.grade",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, base, column, order, size, (page-1)*size)
	classes := []models.Class{}
	if err := r.db.SelectContext(ctx, &classes, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	if err := r.attachMembers(ctx, classes); err != nil {
		return nil, 0, err
	}
	return classes, total, nil
}

// FindByID fetches a class with its member ids. A missing row yields sql.ErrNoRows.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, r.db.Rebind("SELECT "+classColumns+" FROM classes c WHERE c.id = ?"), id); err != nil {
		return nil, err
	}
	members, err := r.StudentIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	class.StudentIDs = members
	return &class, nil
}

// StudentIDs returns the member ids of a class ordered by id.
func (r *ClassRepository) StudentIDs(ctx context.Context, classID string) ([]string, error) {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind("SELECT student_id FROM class_students WHERE class_id = ? ORDER BY student_id"), classID); err != nil {
		return nil, fmt.Errorf("list class members: %w", err)
	}
	return ids, nil
}

// Create inserts a class and its initial members.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create class: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO classes (id, name, grade, capacity, created_at, updated_at)
        VALUES (:id, :name, :grade, :capacity, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	if err := insertMembers(ctx, tx, class.ID, class.StudentIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create class: %w", err)
	}
	return nil
}

// Update modifies class fields. A non-nil StudentIDs slice replaces the membership.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) (bool, error) {
	class.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update class: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE classes SET name = :name, grade = :grade, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, class)
	if err != nil {
		return false, fmt.Errorf("update class: %w", err)
	}
	found, err := affected(res)
	if err != nil || !found {
		return found, err
	}
	if class.StudentIDs != nil {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM class_students WHERE class_id = ?"), class.ID); err != nil {
			return false, fmt.Errorf("clear class members: %w", err)
		}
		if err := insertMembers(ctx, tx, class.ID, class.StudentIDs); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update class: %w", err)
	}
	return true, nil
}

// Delete removes a class and its membership rows.
func (r *ClassRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete class: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM class_students WHERE class_id = ?"), id); err != nil {
		return false, fmt.Errorf("delete class members: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM classes WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete class: %w", err)
	}
	found, err := affected(res)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete class: %w", err)
	}
	return found, nil
}

// AddStudent links a student to a class. Adding an existing member is a no-op.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string) error {
	query := r.db.Rebind("INSERT INTO class_students (class_id, student_id) VALUES (?, ?) ON CONFLICT (class_id, student_id) DO NOTHING")
	if _, err := r.db.ExecContext(ctx, query, classID, studentID); err != nil {
		return fmt.Errorf("add class member: %w", err)
	}
	return nil
}

// RemoveStudent unlinks a student and reports whether the membership existed.
func (r *ClassRepository) RemoveStudent(ctx context.Context, classID, studentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM class_students WHERE class_id = ? AND student_id = ?"), classID, studentID)
	if err != nil {
		return false, fmt.Errorf("remove class member: %w", err)
	}
	return affected(res)
}

func (r *ClassRepository) attachMembers(ctx context.Context, classes []models.Class) error {
	if len(classes) == 0 {
		return nil
	}
	ids := make([]string, len(classes))
	index := make(map[string]int, len(classes))
	for i := range classes {
		ids[i] = classes[i].ID
		index[classes[i].ID] = i
		classes[i].StudentIDs = []string{}
	}
	query, args, err := sqlx.In("SELECT class_id, student_id FROM class_students WHERE class_id IN (?) ORDER BY student_id", ids)
	if err != nil {
		return fmt.Errorf("build class members query: %w", err)
	}
	var members []models.ClassMember
	if err := r.db.SelectContext(ctx, &members, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("list class members: %w", err)
	}
	for _, m := range members {
		if i, ok := index[m.ClassID]; ok {
			classes[i].StudentIDs = append(classes[i].StudentIDs, m.StudentID)
		}
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sqlx.Tx, classID string, studentIDs []string) error {
	query := tx.Rebind("INSERT INTO class_students (class_id, student_id) VALUES (?, ?)")
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, query, classID, studentID); err != nil {
			return fmt.Errorf("add class member %s: %w", studentID, err)
		}
	}
	return nil
}
