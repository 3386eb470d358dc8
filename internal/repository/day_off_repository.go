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

const dayOffColumns = "id, date, reason, class_id, created_at"

// DayOffRepository persists scheduled days without attendance.
type DayOffRepository struct {
	db *sqlx.DB
}

// NewDayOffRepository constructs a DayOffRepository.
func NewDayOffRepository(db *sqlx.DB) *DayOffRepository {
	return &DayOffRepository{db: db}
}

// List returns days off within the filter bounds ordered by date. A class filter also
// includes school-wide entries.
func (r *DayOffRepository) List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.From != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, "(class_id IS NULL OR class_id = ?)")
		args = append(args, filter.ClassID)
	}

	query := fmt.Sprintf("SELECT %s FROM days_off WHERE %s ORDER BY date ASC", dayOffColumns, strings.Join(conditions, " AND "))
	days := []models.DayOff{}
	if err := r.db.SelectContext(ctx, &days, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list days off: %w", err)
	}
	return days, nil
}

// FindByID fetches one day off. A missing row yields sql.ErrNoRows.
func (r *DayOffRepository) FindByID(ctx context.Context, id string) (*models.DayOff, error) {
	var day models.DayOff
	if err := r.db.GetContext(ctx, &day, r.db.Rebind("SELECT "+dayOffColumns+" FROM days_off WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &day, nil
}

// Create inserts a day off.
func (r *DayOffRepository) Create(ctx context.Context, day *models.DayOff) error {
	if day.ID == "" {
		day.ID = uuid.NewString()
	}
	day.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO days_off (id, date, reason, class_id, created_at) VALUES (:id, :date, :reason, :class_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, day); err != nil {
		return fmt.Errorf("create day off: %w", err)
	}
	return nil
}

// Delete removes a day off and reports whether it existed.
func (r *DayOffRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM days_off WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete day off: %w", err)
	}
	return affected(res)
}

// IsDayOff reports whether date is off school-wide or for the given class.
func (r *DayOffRepository) IsDayOff(ctx context.Context, date, classID string) (bool, error) {
	query := "SELECT COUNT(*) FROM days_off WHERE date = ? AND class_id IS NULL"
	args := []interface{}{date}
	if classID != "" {
		query = "SELECT COUNT(*) FROM days_off WHERE date = ? AND (class_id IS NULL OR class_id = ?)"
		args = append(args, classID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("check day off: %w", err)
	}
	return count > 0, nil
}
