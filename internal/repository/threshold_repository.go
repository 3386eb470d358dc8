package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// thresholdRowID pins the single persisted threshold set.
const thresholdRowID = 1

// ThresholdRepository stores the school-wide alert thresholds.
type ThresholdRepository struct {
	db *sqlx.DB
}

// NewThresholdRepository constructs a ThresholdRepository.
func NewThresholdRepository(db *sqlx.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// Get loads the saved thresholds. sql.ErrNoRows means none were saved yet.
func (r *ThresholdRepository) Get(ctx context.Context) (*models.ThresholdSet, error) {
	const query = `SELECT absences_30_day, absences_cumulative, lateness_30_day, lateness_cumulative, updated_at
        FROM threshold_settings WHERE id = ?`
	var set models.ThresholdSet
	if err := r.db.GetContext(ctx, &set, r.db.Rebind(query), thresholdRowID); err != nil {
		return nil, err
	}
	return &set, nil
}

// Save replaces the stored thresholds.
func (r *ThresholdRepository) Save(ctx context.Context, set *models.ThresholdSet) error {
	now := time.Now().UTC()
	set.UpdatedAt = &now
	const query = `INSERT INTO threshold_settings (id, absences_30_day, absences_cumulative, lateness_30_day, lateness_cumulative, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            absences_30_day = EXCLUDED.absences_30_day,
            absences_cumulative = EXCLUDED.absences_cumulative,
            lateness_30_day = EXCLUDED.lateness_30_day,
            lateness_cumulative = EXCLUDED.lateness_cumulative,
            updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), thresholdRowID,
		set.Absences30Day, set.AbsencesCumulative, set.Lateness30Day, set.LatenessCumulative, now)
	if err != nil {
		return fmt.Errorf("save thresholds: %w", err)
	}
	return nil
}
