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

const exportJobColumns = "id, format, filter, status, progress, file_path, result_url, error, created_by, created_at, updated_at, finished_at"

// ExportJobRepository persists export job metadata.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a new export job with generated defaults.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	const query = `INSERT INTO export_jobs (id, format, filter, status, progress, file_path, result_url, error, created_by, created_at, updated_at, finished_at)
VALUES (:id, :format, :filter, :status, :progress, :file_path, :result_url, :error, :created_by, :created_at, :updated_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID returns a job row. A missing row yields sql.ErrNoRows.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, r.db.Rebind("SELECT "+exportJobColumns+" FROM export_jobs WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateExportJobParams defines the mutable fields.
type UpdateExportJobParams struct {
	Status     *models.ExportStatus
	Progress   *int
	FilePath   *string
	ResultURL  *string
	Error      *string
	FinishedAt *time.Time
}

// Update persists the provided changes for a job row.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)

	if params.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *params.Status)
	}
	if params.Progress != nil {
		set = append(set, "progress = ?")
		args = append(args, *params.Progress)
	}
	if params.FilePath != nil {
		set = append(set, "file_path = ?")
		args = append(args, *params.FilePath)
	}
	if params.ResultURL != nil {
		set = append(set, "result_url = ?")
		args = append(args, *params.ResultURL)
	}
	if params.Error != nil {
		set = append(set, "error = ?")
		args = append(args, *params.Error)
	}
	if params.FinishedAt != nil {
		set = append(set, "finished_at = ?")
		args = append(args, *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = ?", strings.Join(set, ", "))
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs for cold start recovery.
func (r *ExportJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE status = ? ORDER BY created_at ASC LIMIT %d", exportJobColumns, limit)
	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(query), models.ExportStatusQueued); err != nil {
		return nil, fmt.Errorf("list queued export jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs finished before cutoff that still own a file.
func (r *ExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE status = ? AND finished_at IS NOT NULL AND finished_at < ? AND file_path IS NOT NULL AND file_path <> '' ORDER BY finished_at ASC LIMIT %d", exportJobColumns, limit)
	jobs := []models.ExportJob{}
	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(query), models.ExportStatusFinished, cutoff); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobs, nil
}
