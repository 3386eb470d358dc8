package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

func TestExportJobRepositoryUpdateBuildsSetClause(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	status := models.ExportStatusFinished
	progress := 100
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = ?, progress = ?, updated_at = ? WHERE id = ?")).
		WithArgs(status, progress, sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{Status: &status, Progress: &progress}))
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositorySQLiteLifecycle(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewExportJobRepository(db)
	ctx := context.Background()

	job := &models.ExportJob{
		Format: models.ExportFormatCSV,
		Params: models.ExportParams{Filter: models.ReportFilter{StudentIDs: []string{"s1"}}},
	}
	require.NoError(t, repo.Create(ctx, job))
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	queued, err := repo.ListQueued(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, []string{"s1"}, queued[0].Params.Filter.StudentIDs)

	status := models.ExportStatusFinished
	finished := time.Now().UTC().Add(-2 * time.Hour)
	path := "attendance_all.csv"
	require.NoError(t, repo.Update(ctx, job.ID, UpdateExportJobParams{Status: &status, FilePath: &path, FinishedAt: &finished}))

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)

	old, err := repo.ListFinishedBefore(ctx, time.Now().UTC().Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, old, 1)

	cleared := ""
	require.NoError(t, repo.Update(ctx, job.ID, UpdateExportJobParams{FilePath: &cleared}))
	old, err = repo.ListFinishedBefore(ctx, time.Now().UTC().Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, old)
}
