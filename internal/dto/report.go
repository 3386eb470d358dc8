package dto

import "github.com/noah-isme/sma-attendance-api/internal/models"

// ReportRequest is the POST /reports/attendance payload.
type ReportRequest struct {
	Filter     models.ReportFilter `json:"filter"`
	Pagination models.ReportPage   `json:"pagination"`
	Sort       models.ReportSort   `json:"sort"`
}

// ExportRequest queues a report export. Limit caps the rendered student rows.
type ExportRequest struct {
	Format string              `json:"format"`
	Filter models.ReportFilter `json:"filter"`
	Sort   models.ReportSort   `json:"sort"`
	Limit  int                 `json:"limit"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// QueryRequest carries a natural-language question about attendance.
type QueryRequest struct {
	Question string `json:"question" validate:"required,notblank,max=500"`
}

// QueryResponse pairs the interpreted filter with the report it produced.
type QueryResponse struct {
	Question string               `json:"question"`
	Filter   models.ReportFilter  `json:"filter"`
	Report   *models.ReportResult `json:"report"`
}
