package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether the format can be rendered.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is a persisted request to render a report into a file.
type ExportJob struct {
	ID         string       `db:"id" json:"id"`
	Format     ExportFormat `db:"format" json:"format"`
	Params     ExportParams `db:"filter" json:"params"`
	Status     ExportStatus `db:"status" json:"status"`
	Progress   int          `db:"progress" json:"progress"`
	FilePath   *string      `db:"file_path" json:"-"`
	ResultURL  *string      `db:"result_url" json:"resultUrl,omitempty"`
	Error      *string      `db:"error" json:"error,omitempty"`
	CreatedBy  *string      `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updatedAt"`
	FinishedAt *time.Time   `db:"finished_at" json:"finishedAt,omitempty"`
}

// ExportParams is the report request an export renders, persisted as JSON text.
type ExportParams struct {
	Filter ReportFilter `json:"filter"`
	Sort   ReportSort   `json:"sort"`
	Limit  int          `json:"limit,omitempty"`
}

// Value marshals params to JSON text for persistence.
func (p ExportParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export params: %w", err)
	}
	return string(data), nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ExportParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = ExportParams{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportParams", value)
	}
	if len(data) == 0 {
		*p = ExportParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export params: %w", err)
	}
	return nil
}
