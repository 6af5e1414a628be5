package reports

import (
	"strings"
	"time"

	"github.com/fdg312/nutrition-planner/internal/validation"
	"github.com/google/uuid"
)

// Report represents a generated report metadata
type Report struct {
	ID        uuid.UUID
	Format    string // "pdf" or "csv"
	FromDate  string // YYYY-MM-DD
	ToDate    string // YYYY-MM-DD
	ObjectKey *string
	SizeBytes int64
	Status    string
	CreatedAt time.Time
}

// CreateReportRequest is the request to export the week containing Date
type CreateReportRequest struct {
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"` // YYYY-MM-DD, default today
	Format string `json:"format" validate:"required,oneof=pdf csv"`
}

func (r *CreateReportRequest) Validate() error {
	r.Date = strings.TrimSpace(r.Date)
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	return validation.Struct(r)
}

// ReportDTO is the response representation of a report
type ReportDTO struct {
	ID          uuid.UUID `json:"id"`
	Format      string    `json:"format"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	DownloadURL string    `json:"download_url"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReportsResponse is the list response
type ReportsResponse struct {
	Reports []ReportDTO `json:"reports"`
	Total   int         `json:"total"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Constants for validation
const (
	FormatPDF = "pdf"
	FormatCSV = "csv"

	StatusReady = "ready"
)

func contentTypeFor(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/pdf"
}
