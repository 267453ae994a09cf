package dto

import (
	"time"

	"github.com/noah-isme/eduguide-api/internal/models"
)

// ImportResult summarises one CSV roster import.
type ImportResult struct {
	Count     int      `json:"count"`
	Processed int      `json:"processed"`
	Errors    []string `json:"errors,omitempty"`
	UploadID  uint     `json:"uploadId"`
	Status    string   `json:"status"`
}

// ImportCompletedEvent is published once an import reaches a terminal state.
type ImportCompletedEvent struct {
	UploadID    uint      `json:"uploadId"`
	FileName    string    `json:"fileName"`
	UploadedBy  uint      `json:"uploadedBy"`
	Status      string    `json:"status"`
	Processed   int       `json:"processed"`
	Created     int       `json:"created"`
	HasErrors   bool      `json:"hasErrors"`
	CompletedAt time.Time `json:"completedAt"`
}

// UploadListRequest pages through the upload history.
type UploadListRequest struct {
	Page     int
	PageSize int
}

// UploadResponse exposes one upload audit entry.
type UploadResponse struct {
	ID               uint       `json:"id"`
	UploadedAt       time.Time  `json:"uploadedAt"`
	FileName         string     `json:"fileName"`
	UploadedBy       uint       `json:"uploadedBy"`
	RecordsProcessed int        `json:"recordsProcessed"`
	StudentsAdded    int        `json:"studentsAdded"`
	HasErrors        bool       `json:"hasErrors"`
	Status           string     `json:"status"`
	FailureReason    string     `json:"failureReason,omitempty"`
	ArchiveURL       string     `json:"archiveUrl,omitempty"`
	CompletedAt      *time.Time `json:"completedAt"`
}

// UploadListResponse wraps a paginated upload history.
type UploadListResponse struct {
	Items      []UploadResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// NewUploadResponse converts an upload audit record into a DTO.
func NewUploadResponse(upload models.Upload) UploadResponse {
	return UploadResponse{
		ID:               upload.ID,
		UploadedAt:       upload.CreatedAt,
		FileName:         upload.FileName,
		UploadedBy:       upload.UploadedBy,
		RecordsProcessed: upload.RecordsProcessed,
		StudentsAdded:    upload.StudentsAdded,
		HasErrors:        upload.HasErrors,
		Status:           upload.Status,
		FailureReason:    upload.FailureReason,
		ArchiveURL:       upload.ArchiveURL,
		CompletedAt:      upload.CompletedAt,
	}
}
