package models

import (
	"time"

	"gorm.io/datatypes"
)

// Upload lifecycle states.
const (
	UploadStatusReceived            = "received"
	UploadStatusStreaming           = "streaming"
	UploadStatusCompleted           = "completed"
	UploadStatusCompletedWithErrors = "completed_with_errors"
	UploadStatusFailed              = "failed"
)

// Upload is the audit record of one CSV roster import.
type Upload struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	FileName         string                      `gorm:"size:255;not null" json:"file_name"`
	UploadedBy       uint                        `gorm:"index;not null" json:"uploaded_by"`
	RecordsProcessed int                         `gorm:"not null;default:0" json:"records_processed"`
	StudentsAdded    int                         `gorm:"not null;default:0" json:"students_added"`
	HasErrors        bool                        `gorm:"not null;default:false" json:"has_errors"`
	Status           string                      `gorm:"size:32;index;not null" json:"status"`
	FailureReason    string                      `gorm:"type:text" json:"failure_reason,omitempty"`
	RowErrors        datatypes.JSONSlice[string] `json:"row_errors,omitempty"`
	ArchiveURL       string                      `gorm:"size:512" json:"archive_url,omitempty"`
	CompletedAt      *time.Time                  `json:"completed_at"`
	CreatedAt        time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// IsTerminal reports whether the upload reached a final state.
func (u Upload) IsTerminal() bool {
	switch u.Status {
	case UploadStatusCompleted, UploadStatusCompletedWithErrors, UploadStatusFailed:
		return true
	default:
		return false
	}
}
