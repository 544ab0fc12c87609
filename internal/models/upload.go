package models

import (
	"time"
)

// UploadStatus is the processing state of a manifest upload
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"   // parsed, not yet screened
	UploadStatusScreening UploadStatus = "screening" // screening in progress
	UploadStatusCompleted UploadStatus = "completed" // every row screened or failed over to a failure record
	UploadStatusFailed    UploadStatus = "failed"    // manifest could not be parsed
)

// Upload is one CSV package manifest submitted by a user
type Upload struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	UserID      string       `json:"user_id" gorm:"size:36;not null;index"`
	Filename    string       `json:"filename" gorm:"size:255;not null"`
	Environment string       `json:"environment" gorm:"size:20;not null"`
	Status      UploadStatus `json:"status" gorm:"size:20;not null;default:pending"`

	RowCount      int `json:"row_count" gorm:"default:0"`       // data rows parsed from the manifest
	ScreenedCount int `json:"screened_count" gorm:"default:0"`  // rows that produced a package
	FailedCount   int `json:"failed_count" gorm:"default:0"`    // rows that produced a failure record

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Upload
func (Upload) TableName() string {
	return "uploads"
}
