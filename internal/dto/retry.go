package dto

import (
	"time"

	"customs-backend/internal/models"
)

// ==================== Retry DTOs ====================

// RetryRequest is the body of POST /api/failures/:id/retry
type RetryRequest struct {
	// Force skips the next_retry_at gate for operator-driven retries
	Force bool `json:"force,omitempty"`
}

// RetryResponse describes the outcome of one retry attempt
type RetryResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	RetryCount  int             `json:"retry_count"`
	RetryStatus string          `json:"retry_status"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	Package     *models.Package `json:"package,omitempty"` // materialized by a successful screening retry
}

// BatchRetryRequest selects failures either by explicit id list or by upload
type BatchRetryRequest struct {
	FailureIDs []string `json:"failure_ids,omitempty"`
	UploadID   string   `json:"upload_id,omitempty"`
	Force      bool     `json:"force,omitempty"`
}

// BatchRetryItemResult is the per-record outcome inside a batch
type BatchRetryItemResult struct {
	FailureID  string `json:"failure_id"`
	ExternalID string `json:"external_id,omitempty"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	PackageID  string `json:"package_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// BatchRetrySummary aggregates a batch run
type BatchRetrySummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchRetryResponse is the body returned by POST /api/failures/batch-retry
type BatchRetryResponse struct {
	Summary BatchRetrySummary      `json:"summary"`
	Results []BatchRetryItemResult `json:"results"`
}

// ResolveRequest is the body of POST /api/failures/:id/resolve
type ResolveRequest struct {
	Notes string `json:"notes,omitempty"`
}
