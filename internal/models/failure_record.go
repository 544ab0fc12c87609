package models

import (
	"time"
)

// RetryStatus is the retry state of a failed provider call
type RetryStatus string

const (
	RetryStatusPending        RetryStatus = "pending"         // waiting for next attempt
	RetryStatusRetrying       RetryStatus = "retrying"        // attempt in flight
	RetryStatusSuccess        RetryStatus = "success"         // a retry recovered the call
	RetryStatusExhausted      RetryStatus = "exhausted"       // retry budget spent
	RetryStatusManualRequired RetryStatus = "manual_required" // automatic retry disallowed
)

// Logical provider operation names recorded on failure records
const (
	EndpointScreenPackage    = "screen_package"
	EndpointPayDuty          = "pay_duty"
	EndpointSubmitAudit      = "submit_audit"
	EndpointRegisterShipment = "register_shipment"
	EndpointVerifyShipment   = "verify_shipment"
)

// Default retry budgets. Duty and audit failures are never auto-retried, so
// their budget is a single manual attempt.
const (
	DefaultMaxRetries       = 3
	ManualOnlyMaxRetries    = 1
	ExhaustedResolutionNote = "Maximum retry attempts reached"
)

// retryBackoff is the fixed delay table, indexed by completed attempts.
// Attempts beyond the table clamp to the last entry.
var retryBackoff = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
}

// FailureRecord is one row per failed outbound provider call. It carries
// enough context to replay the exact request later.
type FailureRecord struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	Endpoint    string `json:"endpoint" gorm:"size:50;not null;index"`
	Method      string `json:"method" gorm:"size:10;not null"`
	Environment string `json:"environment" gorm:"size:20;not null;index"` // sandbox | production

	// Owning entities, when known
	UserID     string  `json:"user_id" gorm:"size:36;index"` // owner of the original request; a materialized package belongs to them
	UploadID   *string `json:"upload_id" gorm:"size:36;index"`
	PackageID  *string `json:"package_id" gorm:"size:36;index"` // set on creation for duty/audit, or linked by a successful screening retry
	ShipmentID *string `json:"shipment_id" gorm:"size:36;index"`
	ExternalID *string `json:"external_id" gorm:"size:100"`
	RowNumber  *int    `json:"row_number"`

	// Replay payload: the exact request body that failed
	RequestBody JSONMap `json:"request_body" gorm:"type:jsonb"`

	// Error info from the failed call
	StatusCode   *int    `json:"status_code"`
	ErrorCode    *string `json:"error_code" gorm:"size:100"`
	ErrorMessage *string `json:"error_message" gorm:"type:text"`
	ErrorDetails JSONMap `json:"error_details" gorm:"type:jsonb"`

	// Retry state machine
	RetryStatus RetryStatus `json:"retry_status" gorm:"size:20;not null;default:pending;index"`
	RetryCount  int         `json:"retry_count" gorm:"default:0"`
	MaxRetries  int         `json:"max_retries" gorm:"default:3"`
	LastRetryAt *time.Time  `json:"last_retry_at"`
	NextRetryAt *time.Time  `json:"next_retry_at"`

	// Resolution
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      *string    `json:"resolved_by" gorm:"size:36"`
	ResolutionNotes *string    `json:"resolution_notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for FailureRecord
func (FailureRecord) TableName() string {
	return "failure_records"
}

// NextRetryDelay returns the backoff delay for the current attempt index,
// clamped to the last table entry.
func (fr *FailureRecord) NextRetryDelay() time.Duration {
	idx := fr.RetryCount
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return retryBackoff[idx]
}

// ScheduleNextRetry stamps next_retry_at from the backoff table
func (fr *FailureRecord) ScheduleNextRetry(now time.Time) {
	next := now.Add(fr.NextRetryDelay())
	fr.NextRetryAt = &next
}

// IsTerminal reports whether the record may no longer be auto-retried
func (fr *FailureRecord) IsTerminal() bool {
	switch fr.RetryStatus {
	case RetryStatusSuccess, RetryStatusExhausted, RetryStatusManualRequired:
		return true
	}
	return false
}

// HasRetryBudget reports whether another attempt is allowed
func (fr *FailureRecord) HasRetryBudget() bool {
	return fr.RetryCount < fr.MaxRetries
}

// RecordFailedAttempt applies the bookkeeping for one failed retry: bumps the
// counter, stores the message, and either schedules the next attempt or
// exhausts the record when the budget is spent.
func (fr *FailureRecord) RecordFailedAttempt(errorMsg string, now time.Time) {
	fr.RetryCount++
	fr.ErrorMessage = &errorMsg

	if fr.RetryCount >= fr.MaxRetries {
		fr.RetryStatus = RetryStatusExhausted
		fr.ResolvedAt = &now
		notes := ExhaustedResolutionNote
		fr.ResolutionNotes = &notes
		fr.NextRetryAt = nil
		return
	}

	fr.RetryStatus = RetryStatusPending
	fr.ScheduleNextRetry(now)
}

// MarkExhausted terminates the record without a provider call
func (fr *FailureRecord) MarkExhausted(now time.Time) {
	fr.RetryStatus = RetryStatusExhausted
	fr.ResolvedAt = &now
	notes := ExhaustedResolutionNote
	fr.ResolutionNotes = &notes
	fr.NextRetryAt = nil
}

// MarkSuccess records a successful retry and links the materialized package
func (fr *FailureRecord) MarkSuccess(packageID, resolvedBy, notes string, now time.Time) {
	fr.RetryCount++
	fr.RetryStatus = RetryStatusSuccess
	fr.ResolvedAt = &now
	fr.ResolvedBy = &resolvedBy
	fr.ResolutionNotes = &notes
	fr.NextRetryAt = nil
	if packageID != "" {
		fr.PackageID = &packageID
	}
}
