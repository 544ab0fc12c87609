package models

import (
	"time"
)

// Audit log actions written by the domain services
const (
	AuditActionScreening        = "screening"
	AuditActionResubmission     = "resubmission"
	AuditActionAuditSubmission  = "audit_submission"
	AuditActionDutyPayment      = "duty_payment"
	AuditActionRetry            = "retry"
	AuditActionManualResolution = "manual_resolution"
	AuditActionRegistration     = "shipment_registration"
	AuditActionVerification     = "shipment_verification"
)

// AuditLogEntry is an append-only record of a state-changing action.
// Entries are never mutated or deleted by application logic.
type AuditLogEntry struct {
	ID         uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	Action     string  `json:"action" gorm:"size:50;not null;index"`
	EntityType string  `json:"entity_type" gorm:"size:30;not null;index"` // package | shipment | failure_record
	EntityID   string  `json:"entity_id" gorm:"size:36;not null;index"`
	ActorID    string  `json:"actor_id" gorm:"size:36;not null"`
	FromStatus *string `json:"from_status" gorm:"size:30"`
	ToStatus   *string `json:"to_status" gorm:"size:30"`
	Context    JSONMap `json:"context" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLogEntry
func (AuditLogEntry) TableName() string {
	return "audit_log_entries"
}
