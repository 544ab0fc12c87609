package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PackageStatus is the customs status of a screenable shipment unit
type PackageStatus string

const (
	PackageStatusPending        PackageStatus = "pending"
	PackageStatusScreening      PackageStatus = "screening"
	PackageStatusAccepted       PackageStatus = "accepted"
	PackageStatusRejected       PackageStatus = "rejected"
	PackageStatusInconclusive   PackageStatus = "inconclusive"
	PackageStatusAuditRequired  PackageStatus = "audit_required"
	PackageStatusAuditSubmitted PackageStatus = "audit_submitted"
	PackageStatusDutyPending    PackageStatus = "duty_pending"
	PackageStatusDutyPaid       PackageStatus = "duty_paid"
	PackageStatusRegistered     PackageStatus = "registered"
)

// Provider screening result codes
const (
	ScreeningCodeAccepted      = 1
	ScreeningCodeRejected      = 2
	ScreeningCodeInconclusive  = 3
	ScreeningCodeAuditRequired = 4
)

// Provider audit result codes
const (
	AuditCodePassed  = 1
	AuditCodeFailed  = 2
	AuditCodePending = 3
)

// ScreeningCodeToStatus maps a provider screening code to the package status.
// Unknown codes fall back to pending so a new provider code surfaces as a
// stuck package instead of a silently wrong verdict.
func ScreeningCodeToStatus(code int) PackageStatus {
	switch code {
	case ScreeningCodeAccepted:
		return PackageStatusAccepted
	case ScreeningCodeRejected:
		return PackageStatusRejected
	case ScreeningCodeInconclusive:
		return PackageStatusInconclusive
	case ScreeningCodeAuditRequired:
		return PackageStatusAuditRequired
	default:
		return PackageStatusPending
	}
}

// AuditCodeToStatus maps a provider audit code to the package status
func AuditCodeToStatus(code int) PackageStatus {
	switch code {
	case AuditCodePassed:
		return PackageStatusAccepted
	case AuditCodeFailed:
		return PackageStatusRejected
	case AuditCodePending:
		return PackageStatusAuditSubmitted
	default:
		return PackageStatusAuditSubmitted
	}
}

// Package is one screenable shipment unit from a manifest
type Package struct {
	ID         string  `json:"id" gorm:"primaryKey;size:36"`
	ExternalID string  `json:"external_id" gorm:"size:100;not null;index"` // caller-supplied, not unique across uploads
	ProviderID *string `json:"provider_id" gorm:"size:100;index"`          // assigned by the provider once screened

	UserID      string  `json:"user_id" gorm:"size:36;not null;index"`
	Environment string  `json:"environment" gorm:"size:20;not null"` // provider environment the package was screened in
	UploadID    *string `json:"upload_id" gorm:"size:36;index"`
	ShipmentID  *string `json:"shipment_id" gorm:"size:36;index"`
	RowNumber   *int    `json:"row_number"`

	Status PackageStatus `json:"status" gorm:"size:30;not null;default:pending;index"`

	// Declared manifest contents
	Description        string          `json:"description" gorm:"type:text"`
	OriginCountry      string          `json:"origin_country" gorm:"size:2"`
	DestinationCountry string          `json:"destination_country" gorm:"size:2"`
	Quantity           int             `json:"quantity" gorm:"default:1"`
	WeightKg           decimal.Decimal `json:"weight_kg" gorm:"type:numeric(12,3)"`
	DeclaredValue      decimal.Decimal `json:"declared_value" gorm:"type:numeric(18,2)"`
	Currency           string          `json:"currency" gorm:"size:3"`
	RecipientName      string          `json:"recipient_name" gorm:"size:200"`
	RecipientAddress   string          `json:"recipient_address" gorm:"type:text"`
	Barcode            string          `json:"barcode" gorm:"size:100"`

	// Screening result
	ScreeningCode     *int       `json:"screening_code"`
	ScreeningStatus   *string    `json:"screening_status" gorm:"size:50"`
	ScreeningResponse JSONMap    `json:"screening_response" gorm:"type:jsonb"`
	LabelURL          *string    `json:"label_url" gorm:"type:text"` // QR label returned by the provider, if any
	ScreenedAt        *time.Time `json:"screened_at"`

	// Duty payment. Set once; payment is idempotent-guarded on DDPN.
	DDPN       *string          `json:"ddpn" gorm:"size:100"`
	TotalDuty  *decimal.Decimal `json:"total_duty" gorm:"type:numeric(18,2)"`
	DutyPaidAt *time.Time       `json:"duty_paid_at"`

	// Audit review
	AuditStatus      *string        `json:"audit_status" gorm:"size:30"`
	AuditImages      pq.StringArray `json:"audit_images" gorm:"type:text[]"`
	AuditRemark      *string        `json:"audit_remark" gorm:"size:100"`
	AuditSubmittedAt *time.Time     `json:"audit_submitted_at"`

	// Resubmission lineage
	OriginalPackageID *string    `json:"original_package_id" gorm:"size:36;index"` // first package in a correction chain
	ResubmissionCount int        `json:"resubmission_count" gorm:"default:0"`
	CorrectionNotes   *string    `json:"correction_notes" gorm:"type:text"`
	CorrectedAt       *time.Time `json:"corrected_at"`
	CorrectedBy       *string    `json:"corrected_by" gorm:"size:36"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Package
func (Package) TableName() string {
	return "packages"
}

// CanResubmit reports whether the package is in a correctable verdict state
func (p *Package) CanResubmit() bool {
	switch p.Status {
	case PackageStatusRejected, PackageStatusInconclusive, PackageStatusAuditRequired:
		return true
	}
	return false
}

// DutyPayable reports whether duty payment preconditions hold. The DDPN
// check is the idempotency guard: a package is never paid twice.
func (p *Package) DutyPayable() (bool, string) {
	if p.ProviderID == nil || *p.ProviderID == "" {
		return false, "package has not been screened by the provider"
	}
	if p.DDPN != nil && *p.DDPN != "" {
		return false, "duty already paid"
	}
	if p.Status != PackageStatusAccepted && p.Status != PackageStatusDutyPending {
		return false, "package status does not allow duty payment"
	}
	return true, ""
}
