package models

import (
	"time"
)

// ShipmentStatus is the customs status of a registered shipment manifest
type ShipmentStatus string

const (
	ShipmentStatusPending             ShipmentStatus = "pending"
	ShipmentStatusRegistered          ShipmentStatus = "registered"
	ShipmentStatusVerificationPending ShipmentStatus = "verification_pending"
	ShipmentStatusVerified            ShipmentStatus = "verified"
	ShipmentStatusRejected            ShipmentStatus = "rejected"
	ShipmentStatusFailed              ShipmentStatus = "failed"
)

// Customs verification code: 1 accepts the shipment (with a document), any
// other code rejects it with a reason.
const VerificationCodeAccepted = 1

// Shipment groups accepted packages under a master bill for customs
// manifest registration.
type Shipment struct {
	ID               string  `json:"id" gorm:"primaryKey;size:36"`
	UserID           string  `json:"user_id" gorm:"size:36;not null;index"`
	MasterBillNumber string  `json:"master_bill_number" gorm:"size:100;not null"`
	CarrierCode      string  `json:"carrier_code" gorm:"size:20"`
	ProviderID       *string `json:"provider_id" gorm:"size:100;index"` // provider shipment id once registered
	Environment      string  `json:"environment" gorm:"size:20;not null"`

	Status ShipmentStatus `json:"status" gorm:"size:30;not null;default:pending;index"`

	// Customs verification outcome
	VerificationCode   *int    `json:"verification_code"`
	VerificationStatus *string `json:"verification_status" gorm:"size:50"`
	VerificationReason *string `json:"verification_reason" gorm:"type:text"`

	// Verification document, base64-encoded with its declared media type
	VerificationDocument *string `json:"verification_document" gorm:"type:text"`
	DocumentMediaType    *string `json:"document_media_type" gorm:"size:100"`

	RegisteredAt *time.Time `json:"registered_at"`
	VerifiedAt   *time.Time `json:"verified_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Packages []Package `json:"packages,omitempty" gorm:"foreignKey:ShipmentID"`
}

// TableName specifies the table name for Shipment
func (Shipment) TableName() string {
	return "shipments"
}

// Deletable reports whether the shipment may still be removed
func (s *Shipment) Deletable() bool {
	return s.Status == ShipmentStatusPending
}
