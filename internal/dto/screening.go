package dto

import (
	"github.com/shopspring/decimal"

	"customs-backend/internal/clients"
)

// ==================== Screening DTOs ====================

// ScreenPackageRequest is the API-facing body of POST /api/packages/screen
type ScreenPackageRequest struct {
	Environment        string          `json:"environment" binding:"required,oneof=sandbox production"`
	ExternalID         string          `json:"external_id" binding:"required"`
	Description        string          `json:"description" binding:"required"`
	OriginCountry      string          `json:"origin_country" binding:"required,len=2"`
	DestinationCountry string          `json:"destination_country" binding:"required,len=2"`
	Quantity           int             `json:"quantity" binding:"required,min=1"`
	WeightKg           decimal.Decimal `json:"weight_kg" binding:"required"`
	DeclaredValue      decimal.Decimal `json:"declared_value" binding:"required"`
	Currency           string          `json:"currency" binding:"required,len=3"`
	RecipientName      string          `json:"recipient_name" binding:"required"`
	RecipientAddress   string          `json:"recipient_address" binding:"required"`
	Barcode            string          `json:"barcode,omitempty"`
}

// ToClientRequest converts the API body into the replayable provider request
func (r *ScreenPackageRequest) ToClientRequest() *clients.ScreenPackageRequest {
	return &clients.ScreenPackageRequest{
		ExternalID:         r.ExternalID,
		Description:        r.Description,
		OriginCountry:      r.OriginCountry,
		DestinationCountry: r.DestinationCountry,
		Quantity:           r.Quantity,
		WeightKg:           r.WeightKg,
		DeclaredValue:      r.DeclaredValue,
		Currency:           r.Currency,
		RecipientName:      r.RecipientName,
		RecipientAddress:   r.RecipientAddress,
		Barcode:            r.Barcode,
	}
}

// ResubmitPackageRequest is the body of POST /api/packages/:id/resubmit
type ResubmitPackageRequest struct {
	CorrectionNotes string `json:"correction_notes" binding:"required"`

	// Optional corrected declarations; zero values leave the field unchanged
	Description      string           `json:"description,omitempty"`
	DeclaredValue    *decimal.Decimal `json:"declared_value,omitempty"`
	WeightKg         *decimal.Decimal `json:"weight_kg,omitempty"`
	Quantity         *int             `json:"quantity,omitempty"`
	RecipientName    string           `json:"recipient_name,omitempty"`
	RecipientAddress string           `json:"recipient_address,omitempty"`
}

// PayDutyRequest is the body of POST /api/packages/:id/duty
type PayDutyRequest struct {
	Barcode string `json:"barcode,omitempty"`
}

// SubmitAuditRequest is the body of POST /api/packages/:id/audit
type SubmitAuditRequest struct {
	Images []string `json:"images" binding:"required,min=2,dive,url"`
	Remark string   `json:"remark,omitempty" binding:"max=100"`
}
