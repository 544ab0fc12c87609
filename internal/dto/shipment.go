package dto

// ==================== Shipment DTOs ====================

// CreateShipmentRequest is the body of POST /api/shipments
type CreateShipmentRequest struct {
	MasterBillNumber string   `json:"master_bill_number" binding:"required"`
	CarrierCode      string   `json:"carrier_code,omitempty"`
	Environment      string   `json:"environment" binding:"required,oneof=sandbox production"`
	PackageIDs       []string `json:"package_ids" binding:"required,min=1"`
}

// UploadResponse summarizes a processed manifest upload
type UploadResponse struct {
	UploadID      string `json:"upload_id"`
	RowCount      int    `json:"row_count"`
	ScreenedCount int    `json:"screened_count"`
	FailedCount   int    `json:"failed_count"`
	Status        string `json:"status"`
}
