package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/dto"
	"customs-backend/internal/middleware"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
	"customs-backend/internal/services"
)

// PackageHandler exposes the package lifecycle: screening, resubmission,
// duty payment, audit submission, and tracking.
type PackageHandler struct {
	screening *services.ScreeningService
	duty      *services.DutyService
	audits    *services.AuditService
	tracking  *services.TrackingService
	packages  repository.PackageRepository
	auditLog  repository.AuditLogRepository
	logger    *logrus.Logger
}

// NewPackageHandler creates a new PackageHandler
func NewPackageHandler(
	screening *services.ScreeningService,
	duty *services.DutyService,
	audits *services.AuditService,
	tracking *services.TrackingService,
	packages repository.PackageRepository,
	auditLog repository.AuditLogRepository,
	logger *logrus.Logger,
) *PackageHandler {
	return &PackageHandler{
		screening: screening,
		duty:      duty,
		audits:    audits,
		tracking:  tracking,
		packages:  packages,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// Screen handles POST /api/packages/screen
func (h *PackageHandler) Screen(c *gin.Context) {
	var req dto.ScreenPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	pkg, err := h.screening.ScreenNew(
		c.Request.Context(),
		middleware.UserID(c),
		clients.Environment(req.Environment),
		req.ToClientRequest(),
		nil, nil,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": pkg})
}

// List handles GET /api/packages
func (h *PackageHandler) List(c *gin.Context) {
	filter := repository.PackageFilter{
		UserID:     c.Query("user_id"),
		UploadID:   c.Query("upload_id"),
		ShipmentID: c.Query("shipment_id"),
		Status:     models.PackageStatus(c.Query("status")),
		ExternalID: c.Query("external_id"),
	}
	limit, offset := pagination(c)

	packages, total, err := h.packages.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    packages,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get handles GET /api/packages/:id
func (h *PackageHandler) Get(c *gin.Context) {
	pkg, err := h.packages.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pkg})
}

// Resubmit handles POST /api/packages/:id/resubmit. The package is reset
// with its corrections applied and immediately re-screened.
func (h *PackageHandler) Resubmit(c *gin.Context) {
	var req dto.ResubmitPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	corrections := map[string]interface{}{}
	if req.Description != "" {
		corrections["description"] = req.Description
	}
	if req.RecipientName != "" {
		corrections["recipient_name"] = req.RecipientName
	}
	if req.RecipientAddress != "" {
		corrections["recipient_address"] = req.RecipientAddress
	}
	if req.Quantity != nil {
		corrections["quantity"] = *req.Quantity
	}
	if req.DeclaredValue != nil {
		corrections["declared_value"] = *req.DeclaredValue
	}
	if req.WeightKg != nil {
		corrections["weight_kg"] = *req.WeightKg
	}

	actorID := middleware.UserID(c)
	pkg, err := h.screening.Resubmit(c.Request.Context(), actorID, c.Param("id"), req.CorrectionNotes, corrections)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	pkg, err = h.screening.ScreenExisting(c.Request.Context(), actorID, pkg.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pkg})
}

// PayDuty handles POST /api/packages/:id/duty
func (h *PackageHandler) PayDuty(c *gin.Context) {
	var req dto.PayDutyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   err.Error(),
				"code":    "INVALID_REQUEST",
			})
			return
		}
	}

	pkg, err := h.duty.PayDuty(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Barcode)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pkg})
}

// SubmitAudit handles POST /api/packages/:id/audit
func (h *PackageHandler) SubmitAudit(c *gin.Context) {
	var req dto.SubmitAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	pkg, err := h.audits.SubmitAudit(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Images, req.Remark)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pkg})
}

// Tracking handles GET /api/packages/:id/tracking. refresh=true pulls the
// provider first; otherwise the cached history is served.
func (h *PackageHandler) Tracking(c *gin.Context) {
	var (
		events []*models.TrackingEvent
		err    error
	)
	if c.Query("refresh") == "true" {
		events, err = h.tracking.RefreshPackage(c.Request.Context(), c.Param("id"))
	} else {
		events, err = h.tracking.History(c.Request.Context(), "package", c.Param("id"))
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": events})
}

// History handles GET /api/packages/:id/history with the audit trail
func (h *PackageHandler) History(c *gin.Context) {
	limit, offset := pagination(c)
	entries, err := h.auditLog.ListByEntity(c.Request.Context(), "package", c.Param("id"), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}
