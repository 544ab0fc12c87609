package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/dto"
	"customs-backend/internal/middleware"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
	"customs-backend/internal/services"
)

// FailureHandler exposes the failure queue and the retry engine
type FailureHandler struct {
	retries *services.RetryService
	batches *services.BatchRetryService
	logger  *logrus.Logger
}

// NewFailureHandler creates a new FailureHandler
func NewFailureHandler(retries *services.RetryService, batches *services.BatchRetryService, logger *logrus.Logger) *FailureHandler {
	return &FailureHandler{
		retries: retries,
		batches: batches,
		logger:  logger,
	}
}

// List handles GET /api/failures
func (h *FailureHandler) List(c *gin.Context) {
	filter := repository.FailureFilter{
		RetryStatus: models.RetryStatus(c.Query("retry_status")),
		Environment: c.Query("environment"),
		UploadID:    c.Query("upload_id"),
		PackageID:   c.Query("package_id"),
		Endpoint:    c.Query("endpoint"),
	}
	limit, offset := pagination(c)

	records, total, err := h.retries.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get handles GET /api/failures/:id
func (h *FailureHandler) Get(c *gin.Context) {
	record, err := h.retries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": record})
}

// Retry handles POST /api/failures/:id/retry
func (h *FailureHandler) Retry(c *gin.Context) {
	var req dto.RetryRequest
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

	outcome, err := h.retries.Retry(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Force)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := dto.RetryResponse{
		Success:     outcome.Package != nil,
		Message:     outcome.Message,
		RetryCount:  outcome.Record.RetryCount,
		RetryStatus: string(outcome.Record.RetryStatus),
		NextRetryAt: outcome.Record.NextRetryAt,
		Package:     outcome.Package,
	}
	c.JSON(http.StatusOK, resp)
}

// BatchRetry handles POST /api/failures/batch-retry
func (h *FailureHandler) BatchRetry(c *gin.Context) {
	var req dto.BatchRetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.batches.RetryBatch(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resolve handles POST /api/failures/:id/resolve
func (h *FailureHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
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

	record, err := h.retries.Resolve(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": record})
}
