// Package handlers contains the gin HTTP handlers for the dashboard API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"customs-backend/internal/repository"
	"customs-backend/internal/services"
)

// respondServiceError maps domain errors onto HTTP responses. Guard
// rejections are client errors; provider failures surface the persisted
// failure record id so the dashboard can offer a retry.
func respondServiceError(c *gin.Context, err error) {
	var (
		guardErr    *services.GuardError
		notDueErr   *services.RetryNotDueError
		providerErr *services.ProviderError
	)

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Resource not found",
			"code":    "NOT_FOUND",
		})
	case errors.As(err, &guardErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   guardErr.Reason,
			"code":    "PRECONDITION_FAILED",
		})
	case errors.As(err, &notDueErr):
		c.JSON(http.StatusConflict, gin.H{
			"success":       false,
			"error":         notDueErr.Error(),
			"code":          "RETRY_NOT_DUE",
			"next_retry_at": notDueErr.NextRetryAt,
		})
	case errors.Is(err, services.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "ALREADY_RESOLVED",
		})
	case errors.Is(err, services.ErrRetryInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "RETRY_IN_PROGRESS",
		})
	case errors.Is(err, repository.ErrShipmentNotDeletable):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "SHIPMENT_NOT_DELETABLE",
		})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"success":    false,
			"error":      providerErr.Message,
			"code":       "PROVIDER_ERROR",
			"failure_id": providerErr.FailureID,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
			"code":    "INTERNAL_ERROR",
		})
	}
}

// pagination reads limit/offset query parameters with the listing defaults
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
