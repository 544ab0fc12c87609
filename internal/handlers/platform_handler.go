package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"customs-backend/internal/clients"
	"customs-backend/internal/services"
)

// PlatformHandler proxies the provider's marketplace platform directory
type PlatformHandler struct {
	client services.ScreeningAPI
}

// NewPlatformHandler creates a new PlatformHandler
func NewPlatformHandler(client services.ScreeningAPI) *PlatformHandler {
	return &PlatformHandler{client: client}
}

// List handles GET /api/platforms
func (h *PlatformHandler) List(c *gin.Context) {
	env := c.DefaultQuery("environment", string(clients.EnvironmentSandbox))
	if env != string(clients.EnvironmentSandbox) && env != string(clients.EnvironmentProduction) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "environment must be sandbox or production",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	platforms, apiErr := h.client.GetPlatforms(c.Request.Context(), clients.Environment(env))
	if apiErr != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   apiErr.Summary(),
			"code":    "PROVIDER_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": platforms})
}
