package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/middleware"
	"customs-backend/internal/services"
)

// WebSocketHandler upgrades dashboard sessions onto the push hub. Browsers
// cannot set an Authorization header on the upgrade request, so the token is
// also accepted as a query parameter.
type WebSocketHandler struct {
	push   *services.PushService
	logger *logrus.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(push *services.PushService, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		push:   push,
		logger: logger,
	}
}

// Handle handles GET /ws
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "token query parameter is required",
			"code":    "MISSING_TOKEN",
		})
		return
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		h.logger.WithError(err).Warn("websocket token validation failed")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid or expired token",
			"code":    "INVALID_TOKEN",
		})
		return
	}

	h.push.HandleWebSocket(c.Writer, c.Request, claims.UserID)
}
