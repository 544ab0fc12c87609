package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/dto"
	"customs-backend/internal/middleware"
	"customs-backend/internal/models"
	"customs-backend/internal/services"
)

// ShipmentHandler exposes shipment grouping, registration, and verification
type ShipmentHandler struct {
	shipments *services.ShipmentService
	logger    *logrus.Logger
}

// NewShipmentHandler creates a new ShipmentHandler
func NewShipmentHandler(shipments *services.ShipmentService, logger *logrus.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		shipments: shipments,
		logger:    logger,
	}
}

// Create handles POST /api/shipments
func (h *ShipmentHandler) Create(c *gin.Context) {
	var req dto.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	shipment, err := h.shipments.Create(
		c.Request.Context(),
		middleware.UserID(c),
		clients.Environment(req.Environment),
		req.MasterBillNumber,
		req.CarrierCode,
		req.PackageIDs,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": shipment})
}

// Register handles POST /api/shipments/:id/register
func (h *ShipmentHandler) Register(c *gin.Context) {
	shipment, err := h.shipments.Register(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": shipment})
}

// Verify handles POST /api/shipments/:id/verify
func (h *ShipmentHandler) Verify(c *gin.Context) {
	shipment, err := h.shipments.Verify(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": shipment})
}

// Delete handles DELETE /api/shipments/:id
func (h *ShipmentHandler) Delete(c *gin.Context) {
	if err := h.shipments.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "shipment deleted"})
}

// Get handles GET /api/shipments/:id
func (h *ShipmentHandler) Get(c *gin.Context) {
	shipment, err := h.shipments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": shipment})
}

// List handles GET /api/shipments
func (h *ShipmentHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	shipments, total, err := h.shipments.List(
		c.Request.Context(),
		c.Query("user_id"),
		models.ShipmentStatus(c.Query("status")),
		limit, offset,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    shipments,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
