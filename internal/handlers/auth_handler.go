package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/dto"
	"customs-backend/internal/middleware"
	"customs-backend/internal/services"
)

// AuthHandler exposes login and account endpoints
type AuthHandler struct {
	auth   *services.AuthService
	logger *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// Login handles POST /api/auth/login for operator accounts
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	token, _, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "login successful",
	})
}

// AdminLogin handles POST /api/auth/admin-login with the TOTP second factor
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	token, _, err := h.auth.AdminLogin(c.Request.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "admin login successful",
	})
}

// Me handles GET /api/auth/me with the authenticated identity
func (h *AuthHandler) Me(c *gin.Context) {
	email, _ := c.Get(middleware.ContextEmail)
	role, _ := c.Get(middleware.ContextRole)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user_id": middleware.UserID(c),
			"email":   email,
			"role":    role,
		},
	})
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidTOTP):
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrTOTPRequired):
		c.JSON(http.StatusForbidden, dto.AuthResponse{
			Success: false,
			Message: err.Error(),
		})
	default:
		h.logger.WithError(err).Error("login failed")
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "internal server error",
		})
	}
}
