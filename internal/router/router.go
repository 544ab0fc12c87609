package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/app"
	"customs-backend/internal/config"
	"customs-backend/internal/handlers"
	"customs-backend/internal/middleware"
)

// corsMiddleware applies the CORS policy.
// Priority: environment variable > YAML config > default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowedOrigins := []string{"*"}
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			allowedOrigins = allowedOrigins[:0]
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter builds the gin engine with every API route
func SetupRouter(container *app.ServiceContainer, logger *logrus.Logger) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	var allowedIPs []string
	if config.AppConfig != nil {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	auth := middleware.NewAuthMiddleware(logger)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	healthHandler := handlers.NewHealthHandler(container.DB)
	authHandler := handlers.NewAuthHandler(container.AuthService, logger)
	packageHandler := handlers.NewPackageHandler(
		container.ScreeningService,
		container.DutyService,
		container.AuditService,
		container.TrackingService,
		container.PackageRepo,
		container.AuditLogRepo,
		logger,
	)
	uploadHandler := handlers.NewUploadHandler(container.ScreeningService, container.UploadRepo, logger)
	failureHandler := handlers.NewFailureHandler(container.RetryService, container.BatchRetryService, logger)
	shipmentHandler := handlers.NewShipmentHandler(container.ShipmentService, logger)
	platformHandler := handlers.NewPlatformHandler(container.ScreeningClient)
	wsHandler := handlers.NewWebSocketHandler(container.PushService, logger)

	// ============ Probes & Metrics ============
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", localhostOnly.Restrict(), gin.WrapH(promhttp.Handler()))

	// ============ Auth ============
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/admin-login", authHandler.AdminLogin)
		authGroup.GET("/me", auth.RequireAuth(), authHandler.Me)
	}

	// ============ WebSocket ============
	r.GET("/ws", wsHandler.Handle)

	// ============ API (authenticated) ============
	api := r.Group("/api", auth.RequireAuth())
	{
		packages := api.Group("/packages")
		{
			packages.POST("/screen", packageHandler.Screen)
			packages.GET("", packageHandler.List)
			packages.GET("/:id", packageHandler.Get)
			packages.POST("/:id/resubmit", packageHandler.Resubmit)
			packages.POST("/:id/duty", packageHandler.PayDuty)
			packages.POST("/:id/audit", packageHandler.SubmitAudit)
			packages.GET("/:id/tracking", packageHandler.Tracking)
			packages.GET("/:id/history", packageHandler.History)
		}

		uploads := api.Group("/uploads")
		{
			uploads.POST("", uploadHandler.Upload)
			uploads.GET("", uploadHandler.List)
			uploads.GET("/:id", uploadHandler.Get)
		}

		failures := api.Group("/failures")
		{
			failures.GET("", failureHandler.List)
			failures.GET("/:id", failureHandler.Get)
			failures.POST("/:id/retry", failureHandler.Retry)
			failures.POST("/batch-retry", failureHandler.BatchRetry)
			failures.POST("/:id/resolve", failureHandler.Resolve)
		}

		shipments := api.Group("/shipments")
		{
			shipments.POST("", shipmentHandler.Create)
			shipments.GET("", shipmentHandler.List)
			shipments.GET("/:id", shipmentHandler.Get)
			shipments.POST("/:id/register", shipmentHandler.Register)
			shipments.POST("/:id/verify", shipmentHandler.Verify)
			shipments.DELETE("/:id", adminAuth.RequireAdmin(), shipmentHandler.Delete)
		}

		api.GET("/platforms", platformHandler.List)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
