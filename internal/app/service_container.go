package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"customs-backend/internal/clients"
	"customs-backend/internal/config"
	"customs-backend/internal/db"
	"customs-backend/internal/events"
	"customs-backend/internal/repository"
	"customs-backend/internal/services"
)

// ServiceContainer wires the repositories, clients, and services the server
// runs on. Built once at startup.
type ServiceContainer struct {
	DB *gorm.DB

	// Repositories
	UserRepo     repository.UserRepository
	UploadRepo   repository.UploadRepository
	PackageRepo  repository.PackageRepository
	ShipmentRepo repository.ShipmentRepository
	FailureRepo  repository.FailureRepository
	AuditLogRepo repository.AuditLogRepository
	TrackingRepo repository.TrackingRepository

	// Clients
	ScreeningClient *clients.ScreeningClient
	NATSClient      *clients.NATSClient

	// Services
	AuthService       *services.AuthService
	ScreeningService  *services.ScreeningService
	RetryService      *services.RetryService
	BatchRetryService *services.BatchRetryService
	DutyService       *services.DutyService
	AuditService      *services.AuditService
	ShipmentService   *services.ShipmentService
	TrackingService   *services.TrackingService
	PushService       *services.PushService
}

var (
	Container     *ServiceContainer
	containerOnce sync.Once
)

// InitializeContainer builds the service graph. NATS is optional: without a
// configured URL the dashboard still gets websocket pushes, only the external
// event stream is skipped.
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		cfg := config.AppConfig
		if cfg == nil {
			initErr = fmt.Errorf("configuration not loaded")
			return
		}

		c := &ServiceContainer{DB: db.DB}

		c.UserRepo = repository.NewUserRepository(c.DB)
		c.UploadRepo = repository.NewUploadRepository(c.DB)
		c.PackageRepo = repository.NewPackageRepository(c.DB)
		c.ShipmentRepo = repository.NewShipmentRepository(c.DB)
		c.FailureRepo = repository.NewFailureRepository(c.DB)
		c.AuditLogRepo = repository.NewAuditLogRepository(c.DB)
		c.TrackingRepo = repository.NewTrackingRepository(c.DB)

		c.ScreeningClient = clients.NewScreeningClient(map[clients.Environment]clients.EnvironmentEndpoint{
			clients.EnvironmentSandbox: {
				BaseURL: cfg.Provider.Sandbox.BaseURL,
				APIKey:  cfg.Provider.Sandbox.APIKey,
			},
			clients.EnvironmentProduction: {
				BaseURL: cfg.Provider.Production.BaseURL,
				APIKey:  cfg.Provider.Production.APIKey,
			},
		}, time.Duration(cfg.Provider.Timeout)*time.Second)

		c.PushService = services.NewPushService()

		publishers := []services.EventPublisher{c.PushService}
		if cfg.NATS.URL != "" {
			natsClient, err := clients.NewNATSClient(cfg.NATS.URL, time.Duration(cfg.NATS.Timeout)*time.Second)
			if err != nil {
				logrus.WithError(err).Warn("NATS unavailable, continuing without external events")
			} else {
				c.NATSClient = natsClient
				publishers = append(publishers, events.NewNATSPublisher(natsClient))
			}
		}
		eventPublisher := services.NewMultiPublisher(publishers...)

		c.AuthService = services.NewAuthService(c.UserRepo)
		c.ScreeningService = services.NewScreeningService(
			c.PackageRepo, c.FailureRepo, c.UploadRepo, c.AuditLogRepo,
			c.ScreeningClient, eventPublisher,
		)
		c.RetryService = services.NewRetryService(
			c.FailureRepo, c.PackageRepo, c.AuditLogRepo,
			c.ScreeningClient, eventPublisher,
		)
		c.BatchRetryService = services.NewBatchRetryService(c.FailureRepo, c.RetryService)
		c.DutyService = services.NewDutyService(
			c.PackageRepo, c.FailureRepo, c.AuditLogRepo,
			c.ScreeningClient, eventPublisher,
		)
		c.AuditService = services.NewAuditService(
			c.PackageRepo, c.FailureRepo, c.AuditLogRepo,
			c.ScreeningClient, eventPublisher,
		)
		c.ShipmentService = services.NewShipmentService(
			c.ShipmentRepo, c.PackageRepo, c.FailureRepo, c.AuditLogRepo,
			c.ScreeningClient, eventPublisher,
		)
		c.TrackingService = services.NewTrackingService(
			c.PackageRepo, c.TrackingRepo, c.ScreeningClient,
		)

		Container = c
		logrus.Info("service container initialized")
	})

	return Container, initErr
}

// Close releases external connections
func (c *ServiceContainer) Close() {
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
}
