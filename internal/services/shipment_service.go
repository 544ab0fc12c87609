package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"customs-backend/internal/clients"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// ShipmentService groups duty-paid packages under a master bill, registers
// the manifest with customs, and requests the verification decision.
type ShipmentService struct {
	shipments repository.ShipmentRepository
	packages  repository.PackageRepository
	failures  repository.FailureRepository
	auditLog  repository.AuditLogRepository
	client    ScreeningAPI
	events    EventPublisher
	logger    *logrus.Entry
}

// NewShipmentService creates a new ShipmentService
func NewShipmentService(
	shipments repository.ShipmentRepository,
	packages repository.PackageRepository,
	failures repository.FailureRepository,
	auditLog repository.AuditLogRepository,
	client ScreeningAPI,
	events EventPublisher,
) *ShipmentService {
	return &ShipmentService{
		shipments: shipments,
		packages:  packages,
		failures:  failures,
		auditLog:  auditLog,
		client:    client,
		events:    events,
		logger:    logrus.WithField("component", "shipment_service"),
	}
}

// Create groups packages into a pending shipment. Every package must belong
// to the caller's environment, be duty-paid, and not already sit in another
// shipment.
func (s *ShipmentService) Create(ctx context.Context, actorID string, env clients.Environment, masterBillNumber, carrierCode string, packageIDs []string) (*models.Shipment, error) {
	pkgs := make([]*models.Package, 0, len(packageIDs))
	for _, id := range packageIDs {
		pkg, err := s.packages.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if pkg.Environment != string(env) {
			return nil, NewGuardError("package %s belongs to environment %q", pkg.ID, pkg.Environment)
		}
		if pkg.Status != models.PackageStatusDutyPaid {
			return nil, NewGuardError("package %s is not duty-paid (status %q)", pkg.ID, pkg.Status)
		}
		if pkg.ShipmentID != nil {
			return nil, NewGuardError("package %s already belongs to shipment %s", pkg.ID, *pkg.ShipmentID)
		}
		pkgs = append(pkgs, pkg)
	}

	shipment := &models.Shipment{
		ID:               uuid.NewString(),
		UserID:           actorID,
		MasterBillNumber: masterBillNumber,
		CarrierCode:      carrierCode,
		Environment:      string(env),
		Status:           models.ShipmentStatusPending,
	}

	err := s.shipments.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(shipment).Error; err != nil {
			return err
		}
		// Pending membership only; packages flip to registered when the
		// manifest reaches customs.
		return tx.Model(&models.Package{}).
			Where("id IN ?", packageIDs).
			Update("shipment_id", shipment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	shipment.Packages = make([]models.Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		sid := shipment.ID
		pkg.ShipmentID = &sid
		shipment.Packages = append(shipment.Packages, *pkg)
	}

	s.appendLog(ctx, models.AuditActionRegistration, shipment.ID, actorID, nil, string(shipment.Status), models.JSONMap{
		"master_bill_number": masterBillNumber,
		"package_count":      len(packageIDs),
	})
	if s.events != nil {
		s.events.PublishShipmentStatus(shipment, "created")
	}
	return shipment, nil
}

// Register submits the shipment manifest to customs. On success the member
// packages flip to registered in the same transaction as the shipment. A
// provider failure files a failure record and marks the shipment failed.
func (s *ShipmentService) Register(ctx context.Context, actorID, shipmentID string) (*models.Shipment, error) {
	shipment, err := s.shipments.GetWithPackages(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Status != models.ShipmentStatusPending {
		metrics.ShipmentRegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, NewGuardError("shipment status %q does not allow registration", shipment.Status)
	}
	if len(shipment.Packages) == 0 {
		metrics.ShipmentRegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, NewGuardError("shipment has no packages")
	}

	providerIDs := make([]string, 0, len(shipment.Packages))
	packageIDs := make([]string, 0, len(shipment.Packages))
	for i := range shipment.Packages {
		pkg := &shipment.Packages[i]
		if pkg.ProviderID == nil || *pkg.ProviderID == "" {
			metrics.ShipmentRegistrationsTotal.WithLabelValues("rejected").Inc()
			return nil, NewGuardError("package %s has no provider id", pkg.ID)
		}
		providerIDs = append(providerIDs, *pkg.ProviderID)
		packageIDs = append(packageIDs, pkg.ID)
	}

	req := &clients.RegisterShipmentRequest{
		MasterBillNumber: shipment.MasterBillNumber,
		CarrierCode:      shipment.CarrierCode,
		PackageIDs:       providerIDs,
	}
	env := clients.Environment(shipment.Environment)

	result, apiErr := s.client.RegisterShipment(ctx, env, req)
	if apiErr != nil {
		record, recErr := recordFailure(ctx, s.failures, models.EndpointRegisterShipment, "POST", env, actorID, req, apiErr, models.DefaultMaxRetries, func(fr *models.FailureRecord) {
			sid := shipment.ID
			fr.ShipmentID = &sid
		})
		if recErr != nil {
			return nil, recErr
		}
		s.markFailed(ctx, shipment)
		metrics.ShipmentRegistrationsTotal.WithLabelValues("failed").Inc()
		s.logger.WithFields(logrus.Fields{
			"shipment_id": shipment.ID,
			"failure_id":  record.ID,
		}).Warn("shipment registration failed")
		return nil, &ProviderError{FailureID: record.ID, Message: apiErr.Summary()}
	}

	now := time.Now()
	prev := string(shipment.Status)
	providerID := result.ShipmentID
	shipment.ProviderID = &providerID
	shipment.Status = models.ShipmentStatusRegistered
	shipment.RegisteredAt = &now

	err = s.shipments.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Save(shipment).Error; err != nil {
			return err
		}
		return s.packages.AssignToShipment(ctx, tx, shipment.ID, packageIDs)
	})
	if err != nil {
		return nil, err
	}
	metrics.ShipmentRegistrationsTotal.WithLabelValues("success").Inc()

	s.appendLog(ctx, models.AuditActionRegistration, shipment.ID, actorID, &prev, string(shipment.Status), models.JSONMap{
		"provider_id":   providerID,
		"package_count": len(packageIDs),
	})
	if s.events != nil {
		s.events.PublishShipmentStatus(shipment, "updated")
	}
	return shipment, nil
}

// Verify requests the customs decision for a registered shipment. Code 1
// verifies the shipment and stores the clearance document; any other code
// rejects it with the customs reason.
func (s *ShipmentService) Verify(ctx context.Context, actorID, shipmentID string) (*models.Shipment, error) {
	shipment, err := s.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	switch shipment.Status {
	case models.ShipmentStatusRegistered, models.ShipmentStatusVerificationPending:
	default:
		return nil, NewGuardError("shipment status %q does not allow verification", shipment.Status)
	}
	if shipment.ProviderID == nil || *shipment.ProviderID == "" {
		return nil, NewGuardError("shipment has not been registered with the provider")
	}

	env := clients.Environment(shipment.Environment)
	result, apiErr := s.client.VerifyShipment(ctx, env, *shipment.ProviderID)
	if apiErr != nil {
		record, recErr := recordFailure(ctx, s.failures, models.EndpointVerifyShipment, "POST", env, actorID, map[string]interface{}{
			"provider_shipment_id": *shipment.ProviderID,
		}, apiErr, models.DefaultMaxRetries, func(fr *models.FailureRecord) {
			sid := shipment.ID
			fr.ShipmentID = &sid
		})
		if recErr != nil {
			return nil, recErr
		}
		s.markFailed(ctx, shipment)
		s.logger.WithFields(logrus.Fields{
			"shipment_id": shipment.ID,
			"failure_id":  record.ID,
		}).Warn("shipment verification failed")
		return nil, &ProviderError{FailureID: record.ID, Message: apiErr.Summary()}
	}

	now := time.Now()
	prev := string(shipment.Status)
	code := result.Code
	status := result.Status
	shipment.VerificationCode = &code
	shipment.VerificationStatus = &status
	shipment.VerifiedAt = &now

	if result.Code == models.VerificationCodeAccepted {
		shipment.Status = models.ShipmentStatusVerified
		if result.Document != "" {
			doc := result.Document
			shipment.VerificationDocument = &doc
		}
		if result.DocumentMediaType != "" {
			mt := result.DocumentMediaType
			shipment.DocumentMediaType = &mt
		}
		shipment.VerificationReason = nil
	} else {
		shipment.Status = models.ShipmentStatusRejected
		reason := result.Reason
		shipment.VerificationReason = &reason
	}

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, err
	}

	s.appendLog(ctx, models.AuditActionVerification, shipment.ID, actorID, &prev, string(shipment.Status), models.JSONMap{
		"verification_code": result.Code,
	})
	if s.events != nil {
		s.events.PublishShipmentStatus(shipment, "updated")
	}
	return shipment, nil
}

// Delete removes a shipment that has not yet been registered. Member
// packages are unlinked first so they can join another shipment.
func (s *ShipmentService) Delete(ctx context.Context, actorID, shipmentID string) error {
	shipment, err := s.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return err
	}
	if !shipment.Deletable() {
		return repository.ErrShipmentNotDeletable
	}

	err = s.shipments.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Package{}).
			Where("shipment_id = ?", shipment.ID).
			Update("shipment_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND status = ?", shipment.ID, models.ShipmentStatusPending).
			Delete(&models.Shipment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrShipmentNotDeletable
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"shipment_id": shipment.ID,
		"actor_id":    actorID,
	}).Info("shipment deleted")
	return nil
}

// Get returns a shipment with its packages
func (s *ShipmentService) Get(ctx context.Context, shipmentID string) (*models.Shipment, error) {
	return s.shipments.GetWithPackages(ctx, shipmentID)
}

// List returns shipments for the dashboard
func (s *ShipmentService) List(ctx context.Context, userID string, status models.ShipmentStatus, limit, offset int) ([]*models.Shipment, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.shipments.List(ctx, userID, status, limit, offset)
}

// markFailed parks the shipment after a provider call failure. The linked
// failure record is the handle for retrying or resolving it.
func (s *ShipmentService) markFailed(ctx context.Context, shipment *models.Shipment) {
	shipment.Status = models.ShipmentStatusFailed
	if err := s.shipments.Update(ctx, shipment); err != nil {
		s.logger.WithError(err).WithField("shipment_id", shipment.ID).Error("failed to mark shipment failed")
	}
	if s.events != nil {
		s.events.PublishShipmentStatus(shipment, "updated")
	}
}

func (s *ShipmentService) appendLog(ctx context.Context, action, shipmentID, actorID string, fromStatus *string, toStatus string, context models.JSONMap) {
	entry := &models.AuditLogEntry{
		Action:     action,
		EntityType: "shipment",
		EntityID:   shipmentID,
		ActorID:    actorID,
		FromStatus: fromStatus,
		ToStatus:   &toStatus,
		Context:    context,
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"shipment_id": shipmentID,
		}).Error("failed to append audit log entry")
	}
}
