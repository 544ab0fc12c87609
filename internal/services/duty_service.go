package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// DutyService pays customs duty for accepted packages. Payment is guarded
// twice: the DDPN field is the permanent idempotency marker, and the status
// claim serializes concurrent payment attempts on the same package.
type DutyService struct {
	packages repository.PackageRepository
	failures repository.FailureRepository
	auditLog repository.AuditLogRepository
	client   ScreeningAPI
	events   EventPublisher
	logger   *logrus.Entry
}

// NewDutyService creates a new DutyService
func NewDutyService(
	packages repository.PackageRepository,
	failures repository.FailureRepository,
	auditLog repository.AuditLogRepository,
	client ScreeningAPI,
	events EventPublisher,
) *DutyService {
	return &DutyService{
		packages: packages,
		failures: failures,
		auditLog: auditLog,
		client:   client,
		events:   events,
		logger:   logrus.WithField("component", "duty_service"),
	}
}

// PayDuty pays customs duty for one package. A failed provider call rolls
// the package back to accepted and files a manual-only failure record; duty
// payments are never auto-retried because a second charge cannot be ruled
// out without the DDPN.
func (s *DutyService) PayDuty(ctx context.Context, actorID, packageID, barcode string) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if ok, reason := pkg.DutyPayable(); !ok {
		metrics.DutyPaymentsTotal.WithLabelValues("rejected").Inc()
		return nil, NewGuardError("%s", reason)
	}

	now := time.Now()
	claimed, err := s.packages.ClaimForDuty(ctx, pkg.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.DutyPaymentsTotal.WithLabelValues("rejected").Inc()
		return nil, NewGuardError("duty payment already in progress or completed")
	}
	prev := string(pkg.Status)
	pkg.Status = models.PackageStatusDutyPending

	if barcode == "" {
		barcode = pkg.Barcode
	}
	req := &clients.PayDutyRequest{
		PackageID: *pkg.ProviderID,
		Barcode:   barcode,
	}
	env := clients.Environment(pkg.Environment)

	result, apiErr := s.client.PayDuty(ctx, env, req)
	if apiErr != nil {
		if relErr := s.packages.ReleaseDutyClaim(ctx, pkg.ID); relErr != nil {
			s.logger.WithError(relErr).WithField("package_id", pkg.ID).Error("failed to release duty claim")
		}
		record, recErr := recordFailure(ctx, s.failures, models.EndpointPayDuty, "POST", env, actorID, req, apiErr, models.ManualOnlyMaxRetries, func(fr *models.FailureRecord) {
			pid := pkg.ID
			fr.PackageID = &pid
			ext := pkg.ExternalID
			fr.ExternalID = &ext
			manualOnly(fr)
		})
		if recErr != nil {
			return nil, recErr
		}
		metrics.DutyPaymentsTotal.WithLabelValues("failed").Inc()
		s.logger.WithFields(logrus.Fields{
			"package_id": pkg.ID,
			"failure_id": record.ID,
		}).Warn("duty payment failed")
		return nil, &ProviderError{FailureID: record.ID, Message: apiErr.Summary()}
	}

	ddpn := result.DDPN
	total := result.TotalDuty
	pkg.DDPN = &ddpn
	pkg.TotalDuty = &total
	pkg.DutyPaidAt = &now
	pkg.Status = models.PackageStatusDutyPaid
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}
	metrics.DutyPaymentsTotal.WithLabelValues("success").Inc()

	entry := &models.AuditLogEntry{
		Action:     models.AuditActionDutyPayment,
		EntityType: "package",
		EntityID:   pkg.ID,
		ActorID:    actorID,
		FromStatus: &prev,
		ToStatus:   strPtr(string(pkg.Status)),
		Context: models.JSONMap{
			"ddpn":       ddpn,
			"total_duty": total.String(),
		},
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("package_id", pkg.ID).Error("failed to append audit log entry")
	}
	if s.events != nil {
		s.events.PublishPackageStatus(pkg, "updated")
	}
	return pkg, nil
}
