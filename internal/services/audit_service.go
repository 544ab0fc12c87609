package services

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// Provider limits on audit submissions, enforced before any call
const (
	minAuditImages    = 2
	maxAuditRemarkLen = 100
)

// AuditService submits secondary image reviews for packages the provider
// flagged as audit_required.
type AuditService struct {
	packages repository.PackageRepository
	failures repository.FailureRepository
	auditLog repository.AuditLogRepository
	client   ScreeningAPI
	events   EventPublisher
	logger   *logrus.Entry
}

// NewAuditService creates a new AuditService
func NewAuditService(
	packages repository.PackageRepository,
	failures repository.FailureRepository,
	auditLog repository.AuditLogRepository,
	client ScreeningAPI,
	events EventPublisher,
) *AuditService {
	return &AuditService{
		packages: packages,
		failures: failures,
		auditLog: auditLog,
		client:   client,
		events:   events,
		logger:   logrus.WithField("component", "audit_service"),
	}
}

// SubmitAudit sends review images for an audit_required package and applies
// the provider's verdict. A failed call files a manual-only failure record;
// audit submissions are not auto-retried because the image set may need
// correction first.
func (s *AuditService) SubmitAudit(ctx context.Context, actorID, packageID string, images []string, remark string) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != models.PackageStatusAuditRequired {
		return nil, NewGuardError("package status %q does not allow audit submission", pkg.Status)
	}
	if pkg.ProviderID == nil || *pkg.ProviderID == "" {
		return nil, NewGuardError("package has not been screened by the provider")
	}
	if len(images) < minAuditImages {
		return nil, NewGuardError("audit submission requires at least %d images", minAuditImages)
	}
	if utf8.RuneCountInString(remark) > maxAuditRemarkLen {
		return nil, NewGuardError("remark must be at most %d characters", maxAuditRemarkLen)
	}

	req := &clients.SubmitAuditRequest{
		PackageID:  *pkg.ProviderID,
		ExternalID: pkg.ExternalID,
		Images:     images,
		Remark:     remark,
	}
	env := clients.Environment(pkg.Environment)

	result, apiErr := s.client.SubmitAudit(ctx, env, req)
	if apiErr != nil {
		record, recErr := recordFailure(ctx, s.failures, models.EndpointSubmitAudit, "POST", env, actorID, req, apiErr, models.ManualOnlyMaxRetries, func(fr *models.FailureRecord) {
			pid := pkg.ID
			fr.PackageID = &pid
			ext := pkg.ExternalID
			fr.ExternalID = &ext
			manualOnly(fr)
		})
		if recErr != nil {
			return nil, recErr
		}
		s.logger.WithFields(logrus.Fields{
			"package_id": pkg.ID,
			"failure_id": record.ID,
		}).Warn("audit submission failed")
		return nil, &ProviderError{FailureID: record.ID, Message: apiErr.Summary()}
	}

	now := time.Now()
	prev := string(pkg.Status)
	status := result.Status
	pkg.AuditStatus = &status
	pkg.AuditImages = images
	if remark != "" {
		pkg.AuditRemark = &remark
	}
	pkg.AuditSubmittedAt = &now
	pkg.Status = models.AuditCodeToStatus(result.Code)
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}

	entry := &models.AuditLogEntry{
		Action:     models.AuditActionAuditSubmission,
		EntityType: "package",
		EntityID:   pkg.ID,
		ActorID:    actorID,
		FromStatus: &prev,
		ToStatus:   strPtr(string(pkg.Status)),
		Context: models.JSONMap{
			"audit_code":  result.Code,
			"image_count": len(images),
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
