package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// ScreeningAPI is the slice of the provider client the domain services use.
// *clients.ScreeningClient satisfies it; tests substitute a mock.
type ScreeningAPI interface {
	ScreenPackage(ctx context.Context, env clients.Environment, req *clients.ScreenPackageRequest) (*clients.ScreeningResult, *clients.APIError)
	PayDuty(ctx context.Context, env clients.Environment, req *clients.PayDutyRequest) (*clients.DutyResult, *clients.APIError)
	SubmitAudit(ctx context.Context, env clients.Environment, req *clients.SubmitAuditRequest) (*clients.AuditResult, *clients.APIError)
	RegisterShipment(ctx context.Context, env clients.Environment, req *clients.RegisterShipmentRequest) (*clients.RegisterShipmentResult, *clients.APIError)
	VerifyShipment(ctx context.Context, env clients.Environment, providerShipmentID string) (*clients.VerifyShipmentResult, *clients.APIError)
	GetTracking(ctx context.Context, env clients.Environment, providerPackageID string) (*clients.TrackingResult, *clients.APIError)
	GetPlatforms(ctx context.Context, env clients.Environment) ([]clients.Platform, *clients.APIError)
}

// ScreeningService drives package screening: direct submissions, manifest
// uploads, re-screens after resubmission. It owns the materialization of a
// Package row from a screening result, which the retry engine reuses.
type ScreeningService struct {
	packages repository.PackageRepository
	failures repository.FailureRepository
	uploads  repository.UploadRepository
	auditLog repository.AuditLogRepository
	client   ScreeningAPI
	events   EventPublisher
	logger   *logrus.Entry
}

// NewScreeningService creates a new ScreeningService
func NewScreeningService(
	packages repository.PackageRepository,
	failures repository.FailureRepository,
	uploads repository.UploadRepository,
	auditLog repository.AuditLogRepository,
	client ScreeningAPI,
	events EventPublisher,
) *ScreeningService {
	return &ScreeningService{
		packages: packages,
		failures: failures,
		uploads:  uploads,
		auditLog: auditLog,
		client:   client,
		events:   events,
		logger:   logrus.WithField("component", "screening_service"),
	}
}

// applyScreeningResult writes a provider verdict onto a package. Shared by
// the first-attempt path, the re-screen path, and the retry engine so the
// code-to-status mapping lives in exactly one place.
func applyScreeningResult(pkg *models.Package, result *clients.ScreeningResult, now time.Time) {
	code := result.Code
	status := result.Status
	pkg.ProviderID = &result.PackageID
	pkg.ScreeningCode = &code
	pkg.ScreeningStatus = &status
	if snapshot, err := models.ToJSONMap(result); err == nil {
		pkg.ScreeningResponse = snapshot
	}
	if result.LabelURL != "" {
		label := result.LabelURL
		pkg.LabelURL = &label
	}
	pkg.ScreenedAt = &now
	pkg.Status = models.ScreeningCodeToStatus(result.Code)
}

// buildPackageFromScreening materializes a new Package row from the original
// request plus a fresh screening result.
func buildPackageFromScreening(
	req *clients.ScreenPackageRequest,
	result *clients.ScreeningResult,
	ownerID string,
	env clients.Environment,
	uploadID *string,
	rowNumber *int,
	now time.Time,
) *models.Package {
	pkg := &models.Package{
		ID:                 uuid.NewString(),
		ExternalID:         req.ExternalID,
		UserID:             ownerID,
		Environment:        string(env),
		UploadID:           uploadID,
		RowNumber:          rowNumber,
		Description:        req.Description,
		OriginCountry:      req.OriginCountry,
		DestinationCountry: req.DestinationCountry,
		Quantity:           req.Quantity,
		WeightKg:           req.WeightKg,
		DeclaredValue:      req.DeclaredValue,
		Currency:           req.Currency,
		RecipientName:      req.RecipientName,
		RecipientAddress:   req.RecipientAddress,
		Barcode:            req.Barcode,
	}
	applyScreeningResult(pkg, result, now)
	return pkg
}

// ScreenNew screens a fresh request and materializes a package on success.
// On provider failure it persists a retryable failure record and returns a
// ProviderError carrying the record id.
func (s *ScreeningService) ScreenNew(
	ctx context.Context,
	actorID string,
	env clients.Environment,
	req *clients.ScreenPackageRequest,
	uploadID *string,
	rowNumber *int,
) (*models.Package, error) {
	result, apiErr := s.client.ScreenPackage(ctx, env, req)
	if apiErr != nil {
		record, err := recordFailure(ctx, s.failures, models.EndpointScreenPackage, "POST", env, actorID, req, apiErr, models.DefaultMaxRetries, func(fr *models.FailureRecord) {
			fr.UploadID = uploadID
			fr.RowNumber = rowNumber
			ext := req.ExternalID
			fr.ExternalID = &ext
		})
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"failure_id":  record.ID,
			"external_id": req.ExternalID,
			"environment": env,
		}).Warn("screening call failed, failure record created")
		return nil, &ProviderError{FailureID: record.ID, Message: apiErr.Summary()}
	}

	now := time.Now()
	pkg := buildPackageFromScreening(req, result, actorID, env, uploadID, rowNumber, now)
	if err := s.packages.Create(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to create package: %w", err)
	}
	metrics.PackagesScreenedTotal.WithLabelValues(string(pkg.Status)).Inc()

	s.appendLog(ctx, models.AuditActionScreening, "package", pkg.ID, actorID, nil, string(pkg.Status), models.JSONMap{
		"external_id":    pkg.ExternalID,
		"provider_id":    result.PackageID,
		"screening_code": result.Code,
	})
	if s.events != nil {
		s.events.PublishPackageStatus(pkg, "created")
	}
	return pkg, nil
}

// ScreenExisting re-screens a pending package in place, used after a
// resubmission reset the verdict. The package briefly holds the screening
// status while the call is in flight.
func (s *ScreeningService) ScreenExisting(ctx context.Context, actorID, packageID string) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != models.PackageStatusPending {
		return nil, NewGuardError("package status %q does not allow screening", pkg.Status)
	}

	if err := s.packages.UpdateFields(ctx, pkg.ID, map[string]interface{}{
		"status": models.PackageStatusScreening,
	}); err != nil {
		return nil, err
	}

	req := &clients.ScreenPackageRequest{
		ExternalID:         pkg.ExternalID,
		Description:        pkg.Description,
		OriginCountry:      pkg.OriginCountry,
		DestinationCountry: pkg.DestinationCountry,
		Quantity:           pkg.Quantity,
		WeightKg:           pkg.WeightKg,
		DeclaredValue:      pkg.DeclaredValue,
		Currency:           pkg.Currency,
		RecipientName:      pkg.RecipientName,
		RecipientAddress:   pkg.RecipientAddress,
		Barcode:            pkg.Barcode,
	}
	env := clients.Environment(pkg.Environment)

	result, apiErr := s.client.ScreenPackage(ctx, env, req)
	if apiErr != nil {
		// Revert so the package stays retryable through the normal path
		if revertErr := s.packages.UpdateFields(ctx, pkg.ID, map[string]interface{}{
			"status": models.PackageStatusPending,
		}); revertErr != nil {
			s.logger.WithError(revertErr).WithField("package_id", pkg.ID).Error("failed to revert package to pending")
		}
		record, err := recordFailure(ctx, s.failures, models.EndpointScreenPackage, "POST", env, actorID, req, apiErr, models.DefaultMaxRetries, func(fr *models.FailureRecord) {
			pid := pkg.ID
			fr.PackageID = &pid
			ext := pkg.ExternalID
			fr.ExternalID = &ext
		})
		if err != nil {
			return nil, err
		}
		return nil, &ProviderError{FailureID: record.ID, Message: apiErr.Summary()}
	}

	now := time.Now()
	prev := string(pkg.Status)
	applyScreeningResult(pkg, result, now)
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to update package: %w", err)
	}
	metrics.PackagesScreenedTotal.WithLabelValues(string(pkg.Status)).Inc()

	s.appendLog(ctx, models.AuditActionScreening, "package", pkg.ID, actorID, &prev, string(pkg.Status), models.JSONMap{
		"provider_id":    result.PackageID,
		"screening_code": result.Code,
	})
	if s.events != nil {
		s.events.PublishPackageStatus(pkg, "updated")
	}
	return pkg, nil
}

// UploadAndScreen screens every manifest row. Rows are independent: a failed
// row becomes a failure record tagged with the upload and row number while
// the rest continue.
func (s *ScreeningService) UploadAndScreen(
	ctx context.Context,
	actorID string,
	env clients.Environment,
	filename string,
	rows []clients.ScreenPackageRequest,
) (*models.Upload, error) {
	upload := &models.Upload{
		ID:          uuid.NewString(),
		UserID:      actorID,
		Filename:    filename,
		Environment: string(env),
		Status:      models.UploadStatusScreening,
		RowCount:    len(rows),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	for i := range rows {
		rowNumber := i + 1
		_, err := s.ScreenNew(ctx, actorID, env, &rows[i], &upload.ID, &rowNumber)
		switch err.(type) {
		case nil:
			upload.ScreenedCount++
		case *ProviderError:
			upload.FailedCount++
		default:
			// Store-level failure: stop here rather than hammer the provider
			upload.Status = models.UploadStatusFailed
			if saveErr := s.uploads.Update(ctx, upload); saveErr != nil {
				s.logger.WithError(saveErr).Error("failed to save upload state")
			}
			return upload, err
		}
	}

	upload.Status = models.UploadStatusCompleted
	if err := s.uploads.Update(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}
	return upload, nil
}

// Resubmit resets a correctable package back to pending, applies the
// corrections, and records the lineage. The caller re-screens it afterwards
// through ScreenExisting.
func (s *ScreeningService) Resubmit(ctx context.Context, actorID, packageID, notes string, corrections map[string]interface{}) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.CanResubmit() {
		return nil, NewGuardError("package status %q does not allow resubmission", pkg.Status)
	}

	now := time.Now()
	prev := string(pkg.Status)

	pkg.Status = models.PackageStatusPending
	pkg.ProviderID = nil
	pkg.ScreeningCode = nil
	pkg.ScreeningStatus = nil
	pkg.ScreeningResponse = nil
	pkg.LabelURL = nil
	pkg.ScreenedAt = nil
	pkg.AuditStatus = nil
	pkg.AuditImages = nil
	pkg.AuditRemark = nil
	pkg.AuditSubmittedAt = nil
	if pkg.OriginalPackageID == nil {
		// First correction marks this row as its own chain root
		root := pkg.ID
		pkg.OriginalPackageID = &root
	}
	pkg.ResubmissionCount++
	pkg.CorrectionNotes = &notes
	pkg.CorrectedAt = &now
	pkg.CorrectedBy = &actorID

	applyCorrections(pkg, corrections)

	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to update package: %w", err)
	}

	s.appendLog(ctx, models.AuditActionResubmission, "package", pkg.ID, actorID, &prev, string(pkg.Status), models.JSONMap{
		"resubmission_count": pkg.ResubmissionCount,
		"correction_notes":   notes,
	})
	if s.events != nil {
		s.events.PublishPackageStatus(pkg, "updated")
	}
	return pkg, nil
}

// applyCorrections overwrites declared fields from a correction map
func applyCorrections(pkg *models.Package, corrections map[string]interface{}) {
	for field, value := range corrections {
		switch field {
		case "description":
			if v, ok := value.(string); ok && v != "" {
				pkg.Description = v
			}
		case "recipient_name":
			if v, ok := value.(string); ok && v != "" {
				pkg.RecipientName = v
			}
		case "recipient_address":
			if v, ok := value.(string); ok && v != "" {
				pkg.RecipientAddress = v
			}
		case "quantity":
			if v, ok := value.(int); ok && v > 0 {
				pkg.Quantity = v
			}
		case "declared_value":
			if v, ok := value.(decimal.Decimal); ok && v.IsPositive() {
				pkg.DeclaredValue = v
			}
		case "weight_kg":
			if v, ok := value.(decimal.Decimal); ok && v.IsPositive() {
				pkg.WeightKg = v
			}
		}
	}
}

// appendLog writes one audit trail entry; log failures are reported but do
// not fail the owning operation.
func (s *ScreeningService) appendLog(ctx context.Context, action, entityType, entityID, actorID string, fromStatus *string, toStatus string, context models.JSONMap) {
	entry := &models.AuditLogEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		FromStatus: fromStatus,
		ToStatus:   &toStatus,
		Context:    context,
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"entity_id": entityID,
		}).Error("failed to append audit log entry")
	}
}
