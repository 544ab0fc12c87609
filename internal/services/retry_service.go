package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"customs-backend/internal/clients"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// RetryOutcome is the result of one retry attempt
type RetryOutcome struct {
	Record  *models.FailureRecord
	Package *models.Package
	Message string
}

// RetryService replays failed provider calls from their stored request
// bodies. Only screening failures are auto-retryable; duty, audit, and
// shipment failures are routed to manual handling without a provider call.
type RetryService struct {
	failures repository.FailureRepository
	packages repository.PackageRepository
	auditLog repository.AuditLogRepository
	client   ScreeningAPI
	events   EventPublisher
	logger   *logrus.Entry
}

// NewRetryService creates a new RetryService
func NewRetryService(
	failures repository.FailureRepository,
	packages repository.PackageRepository,
	auditLog repository.AuditLogRepository,
	client ScreeningAPI,
	events EventPublisher,
) *RetryService {
	return &RetryService{
		failures: failures,
		packages: packages,
		auditLog: auditLog,
		client:   client,
		events:   events,
		logger:   logrus.WithField("component", "retry_service"),
	}
}

// Retry runs one retry attempt for a failure record. force skips the
// next_retry_at gate for operator-initiated retries; every other guard still
// applies. Guard rejections never consume retry budget and never reach the
// provider.
func (s *RetryService) Retry(ctx context.Context, actorID, failureID string, force bool) (*RetryOutcome, error) {
	record, err := s.failures.GetByID(ctx, failureID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if record.RetryStatus == models.RetryStatusSuccess {
		metrics.RetryAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrAlreadyResolved
	}
	if record.RetryStatus == models.RetryStatusRetrying {
		metrics.RetryAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrRetryInProgress
	}

	// Budget check before anything touches the provider
	if !record.HasRetryBudget() {
		if record.RetryStatus != models.RetryStatusExhausted {
			record.MarkExhausted(now)
			if err := s.failures.Update(ctx, record); err != nil {
				return nil, err
			}
		}
		metrics.RetryAttemptsTotal.WithLabelValues("exhausted").Inc()
		return nil, NewGuardError("maximum retry attempts reached")
	}

	// Only screening failures carry a replayable request
	if record.Endpoint != models.EndpointScreenPackage {
		if record.RetryStatus != models.RetryStatusManualRequired {
			record.RetryStatus = models.RetryStatusManualRequired
			record.NextRetryAt = nil
			if err := s.failures.Update(ctx, record); err != nil {
				return nil, err
			}
		}
		metrics.RetryAttemptsTotal.WithLabelValues("unsupported").Inc()
		s.logger.WithFields(logrus.Fields{
			"failure_id": record.ID,
			"endpoint":   record.Endpoint,
		}).Warn("automatic retry unsupported for endpoint")
		return nil, NewGuardError("Unsupported endpoint for automatic retry")
	}

	if !force && record.NextRetryAt != nil && now.Before(*record.NextRetryAt) {
		metrics.RetryAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, &RetryNotDueError{NextRetryAt: *record.NextRetryAt}
	}

	claimed, err := s.failures.ClaimForRetry(ctx, record.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.RetryAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrRetryInProgress
	}
	record.RetryStatus = models.RetryStatusRetrying
	record.LastRetryAt = &now

	var req clients.ScreenPackageRequest
	if err := record.RequestBody.Decode(&req); err != nil {
		// Unreplayable body: hand the record to an operator
		s.release(ctx, record.ID, models.RetryStatusManualRequired)
		metrics.RetryAttemptsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("failed to decode stored request body: %w", err)
	}

	env := clients.Environment(record.Environment)
	result, apiErr := s.client.ScreenPackage(ctx, env, &req)
	if apiErr != nil {
		return s.finishFailedAttempt(ctx, record, apiErr)
	}
	return s.finishSuccessfulAttempt(ctx, actorID, record, &req, result)
}

// finishSuccessfulAttempt materializes or updates the package and closes the
// record as success.
func (s *RetryService) finishSuccessfulAttempt(
	ctx context.Context,
	actorID string,
	record *models.FailureRecord,
	req *clients.ScreenPackageRequest,
	result *clients.ScreeningResult,
) (*RetryOutcome, error) {
	now := time.Now()
	env := clients.Environment(record.Environment)

	// The provider call already succeeded; a store error here must not leave
	// the record claimed, and replaying would duplicate the call, so the
	// record goes to an operator.
	var pkg *models.Package
	if record.PackageID != nil {
		// The failed call was a re-screen of an existing package
		existing, err := s.packages.GetByID(ctx, *record.PackageID)
		if err != nil {
			s.release(ctx, record.ID, models.RetryStatusManualRequired)
			return nil, err
		}
		applyScreeningResult(existing, result, now)
		if err := s.packages.Update(ctx, existing); err != nil {
			s.release(ctx, record.ID, models.RetryStatusManualRequired)
			return nil, err
		}
		pkg = existing
	} else {
		pkg = buildPackageFromScreening(req, result, record.UserID, env, record.UploadID, record.RowNumber, now)
		if err := s.packages.Create(ctx, pkg); err != nil {
			s.release(ctx, record.ID, models.RetryStatusManualRequired)
			return nil, err
		}
	}
	metrics.PackagesScreenedTotal.WithLabelValues(string(pkg.Status)).Inc()

	notes := fmt.Sprintf("Retry successful on attempt %d", record.RetryCount+1)
	record.MarkSuccess(pkg.ID, actorID, notes, now)
	if err := s.failures.Update(ctx, record); err != nil {
		s.release(ctx, record.ID, models.RetryStatusManualRequired)
		return nil, err
	}
	metrics.RetryAttemptsTotal.WithLabelValues("success").Inc()

	s.appendLog(ctx, record, actorID, string(models.RetryStatusSuccess), models.JSONMap{
		"package_id":     pkg.ID,
		"provider_id":    result.PackageID,
		"screening_code": result.Code,
		"retry_count":    record.RetryCount,
	})
	if s.events != nil {
		s.events.PublishRetryOutcome(record, true)
		s.events.PublishPackageStatus(pkg, "created")
	}

	s.logger.WithFields(logrus.Fields{
		"failure_id":  record.ID,
		"package_id":  pkg.ID,
		"retry_count": record.RetryCount,
	}).Info("retry succeeded")

	return &RetryOutcome{Record: record, Package: pkg, Message: notes}, nil
}

// finishFailedAttempt books a failed attempt: the counter advances and the
// record is either rescheduled or exhausted.
func (s *RetryService) finishFailedAttempt(ctx context.Context, record *models.FailureRecord, apiErr *clients.APIError) (*RetryOutcome, error) {
	now := time.Now()
	message := apiErr.Summary()

	record.RecordFailedAttempt(message, now)
	if err := s.failures.Update(ctx, record); err != nil {
		// The attempt is not booked; the record stays retryable
		s.release(ctx, record.ID, models.RetryStatusPending)
		return nil, err
	}

	outcome := "failed"
	if record.RetryStatus == models.RetryStatusExhausted {
		outcome = "exhausted"
	}
	metrics.RetryAttemptsTotal.WithLabelValues(outcome).Inc()

	s.appendLog(ctx, record, record.UserID, string(record.RetryStatus), models.JSONMap{
		"error_message": message,
		"retry_count":   record.RetryCount,
	})
	if s.events != nil {
		s.events.PublishRetryOutcome(record, false)
	}

	s.logger.WithFields(logrus.Fields{
		"failure_id":   record.ID,
		"retry_count":  record.RetryCount,
		"retry_status": record.RetryStatus,
	}).Warn("retry attempt failed")

	return &RetryOutcome{Record: record, Message: message}, nil
}

// staleClaimAge is how long a retrying claim is trusted. A process crash
// mid-retry leaves the claim behind; after this window Resolve may take the
// record over.
const staleClaimAge = 10 * time.Minute

// release hands a claimed record back so an error path never leaves it
// stuck in retrying.
func (s *RetryService) release(ctx context.Context, failureID string, to models.RetryStatus) {
	if err := s.failures.Release(ctx, failureID, to); err != nil {
		s.logger.WithError(err).WithField("failure_id", failureID).Error("failed to release claimed record")
	}
}

// Resolve routes a failure record to manual handling, independent of its
// retry budget. Re-resolution overwrites the previous resolution; only a
// fresh in-flight retry blocks it.
func (s *RetryService) Resolve(ctx context.Context, actorID, failureID, notes string) (*models.FailureRecord, error) {
	record, err := s.failures.GetByID(ctx, failureID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if record.RetryStatus == models.RetryStatusRetrying {
		if record.LastRetryAt != nil && now.Sub(*record.LastRetryAt) < staleClaimAge {
			return nil, ErrRetryInProgress
		}
	}
	record.RetryStatus = models.RetryStatusManualRequired
	record.ResolvedAt = &now
	record.ResolvedBy = &actorID
	record.ResolutionNotes = &notes
	record.NextRetryAt = nil
	if err := s.failures.Update(ctx, record); err != nil {
		return nil, err
	}

	entry := &models.AuditLogEntry{
		Action:     models.AuditActionManualResolution,
		EntityType: "failure_record",
		EntityID:   record.ID,
		ActorID:    actorID,
		ToStatus:   strPtr(string(models.RetryStatusManualRequired)),
		Context:    models.JSONMap{"notes": notes},
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("failure_id", record.ID).Error("failed to append audit log entry")
	}
	return record, nil
}

// List exposes filtered failure record listings to the dashboard
func (s *RetryService) List(ctx context.Context, filter repository.FailureFilter, limit, offset int) ([]*models.FailureRecord, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.failures.List(ctx, filter, limit, offset)
}

// Get returns one failure record
func (s *RetryService) Get(ctx context.Context, failureID string) (*models.FailureRecord, error) {
	return s.failures.GetByID(ctx, failureID)
}

func (s *RetryService) appendLog(ctx context.Context, record *models.FailureRecord, actorID, toStatus string, context models.JSONMap) {
	entry := &models.AuditLogEntry{
		Action:     models.AuditActionRetry,
		EntityType: "failure_record",
		EntityID:   record.ID,
		ActorID:    actorID,
		ToStatus:   &toStatus,
		Context:    context,
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("failure_id", record.ID).Error("failed to append audit log entry")
	}
}

func strPtr(s string) *string {
	return &s
}
