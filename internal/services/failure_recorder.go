package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"customs-backend/internal/clients"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// recordFailure persists a failure record for a failed provider call and
// bumps the creation counter. The first next_retry_at comes from the backoff
// schedule at attempt zero; mutate lets the caller link owning entities or
// override the retry policy before the insert.
func recordFailure(
	ctx context.Context,
	failures repository.FailureRepository,
	endpoint, method string,
	env clients.Environment,
	userID string,
	requestBody interface{},
	apiErr *clients.APIError,
	maxRetries int,
	mutate func(*models.FailureRecord),
) (*models.FailureRecord, error) {
	body, err := models.ToJSONMap(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot request body: %w", err)
	}

	record := &models.FailureRecord{
		ID:          uuid.NewString(),
		Endpoint:    endpoint,
		Method:      method,
		Environment: string(env),
		UserID:      userID,
		RequestBody: body,
		RetryStatus: models.RetryStatusPending,
		MaxRetries:  maxRetries,
	}
	if apiErr != nil {
		if apiErr.StatusCode != 0 {
			sc := apiErr.StatusCode
			record.StatusCode = &sc
		}
		if apiErr.Code != "" {
			code := apiErr.Code
			record.ErrorCode = &code
		}
		msg := apiErr.Summary()
		record.ErrorMessage = &msg
		if apiErr.Details != nil {
			record.ErrorDetails = models.JSONMap(apiErr.Details)
		}
	}
	record.ScheduleNextRetry(time.Now())
	if mutate != nil {
		mutate(record)
	}

	if err := failures.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist failure record: %w", err)
	}
	metrics.FailureRecordsCreatedTotal.WithLabelValues(endpoint).Inc()
	return record, nil
}

// manualOnly adjusts a record for endpoints that are never auto-retried:
// the record lands directly in the operator queue.
func manualOnly(record *models.FailureRecord) {
	record.RetryStatus = models.RetryStatusManualRequired
	record.MaxRetries = models.ManualOnlyMaxRetries
	record.NextRetryAt = nil
}
