package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"customs-backend/internal/dto"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
	"customs-backend/internal/repository"
)

// batchWindowSize caps concurrent provider calls per batch window. Windows
// run strictly one after another.
const batchWindowSize = 10

// BatchRetryService retries many failure records in bounded concurrent
// windows. Records within a window run in parallel; a new window starts only
// after every record in the previous one has finished.
type BatchRetryService struct {
	failures repository.FailureRepository
	retries  *RetryService
	logger   *logrus.Entry
}

// NewBatchRetryService creates a new BatchRetryService
func NewBatchRetryService(failures repository.FailureRepository, retries *RetryService) *BatchRetryService {
	return &BatchRetryService{
		failures: failures,
		retries:  retries,
		logger:   logrus.WithField("component", "batch_retry_service"),
	}
}

// RetryBatch retries the selected records. Either an explicit id list or an
// upload id selects the batch; eligibility is filtered up front so resolved
// and budget-spent records never occupy a window slot.
func (s *BatchRetryService) RetryBatch(ctx context.Context, actorID string, req *dto.BatchRetryRequest) (*dto.BatchRetryResponse, error) {
	var (
		records []*models.FailureRecord
		err     error
	)
	switch {
	case len(req.FailureIDs) > 0:
		records, err = s.failures.FindEligibleByIDs(ctx, req.FailureIDs)
	case req.UploadID != "":
		records, err = s.failures.FindEligibleByUpload(ctx, req.UploadID)
	default:
		return nil, NewGuardError("either failure_ids or upload_id is required")
	}
	if err != nil {
		return nil, err
	}

	metrics.BatchRetryRunsTotal.Inc()
	s.logger.WithFields(logrus.Fields{
		"eligible": len(records),
		"actor_id": actorID,
	}).Info("starting batch retry")

	results := make([]dto.BatchRetryItemResult, len(records))

	for start := 0; start < len(records); start += batchWindowSize {
		end := start + batchWindowSize
		if end > len(records) {
			end = len(records)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = s.retryOne(ctx, actorID, records[idx], req.Force)
			}(i)
		}
		wg.Wait()
	}

	summary := dto.BatchRetrySummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			summary.Successful++
			metrics.BatchRetryRecordsTotal.WithLabelValues("success").Inc()
		} else {
			summary.Failed++
			metrics.BatchRetryRecordsTotal.WithLabelValues("failed").Inc()
		}
	}

	s.logger.WithFields(logrus.Fields{
		"total":      summary.Total,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	}).Info("batch retry finished")

	return &dto.BatchRetryResponse{Summary: summary, Results: results}, nil
}

// retryOne wraps a single retry into an item result; errors never abort the
// batch.
func (s *BatchRetryService) retryOne(ctx context.Context, actorID string, record *models.FailureRecord, force bool) dto.BatchRetryItemResult {
	item := dto.BatchRetryItemResult{FailureID: record.ID}
	if record.ExternalID != nil {
		item.ExternalID = *record.ExternalID
	}

	outcome, err := s.retries.Retry(ctx, actorID, record.ID, force)
	if err != nil {
		item.Message = err.Error()
		return item
	}

	item.Message = outcome.Message
	if outcome.Record != nil {
		item.Status = string(outcome.Record.RetryStatus)
	}
	if outcome.Package != nil {
		item.Success = true
		item.PackageID = outcome.Package.ID
		if outcome.Package.ProviderID != nil {
			item.ProviderID = *outcome.Package.ProviderID
		}
	}
	return item
}
