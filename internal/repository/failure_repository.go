// Package repository provides data access interfaces and implementations
package repository

import (
	"context"
	"time"

	"customs-backend/internal/models"

	"gorm.io/gorm"
)

// FailureFilter narrows a failure record listing. Any subset of fields may
// be set; zero values mean "no constraint".
type FailureFilter struct {
	RetryStatus models.RetryStatus
	Environment string
	UploadID    string
	PackageID   string
	Endpoint    string
}

// FailureRepository defines the interface for FailureRecord data access
type FailureRepository interface {
	Create(ctx context.Context, record *models.FailureRecord) error
	GetByID(ctx context.Context, id string) (*models.FailureRecord, error)
	Update(ctx context.Context, record *models.FailureRecord) error

	// List returns matching records newest-first with the total match count
	List(ctx context.Context, filter FailureFilter, limit, offset int) ([]*models.FailureRecord, int64, error)

	// ClaimForRetry is the conditional transition pending|manual_required ->
	// retrying. It returns false when another caller holds the record, so two
	// concurrent retries of the same id cannot both proceed.
	ClaimForRetry(ctx context.Context, id string, now time.Time) (bool, error)

	// Release undoes a claim after a guard rejection, restoring the given status
	Release(ctx context.Context, id string, status models.RetryStatus) error

	// FindEligibleByIDs returns records from the id list that are still
	// retryable: status pending or manual_required with budget remaining.
	FindEligibleByIDs(ctx context.Context, ids []string) ([]*models.FailureRecord, error)

	// FindEligibleByUpload returns retryable records belonging to one upload
	FindEligibleByUpload(ctx context.Context, uploadID string) ([]*models.FailureRecord, error)
}

// failureRepository implements FailureRepository
type failureRepository struct {
	db *gorm.DB
}

// NewFailureRepository creates a new FailureRepository instance
func NewFailureRepository(db *gorm.DB) FailureRepository {
	return &failureRepository{db: db}
}

// Create persists a new failure record
func (r *failureRepository) Create(ctx context.Context, record *models.FailureRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a failure record by ID
func (r *failureRepository) GetByID(ctx context.Context, id string) (*models.FailureRecord, error) {
	var record models.FailureRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Update saves the full record
func (r *failureRepository) Update(ctx context.Context, record *models.FailureRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// List returns matching records newest-first
func (r *failureRepository) List(ctx context.Context, filter FailureFilter, limit, offset int) ([]*models.FailureRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FailureRecord{})

	if filter.RetryStatus != "" {
		query = query.Where("retry_status = ?", filter.RetryStatus)
	}
	if filter.Environment != "" {
		query = query.Where("environment = ?", filter.Environment)
	}
	if filter.UploadID != "" {
		query = query.Where("upload_id = ?", filter.UploadID)
	}
	if filter.PackageID != "" {
		query = query.Where("package_id = ?", filter.PackageID)
	}
	if filter.Endpoint != "" {
		query = query.Where("endpoint = ?", filter.Endpoint)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*models.FailureRecord
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	return records, total, err
}

// ClaimForRetry performs the compare-and-swap into retrying
func (r *failureRepository) ClaimForRetry(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.FailureRecord{}).
		Where("id = ? AND retry_status IN ?", id, []models.RetryStatus{
			models.RetryStatusPending,
			models.RetryStatusManualRequired,
		}).
		Updates(map[string]interface{}{
			"retry_status":  models.RetryStatusRetrying,
			"last_retry_at": now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release restores a claimed record to the given status
func (r *failureRepository) Release(ctx context.Context, id string, status models.RetryStatus) error {
	return r.db.WithContext(ctx).Model(&models.FailureRecord{}).
		Where("id = ? AND retry_status = ?", id, models.RetryStatusRetrying).
		Update("retry_status", status).Error
}

// FindEligibleByIDs returns still-retryable records from the id list
func (r *failureRepository) FindEligibleByIDs(ctx context.Context, ids []string) ([]*models.FailureRecord, error) {
	var records []*models.FailureRecord
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Where("retry_status IN ?", []models.RetryStatus{models.RetryStatusPending, models.RetryStatusManualRequired}).
		Where("retry_count < max_retries").
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// FindEligibleByUpload returns still-retryable records for one upload
func (r *failureRepository) FindEligibleByUpload(ctx context.Context, uploadID string) ([]*models.FailureRecord, error) {
	var records []*models.FailureRecord
	err := r.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Where("retry_status IN ?", []models.RetryStatus{models.RetryStatusPending, models.RetryStatusManualRequired}).
		Where("retry_count < max_retries").
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}
