package repository

import (
	"context"
	"time"

	"customs-backend/internal/models"

	"gorm.io/gorm"
)

// PackageFilter narrows a package listing
type PackageFilter struct {
	UserID     string
	UploadID   string
	ShipmentID string
	Status     models.PackageStatus
	ExternalID string
}

// PackageRepository defines the interface for Package data access
type PackageRepository interface {
	Create(ctx context.Context, pkg *models.Package) error
	GetByID(ctx context.Context, id string) (*models.Package, error)
	Update(ctx context.Context, pkg *models.Package) error
	List(ctx context.Context, filter PackageFilter, limit, offset int) ([]*models.Package, int64, error)

	// ClaimForDuty is the conditional transition accepted|duty_pending ->
	// duty_pending for a package without a DDPN. Returns false when the guard
	// fails, which covers the double-payment race.
	ClaimForDuty(ctx context.Context, id string, now time.Time) (bool, error)

	// ReleaseDutyClaim rolls duty_pending back to accepted after a provider failure
	ReleaseDutyClaim(ctx context.Context, id string) error

	// UpdateFields applies a partial update by primary key
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error

	// AssignToShipment links packages to a shipment and marks them registered
	AssignToShipment(ctx context.Context, tx *gorm.DB, shipmentID string, packageIDs []string) error
}

// packageRepository implements PackageRepository
type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository creates a new PackageRepository instance
func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

// Create persists a new package
func (r *packageRepository) Create(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

// GetByID retrieves a package by ID
func (r *packageRepository) GetByID(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Update saves the full package
func (r *packageRepository) Update(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Save(pkg).Error
}

// List returns matching packages newest-first
func (r *packageRepository) List(ctx context.Context, filter PackageFilter, limit, offset int) ([]*models.Package, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Package{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.UploadID != "" {
		query = query.Where("upload_id = ?", filter.UploadID)
	}
	if filter.ShipmentID != "" {
		query = query.Where("shipment_id = ?", filter.ShipmentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ExternalID != "" {
		query = query.Where("external_id = ?", filter.ExternalID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var packages []*models.Package
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&packages).Error
	return packages, total, err
}

// ClaimForDuty performs the guarded transition into duty_pending
func (r *packageRepository) ClaimForDuty(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Package{}).
		Where("id = ? AND status IN ? AND ddpn IS NULL AND provider_id IS NOT NULL", id, []models.PackageStatus{
			models.PackageStatusAccepted,
			models.PackageStatusDutyPending,
		}).
		Updates(map[string]interface{}{
			"status":     models.PackageStatusDutyPending,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseDutyClaim rolls the status back after a failed payment
func (r *packageRepository) ReleaseDutyClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Package{}).
		Where("id = ? AND status = ?", id, models.PackageStatusDutyPending).
		Update("status", models.PackageStatusAccepted).Error
}

// UpdateFields applies a partial update by primary key
func (r *packageRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Package{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// AssignToShipment links packages to a shipment inside the given transaction
func (r *packageRepository) AssignToShipment(ctx context.Context, tx *gorm.DB, shipmentID string, packageIDs []string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Model(&models.Package{}).
		Where("id IN ?", packageIDs).
		Updates(map[string]interface{}{
			"shipment_id": shipmentID,
			"status":      models.PackageStatusRegistered,
			"updated_at":  time.Now(),
		}).Error
}
