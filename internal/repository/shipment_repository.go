package repository

import (
	"context"
	"errors"

	"customs-backend/internal/models"

	"gorm.io/gorm"
)

// ErrShipmentNotDeletable is returned when a delete targets a shipment that
// has already been registered with customs.
var ErrShipmentNotDeletable = errors.New("shipment can only be deleted while pending")

// ShipmentRepository defines the interface for Shipment data access
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByID(ctx context.Context, id string) (*models.Shipment, error)
	GetWithPackages(ctx context.Context, id string) (*models.Shipment, error)
	Update(ctx context.Context, shipment *models.Shipment) error
	List(ctx context.Context, userID string, status models.ShipmentStatus, limit, offset int) ([]*models.Shipment, int64, error)

	// Delete removes a shipment only while it is still pending
	Delete(ctx context.Context, id string) error

	// Transaction runs fn inside one database transaction
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// shipmentRepository implements ShipmentRepository
type shipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository creates a new ShipmentRepository instance
func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

// Create persists a new shipment
func (r *shipmentRepository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

// GetByID retrieves a shipment by ID
func (r *shipmentRepository) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// GetWithPackages retrieves a shipment with its packages preloaded
func (r *shipmentRepository) GetWithPackages(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).Preload("Packages").Where("id = ?", id).First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// Update saves the full shipment
func (r *shipmentRepository) Update(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

// List returns matching shipments newest-first
func (r *shipmentRepository) List(ctx context.Context, userID string, status models.ShipmentStatus, limit, offset int) ([]*models.Shipment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Shipment{})

	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var shipments []*models.Shipment
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&shipments).Error
	return shipments, total, err
}

// Delete removes a pending shipment; the status guard is part of the delete
func (r *shipmentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.ShipmentStatusPending).
		Delete(&models.Shipment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShipmentNotDeletable
	}
	return nil
}

// Transaction runs fn inside one database transaction
func (r *shipmentRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
