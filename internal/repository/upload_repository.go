package repository

import (
	"context"

	"customs-backend/internal/models"

	"gorm.io/gorm"
)

// UploadRepository defines the interface for Upload data access
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByID(ctx context.Context, id string) (*models.Upload, error)
	Update(ctx context.Context, upload *models.Upload) error
	List(ctx context.Context, userID string, limit, offset int) ([]*models.Upload, int64, error)
}

// uploadRepository implements UploadRepository
type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new UploadRepository instance
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

// Create persists a new upload
func (r *uploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

// GetByID retrieves an upload by ID
func (r *uploadRepository) GetByID(ctx context.Context, id string) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// Update saves the full upload
func (r *uploadRepository) Update(ctx context.Context, upload *models.Upload) error {
	return r.db.WithContext(ctx).Save(upload).Error
}

// List returns a user's uploads newest-first
func (r *uploadRepository) List(ctx context.Context, userID string, limit, offset int) ([]*models.Upload, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Upload{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var uploads []*models.Upload
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&uploads).Error
	return uploads, total, err
}
