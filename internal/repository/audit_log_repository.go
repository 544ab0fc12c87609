package repository

import (
	"context"

	"customs-backend/internal/models"

	"gorm.io/gorm"
)

// AuditLogRepository defines the interface for the append-only action log.
// There is deliberately no update or delete.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLogEntry, error)
}

// auditLogRepository implements AuditLogRepository
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new AuditLogRepository instance
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Append writes one log entry
func (r *auditLogRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByEntity returns an entity's log entries newest-first
func (r *auditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLogEntry, error) {
	var entries []*models.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	return entries, err
}
