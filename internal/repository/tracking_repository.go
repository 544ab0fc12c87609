package repository

import (
	"context"

	"customs-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackingRepository defines the interface for tracking event ingestion
type TrackingRepository interface {
	// UpsertEvents inserts events with ignore-duplicates semantics on the
	// (entity_type, entity_id, event_type, event_time) key, so re-pulling a
	// tracking history is idempotent. Returns the number of new rows.
	UpsertEvents(ctx context.Context, events []models.TrackingEvent) (int64, error)

	ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.TrackingEvent, error)
}

// trackingRepository implements TrackingRepository
type trackingRepository struct {
	db *gorm.DB
}

// NewTrackingRepository creates a new TrackingRepository instance
func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &trackingRepository{db: db}
}

// UpsertEvents inserts events, ignoring duplicates of the composite key
func (r *trackingRepository) UpsertEvents(ctx context.Context, events []models.TrackingEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "event_type"},
			{Name: "event_time"},
		},
		DoNothing: true,
	}).Create(&events)
	return result.RowsAffected, result.Error
}

// ListByEntity returns an entity's events oldest-first
func (r *trackingRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.TrackingEvent, error) {
	var events []*models.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("event_time ASC").
		Find(&events).Error
	return events, err
}
