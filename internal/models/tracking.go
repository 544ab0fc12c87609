package models

import (
	"time"
)

// TrackingEvent is one provider tracking event for a package or shipment.
// Ingestion is idempotent: the composite unique index lets re-pulls insert
// with ignore-duplicates semantics.
type TrackingEvent struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	EntityType string    `json:"entity_type" gorm:"size:30;not null;uniqueIndex:idx_tracking_event_key"`
	EntityID   string    `json:"entity_id" gorm:"size:36;not null;uniqueIndex:idx_tracking_event_key"`
	EventType  string    `json:"event_type" gorm:"size:50;not null;uniqueIndex:idx_tracking_event_key"`
	EventTime  time.Time `json:"event_time" gorm:"not null;uniqueIndex:idx_tracking_event_key"`

	Location    *string `json:"location" gorm:"size:200"`
	Description *string `json:"description" gorm:"type:text"`
	Raw         JSONMap `json:"raw" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for TrackingEvent
func (TrackingEvent) TableName() string {
	return "tracking_events"
}
