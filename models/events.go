package models

import (
	"time"
)

// Event represents a stored domain event. Version is unique per stream.
type Event struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EventID       string     `gorm:"uniqueIndex;size:36" json:"event_id"`
	StreamID      string     `gorm:"uniqueIndex:idx_events_stream_version;size:73;not null" json:"stream_id"`
	Version       int        `gorm:"uniqueIndex:idx_events_stream_version;not null" json:"version"`
	AggregateType string     `gorm:"index;size:64" json:"aggregate_type"`
	EventType     string     `gorm:"size:128" json:"event_type"`
	Data          []byte     `json:"data"`
	ActorID       *string    `gorm:"size:255" json:"actor_id"`
	Timestamp     time.Time  `json:"timestamp"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Error         *string    `json:"error"`
	Failed        bool       `gorm:"index" json:"failed"`
	Processed     bool       `gorm:"index" json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at"`
}
