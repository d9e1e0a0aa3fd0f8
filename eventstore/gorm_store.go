package eventstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// GormEventStore implements EventStore using GORM
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore creates a new GORM event store
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Save saves the uncommitted events of every aggregate in one transaction
func (s *GormEventStore) Save(ctx context.Context, aggregates ...domain.Aggregate) error {
	pending := lo.Filter(aggregates, func(aggregate domain.Aggregate, _ int) bool {
		return len(aggregate.GetEvents()) > 0
	})
	if len(pending) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, aggregate := range pending {
			if err := s.append(tx, aggregate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, aggregate := range pending {
		for _, event := range aggregate.GetEvents() {
			log.Info().
				Str("streamID", event.StreamID.String()).
				Str("eventType", event.Type).
				Int("version", event.Version).
				Msg("Event saved")
		}
		aggregate.ClearEvents()
	}
	return nil
}

func (s *GormEventStore) append(tx *gorm.DB, aggregate domain.Aggregate) error {
	streamID := aggregate.GetID()
	expected := expectedVersion(aggregate)

	var current int
	if err := tx.Model(&models.Event{}).
		Select("COALESCE(MAX(version), 0)").
		Where("stream_id = ?", streamID.String()).
		Scan(&current).Error; err != nil {
		return errors.Wrap(err, "failed to read stream version")
	}
	if current != expected {
		return &ConflictError{StreamID: streamID, Expected: expected, Actual: current}
	}

	for _, event := range aggregate.GetEvents() {
		dbEvent, err := toModel(event)
		if err != nil {
			return err
		}

		if err := tx.Create(&dbEvent).Error; err != nil {
			// A concurrent writer committed the same version first
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{StreamID: streamID, Expected: expected, Actual: event.Version}
			}
			return errors.Wrap(err, "failed to save event")
		}
	}
	return nil
}

// Load loads the events of a stream
func (s *GormEventStore) Load(ctx context.Context, streamID domain.StreamID, toVersion int) ([]domain.Event, error) {
	query := s.db.WithContext(ctx).Where("stream_id = ?", streamID.String())
	if toVersion > 0 {
		query = query.Where("version <= ?", toVersion)
	}

	var dbEvents []models.Event
	if err := query.Order("version ASC").Find(&dbEvents).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}

	return toDomainEvents(dbEvents)
}

// Exists checks if a stream exists
func (s *GormEventStore) Exists(ctx context.Context, streamID domain.StreamID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("stream_id = ?", streamID.String()).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check if stream exists")
	}

	return count > 0, nil
}

// ListStreams lists the streams of an aggregate type in creation order
func (s *GormEventStore) ListStreams(ctx context.Context, aggregateType string) ([]domain.StreamID, error) {
	var values []string
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("aggregate_type = ? AND version = ?", aggregateType, 1).
		Order("id ASC").
		Pluck("stream_id", &values).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list streams")
	}

	streamIDs := make([]domain.StreamID, 0, len(values))
	for _, value := range values {
		streamID, err := domain.ParseStreamID(value)
		if err != nil {
			return nil, err
		}
		streamIDs = append(streamIDs, streamID)
	}
	return streamIDs, nil
}

// GetUnprocessedEvents gets unprocessed events in append order
func (s *GormEventStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	db := s.db.WithContext(ctx)
	failedStreams := db.Model(&models.Event{}).Select("stream_id").Where("failed = ?", true)

	var dbEvents []models.Event
	if err := db.
		Where("processed = ? AND failed = ?", false, false).
		Where("stream_id NOT IN (?)", failedStreams).
		Order("id ASC").
		Limit(limit).
		Find(&dbEvents).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get unprocessed events")
	}

	return toDomainEvents(dbEvents)
}

// MarkEventAsProcessed marks an event as processed
func (s *GormEventStore) MarkEventAsProcessed(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": &now,
			"error":        nil,
		}).Error; err != nil {
		return errors.Wrap(err, "failed to mark event as processed")
	}

	return nil
}

// MarkEventAsFailed records the projection error of an event
func (s *GormEventStore) MarkEventAsFailed(ctx context.Context, eventID string, reason string, fatal bool) error {
	updates := map[string]interface{}{"error": reason}
	if fatal {
		updates["failed"] = true
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error; err != nil {
		return errors.Wrap(err, "failed to mark event as failed")
	}

	return nil
}

// CountUnprocessed counts events waiting to be projected
func (s *GormEventStore) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("processed = ? AND failed = ?", false, false).
		Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count unprocessed events")
	}
	return count, nil
}

// failedEventsQuery selects failed events in append order. A limit of zero
// or less lists all of them.
func failedEventsQuery(db *gorm.DB, limit int) *gorm.DB {
	query := db.
		Where("failed = ?", true).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return query
}

// GetFailedEvents lists events flagged as failed
func (s *GormEventStore) GetFailedEvents(ctx context.Context, limit int) ([]FailedEvent, error) {
	var dbEvents []models.Event
	if err := failedEventsQuery(s.db.WithContext(ctx), limit).Find(&dbEvents).Error; err != nil {
		return nil, errors.Wrap(err, "failed to get failed events")
	}

	failed := make([]FailedEvent, 0, len(dbEvents))
	for _, dbEvent := range dbEvents {
		event, err := toDomain(dbEvent)
		if err != nil {
			return nil, err
		}
		failed = append(failed, FailedEvent{Event: event, Reason: lo.FromPtr(dbEvent.Error)})
	}
	return failed, nil
}

// ResetProcessing marks every event unprocessed so the read model can be rebuilt
func (s *GormEventStore) ResetProcessing(ctx context.Context) error {
	if err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&models.Event{}).
		Updates(map[string]interface{}{
			"processed":    false,
			"processed_at": nil,
			"failed":       false,
			"error":        nil,
		}).Error; err != nil {
		return errors.Wrap(err, "failed to reset event processing")
	}
	return nil
}
