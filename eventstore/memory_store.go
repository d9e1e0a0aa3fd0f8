package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// MemoryEventStore keeps events in memory, encoded the same way the GORM
// store encodes them. It backs tests and the standalone command.
type MemoryEventStore struct {
	mu      sync.RWMutex
	events  []*models.Event
	streams map[string][]*models.Event
}

// NewMemoryEventStore creates an empty in-memory event store
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{streams: map[string][]*models.Event{}}
}

// Save appends the uncommitted events of every aggregate, all or nothing
func (s *MemoryEventStore) Save(_ context.Context, aggregates ...domain.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*models.Event, 0)
	for _, aggregate := range aggregates {
		if len(aggregate.GetEvents()) == 0 {
			continue
		}

		streamID := aggregate.GetID()
		expected := expectedVersion(aggregate)
		if current := s.currentVersion(streamID.String()); current != expected {
			return &ConflictError{StreamID: streamID, Expected: expected, Actual: current}
		}

		for _, event := range aggregate.GetEvents() {
			dbEvent, err := toModel(event)
			if err != nil {
				return err
			}
			pending = append(pending, &dbEvent)
		}
	}

	now := time.Now().UTC()
	for _, dbEvent := range pending {
		dbEvent.ID = uint(len(s.events) + 1)
		dbEvent.CreatedAt = now
		dbEvent.UpdatedAt = now
		s.events = append(s.events, dbEvent)
		s.streams[dbEvent.StreamID] = append(s.streams[dbEvent.StreamID], dbEvent)
	}

	for _, aggregate := range aggregates {
		aggregate.ClearEvents()
	}
	return nil
}

func (s *MemoryEventStore) currentVersion(streamID string) int {
	stream := s.streams[streamID]
	if len(stream) == 0 {
		return 0
	}
	return stream[len(stream)-1].Version
}

// Load loads the events of a stream
func (s *MemoryEventStore) Load(_ context.Context, streamID domain.StreamID, toVersion int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := lo.Filter(s.streams[streamID.String()], func(dbEvent *models.Event, _ int) bool {
		return toVersion <= 0 || dbEvent.Version <= toVersion
	})
	return toDomainEvents(lo.FromSlicePtr(stream))
}

// Exists checks if a stream exists
func (s *MemoryEventStore) Exists(_ context.Context, streamID domain.StreamID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.streams[streamID.String()]) > 0, nil
}

// ListStreams lists the streams of an aggregate type in creation order
func (s *MemoryEventStore) ListStreams(_ context.Context, aggregateType string) ([]domain.StreamID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	streamIDs := make([]domain.StreamID, 0)
	for _, dbEvent := range s.events {
		if dbEvent.AggregateType != aggregateType || dbEvent.Version != 1 {
			continue
		}
		streamID, err := domain.ParseStreamID(dbEvent.StreamID)
		if err != nil {
			return nil, err
		}
		streamIDs = append(streamIDs, streamID)
	}
	return streamIDs, nil
}

// GetUnprocessedEvents gets unprocessed events in append order
func (s *MemoryEventStore) GetUnprocessedEvents(_ context.Context, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failedStreams := map[string]bool{}
	for _, dbEvent := range s.events {
		if dbEvent.Failed {
			failedStreams[dbEvent.StreamID] = true
		}
	}

	pending := make([]models.Event, 0)
	for _, dbEvent := range s.events {
		if limit > 0 && len(pending) >= limit {
			break
		}
		if dbEvent.Processed || dbEvent.Failed || failedStreams[dbEvent.StreamID] {
			continue
		}
		pending = append(pending, *dbEvent)
	}
	return toDomainEvents(pending)
}

// MarkEventAsProcessed marks an event as processed
func (s *MemoryEventStore) MarkEventAsProcessed(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dbEvent, ok := s.find(eventID); ok {
		now := time.Now().UTC()
		dbEvent.Processed = true
		dbEvent.ProcessedAt = &now
		dbEvent.Error = nil
	}
	return nil
}

// MarkEventAsFailed records the projection error of an event
func (s *MemoryEventStore) MarkEventAsFailed(_ context.Context, eventID string, reason string, fatal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dbEvent, ok := s.find(eventID); ok {
		dbEvent.Error = &reason
		if fatal {
			dbEvent.Failed = true
		}
	}
	return nil
}

func (s *MemoryEventStore) find(eventID string) (*models.Event, bool) {
	return lo.Find(s.events, func(dbEvent *models.Event) bool { return dbEvent.EventID == eventID })
}

// CountUnprocessed counts events waiting to be projected
func (s *MemoryEventStore) CountUnprocessed(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(lo.CountBy(s.events, func(dbEvent *models.Event) bool {
		return !dbEvent.Processed && !dbEvent.Failed
	})), nil
}

// GetFailedEvents lists events flagged as failed
func (s *MemoryEventStore) GetFailedEvents(_ context.Context, limit int) ([]FailedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := make([]FailedEvent, 0)
	for _, dbEvent := range s.events {
		if !dbEvent.Failed {
			continue
		}
		if limit > 0 && len(failed) >= limit {
			break
		}
		event, err := toDomain(*dbEvent)
		if err != nil {
			return nil, err
		}
		failed = append(failed, FailedEvent{Event: event, Reason: lo.FromPtr(dbEvent.Error)})
	}
	return failed, nil
}

// ResetProcessing marks every event unprocessed
func (s *MemoryEventStore) ResetProcessing(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dbEvent := range s.events {
		dbEvent.Processed = false
		dbEvent.ProcessedAt = nil
		dbEvent.Failed = false
		dbEvent.Error = nil
	}
	return nil
}

var (
	_ EventStore = (*MemoryEventStore)(nil)
	_ EventStore = (*GormEventStore)(nil)
)
