package eventstore

import (
	"context"
	"errors"
	"fmt"

	"example.com/backstage/services/portal/domain"
)

// ErrConcurrencyConflict is matched by every ConflictError
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ConflictError is returned when a stream moved past the version a writer loaded
type ConflictError struct {
	StreamID domain.StreamID
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stream %s: expected version %d, found %d", e.StreamID, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrConcurrencyConflict) match
func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// FailedEvent is an event the projection flagged as failed, with the reason
type FailedEvent struct {
	domain.Event
	Reason string
}

// EventStore is the interface for event storage
type EventStore interface {
	// Save appends the uncommitted events of every aggregate in one
	// transaction. Each stream must still be at version - len(uncommitted).
	Save(ctx context.Context, aggregates ...domain.Aggregate) error

	// Load returns the events of a stream in version order, up to toVersion
	// when it is positive
	Load(ctx context.Context, streamID domain.StreamID, toVersion int) ([]domain.Event, error)

	// Exists checks if a stream has events
	Exists(ctx context.Context, streamID domain.StreamID) (bool, error)

	// ListStreams lists the streams of an aggregate type
	ListStreams(ctx context.Context, aggregateType string) ([]domain.StreamID, error)

	// GetUnprocessedEvents gets unprocessed events in append order, skipping
	// failed events and every stream that has one
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error)

	// MarkEventAsProcessed marks an event as processed
	MarkEventAsProcessed(ctx context.Context, eventID string) error

	// MarkEventAsFailed records why an event could not be projected. A fatal
	// failure takes the event out of the unprocessed set.
	MarkEventAsFailed(ctx context.Context, eventID string, reason string, fatal bool) error

	// CountUnprocessed counts events waiting to be projected
	CountUnprocessed(ctx context.Context) (int64, error)

	// GetFailedEvents lists events flagged as failed
	GetFailedEvents(ctx context.Context, limit int) ([]FailedEvent, error)

	// ResetProcessing marks every event unprocessed and clears failures
	ResetProcessing(ctx context.Context) error
}
