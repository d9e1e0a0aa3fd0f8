package projections

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// ErrMissingPriorEvent is matched by every MissingPriorEventError
var ErrMissingPriorEvent = errors.New("missing prior event")

// MissingPriorEventError is returned when an event arrives before the events
// it builds on. The stream cannot be projected until it is replayed.
type MissingPriorEventError struct {
	StreamID  domain.StreamID
	EventType string
	Expected  int
	Actual    int
}

func (e *MissingPriorEventError) Error() string {
	return fmt.Sprintf("stream %s: %s expects the row at version %d, found %d", e.StreamID, e.EventType, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrMissingPriorEvent) match
func (e *MissingPriorEventError) Is(target error) bool {
	return target == ErrMissingPriorEvent
}

// Projector applies the events of one aggregate kind to the read model
type Projector interface {
	Project(ctx context.Context, event domain.Event) error
}

// checkVersion decides whether event applies to a row. A creation applies
// only to a missing row. Any other event applies to a row exactly one
// version behind it; rows ahead of it already saw the event.
func checkVersion(event domain.Event, exists bool, version int, creates bool) (bool, error) {
	if creates {
		if exists {
			log.Info().
				Str("stream_id", event.StreamID.String()).
				Str("event_type", event.Type).
				Msg("Row already exists, skipping creation")
			return false, nil
		}
		return true, nil
	}

	expected := event.Version - 1
	if !exists {
		return false, &MissingPriorEventError{StreamID: event.StreamID, EventType: event.Type, Expected: expected}
	}
	switch {
	case version < expected:
		return false, &MissingPriorEventError{StreamID: event.StreamID, EventType: event.Type, Expected: expected, Actual: version}
	case version > expected:
		log.Info().
			Str("stream_id", event.StreamID.String()).
			Str("event_type", event.Type).
			Int("version", event.Version).
			Msg("Event already applied, skipping")
		return false, nil
	}
	return true, nil
}

// prepare loads the row an event updates and checks its version. A nil row
// with a nil error means the event must be skipped.
func prepare[T any](ctx context.Context, event domain.Event, find func(context.Context, uuid.UUID) (*T, error), versionOf func(*T) int) (*T, error) {
	row, err := find(ctx, event.StreamID.Entity)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s row: %w", event.AggregateType, err)
	}

	version := 0
	if row != nil {
		version = versionOf(row)
	}
	apply, err := checkVersion(event, row != nil, version, false)
	if err != nil || !apply {
		return nil, err
	}
	return row, nil
}

// exists loads the row a creation event would insert and reports whether
// the creation must be skipped
func exists[T any](ctx context.Context, event domain.Event, find func(context.Context, uuid.UUID) (*T, error)) (bool, error) {
	row, err := find(ctx, event.StreamID.Entity)
	if err != nil {
		return false, fmt.Errorf("failed to load %s row: %w", event.AggregateType, err)
	}
	apply, err := checkVersion(event, row != nil, 0, true)
	return !apply, err
}

func auditOf(event domain.Event) models.Audit {
	return models.Audit{
		CreatedBy: string(event.ActorID),
		CreatedOn: event.Timestamp,
		UpdatedBy: string(event.ActorID),
		UpdatedOn: event.Timestamp,
	}
}

func touch(audit *models.Audit, event domain.Event) {
	audit.UpdatedBy = string(event.ActorID)
	audit.UpdatedOn = event.Timestamp
}

func displayNameOf(name *domain.DisplayName) *string {
	if name == nil {
		return nil
	}
	value := string(*name)
	return &value
}
