package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Now is the clock used to stamp new events
var Now = func() time.Time {
	return time.Now().UTC()
}

// ErrAggregateExists is returned when Create is called on a stream that already has events
var ErrAggregateExists = errors.New("aggregate already exists")

// ErrAggregateNotCreated is returned when a mutator runs before Create
var ErrAggregateNotCreated = errors.New("aggregate has not been created")

// Aggregate is the interface for all aggregates
type Aggregate interface {
	GetID() StreamID
	GetType() string
	GetVersion() int
	GetEvents() []Event
	ClearEvents()
	LoadFromHistory(events []Event) error
	IsDeleted() bool
}

// AggregateBase provides common aggregate functionality
type AggregateBase struct {
	id            StreamID
	aggregateType string
	version       int
	events        []Event
	applier       func(event Event) error

	deleted   bool
	createdBy ActorID
	createdOn time.Time
	updatedBy ActorID
	updatedOn time.Time
}

// NewAggregateBase creates a new aggregate base
func NewAggregateBase(id StreamID, aggregateType string, applier func(Event) error) *AggregateBase {
	return &AggregateBase{
		id:            id,
		aggregateType: aggregateType,
		events:        []Event{},
		applier:       applier,
	}
}

// GetID returns the aggregate ID
func (a *AggregateBase) GetID() StreamID {
	return a.id
}

// EntityID returns the entity part of the stream id
func (a *AggregateBase) EntityID() uuid.UUID {
	return a.id.Entity
}

// GetType returns the aggregate type
func (a *AggregateBase) GetType() string {
	return a.aggregateType
}

// GetVersion returns the aggregate version
func (a *AggregateBase) GetVersion() int {
	return a.version
}

// GetEvents returns the uncommitted events
func (a *AggregateBase) GetEvents() []Event {
	return a.events
}

// ClearEvents clears the uncommitted events
func (a *AggregateBase) ClearEvents() {
	a.events = []Event{}
}

// IsDeleted reports whether a tombstone event has been applied
func (a *AggregateBase) IsDeleted() bool {
	return a.deleted
}

// CreatedBy returns the actor of the first event
func (a *AggregateBase) CreatedBy() ActorID { return a.createdBy }

// CreatedOn returns the timestamp of the first event
func (a *AggregateBase) CreatedOn() time.Time { return a.createdOn }

// UpdatedBy returns the actor of the latest event
func (a *AggregateBase) UpdatedBy() ActorID { return a.updatedBy }

// UpdatedOn returns the timestamp of the latest event
func (a *AggregateBase) UpdatedOn() time.Time { return a.updatedOn }

// Raise applies a new event and records it as uncommitted
func (a *AggregateBase) Raise(data EventData, actor ActorID) error {
	event := Event{
		ID:            uuid.NewString(),
		StreamID:      a.id,
		AggregateType: a.aggregateType,
		Type:          data.EventType(),
		Version:       a.version + 1,
		Timestamp:     Now(),
		ActorID:       actor,
		Data:          data,
	}

	if err := a.apply(event); err != nil {
		return err
	}

	a.events = append(a.events, event)
	return nil
}

// LoadFromHistory replays stored events in order without recording them
func (a *AggregateBase) LoadFromHistory(events []Event) error {
	for _, event := range events {
		if event.Version != a.version+1 {
			return fmt.Errorf("event %s has version %d but %s %s is at version %d",
				event.Type, event.Version, a.aggregateType, a.id, a.version)
		}
		if err := a.apply(event); err != nil {
			return err
		}
	}
	return nil
}

func (a *AggregateBase) apply(event Event) error {
	if a.applier == nil {
		return fmt.Errorf("applier is not set")
	}

	if err := a.applier(event); err != nil {
		return fmt.Errorf("failed to apply event %s: %w", event.Type, err)
	}

	a.version = event.Version
	if a.version == 1 {
		a.createdBy = event.ActorID
		a.createdOn = event.Timestamp
	}
	a.updatedBy = event.ActorID
	a.updatedOn = event.Timestamp

	if event.IsTombstone() {
		a.deleted = true
	}

	return nil
}

func (a *AggregateBase) ensureNew() error {
	if a.version > 0 {
		return fmt.Errorf("%s %s: %w", a.aggregateType, a.id, ErrAggregateExists)
	}
	return nil
}

func (a *AggregateBase) ensureActive() error {
	if a.version == 0 {
		return fmt.Errorf("%s %s: %w", a.aggregateType, a.id, ErrAggregateNotCreated)
	}
	if a.deleted {
		return &AlreadyDeletedError{AggregateType: a.aggregateType, ID: a.id}
	}
	return nil
}
