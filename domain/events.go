package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EventData is the type-specific payload of a domain event
type EventData interface {
	EventType() string
}

// Event represents a domain event
type Event struct {
	ID            string    `json:"id"`
	StreamID      StreamID  `json:"stream_id"`
	AggregateType string    `json:"aggregate_type"`
	Type          string    `json:"type"`
	Version       int       `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	ActorID       ActorID   `json:"actor_id,omitempty"`
	Data          EventData `json:"data"`
}

// Tombstone marks a payload as the deletion of its aggregate.
// Embed it in every *Deleted event.
type Tombstone struct{}

func (Tombstone) tombstone() {}

type tombstoner interface {
	tombstone()
}

// IsTombstone reports whether the event deletes its aggregate
func (e Event) IsTombstone() bool {
	_, ok := e.Data.(tombstoner)
	return ok
}

type eventDecoder func(data []byte) (EventData, error)

var (
	registryMu    sync.RWMutex
	eventRegistry = map[string]eventDecoder{}
)

// RegisterEvent makes a payload type decodable by its event type name
func RegisterEvent[T EventData]() {
	var zero T
	eventType := zero.EventType()

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := eventRegistry[eventType]; exists {
		panic(fmt.Sprintf("event type %s registered twice", eventType))
	}
	eventRegistry[eventType] = func(data []byte) (EventData, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// DecodeEvent converts a stored payload back into its registered type
func DecodeEvent(eventType string, data []byte) (EventData, error) {
	registryMu.RLock()
	decode, ok := eventRegistry[eventType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	payload, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event data: %w", eventType, err)
	}
	return payload, nil
}

// RegisteredEventTypes lists every known event type name
func RegisteredEventTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(eventRegistry))
	for eventType := range eventRegistry {
		types = append(types, eventType)
	}
	return types
}
