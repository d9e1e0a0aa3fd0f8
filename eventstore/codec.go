package eventstore

import (
	"encoding/json"
	"fmt"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

func toModel(event domain.Event) (models.Event, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}

	var actor *string
	if event.ActorID != "" {
		value := string(event.ActorID)
		actor = &value
	}

	return models.Event{
		EventID:       event.ID,
		StreamID:      event.StreamID.String(),
		Version:       event.Version,
		AggregateType: event.AggregateType,
		EventType:     event.Type,
		Data:          data,
		ActorID:       actor,
		Timestamp:     event.Timestamp,
	}, nil
}

func toDomain(dbEvent models.Event) (domain.Event, error) {
	streamID, err := domain.ParseStreamID(dbEvent.StreamID)
	if err != nil {
		return domain.Event{}, err
	}

	data, err := domain.DecodeEvent(dbEvent.EventType, dbEvent.Data)
	if err != nil {
		return domain.Event{}, err
	}

	var actor domain.ActorID
	if dbEvent.ActorID != nil {
		actor = domain.ActorID(*dbEvent.ActorID)
	}

	return domain.Event{
		ID:            dbEvent.EventID,
		StreamID:      streamID,
		AggregateType: dbEvent.AggregateType,
		Type:          dbEvent.EventType,
		Version:       dbEvent.Version,
		Timestamp:     dbEvent.Timestamp.UTC(),
		ActorID:       actor,
		Data:          data,
	}, nil
}

func toDomainEvents(dbEvents []models.Event) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(dbEvents))
	for _, dbEvent := range dbEvents {
		event, err := toDomain(dbEvent)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", dbEvent.EventID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func expectedVersion(aggregate domain.Aggregate) int {
	return aggregate.GetVersion() - len(aggregate.GetEvents())
}
