package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"example.com/backstage/services/portal/domain"
)

// Sender sends Service Bus messages
type Sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// EventPublisher notifies subscribers of projected events
type EventPublisher struct {
	sender Sender
	source string
}

// NewEventPublisher creates a publisher over sender
func NewEventPublisher(sender Sender, source string) *EventPublisher {
	return &EventPublisher{sender: sender, source: source}
}

// PublishEvent sends event as JSON. The message id is the event id so the
// broker drops duplicates after a replay.
func (p *EventPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	messageID := event.ID
	subject := event.Type
	contentType := "application/json"
	msg := &azservicebus.Message{
		MessageID:   &messageID,
		Subject:     &subject,
		ContentType: &contentType,
		Body:        body,
		ApplicationProperties: map[string]interface{}{
			"source":        p.source,
			"aggregateType": event.AggregateType,
			"streamId":      event.StreamID.String(),
			"version":       event.Version,
		},
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.ID, err)
	}
	return nil
}

// Close closes the sender
func (p *EventPublisher) Close(ctx context.Context) error {
	return p.sender.Close(ctx)
}
