package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"example.com/backstage/services/portal/config"
)

const (
	receiveBatchSize = 10
	sessionRetryWait = 2 * time.Second
)

// AzureClient consumes command sessions and sends event notifications
type AzureClient struct {
	client         *azservicebus.Client
	maxConcurrency int64
}

// NewAzureClient creates a Service Bus client from the connection string
func NewAzureClient(cfg config.AzureConfig) (*AzureClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create Service Bus client")
	}

	maxConcurrency := int64(cfg.MaxConcurrency)
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &AzureClient{client: client, maxConcurrency: maxConcurrency}, nil
}

// StartConsumers accepts sessions of queueName until ctx is done. Commands
// of one session are handled in order; at most MaxConcurrency sessions are
// handled at once.
func (a *AzureClient) StartConsumers(ctx context.Context, queueName string, processor MessageProcessor) error {
	log.Info().Str("queue", queueName).Int64("max_concurrency", a.maxConcurrency).Msg("Starting consumers")

	sessions := semaphore.NewWeighted(a.maxConcurrency)
	for {
		if err := sessions.Acquire(ctx, 1); err != nil {
			return nil
		}

		receiver, err := a.client.AcceptNextSessionForQueue(ctx, queueName, nil)
		if err != nil {
			sessions.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Debug().Msg("No session available, waiting...")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(sessionRetryWait):
				}
				continue
			}
			return pkgerrors.Wrap(err, "failed to accept session")
		}

		log.Info().Str("session_id", receiver.SessionID()).Msg("Session received")
		go func() {
			defer sessions.Release(1)
			a.handleSession(ctx, receiver, processor)
		}()
	}
}

func (a *AzureClient) handleSession(ctx context.Context, receiver *azservicebus.SessionReceiver, processor MessageProcessor) {
	defer func() {
		log.Info().Str("session_id", receiver.SessionID()).Msg("Closing session")
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("session_id", receiver.SessionID()).Msg("Error closing session")
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, receiveBatchSize, nil)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("session_id", receiver.SessionID()).Msg("Error receiving messages")
			}
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info().
			Int("count", len(messages)).
			Str("session_id", receiver.SessionID()).
			Msg("Received messages")

		for _, message := range messages {
			settle(ctx, receiver, processor, message)
		}
	}
}

// Settler completes, abandons or dead-letters received messages
type Settler interface {
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
}

// settle processes one message. A failed message is abandoned so the broker
// redelivers it, unless redelivery cannot succeed.
func settle(ctx context.Context, settler Settler, processor MessageProcessor, message *azservicebus.ReceivedMessage) {
	logger := log.With().Str("message_id", message.MessageID).Logger()

	err := processor.ProcessMessage(ctx, message)
	switch {
	case err == nil:
		if err := settler.CompleteMessage(context.Background(), message, nil); err != nil {
			logger.Error().Err(err).Msg("Error completing message")
		}

	case IsPermanent(err):
		logger.Warn().Err(err).Msg("Rejecting message")
		reason := "rejected"
		description := err.Error()
		options := &azservicebus.DeadLetterOptions{Reason: &reason, ErrorDescription: &description}
		if err := settler.DeadLetterMessage(context.Background(), message, options); err != nil {
			logger.Error().Err(err).Msg("Error dead-lettering message")
		}

	default:
		logger.Error().Err(err).Msg("Error processing message")
		if err := settler.AbandonMessage(context.Background(), message, nil); err != nil {
			logger.Error().Err(err).Msg("Error abandoning message")
		}
	}
}

// NewSender creates a sender for a queue or topic
func (a *AzureClient) NewSender(queueOrTopic string) (*azservicebus.Sender, error) {
	sender, err := a.client.NewSender(queueOrTopic, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create Service Bus sender")
	}
	return sender, nil
}

// Close closes the Service Bus connection
func (a *AzureClient) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}
