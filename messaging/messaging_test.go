package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/handlers"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, commandType string, data json.RawMessage) (*handlers.Result, error) {
	args := m.Called(ctx, commandType, data)
	result, _ := args.Get(0).(*handlers.Result)
	return result, args.Error(1)
}

type mockSettler struct {
	mock.Mock
}

func (m *mockSettler) CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error {
	return m.Called(message).Error(0)
}

func (m *mockSettler) AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error {
	return m.Called(message).Error(0)
}

func (m *mockSettler) DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error {
	return m.Called(message, options).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	return m.Called(message).Error(0)
}

func (m *mockSender) Close(ctx context.Context) error {
	return m.Called().Error(0)
}

func received(body string, properties map[string]interface{}) *azservicebus.ReceivedMessage {
	return &azservicebus.ReceivedMessage{
		MessageID:             uuid.NewString(),
		Body:                  []byte(body),
		ApplicationProperties: properties,
	}
}

func TestParseCommand(t *testing.T) {
	msg, err := ParseCommand([]byte(`{"commandType":"CreateRealm","data":{"unique_slug":"acme"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, handlers.CreateRealm, msg.CommandType)
	assert.JSONEq(t, `{"unique_slug":"acme"}`, string(msg.Data))

	body := `{"unique_slug":"acme"}`
	msg, err = ParseCommand([]byte(body), map[string]interface{}{CommandTypeProperty: handlers.CreateRealm})
	require.NoError(t, err)
	assert.Equal(t, handlers.CreateRealm, msg.CommandType)
	assert.JSONEq(t, body, string(msg.Data))

	_, err = ParseCommand([]byte(body), nil)
	assert.Error(t, err)

	_, err = ParseCommand([]byte(`not json`), nil)
	assert.Error(t, err)
}

func TestProcessMessageDispatchesCommand(t *testing.T) {
	dispatcher := &mockDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, handlers.DeleteRealm, json.RawMessage(`{"realm_id":"x"}`)).
		Return(&handlers.Result{}, nil).Once()

	processor := NewProcessor(dispatcher, nil)
	err := processor.ProcessMessage(context.Background(), received(`{"commandType":"DeleteRealm","data":{"realm_id":"x"}}`, nil))

	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestProcessMessageClassifiesFailures(t *testing.T) {
	conflict := &eventstore.ConflictError{}
	invalid := &domain.ValidationError{}
	invalid.Add("UniqueSlug", "required", "is required")

	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"validation", invalid, true},
		{"unknown command", &handlers.UnknownCommandError{CommandType: "x"}, true},
		{"unique value", fmt.Errorf("create: %w", &domain.UniqueValueAlreadyUsedError{}), true},
		{"already created", fmt.Errorf("language 1: %w", domain.ErrAggregateExists), true},
		{"concurrency conflict", conflict, false},
		{"not found", &handlers.NotFoundError{Kind: "content", ID: "1"}, false},
		{"database", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &mockDispatcher{}
			dispatcher.On("Dispatch", mock.Anything, "CreateRealm", mock.Anything).Return(nil, tt.err)

			err := NewProcessor(dispatcher, nil).ProcessMessage(context.Background(), received(`{"commandType":"CreateRealm","data":{}}`, nil))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestSettle(t *testing.T) {
	t.Run("completes handled messages", func(t *testing.T) {
		dispatcher := &mockDispatcher{}
		dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(&handlers.Result{}, nil)
		message := received(`{"commandType":"CreateRealm","data":{}}`, nil)

		settler := &mockSettler{}
		settler.On("CompleteMessage", message).Return(nil).Once()

		settle(context.Background(), settler, NewProcessor(dispatcher, nil), message)
		settler.AssertExpectations(t)
	})

	t.Run("abandons retryable failures", func(t *testing.T) {
		dispatcher := &mockDispatcher{}
		dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(nil, &eventstore.ConflictError{})
		message := received(`{"commandType":"CreateRealm","data":{}}`, nil)

		settler := &mockSettler{}
		settler.On("AbandonMessage", message).Return(nil).Once()

		settle(context.Background(), settler, NewProcessor(dispatcher, nil), message)
		settler.AssertExpectations(t)
		settler.AssertNotCalled(t, "CompleteMessage", mock.Anything)
	})

	t.Run("dead-letters malformed messages", func(t *testing.T) {
		message := received(`garbage`, nil)

		settler := &mockSettler{}
		settler.On("DeadLetterMessage", message, mock.MatchedBy(func(options *azservicebus.DeadLetterOptions) bool {
			return options != nil && options.Reason != nil && *options.Reason == "rejected"
		})).Return(nil).Once()

		settle(context.Background(), settler, NewProcessor(&mockDispatcher{}, nil), message)
		settler.AssertExpectations(t)
	})
}

func TestPublishEvent(t *testing.T) {
	realm := uuid.New()
	event := domain.Event{
		ID:            uuid.NewString(),
		StreamID:      domain.NewStreamID(&realm, uuid.New()),
		AggregateType: domain.LanguageAggregateType,
		Type:          domain.LanguageCreated,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Data:          domain.LanguageCreatedEvent{Locale: "en", IsDefault: true},
	}

	sender := &mockSender{}
	sender.On("SendMessage", mock.MatchedBy(func(msg *azservicebus.Message) bool {
		return *msg.MessageID == event.ID &&
			*msg.Subject == domain.LanguageCreated &&
			msg.ApplicationProperties["streamId"] == event.StreamID.String()
	})).Return(nil).Once()

	publisher := NewEventPublisher(sender, "portal")
	require.NoError(t, publisher.PublishEvent(context.Background(), event))
	sender.AssertExpectations(t)

	sender = &mockSender{}
	sender.On("SendMessage", mock.Anything).Return(errors.New("link detached"))
	err := NewEventPublisher(sender, "portal").PublishEvent(context.Background(), event)
	assert.ErrorContains(t, err, "link detached")
}
