package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/handlers"
	"example.com/backstage/services/portal/tracing"
)

// CommandTypeProperty names the application property that may carry the
// command type when the body holds only the command
const CommandTypeProperty = "commandType"

// CommandMessage is the common message structure
type CommandMessage struct {
	CommandType string          `json:"commandType"`
	Data        json.RawMessage `json:"data"`
}

// MessageProcessor handles one received message
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// Dispatcher handles a serialized command
type Dispatcher interface {
	Dispatch(ctx context.Context, commandType string, data json.RawMessage) (*handlers.Result, error)
}

// Processor turns command messages into dispatched commands
type Processor struct {
	dispatcher Dispatcher
	tracer     tracing.Tracer
}

// NewProcessor creates a command message processor
func NewProcessor(dispatcher Dispatcher, tracer tracing.Tracer) *Processor {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	return &Processor{dispatcher: dispatcher, tracer: tracer}
}

// ParseCommand reads the command type and data of a message body. A body
// without a commandType field is the command itself, typed by the
// commandType application property.
func ParseCommand(body []byte, properties map[string]interface{}) (CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("error unmarshalling message: %w", err)
	}
	if msg.CommandType != "" {
		return msg, nil
	}

	commandType, _ := properties[CommandTypeProperty].(string)
	if commandType == "" {
		return msg, errors.New("message has no command type")
	}
	return CommandMessage{CommandType: commandType, Data: body}, nil
}

// ProcessMessage dispatches the command carried by message
func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	msg, err := ParseCommand(message.Body, message.ApplicationProperties)
	if err != nil {
		return &PermanentError{Err: err}
	}

	log.Info().
		Str("command_type", msg.CommandType).
		Str("message_id", message.MessageID).
		Msg("Processing message")

	ctx, txn := p.tracer.StartTransaction(ctx, "command/"+msg.CommandType)
	defer p.tracer.EndTransaction(txn)
	p.tracer.AddAttribute(txn, "message_id", message.MessageID)

	if _, err := p.dispatcher.Dispatch(ctx, msg.CommandType, msg.Data); err != nil {
		p.tracer.RecordError(txn, err)
		if IsPermanent(err) {
			return &PermanentError{Err: err}
		}
		return err
	}
	return nil
}

// PermanentError marks a message that fails the same way on every delivery
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether redelivering the command cannot succeed.
// Concurrency conflicts and infrastructure failures are retried; rejected
// input and broken invariants are not.
func IsPermanent(err error) bool {
	var (
		permanent    *PermanentError
		invalid      *domain.ValidationError
		unknown      *handlers.UnknownCommandError
		deleted      *domain.AlreadyDeletedError
		notAllowed   *domain.LanguageNotAllowedError
		required     *domain.LanguageRequiredError
		mismatch     *domain.ContentTypeMismatchError
		nameTaken    *domain.UniqueNameAlreadyUsedError
		valueTaken   *domain.UniqueValueAlreadyUsedError
		dataMismatch *domain.DataTypeMismatchError
		unsupported  *domain.DataTypeNotSupportedError
	)
	switch {
	case errors.Is(err, domain.ErrAggregateExists),
		errors.As(err, &permanent),
		errors.As(err, &invalid),
		errors.As(err, &unknown),
		errors.As(err, &deleted),
		errors.As(err, &notAllowed),
		errors.As(err, &required),
		errors.As(err, &mismatch),
		errors.As(err, &nameTaken),
		errors.As(err, &valueTaken),
		errors.As(err, &dataMismatch),
		errors.As(err, &unsupported):
		return true
	}
	return false
}
