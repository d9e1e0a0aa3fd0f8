package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/metrics"
)

// Command types
const (
	CreateRealm = "CreateRealm"
	UpdateRealm = "UpdateRealm"
	DeleteRealm = "DeleteRealm"

	CreateLanguage     = "CreateLanguage"
	UpdateLanguage     = "UpdateLanguage"
	SetDefaultLanguage = "SetDefaultLanguage"
	DeleteLanguage     = "DeleteLanguage"

	CreateFieldType = "CreateFieldType"
	UpdateFieldType = "UpdateFieldType"
	DeleteFieldType = "DeleteFieldType"

	CreateContentType     = "CreateContentType"
	UpdateContentType     = "UpdateContentType"
	SetFieldDefinition    = "SetFieldDefinition"
	RemoveFieldDefinition = "RemoveFieldDefinition"
	DeleteContentType     = "DeleteContentType"

	CreateContent       = "CreateContent"
	SaveContentLocale   = "SaveContentLocale"
	PublishContent      = "PublishContent"
	UnpublishContent    = "UnpublishContent"
	RemoveContentLocale = "RemoveContentLocale"
	DeleteContent       = "DeleteContent"
)

// UnknownCommandError is returned for a command type no handler accepts
type UnknownCommandError struct {
	CommandType string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command type %q", e.CommandType)
}

// Result is returned by a dispatched command. ID is set by commands that
// create an entity.
type Result struct {
	ID *uuid.UUID `json:"id,omitempty"`
}

type route func(ctx context.Context, data json.RawMessage) (*Result, error)

// Dispatcher routes serialized commands to their handler. Service Bus
// messages and the HTTP command endpoint both go through it.
type Dispatcher struct {
	routes  map[string]route
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher over every handler
func NewDispatcher(h *Handlers, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		metrics: m,
		routes: map[string]route{
			CreateRealm: creates(h.Realms.HandleCreate),
			UpdateRealm: updates(h.Realms.HandleUpdate),
			DeleteRealm: updates(h.Realms.HandleDelete),

			CreateLanguage:     creates(h.Languages.HandleCreate),
			UpdateLanguage:     updates(h.Languages.HandleUpdate),
			SetDefaultLanguage: updates(h.Languages.HandleSetDefault),
			DeleteLanguage:     updates(h.Languages.HandleDelete),

			CreateFieldType: creates(h.FieldTypes.HandleCreate),
			UpdateFieldType: updates(h.FieldTypes.HandleUpdate),
			DeleteFieldType: updates(h.FieldTypes.HandleDelete),

			CreateContentType:     creates(h.ContentTypes.HandleCreate),
			UpdateContentType:     updates(h.ContentTypes.HandleUpdate),
			SetFieldDefinition:    creates(h.ContentTypes.HandleSetField),
			RemoveFieldDefinition: updates(h.ContentTypes.HandleRemoveField),
			DeleteContentType:     updates(h.ContentTypes.HandleDelete),

			CreateContent:       creates(h.Contents.HandleCreate),
			SaveContentLocale:   updates(h.Contents.HandleSaveLocale),
			PublishContent:      updates(h.Contents.HandlePublish),
			UnpublishContent:    updates(h.Contents.HandleUnpublish),
			RemoveContentLocale: updates(h.Contents.HandleRemoveLocale),
			DeleteContent:       updates(h.Contents.HandleDelete),
		},
	}
}

// Dispatch decodes data into the command of commandType and handles it
func (d *Dispatcher) Dispatch(ctx context.Context, commandType string, data json.RawMessage) (*Result, error) {
	handle, ok := d.routes[commandType]
	if !ok {
		d.metrics.CommandHandled(commandType, false)
		return nil, &UnknownCommandError{CommandType: commandType}
	}

	result, err := handle(ctx, data)
	d.metrics.CommandHandled(commandType, err == nil)
	if err != nil {
		log.Error().Err(err).Str("command_type", commandType).Msg("Command failed")
		return nil, err
	}
	return result, nil
}

func decode[T any](data json.RawMessage) (T, error) {
	var cmd T
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		invalid := &domain.ValidationError{}
		invalid.Add("data", "malformed", err.Error())
		return cmd, invalid
	}
	return cmd, nil
}

func creates[T any](handle func(context.Context, T) (uuid.UUID, error)) route {
	return func(ctx context.Context, data json.RawMessage) (*Result, error) {
		cmd, err := decode[T](data)
		if err != nil {
			return nil, err
		}
		id, err := handle(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return &Result{ID: &id}, nil
	}
}

func updates[T any](handle func(context.Context, T) error) route {
	return func(ctx context.Context, data json.RawMessage) (*Result, error) {
		cmd, err := decode[T](data)
		if err != nil {
			return nil, err
		}
		if err := handle(ctx, cmd); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}
}
