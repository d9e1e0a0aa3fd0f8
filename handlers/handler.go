package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/repositories"
	"example.com/backstage/services/portal/utils"
	"example.com/backstage/services/portal/validation"
)

// ErrNotFound is matched by every NotFoundError
var ErrNotFound = errors.New("not found")

// NotFoundError is returned when a command targets a missing entity
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Deps are the collaborators shared by every handler. Repositories is read
// only: handlers check names and references against the read model.
type Deps struct {
	Events       *eventstore.Repository
	Repositories *repositories.Repositories
	Engine       *indexing.Engine
	Validator    *validation.Validator
}

// Handlers groups the handler of every aggregate kind
type Handlers struct {
	Realms       *RealmHandler
	Languages    *LanguageHandler
	FieldTypes   *FieldTypeHandler
	ContentTypes *ContentTypeHandler
	Contents     *ContentHandler
}

// New creates every handler over the same dependencies
func New(deps Deps) *Handlers {
	if deps.Validator == nil {
		deps.Validator = validation.New(deps.Repositories.FieldTypes)
	}
	return &Handlers{
		Realms:       &RealmHandler{deps: deps},
		Languages:    &LanguageHandler{deps: deps},
		FieldTypes:   &FieldTypeHandler{deps: deps},
		ContentTypes: &ContentTypeHandler{deps: deps},
		Contents:     &ContentHandler{deps: deps},
	}
}

// validateCommand runs the struct tags of a command
func validateCommand(cmd interface{}) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return domain.NewValidationError("", err)
	}
	return nil
}

// load replays an existing aggregate; a stream without events is not found
func load[T domain.Aggregate](ctx context.Context, events *eventstore.Repository, aggregate T) (T, error) {
	found, err := events.Load(ctx, aggregate)
	if err != nil {
		return aggregate, fmt.Errorf("failed to load %s: %w", aggregate.GetType(), err)
	}
	if !found {
		return aggregate, &NotFoundError{Kind: aggregate.GetType(), ID: aggregate.GetID().String()}
	}
	return aggregate, nil
}

// ensureNew fails when the stream already has events
func ensureNew(ctx context.Context, events *eventstore.Repository, streamID domain.StreamID, kind string) error {
	exists, err := events.Store().Exists(ctx, streamID)
	if err != nil {
		return fmt.Errorf("failed to check if %s exists: %w", kind, err)
	}
	if exists {
		return fmt.Errorf("%s %s: %w", kind, streamID, domain.ErrAggregateExists)
	}
	return nil
}

// newID returns id, or a fresh id when it is unset
func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func realmKeyOf(realmID *uuid.UUID) *string {
	return domain.NewStreamID(realmID, uuid.Nil).RealmKey()
}

func sameRealm(key *string, realmID *uuid.UUID) bool {
	other := realmKeyOf(realmID)
	if key == nil || other == nil {
		return key == nil && other == nil
	}
	return *key == *other
}

// metadata converts optional display name and description input
func metadata(displayName, description *string) (*domain.DisplayName, *string, error) {
	name, err := domain.TryDisplayName(displayName)
	if err != nil {
		return nil, nil, err
	}
	return name, domain.TryDescription(description), nil
}
