package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
)

// CreateContentTypeCommand creates a content type
type CreateContentTypeCommand struct {
	RealmID       *uuid.UUID `json:"realm_id"`
	ContentTypeID uuid.UUID  `json:"content_type_id"`
	UniqueName    string     `json:"unique_name" validate:"required,max=255,identifier"`
	IsInvariant   bool       `json:"is_invariant"`
	DisplayName   *string    `json:"display_name" validate:"omitempty,max=255"`
	Description   *string    `json:"description"`
	ActorID       string     `json:"actor_id"`
}

// UpdateContentTypeCommand renames or describes a content type
type UpdateContentTypeCommand struct {
	RealmID       *uuid.UUID `json:"realm_id"`
	ContentTypeID uuid.UUID  `json:"content_type_id" validate:"required"`
	UniqueName    string     `json:"unique_name" validate:"omitempty,max=255,identifier"`
	DisplayName   *string    `json:"display_name" validate:"omitempty,max=255"`
	Description   *string    `json:"description"`
	ActorID       string     `json:"actor_id"`
}

// SetFieldDefinitionCommand adds a field definition, or replaces the one
// with the same FieldID
type SetFieldDefinitionCommand struct {
	RealmID       *uuid.UUID `json:"realm_id"`
	ContentTypeID uuid.UUID  `json:"content_type_id" validate:"required"`
	FieldID       uuid.UUID  `json:"field_id"`
	FieldTypeID   uuid.UUID  `json:"field_type_id" validate:"required"`
	UniqueName    string     `json:"unique_name" validate:"required,max=255,identifier"`
	IsInvariant   bool       `json:"is_invariant"`
	IsRequired    bool       `json:"is_required"`
	IsIndexed     bool       `json:"is_indexed"`
	IsUnique      bool       `json:"is_unique"`
	DisplayName   *string    `json:"display_name" validate:"omitempty,max=255"`
	Description   *string    `json:"description"`
	Placeholder   *string    `json:"placeholder" validate:"omitempty,max=255"`
	ActorID       string     `json:"actor_id"`
}

// RemoveFieldDefinitionCommand removes a field definition
type RemoveFieldDefinitionCommand struct {
	RealmID       *uuid.UUID `json:"realm_id"`
	ContentTypeID uuid.UUID  `json:"content_type_id" validate:"required"`
	FieldID       uuid.UUID  `json:"field_id" validate:"required"`
	ActorID       string     `json:"actor_id"`
}

// DeleteContentTypeCommand deletes a content type with all its contents
type DeleteContentTypeCommand struct {
	RealmID       *uuid.UUID `json:"realm_id"`
	ContentTypeID uuid.UUID  `json:"content_type_id" validate:"required"`
	ActorID       string     `json:"actor_id"`
}

// ContentTypeHandler handles all content type commands
type ContentTypeHandler struct {
	deps Deps
}

// HandleCreate creates a new content type
func (h *ContentTypeHandler) HandleCreate(ctx context.Context, cmd CreateContentTypeCommand) (uuid.UUID, error) {
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	contentTypeID := newID(cmd.ContentTypeID)
	log.Info().Str("content_type_id", contentTypeID.String()).Str("unique_name", cmd.UniqueName).Msg("Handling CreateContentType command")

	if err := h.ensureNameAvailable(ctx, cmd.RealmID, contentTypeID, cmd.UniqueName); err != nil {
		return uuid.Nil, err
	}

	streamID := domain.NewStreamID(cmd.RealmID, contentTypeID)
	if err := ensureNew(ctx, h.deps.Events, streamID, domain.ContentTypeAggregateType); err != nil {
		return uuid.Nil, err
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return uuid.Nil, err
	}

	actor := domain.ActorID(cmd.ActorID)
	contentType := domain.NewContentTypeAggregate(streamID)
	if err := contentType.Create(domain.Identifier(cmd.UniqueName), cmd.IsInvariant, actor); err != nil {
		return uuid.Nil, err
	}
	if err := contentType.Update(displayName, description, actor); err != nil {
		return uuid.Nil, err
	}

	if err := h.deps.Events.Save(ctx, contentType); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save content type: %w", err)
	}
	return contentTypeID, nil
}

// HandleUpdate updates a content type
func (h *ContentTypeHandler) HandleUpdate(ctx context.Context, cmd UpdateContentTypeCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("content_type_id", cmd.ContentTypeID.String()).Msg("Handling UpdateContentType command")

	contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentTypeID)))
	if err != nil {
		return err
	}

	actor := domain.ActorID(cmd.ActorID)
	if cmd.UniqueName != "" {
		if err := h.ensureNameAvailable(ctx, cmd.RealmID, cmd.ContentTypeID, cmd.UniqueName); err != nil {
			return err
		}
		if err := contentType.SetUniqueName(domain.Identifier(cmd.UniqueName), actor); err != nil {
			return err
		}
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return err
	}
	if err := contentType.Update(displayName, description, actor); err != nil {
		return err
	}

	if err := h.deps.Events.Save(ctx, contentType); err != nil {
		return fmt.Errorf("failed to save content type: %w", err)
	}
	return nil
}

// HandleSetField adds or replaces a field definition. The field type must
// exist in the realm of the content type.
func (h *ContentTypeHandler) HandleSetField(ctx context.Context, cmd SetFieldDefinitionCommand) (uuid.UUID, error) {
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	fieldID := newID(cmd.FieldID)
	log.Info().
		Str("content_type_id", cmd.ContentTypeID.String()).
		Str("field_id", fieldID.String()).
		Msg("Handling SetFieldDefinition command")

	fieldType, err := h.deps.Repositories.FieldTypes.FindByID(ctx, cmd.FieldTypeID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to find field type: %w", err)
	}
	if fieldType == nil || fieldType.IsDeleted || !sameRealm(fieldType.RealmKey, cmd.RealmID) {
		return uuid.Nil, &domain.FieldTypeNotFoundError{FieldTypeID: cmd.FieldTypeID, Field: cmd.UniqueName}
	}

	contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentTypeID)))
	if err != nil {
		return uuid.Nil, err
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return uuid.Nil, err
	}

	definition := domain.FieldDefinition{
		ID:          fieldID,
		FieldTypeID: cmd.FieldTypeID,
		IsInvariant: cmd.IsInvariant,
		IsRequired:  cmd.IsRequired,
		IsIndexed:   cmd.IsIndexed,
		IsUnique:    cmd.IsUnique,
		UniqueName:  domain.Identifier(cmd.UniqueName),
		DisplayName: displayName,
		Description: description,
		Placeholder: domain.TryDescription(cmd.Placeholder),
	}
	if err := contentType.SetField(definition, domain.ActorID(cmd.ActorID)); err != nil {
		return uuid.Nil, err
	}

	if err := h.deps.Events.Save(ctx, contentType); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save content type: %w", err)
	}
	return fieldID, nil
}

// HandleRemoveField removes a field definition
func (h *ContentTypeHandler) HandleRemoveField(ctx context.Context, cmd RemoveFieldDefinitionCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().
		Str("content_type_id", cmd.ContentTypeID.String()).
		Str("field_id", cmd.FieldID.String()).
		Msg("Handling RemoveFieldDefinition command")

	contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentTypeID)))
	if err != nil {
		return err
	}
	removed, err := contentType.RemoveField(cmd.FieldID, domain.ActorID(cmd.ActorID))
	if err != nil {
		return err
	}
	if !removed {
		return &NotFoundError{Kind: "field definition", ID: cmd.FieldID.String()}
	}

	if err := h.deps.Events.Save(ctx, contentType); err != nil {
		return fmt.Errorf("failed to save content type: %w", err)
	}
	return nil
}

// HandleDelete deletes a content type and tombstones every one of its
// contents in the same batch
func (h *ContentTypeHandler) HandleDelete(ctx context.Context, cmd DeleteContentTypeCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("content_type_id", cmd.ContentTypeID.String()).Msg("Handling DeleteContentType command")

	contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentTypeID)))
	if err != nil {
		return err
	}
	actor := domain.ActorID(cmd.ActorID)

	rows, err := h.deps.Repositories.Contents.FindByContentType(ctx, cmd.ContentTypeID)
	if err != nil {
		return fmt.Errorf("failed to find contents of content type: %w", err)
	}

	batch := make([]domain.Aggregate, 0, len(rows)+1)
	for _, row := range rows {
		content, err := load(ctx, h.deps.Events, domain.NewContentAggregate(domain.NewStreamID(cmd.RealmID, row.ContentID)))
		if err != nil {
			return err
		}
		if content.IsDeleted() {
			continue
		}
		if err := content.Delete(actor); err != nil {
			return err
		}
		batch = append(batch, content)
	}

	if err := contentType.Delete(actor); err != nil {
		return err
	}
	batch = append(batch, contentType)

	if err := h.deps.Events.Save(ctx, batch...); err != nil {
		return fmt.Errorf("failed to save content type deletion: %w", err)
	}

	log.Info().
		Str("content_type_id", cmd.ContentTypeID.String()).
		Int("contents", len(batch)-1).
		Msg("Content type deleted")
	return nil
}

func (h *ContentTypeHandler) ensureNameAvailable(ctx context.Context, realmID *uuid.UUID, contentTypeID uuid.UUID, uniqueName string) error {
	existing, err := h.deps.Repositories.ContentTypes.FindByUniqueName(ctx, realmKeyOf(realmID), uniqueName)
	if err != nil {
		return fmt.Errorf("failed to find content type by name: %w", err)
	}
	if existing != nil && existing.ContentTypeID != contentTypeID {
		return &domain.UniqueNameAlreadyUsedError{Kind: domain.ContentTypeAggregateType, UniqueName: uniqueName, ConflictID: existing.ContentTypeID.String()}
	}
	return nil
}
