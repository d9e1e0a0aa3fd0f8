package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
)

// CreateFieldTypeCommand creates a field type. Settings is the JSON encoded
// settings of DataType; it may be empty.
type CreateFieldTypeCommand struct {
	RealmID     *uuid.UUID      `json:"realm_id"`
	FieldTypeID uuid.UUID       `json:"field_type_id"`
	UniqueName  string          `json:"unique_name" validate:"required,max=255,unique_name"`
	DataType    string          `json:"data_type" validate:"required"`
	DisplayName *string         `json:"display_name" validate:"omitempty,max=255"`
	Description *string         `json:"description"`
	Settings    json.RawMessage `json:"settings"`
	ActorID     string          `json:"actor_id"`
}

// UpdateFieldTypeCommand renames, describes or reconfigures a field type.
// Settings is left unchanged when empty.
type UpdateFieldTypeCommand struct {
	RealmID     *uuid.UUID      `json:"realm_id"`
	FieldTypeID uuid.UUID       `json:"field_type_id" validate:"required"`
	UniqueName  string          `json:"unique_name" validate:"omitempty,max=255,unique_name"`
	DisplayName *string         `json:"display_name" validate:"omitempty,max=255"`
	Description *string         `json:"description"`
	Settings    json.RawMessage `json:"settings"`
	ActorID     string          `json:"actor_id"`
}

// DeleteFieldTypeCommand deletes a field type and every field definition using it
type DeleteFieldTypeCommand struct {
	RealmID     *uuid.UUID `json:"realm_id"`
	FieldTypeID uuid.UUID  `json:"field_type_id" validate:"required"`
	ActorID     string     `json:"actor_id"`
}

// FieldTypeHandler handles all field type commands
type FieldTypeHandler struct {
	deps Deps
}

// HandleCreate creates a new field type
func (h *FieldTypeHandler) HandleCreate(ctx context.Context, cmd CreateFieldTypeCommand) (uuid.UUID, error) {
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	fieldTypeID := newID(cmd.FieldTypeID)
	log.Info().Str("field_type_id", fieldTypeID.String()).Str("data_type", cmd.DataType).Msg("Handling CreateFieldType command")

	dataType, err := domain.ParseDataType(cmd.DataType)
	if err != nil {
		return uuid.Nil, err
	}
	settings, err := decodeSettings(dataType, cmd.Settings)
	if err != nil {
		return uuid.Nil, err
	}
	if err := h.ensureNameAvailable(ctx, cmd.RealmID, fieldTypeID, cmd.UniqueName); err != nil {
		return uuid.Nil, err
	}

	streamID := domain.NewStreamID(cmd.RealmID, fieldTypeID)
	if err := ensureNew(ctx, h.deps.Events, streamID, domain.FieldTypeAggregateType); err != nil {
		return uuid.Nil, err
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return uuid.Nil, err
	}

	actor := domain.ActorID(cmd.ActorID)
	fieldType := domain.NewFieldTypeAggregate(streamID)
	if err := fieldType.Create(domain.UniqueName(cmd.UniqueName), settings, actor); err != nil {
		return uuid.Nil, err
	}
	if err := fieldType.Update(displayName, description, actor); err != nil {
		return uuid.Nil, err
	}

	if err := h.deps.Events.Save(ctx, fieldType); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save field type: %w", err)
	}
	return fieldTypeID, nil
}

// HandleUpdate updates a field type
func (h *FieldTypeHandler) HandleUpdate(ctx context.Context, cmd UpdateFieldTypeCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("field_type_id", cmd.FieldTypeID.String()).Msg("Handling UpdateFieldType command")

	fieldType, err := load(ctx, h.deps.Events, domain.NewFieldTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.FieldTypeID)))
	if err != nil {
		return err
	}

	actor := domain.ActorID(cmd.ActorID)
	if cmd.UniqueName != "" {
		if err := h.ensureNameAvailable(ctx, cmd.RealmID, cmd.FieldTypeID, cmd.UniqueName); err != nil {
			return err
		}
		if err := fieldType.SetUniqueName(domain.UniqueName(cmd.UniqueName), actor); err != nil {
			return err
		}
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return err
	}
	if err := fieldType.Update(displayName, description, actor); err != nil {
		return err
	}

	if len(cmd.Settings) > 0 {
		settings, err := decodeSettings(fieldType.DataType, cmd.Settings)
		if err != nil {
			return err
		}
		if err := fieldType.SetSettings(settings, actor); err != nil {
			return err
		}
	}

	if err := h.deps.Events.Save(ctx, fieldType); err != nil {
		return fmt.Errorf("failed to save field type: %w", err)
	}
	return nil
}

// HandleDelete deletes a field type. Every content type referencing it loses
// the matching field definitions in the same batch.
func (h *FieldTypeHandler) HandleDelete(ctx context.Context, cmd DeleteFieldTypeCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("field_type_id", cmd.FieldTypeID.String()).Msg("Handling DeleteFieldType command")

	fieldType, err := load(ctx, h.deps.Events, domain.NewFieldTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.FieldTypeID)))
	if err != nil {
		return err
	}
	actor := domain.ActorID(cmd.ActorID)

	rows, err := h.deps.Repositories.ContentTypes.FindByFieldType(ctx, cmd.FieldTypeID)
	if err != nil {
		return fmt.Errorf("failed to find content types of field type: %w", err)
	}

	batch := make([]domain.Aggregate, 0, len(rows)+1)
	for _, row := range rows {
		realmID, err := domain.ParseRealmKey(row.RealmKey)
		if err != nil {
			return err
		}
		contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(realmID, row.ContentTypeID)))
		if err != nil {
			return err
		}
		if contentType.IsDeleted() {
			continue
		}
		for _, field := range contentType.FieldsReferencing(cmd.FieldTypeID) {
			if _, err := contentType.RemoveField(field.ID, actor); err != nil {
				return err
			}
		}
		batch = append(batch, contentType)
	}

	if err := fieldType.Delete(actor); err != nil {
		return err
	}
	batch = append(batch, fieldType)

	if err := h.deps.Events.Save(ctx, batch...); err != nil {
		return fmt.Errorf("failed to save field type deletion: %w", err)
	}

	log.Info().
		Str("field_type_id", cmd.FieldTypeID.String()).
		Int("content_types", len(batch)-1).
		Msg("Field type deleted")
	return nil
}

func (h *FieldTypeHandler) ensureNameAvailable(ctx context.Context, realmID *uuid.UUID, fieldTypeID uuid.UUID, uniqueName string) error {
	existing, err := h.deps.Repositories.FieldTypes.FindByUniqueName(ctx, realmKeyOf(realmID), uniqueName)
	if err != nil {
		return fmt.Errorf("failed to find field type by name: %w", err)
	}
	if existing != nil && existing.FieldTypeID != fieldTypeID {
		return &domain.UniqueNameAlreadyUsedError{Kind: domain.FieldTypeAggregateType, UniqueName: uniqueName, ConflictID: existing.FieldTypeID.String()}
	}
	return nil
}

func decodeSettings(dataType domain.DataType, raw json.RawMessage) (domain.FieldSettings, error) {
	settings, err := domain.DecodeSettings(dataType, raw)
	if err != nil {
		var unsupported *domain.DataTypeNotSupportedError
		if errors.As(err, &unsupported) {
			return nil, err
		}
		errs := &domain.ValidationError{}
		errs.Add("Settings", "invalid", err.Error())
		return nil, errs
	}
	return settings, nil
}
