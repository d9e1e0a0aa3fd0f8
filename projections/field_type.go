package projections

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

// FieldTypeProjector handles projections for field type events
type FieldTypeProjector struct {
	fieldTypes repositories.FieldTypeRepository
}

// NewFieldTypeProjector creates a new field type projector
func NewFieldTypeProjector(fieldTypes repositories.FieldTypeRepository) *FieldTypeProjector {
	return &FieldTypeProjector{fieldTypes: fieldTypes}
}

func fieldTypeVersion(row *models.FieldType) int { return row.Version }

// Project projects an event
func (p *FieldTypeProjector) Project(ctx context.Context, event domain.Event) error {
	if settings, ok := domain.SettingsOf(event.Data); ok {
		return p.projectSettingsChanged(ctx, event, settings)
	}

	switch data := event.Data.(type) {
	case domain.FieldTypeCreatedEvent:
		return p.projectFieldTypeCreated(ctx, event, data)
	case domain.FieldTypeUniqueNameChangedEvent:
		return p.update(ctx, event, func(row *models.FieldType) error {
			row.UniqueName = data.UniqueName.String()
			row.UniqueNameNormalized = domain.NormalizeName(row.UniqueName)
			return nil
		})
	case domain.FieldTypeUpdatedEvent:
		return p.update(ctx, event, func(row *models.FieldType) error {
			row.DisplayName = displayNameOf(data.DisplayName)
			row.Description = data.Description
			return nil
		})
	case domain.FieldTypeDeletedEvent:
		return p.update(ctx, event, func(row *models.FieldType) error {
			row.IsDeleted = true
			return nil
		})
	default:
		return nil
	}
}

// projectFieldTypeCreated handles the field type created event
func (p *FieldTypeProjector) projectFieldTypeCreated(ctx context.Context, event domain.Event, data domain.FieldTypeCreatedEvent) error {
	skip, err := exists(ctx, event, p.fieldTypes.FindByID)
	if err != nil || skip {
		return err
	}

	defaults, err := domain.DefaultSettings(data.DataType)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	row := &models.FieldType{
		FieldTypeID:          event.StreamID.Entity,
		StreamID:             event.StreamID.String(),
		RealmKey:             event.StreamID.RealmKey(),
		Version:              event.Version,
		UniqueName:           data.UniqueName.String(),
		UniqueNameNormalized: domain.NormalizeName(data.UniqueName.String()),
		DataType:             string(data.DataType),
		Settings:             settings,
		Audit:                auditOf(event),
	}
	if err := p.fieldTypes.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to create field type in database: %w", err)
	}
	return nil
}

// projectSettingsChanged handles every settings changed event
func (p *FieldTypeProjector) projectSettingsChanged(ctx context.Context, event domain.Event, settings domain.FieldSettings) error {
	return p.update(ctx, event, func(row *models.FieldType) error {
		raw, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		row.Settings = raw
		return nil
	})
}

func (p *FieldTypeProjector) update(ctx context.Context, event domain.Event, mutate func(*models.FieldType) error) error {
	row, err := prepare(ctx, event, p.fieldTypes.FindByID, fieldTypeVersion)
	if err != nil || row == nil {
		return err
	}

	if err := mutate(row); err != nil {
		return err
	}
	row.Version = event.Version
	touch(&row.Audit, event)

	if err := p.fieldTypes.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to update field type in database: %w", err)
	}
	return nil
}
