package projections

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

// ContentTypeProjector handles projections for content type events
type ContentTypeProjector struct {
	contentTypes repositories.ContentTypeRepository
	fieldTypes   repositories.FieldTypeRepository
	contents     repositories.ContentRepository
	engine       *indexing.Engine
	search       SearchIndexer
}

// NewContentTypeProjector creates a new content type projector
func NewContentTypeProjector(repos *repositories.Repositories, engine *indexing.Engine, search SearchIndexer) *ContentTypeProjector {
	if search == nil {
		search = NopSearchIndexer{}
	}
	return &ContentTypeProjector{
		contentTypes: repos.ContentTypes,
		fieldTypes:   repos.FieldTypes,
		contents:     repos.Contents,
		engine:       engine,
		search:       search,
	}
}

func contentTypeVersion(row *models.ContentType) int { return row.Version }

// Project projects an event
func (p *ContentTypeProjector) Project(ctx context.Context, event domain.Event) error {
	switch data := event.Data.(type) {
	case domain.ContentTypeCreatedEvent:
		return p.projectContentTypeCreated(ctx, event, data)
	case domain.ContentTypeUniqueNameChangedEvent:
		return p.update(ctx, event, func(row *models.ContentType) error {
			row.UniqueName = data.UniqueName.String()
			row.UniqueNameNormalized = domain.NormalizeName(row.UniqueName)
			return nil
		})
	case domain.ContentTypeUpdatedEvent:
		return p.update(ctx, event, func(row *models.ContentType) error {
			row.DisplayName = displayNameOf(data.DisplayName)
			row.Description = data.Description
			return nil
		})
	case domain.ContentTypeFieldDefinitionChangedEvent:
		return p.update(ctx, event, func(row *models.ContentType) error {
			return p.projectFieldDefinitionChanged(ctx, row, data.FieldDefinition)
		})
	case domain.ContentTypeFieldDefinitionRemovedEvent:
		return p.update(ctx, event, func(row *models.ContentType) error {
			if err := p.engine.RemoveField(ctx, data.FieldID); err != nil {
				return fmt.Errorf("failed to remove field indices: %w", err)
			}
			kept := row.Fields[:0]
			for _, field := range row.Fields {
				if field.FieldDefinitionID != data.FieldID {
					kept = append(kept, field)
				}
			}
			row.Fields = kept
			return nil
		})
	case domain.ContentTypeDeletedEvent:
		return p.update(ctx, event, func(row *models.ContentType) error {
			row.IsDeleted = true
			return nil
		})
	default:
		return nil
	}
}

// projectContentTypeCreated handles the content type created event
func (p *ContentTypeProjector) projectContentTypeCreated(ctx context.Context, event domain.Event, data domain.ContentTypeCreatedEvent) error {
	skip, err := exists(ctx, event, p.contentTypes.FindByID)
	if err != nil || skip {
		return err
	}

	row := &models.ContentType{
		ContentTypeID:        event.StreamID.Entity,
		StreamID:             event.StreamID.String(),
		RealmKey:             event.StreamID.RealmKey(),
		Version:              event.Version,
		IsInvariant:          data.IsInvariant,
		UniqueName:           data.UniqueName.String(),
		UniqueNameNormalized: domain.NormalizeName(data.UniqueName.String()),
		Audit:                auditOf(event),
	}
	if err := p.contentTypes.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to create content type in database: %w", err)
	}
	return nil
}

// projectFieldDefinitionChanged upserts a field definition and reindexes the
// contents of the type when the change affects their index rows
func (p *ContentTypeProjector) projectFieldDefinitionChanged(ctx context.Context, row *models.ContentType, definition domain.FieldDefinition) error {
	fieldType, err := p.fieldTypes.FindByID(ctx, definition.FieldTypeID)
	if err != nil {
		return fmt.Errorf("failed to find field type: %w", err)
	}
	if fieldType == nil {
		// The field type stream may not be projected yet; retry later.
		return fmt.Errorf("field type %s of field %s is not projected yet", definition.FieldTypeID, definition.UniqueName)
	}

	field := models.FieldDefinition{
		FieldDefinitionID:    definition.ID,
		ContentTypeID:        row.ContentTypeID,
		FieldTypeID:          definition.FieldTypeID,
		DataType:             fieldType.DataType,
		IsInvariant:          definition.IsInvariant,
		IsRequired:           definition.IsRequired,
		IsIndexed:            definition.IsIndexed,
		IsUnique:             definition.IsUnique,
		UniqueName:           definition.UniqueName.String(),
		UniqueNameNormalized: domain.NormalizeName(definition.UniqueName.String()),
		DisplayName:          displayNameOf(definition.DisplayName),
		Description:          definition.Description,
		Placeholder:          definition.Placeholder,
	}

	reindex := definition.IsIndexed || definition.IsUnique
	if existing, ok := row.FindField(definition.ID); ok {
		reindex = existing.IsIndexed != field.IsIndexed ||
			existing.IsUnique != field.IsUnique ||
			existing.IsInvariant != field.IsInvariant ||
			(existing.UniqueName != field.UniqueName && (field.IsIndexed || field.IsUnique))
		*existing = field
	} else {
		row.Fields = append(row.Fields, field)
	}

	if !reindex {
		return nil
	}
	return p.reindex(ctx, row)
}

func (p *ContentTypeProjector) reindex(ctx context.Context, row *models.ContentType) error {
	contents, err := p.contents.FindByContentType(ctx, row.ContentTypeID)
	if err != nil {
		return fmt.Errorf("failed to find contents of content type: %w", err)
	}
	if err := p.engine.ReindexContentType(ctx, row, contents); err != nil {
		return err
	}
	for i := range contents {
		for j := range contents[i].Locales {
			if err := p.search.IndexLocale(ctx, row, &contents[i], &contents[i].Locales[j]); err != nil {
				return fmt.Errorf("failed to index content in search: %w", err)
			}
		}
	}

	log.Info().
		Str("content_type_id", row.ContentTypeID.String()).
		Int("contents", len(contents)).
		Msg("Content type reindexed")
	return nil
}

func (p *ContentTypeProjector) update(ctx context.Context, event domain.Event, mutate func(*models.ContentType) error) error {
	row, err := prepare(ctx, event, p.contentTypes.FindByID, contentTypeVersion)
	if err != nil || row == nil {
		return err
	}

	if err := mutate(row); err != nil {
		return err
	}
	row.Version = event.Version
	touch(&row.Audit, event)

	if err := p.contentTypes.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to update content type in database: %w", err)
	}
	return nil
}
