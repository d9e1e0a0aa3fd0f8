package projections

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

// ContentProjector handles projections for content events. Index rows and
// search documents are written before the content row, so a retried event
// rewrites them from scratch.
type ContentProjector struct {
	contents     repositories.ContentRepository
	contentTypes repositories.ContentTypeRepository
	engine       *indexing.Engine
	search       SearchIndexer
}

// NewContentProjector creates a new content projector
func NewContentProjector(repos *repositories.Repositories, engine *indexing.Engine, search SearchIndexer) *ContentProjector {
	if search == nil {
		search = NopSearchIndexer{}
	}
	return &ContentProjector{
		contents:     repos.Contents,
		contentTypes: repos.ContentTypes,
		engine:       engine,
		search:       search,
	}
}

func contentVersion(row *models.Content) int { return row.Version }

// Project projects an event
func (p *ContentProjector) Project(ctx context.Context, event domain.Event) error {
	switch data := event.Data.(type) {
	case domain.ContentCreatedEvent:
		return p.projectContentCreated(ctx, event, data)
	case domain.ContentLocaleChangedEvent:
		return p.projectLocaleChanged(ctx, event, data)
	case domain.ContentLocalePublishedEvent:
		return p.projectLocalePublished(ctx, event, data)
	case domain.ContentLocaleUnpublishedEvent:
		return p.projectLocaleUnpublished(ctx, event, data)
	case domain.ContentLocaleRemovedEvent:
		return p.projectLocaleRemoved(ctx, event, data)
	case domain.ContentDeletedEvent:
		return p.projectContentDeleted(ctx, event)
	default:
		return nil
	}
}

// projectContentCreated handles the content created event
func (p *ContentProjector) projectContentCreated(ctx context.Context, event domain.Event, data domain.ContentCreatedEvent) error {
	skip, err := exists(ctx, event, p.contents.FindByID)
	if err != nil || skip {
		return err
	}

	contentType, err := p.contentTypeOf(ctx, data.ContentTypeID)
	if err != nil {
		return err
	}

	row := &models.Content{
		ContentID:     event.StreamID.Entity,
		StreamID:      event.StreamID.String(),
		RealmKey:      event.StreamID.RealmKey(),
		ContentTypeID: data.ContentTypeID,
		Version:       event.Version,
		Audit:         auditOf(event),
	}
	locale, err := newLocaleRow(row, nil, data.Invariant, event)
	if err != nil {
		return err
	}
	row.Locales = append(row.Locales, *locale)

	if err := p.index(ctx, contentType, row, &row.Locales[0]); err != nil {
		return err
	}
	if err := p.contents.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to create content in database: %w", err)
	}
	return nil
}

// projectLocaleChanged upserts a locale, starting new locales at revision 1
func (p *ContentProjector) projectLocaleChanged(ctx context.Context, event domain.Event, data domain.ContentLocaleChangedEvent) error {
	row, contentType, err := p.load(ctx, event)
	if err != nil || row == nil {
		return err
	}

	locale, ok := row.FindLocale(data.LanguageID)
	if !ok {
		created, err := newLocaleRow(row, data.LanguageID, data.Locale, event)
		if err != nil {
			return err
		}
		row.Locales = append(row.Locales, *created)
		locale = &row.Locales[len(row.Locales)-1]
	} else {
		values, err := models.EncodeFieldValues(data.Locale.FieldValues)
		if err != nil {
			return fmt.Errorf("failed to encode field values: %w", err)
		}
		locale.UniqueName = data.Locale.UniqueName.String()
		locale.UniqueNameNormalized = domain.NormalizeName(locale.UniqueName)
		locale.DisplayName = displayNameOf(data.Locale.DisplayName)
		locale.Description = data.Locale.Description
		locale.FieldValues = values
		locale.Revision++
		touch(&locale.Audit, event)
	}

	if err := p.index(ctx, contentType, row, locale); err != nil {
		return err
	}
	return p.save(ctx, row, event)
}

// projectLocalePublished snapshots the live values of a locale
func (p *ContentProjector) projectLocalePublished(ctx context.Context, event domain.Event, data domain.ContentLocalePublishedEvent) error {
	row, contentType, err := p.load(ctx, event)
	if err != nil || row == nil {
		return err
	}

	locale, ok := row.FindLocale(data.LanguageID)
	if !ok {
		return fmt.Errorf("content %s has no locale %q to publish", row.ContentID, models.LanguageKeyOf(data.LanguageID))
	}

	revision := data.Revision
	publishedBy := string(event.ActorID)
	publishedOn := event.Timestamp
	uniqueName := locale.UniqueName

	locale.IsPublished = true
	locale.PublishedRevision = &revision
	locale.PublishedBy = &publishedBy
	locale.PublishedOn = &publishedOn
	locale.PublishedUniqueName = &uniqueName
	locale.PublishedDisplayName = copyString(locale.DisplayName)
	locale.PublishedDescription = copyString(locale.Description)
	locale.PublishedFieldValues = append([]byte(nil), locale.FieldValues...)

	if err := p.index(ctx, contentType, row, locale); err != nil {
		return err
	}
	return p.save(ctx, row, event)
}

// projectLocaleUnpublished drops the published snapshot of a locale
func (p *ContentProjector) projectLocaleUnpublished(ctx context.Context, event domain.Event, data domain.ContentLocaleUnpublishedEvent) error {
	row, contentType, err := p.load(ctx, event)
	if err != nil || row == nil {
		return err
	}

	locale, ok := row.FindLocale(data.LanguageID)
	if !ok {
		return fmt.Errorf("content %s has no locale %q to unpublish", row.ContentID, models.LanguageKeyOf(data.LanguageID))
	}

	locale.IsPublished = false
	locale.PublishedRevision = nil
	locale.PublishedBy = nil
	locale.PublishedOn = nil
	locale.PublishedUniqueName = nil
	locale.PublishedDisplayName = nil
	locale.PublishedDescription = nil
	locale.PublishedFieldValues = nil

	if err := p.index(ctx, contentType, row, locale); err != nil {
		return err
	}
	return p.save(ctx, row, event)
}

// projectLocaleRemoved deletes a language locale with its index rows
func (p *ContentProjector) projectLocaleRemoved(ctx context.Context, event domain.Event, data domain.ContentLocaleRemovedEvent) error {
	row, err := prepare(ctx, event, p.contents.FindByID, contentVersion)
	if err != nil || row == nil {
		return err
	}

	languageKey := data.LanguageID.String()
	if err := p.engine.RemoveLocale(ctx, row.ContentID, languageKey); err != nil {
		return fmt.Errorf("failed to remove locale indices: %w", err)
	}
	if err := p.search.DeleteLocale(ctx, row.ContentID, languageKey); err != nil {
		return fmt.Errorf("failed to remove locale from search: %w", err)
	}

	kept := row.Locales[:0]
	for _, locale := range row.Locales {
		if locale.LanguageKey != languageKey {
			kept = append(kept, locale)
		}
	}
	row.Locales = kept
	return p.save(ctx, row, event)
}

// projectContentDeleted soft deletes the content and drops its index rows
func (p *ContentProjector) projectContentDeleted(ctx context.Context, event domain.Event) error {
	row, err := prepare(ctx, event, p.contents.FindByID, contentVersion)
	if err != nil || row == nil {
		return err
	}

	if err := p.engine.RemoveContent(ctx, row.ContentID); err != nil {
		return fmt.Errorf("failed to remove content indices: %w", err)
	}
	if err := p.search.DeleteContent(ctx, row.ContentID); err != nil {
		return fmt.Errorf("failed to remove content from search: %w", err)
	}

	row.IsDeleted = true
	return p.save(ctx, row, event)
}

// load returns the content row an event updates with its content type, or a
// nil row when the event must be skipped
func (p *ContentProjector) load(ctx context.Context, event domain.Event) (*models.Content, *models.ContentType, error) {
	row, err := prepare(ctx, event, p.contents.FindByID, contentVersion)
	if err != nil || row == nil {
		return nil, nil, err
	}
	contentType, err := p.contentTypeOf(ctx, row.ContentTypeID)
	if err != nil {
		return nil, nil, err
	}
	return row, contentType, nil
}

func (p *ContentProjector) contentTypeOf(ctx context.Context, contentTypeID uuid.UUID) (*models.ContentType, error) {
	contentType, err := p.contentTypes.FindByID(ctx, contentTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find content type: %w", err)
	}
	if contentType == nil {
		return nil, fmt.Errorf("content type %s is not projected yet", contentTypeID)
	}
	return contentType, nil
}

func (p *ContentProjector) index(ctx context.Context, contentType *models.ContentType, row *models.Content, locale *models.ContentLocale) error {
	if err := p.engine.IndexLocale(ctx, contentType, locale); err != nil {
		return err
	}
	if err := p.search.IndexLocale(ctx, contentType, row, locale); err != nil {
		return fmt.Errorf("failed to index content in search: %w", err)
	}
	return nil
}

func (p *ContentProjector) save(ctx context.Context, row *models.Content, event domain.Event) error {
	row.Version = event.Version
	touch(&row.Audit, event)
	if err := p.contents.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to update content in database: %w", err)
	}
	return nil
}

func newLocaleRow(content *models.Content, languageID *uuid.UUID, locale domain.ContentLocale, event domain.Event) (*models.ContentLocale, error) {
	values, err := models.EncodeFieldValues(locale.FieldValues)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field values: %w", err)
	}

	row := &models.ContentLocale{
		ContentID:            content.ContentID,
		LanguageKey:          models.LanguageKeyOf(languageID),
		ContentTypeID:        content.ContentTypeID,
		RealmKey:             content.RealmKey,
		UniqueName:           locale.UniqueName.String(),
		UniqueNameNormalized: domain.NormalizeName(locale.UniqueName.String()),
		DisplayName:          displayNameOf(locale.DisplayName),
		Description:          locale.Description,
		FieldValues:          values,
		Revision:             1,
		Audit:                auditOf(event),
	}
	if languageID != nil {
		id := *languageID
		row.LanguageID = &id
	}
	return row, nil
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
