package projections

import (
	"context"
	"fmt"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

// LanguageProjector handles projections for language events
type LanguageProjector struct {
	languages repositories.LanguageRepository
}

// NewLanguageProjector creates a new language projector
func NewLanguageProjector(languages repositories.LanguageRepository) *LanguageProjector {
	return &LanguageProjector{languages: languages}
}

func languageVersion(row *models.Language) int { return row.Version }

// Project projects an event
func (p *LanguageProjector) Project(ctx context.Context, event domain.Event) error {
	switch data := event.Data.(type) {
	case domain.LanguageCreatedEvent:
		return p.projectLanguageCreated(ctx, event, data)
	case domain.LanguageLocaleChangedEvent:
		return p.update(ctx, event, func(row *models.Language) {
			row.Locale = data.Locale.String()
			row.LocaleNormalized = domain.NormalizeName(row.Locale)
		})
	case domain.LanguageSetDefaultEvent:
		return p.update(ctx, event, func(row *models.Language) {
			row.IsDefault = data.IsDefault
		})
	case domain.LanguageDeletedEvent:
		return p.update(ctx, event, func(row *models.Language) {
			row.IsDeleted = true
			row.IsDefault = false
		})
	default:
		return nil
	}
}

// projectLanguageCreated handles the language created event
func (p *LanguageProjector) projectLanguageCreated(ctx context.Context, event domain.Event, data domain.LanguageCreatedEvent) error {
	skip, err := exists(ctx, event, p.languages.FindByID)
	if err != nil || skip {
		return err
	}

	row := &models.Language{
		LanguageID:       event.StreamID.Entity,
		StreamID:         event.StreamID.String(),
		RealmKey:         event.StreamID.RealmKey(),
		Version:          event.Version,
		Locale:           data.Locale.String(),
		LocaleNormalized: domain.NormalizeName(data.Locale.String()),
		IsDefault:        data.IsDefault,
		Audit:            auditOf(event),
	}
	if err := p.languages.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to create language in database: %w", err)
	}
	return nil
}

func (p *LanguageProjector) update(ctx context.Context, event domain.Event, mutate func(*models.Language)) error {
	row, err := prepare(ctx, event, p.languages.FindByID, languageVersion)
	if err != nil || row == nil {
		return err
	}

	mutate(row)
	row.Version = event.Version
	touch(&row.Audit, event)

	if err := p.languages.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to update language in database: %w", err)
	}
	return nil
}
