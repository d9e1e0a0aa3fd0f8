package projections

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

// RealmProjector handles projections for realm events
type RealmProjector struct {
	realms repositories.RealmRepository
}

// NewRealmProjector creates a new realm projector
func NewRealmProjector(realms repositories.RealmRepository) *RealmProjector {
	return &RealmProjector{realms: realms}
}

func realmVersion(row *models.Realm) int { return row.Version }

// Project projects an event
func (p *RealmProjector) Project(ctx context.Context, event domain.Event) error {
	switch data := event.Data.(type) {
	case domain.RealmCreatedEvent:
		return p.projectRealmCreated(ctx, event, data)
	case domain.RealmUniqueSlugChangedEvent:
		return p.update(ctx, event, func(row *models.Realm) {
			row.UniqueSlug = data.UniqueSlug.String()
			row.UniqueSlugNormalized = domain.NormalizeName(row.UniqueSlug)
		})
	case domain.RealmUpdatedEvent:
		return p.update(ctx, event, func(row *models.Realm) {
			row.DisplayName = displayNameOf(data.DisplayName)
			row.Description = data.Description
		})
	case domain.RealmDeletedEvent:
		return p.update(ctx, event, func(row *models.Realm) {
			row.IsDeleted = true
		})
	default:
		return nil
	}
}

// projectRealmCreated handles the realm created event
func (p *RealmProjector) projectRealmCreated(ctx context.Context, event domain.Event, data domain.RealmCreatedEvent) error {
	skip, err := exists(ctx, event, p.realms.FindByID)
	if err != nil || skip {
		return err
	}

	row := &models.Realm{
		RealmID:              event.StreamID.Entity,
		StreamID:             event.StreamID.String(),
		Version:              event.Version,
		UniqueSlug:           data.UniqueSlug.String(),
		UniqueSlugNormalized: domain.NormalizeName(data.UniqueSlug.String()),
		Audit:                auditOf(event),
	}
	if err := p.realms.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to create realm in database: %w", err)
	}

	log.Info().Str("realm_id", row.RealmID.String()).Str("slug", row.UniqueSlug).Msg("Realm projected")
	return nil
}

func (p *RealmProjector) update(ctx context.Context, event domain.Event, mutate func(*models.Realm)) error {
	row, err := prepare(ctx, event, p.realms.FindByID, realmVersion)
	if err != nil || row == nil {
		return err
	}

	mutate(row)
	row.Version = event.Version
	touch(&row.Audit, event)

	if err := p.realms.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to update realm in database: %w", err)
	}
	return nil
}
