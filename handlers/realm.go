package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
)

// CreateRealmCommand creates a realm. RealmID is generated when empty.
type CreateRealmCommand struct {
	RealmID     uuid.UUID `json:"realm_id"`
	UniqueSlug  string    `json:"unique_slug" validate:"required,max=255,slug"`
	DisplayName *string   `json:"display_name" validate:"omitempty,max=255"`
	Description *string   `json:"description"`
	ActorID     string    `json:"actor_id"`
}

// UpdateRealmCommand changes the slug and metadata of a realm
type UpdateRealmCommand struct {
	RealmID     uuid.UUID `json:"realm_id" validate:"required"`
	UniqueSlug  string    `json:"unique_slug" validate:"omitempty,max=255,slug"`
	DisplayName *string   `json:"display_name" validate:"omitempty,max=255"`
	Description *string   `json:"description"`
	ActorID     string    `json:"actor_id"`
}

// DeleteRealmCommand deletes a realm
type DeleteRealmCommand struct {
	RealmID uuid.UUID `json:"realm_id" validate:"required"`
	ActorID string    `json:"actor_id"`
}

// RealmHandler handles all realm commands
type RealmHandler struct {
	deps Deps
}

// HandleCreate creates a new realm
func (h *RealmHandler) HandleCreate(ctx context.Context, cmd CreateRealmCommand) (uuid.UUID, error) {
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	realmID := newID(cmd.RealmID)
	log.Info().Str("realm_id", realmID.String()).Msg("Handling CreateRealm command")

	if err := h.ensureSlugAvailable(ctx, realmID, cmd.UniqueSlug); err != nil {
		return uuid.Nil, err
	}
	if err := ensureNew(ctx, h.deps.Events, domain.GlobalStreamID(realmID), domain.RealmAggregateType); err != nil {
		return uuid.Nil, err
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return uuid.Nil, err
	}

	realm := domain.NewRealmAggregate(realmID)
	actor := domain.ActorID(cmd.ActorID)
	if err := realm.Create(domain.Slug(cmd.UniqueSlug), actor); err != nil {
		return uuid.Nil, err
	}
	if err := realm.Update(displayName, description, actor); err != nil {
		return uuid.Nil, err
	}

	if err := h.deps.Events.Save(ctx, realm); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save realm: %w", err)
	}
	return realmID, nil
}

// HandleUpdate renames and describes a realm
func (h *RealmHandler) HandleUpdate(ctx context.Context, cmd UpdateRealmCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("realm_id", cmd.RealmID.String()).Msg("Handling UpdateRealm command")

	realm, err := load(ctx, h.deps.Events, domain.NewRealmAggregate(cmd.RealmID))
	if err != nil {
		return err
	}

	actor := domain.ActorID(cmd.ActorID)
	if cmd.UniqueSlug != "" {
		if err := h.ensureSlugAvailable(ctx, cmd.RealmID, cmd.UniqueSlug); err != nil {
			return err
		}
		if err := realm.SetUniqueSlug(domain.Slug(cmd.UniqueSlug), actor); err != nil {
			return err
		}
	}

	displayName, description, err := metadata(cmd.DisplayName, cmd.Description)
	if err != nil {
		return err
	}
	if err := realm.Update(displayName, description, actor); err != nil {
		return err
	}

	if err := h.deps.Events.Save(ctx, realm); err != nil {
		return fmt.Errorf("failed to save realm: %w", err)
	}
	return nil
}

// HandleDelete deletes a realm
func (h *RealmHandler) HandleDelete(ctx context.Context, cmd DeleteRealmCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("realm_id", cmd.RealmID.String()).Msg("Handling DeleteRealm command")

	realm, err := load(ctx, h.deps.Events, domain.NewRealmAggregate(cmd.RealmID))
	if err != nil {
		return err
	}
	if err := realm.Delete(domain.ActorID(cmd.ActorID)); err != nil {
		return err
	}
	if err := h.deps.Events.Save(ctx, realm); err != nil {
		return fmt.Errorf("failed to save realm: %w", err)
	}
	return nil
}

func (h *RealmHandler) ensureSlugAvailable(ctx context.Context, realmID uuid.UUID, slug string) error {
	existing, err := h.deps.Repositories.Realms.FindBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("failed to find realm by slug: %w", err)
	}
	if existing != nil && existing.RealmID != realmID {
		return &domain.UniqueNameAlreadyUsedError{Kind: domain.RealmAggregateType, UniqueName: slug, ConflictID: existing.RealmID.String()}
	}
	return nil
}
