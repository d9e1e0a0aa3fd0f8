package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// CreateLanguageCommand enables a locale in a realm. The first language of a
// realm becomes its default.
type CreateLanguageCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	LanguageID uuid.UUID  `json:"language_id"`
	Locale     string     `json:"locale" validate:"required,max=16,locale"`
	IsDefault  bool       `json:"is_default"`
	ActorID    string     `json:"actor_id"`
}

// UpdateLanguageCommand changes the locale of a language
type UpdateLanguageCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	LanguageID uuid.UUID  `json:"language_id" validate:"required"`
	Locale     string     `json:"locale" validate:"required,max=16,locale"`
	ActorID    string     `json:"actor_id"`
}

// SetDefaultLanguageCommand makes a language the realm default
type SetDefaultLanguageCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	LanguageID uuid.UUID  `json:"language_id" validate:"required"`
	ActorID    string     `json:"actor_id"`
}

// DeleteLanguageCommand deletes a language that is not the default
type DeleteLanguageCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	LanguageID uuid.UUID  `json:"language_id" validate:"required"`
	ActorID    string     `json:"actor_id"`
}

// LanguageHandler handles all language commands
type LanguageHandler struct {
	deps Deps
}

// HandleCreate creates a new language
func (h *LanguageHandler) HandleCreate(ctx context.Context, cmd CreateLanguageCommand) (uuid.UUID, error) {
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	languageID := newID(cmd.LanguageID)
	log.Info().Str("language_id", languageID.String()).Str("locale", cmd.Locale).Msg("Handling CreateLanguage command")

	locale, err := domain.NewLocale(cmd.Locale)
	if err != nil {
		return uuid.Nil, err
	}
	if err := h.ensureLocaleAvailable(ctx, cmd.RealmID, languageID, locale); err != nil {
		return uuid.Nil, err
	}

	streamID := domain.NewStreamID(cmd.RealmID, languageID)
	if err := ensureNew(ctx, h.deps.Events, streamID, domain.LanguageAggregateType); err != nil {
		return uuid.Nil, err
	}

	current, err := h.deps.Repositories.Languages.FindDefault(ctx, realmKeyOf(cmd.RealmID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to find default language: %w", err)
	}

	actor := domain.ActorID(cmd.ActorID)
	language := domain.NewLanguageAggregate(streamID)
	if err := language.Create(locale, cmd.IsDefault || current == nil, actor); err != nil {
		return uuid.Nil, err
	}

	batch := []domain.Aggregate{language}
	if cmd.IsDefault && current != nil {
		previous, err := h.unsetDefault(ctx, cmd.RealmID, current, actor)
		if err != nil {
			return uuid.Nil, err
		}
		batch = append(batch, previous)
	}

	if err := h.deps.Events.Save(ctx, batch...); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save language: %w", err)
	}
	return languageID, nil
}

// HandleUpdate changes the locale of a language
func (h *LanguageHandler) HandleUpdate(ctx context.Context, cmd UpdateLanguageCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("language_id", cmd.LanguageID.String()).Msg("Handling UpdateLanguage command")

	locale, err := domain.NewLocale(cmd.Locale)
	if err != nil {
		return err
	}
	if err := h.ensureLocaleAvailable(ctx, cmd.RealmID, cmd.LanguageID, locale); err != nil {
		return err
	}

	language, err := load(ctx, h.deps.Events, domain.NewLanguageAggregate(domain.NewStreamID(cmd.RealmID, cmd.LanguageID)))
	if err != nil {
		return err
	}
	if err := language.SetLocale(locale, domain.ActorID(cmd.ActorID)); err != nil {
		return err
	}
	if err := h.deps.Events.Save(ctx, language); err != nil {
		return fmt.Errorf("failed to save language: %w", err)
	}
	return nil
}

// HandleSetDefault moves the default flag to a language. The previous default
// is cleared in the same batch, so a realm never has two defaults.
func (h *LanguageHandler) HandleSetDefault(ctx context.Context, cmd SetDefaultLanguageCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("language_id", cmd.LanguageID.String()).Msg("Handling SetDefaultLanguage command")

	language, err := load(ctx, h.deps.Events, domain.NewLanguageAggregate(domain.NewStreamID(cmd.RealmID, cmd.LanguageID)))
	if err != nil {
		return err
	}
	actor := domain.ActorID(cmd.ActorID)
	if err := language.SetDefault(true, actor); err != nil {
		return err
	}

	batch := []domain.Aggregate{language}
	current, err := h.deps.Repositories.Languages.FindDefault(ctx, realmKeyOf(cmd.RealmID))
	if err != nil {
		return fmt.Errorf("failed to find default language: %w", err)
	}
	if current != nil && current.LanguageID != cmd.LanguageID {
		previous, err := h.unsetDefault(ctx, cmd.RealmID, current, actor)
		if err != nil {
			return err
		}
		batch = append(batch, previous)
	}

	if err := h.deps.Events.Save(ctx, batch...); err != nil {
		return fmt.Errorf("failed to save languages: %w", err)
	}
	return nil
}

// HandleDelete deletes a language
func (h *LanguageHandler) HandleDelete(ctx context.Context, cmd DeleteLanguageCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("language_id", cmd.LanguageID.String()).Msg("Handling DeleteLanguage command")

	language, err := load(ctx, h.deps.Events, domain.NewLanguageAggregate(domain.NewStreamID(cmd.RealmID, cmd.LanguageID)))
	if err != nil {
		return err
	}
	if language.IsDefault && !language.IsDeleted() {
		errs := &domain.ValidationError{}
		errs.Add("LanguageID", "default", "the default language cannot be deleted")
		return errs
	}
	if err := language.Delete(domain.ActorID(cmd.ActorID)); err != nil {
		return err
	}
	if err := h.deps.Events.Save(ctx, language); err != nil {
		return fmt.Errorf("failed to save language: %w", err)
	}
	return nil
}

func (h *LanguageHandler) unsetDefault(ctx context.Context, realmID *uuid.UUID, current *models.Language, actor domain.ActorID) (*domain.Language, error) {
	previous, err := load(ctx, h.deps.Events, domain.NewLanguageAggregate(domain.NewStreamID(realmID, current.LanguageID)))
	if err != nil {
		return nil, err
	}
	if err := previous.SetDefault(false, actor); err != nil {
		return nil, err
	}
	return previous, nil
}

func (h *LanguageHandler) ensureLocaleAvailable(ctx context.Context, realmID *uuid.UUID, languageID uuid.UUID, locale domain.Locale) error {
	existing, err := h.deps.Repositories.Languages.FindByLocale(ctx, realmKeyOf(realmID), locale.String())
	if err != nil {
		return fmt.Errorf("failed to find language by locale: %w", err)
	}
	if existing != nil && existing.LanguageID != languageID {
		return &domain.UniqueNameAlreadyUsedError{Kind: domain.LanguageAggregateType, UniqueName: locale.String(), ConflictID: existing.LanguageID.String()}
	}
	return nil
}
