package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/validation"
)

// LocaleInput is the editable part of a content locale
type LocaleInput struct {
	UniqueName  string               `json:"unique_name" validate:"required,max=255,unique_name"`
	DisplayName *string              `json:"display_name" validate:"omitempty,max=255"`
	Description *string              `json:"description"`
	FieldValues map[uuid.UUID]string `json:"field_values"`
}

// CreateContentCommand creates a content. LanguageID must be nil for an
// invariant content type and set otherwise.
type CreateContentCommand struct {
	RealmID       *uuid.UUID `json:"realm_id"`
	ContentID     uuid.UUID  `json:"content_id"`
	ContentTypeID uuid.UUID  `json:"content_type_id" validate:"required"`
	LanguageID    *uuid.UUID `json:"language_id"`
	LocaleInput
	ActorID string `json:"actor_id"`
}

// SaveContentLocaleCommand replaces the invariant locale when LanguageID is
// nil, or creates or replaces a language locale
type SaveContentLocaleCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	ContentID  uuid.UUID  `json:"content_id" validate:"required"`
	LanguageID *uuid.UUID `json:"language_id"`
	LocaleInput
	ActorID string `json:"actor_id"`
}

// PublishContentCommand publishes or unpublishes the invariant locale when
// LanguageID is nil, one language locale, or every locale when All is set
type PublishContentCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	ContentID  uuid.UUID  `json:"content_id" validate:"required"`
	LanguageID *uuid.UUID `json:"language_id"`
	All        bool       `json:"all"`
	ActorID    string     `json:"actor_id"`
}

// RemoveContentLocaleCommand removes a language locale
type RemoveContentLocaleCommand struct {
	RealmID    *uuid.UUID `json:"realm_id"`
	ContentID  uuid.UUID  `json:"content_id" validate:"required"`
	LanguageID uuid.UUID  `json:"language_id" validate:"required"`
	ActorID    string     `json:"actor_id"`
}

// DeleteContentCommand deletes a content with all its locales
type DeleteContentCommand struct {
	RealmID   *uuid.UUID `json:"realm_id"`
	ContentID uuid.UUID  `json:"content_id" validate:"required"`
	ActorID   string     `json:"actor_id"`
}

// ContentHandler handles all content commands
type ContentHandler struct {
	deps Deps
}

// HandleCreate creates a content with its first locale
func (h *ContentHandler) HandleCreate(ctx context.Context, cmd CreateContentCommand) (uuid.UUID, error) {
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	contentID := newID(cmd.ContentID)
	log.Info().
		Str("content_id", contentID.String()).
		Str("content_type_id", cmd.ContentTypeID.String()).
		Msg("Handling CreateContent command")

	streamID := domain.NewStreamID(cmd.RealmID, contentID)
	if err := ensureNew(ctx, h.deps.Events, streamID, domain.ContentAggregateType); err != nil {
		return uuid.Nil, err
	}

	contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentTypeID)))
	if err != nil {
		return uuid.Nil, err
	}
	if cmd.LanguageID != nil {
		if err := h.ensureLanguage(ctx, cmd.RealmID, *cmd.LanguageID); err != nil {
			return uuid.Nil, err
		}
	}

	locale, err := h.prepareLocale(ctx, contentType, cmd.LocaleInput)
	if err != nil {
		return uuid.Nil, err
	}
	if err := h.checkLocale(ctx, contentType, contentID, nil, locale); err != nil {
		return uuid.Nil, err
	}
	if cmd.LanguageID != nil {
		if err := h.checkLocale(ctx, contentType, contentID, cmd.LanguageID, locale); err != nil {
			return uuid.Nil, err
		}
	}

	content := domain.NewContentAggregate(streamID)
	if err := content.Create(contentType, cmd.LanguageID, locale, domain.ActorID(cmd.ActorID)); err != nil {
		return uuid.Nil, err
	}

	if err := h.deps.Events.Save(ctx, content); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save content: %w", err)
	}
	return contentID, nil
}

// HandleSaveLocale replaces or adds a locale of a content
func (h *ContentHandler) HandleSaveLocale(ctx context.Context, cmd SaveContentLocaleCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().
		Str("content_id", cmd.ContentID.String()).
		Str("language", models.LanguageKeyOf(cmd.LanguageID)).
		Msg("Handling SaveContentLocale command")

	content, contentType, err := h.loadWithType(ctx, cmd.RealmID, cmd.ContentID)
	if err != nil {
		return err
	}
	if cmd.LanguageID != nil {
		if err := h.ensureLanguage(ctx, cmd.RealmID, *cmd.LanguageID); err != nil {
			return err
		}
	}

	locale, err := h.prepareLocale(ctx, contentType, cmd.LocaleInput)
	if err != nil {
		return err
	}
	if err := h.checkLocale(ctx, contentType, cmd.ContentID, cmd.LanguageID, locale); err != nil {
		return err
	}

	actor := domain.ActorID(cmd.ActorID)
	if cmd.LanguageID == nil {
		err = content.SetInvariant(contentType, locale, actor)
	} else {
		err = content.SetLocale(contentType, *cmd.LanguageID, locale, actor)
	}
	if err != nil {
		return err
	}

	if err := h.deps.Events.Save(ctx, content); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

// HandlePublish publishes locales of a content. Required fields must have a
// value and unique values must be free among published contents.
func (h *ContentHandler) HandlePublish(ctx context.Context, cmd PublishContentCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().
		Str("content_id", cmd.ContentID.String()).
		Bool("all", cmd.All).
		Msg("Handling PublishContent command")

	content, contentType, err := h.loadWithType(ctx, cmd.RealmID, cmd.ContentID)
	if err != nil {
		return err
	}

	targets := []*uuid.UUID{cmd.LanguageID}
	if cmd.All {
		targets = []*uuid.UUID{nil}
		for _, languageID := range content.LanguageIDs() {
			id := languageID
			targets = append(targets, &id)
		}
	}
	for _, languageID := range targets {
		state, ok := content.FindLocale(languageID)
		if !ok {
			if cmd.All {
				continue
			}
			return localeNotFound(cmd.ContentID, languageID)
		}
		if err := h.checkPublishable(ctx, contentType, cmd.ContentID, languageID, state); err != nil {
			return err
		}
	}

	actor := domain.ActorID(cmd.ActorID)
	if cmd.All {
		err = content.Publish(actor)
	} else {
		err = publishOne(content.PublishInvariant, content.PublishLocale, cmd.ContentID, cmd.LanguageID, actor)
	}
	if err != nil {
		return err
	}

	if err := h.deps.Events.Save(ctx, content); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

// HandleUnpublish unpublishes locales of a content
func (h *ContentHandler) HandleUnpublish(ctx context.Context, cmd PublishContentCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().
		Str("content_id", cmd.ContentID.String()).
		Bool("all", cmd.All).
		Msg("Handling UnpublishContent command")

	content, err := load(ctx, h.deps.Events, domain.NewContentAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentID)))
	if err != nil {
		return err
	}

	actor := domain.ActorID(cmd.ActorID)
	if cmd.All {
		err = content.Unpublish(actor)
	} else {
		err = publishOne(content.UnpublishInvariant, content.UnpublishLocale, cmd.ContentID, cmd.LanguageID, actor)
	}
	if err != nil {
		return err
	}

	if err := h.deps.Events.Save(ctx, content); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

// HandleRemoveLocale removes a language locale of a content
func (h *ContentHandler) HandleRemoveLocale(ctx context.Context, cmd RemoveContentLocaleCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().
		Str("content_id", cmd.ContentID.String()).
		Str("language_id", cmd.LanguageID.String()).
		Msg("Handling RemoveContentLocale command")

	content, err := load(ctx, h.deps.Events, domain.NewContentAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentID)))
	if err != nil {
		return err
	}
	removed, err := content.RemoveLocale(cmd.LanguageID, domain.ActorID(cmd.ActorID))
	if err != nil {
		return err
	}
	if !removed {
		return localeNotFound(cmd.ContentID, &cmd.LanguageID)
	}

	if err := h.deps.Events.Save(ctx, content); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

// HandleDelete deletes a content
func (h *ContentHandler) HandleDelete(ctx context.Context, cmd DeleteContentCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	log.Info().Str("content_id", cmd.ContentID.String()).Msg("Handling DeleteContent command")

	content, err := load(ctx, h.deps.Events, domain.NewContentAggregate(domain.NewStreamID(cmd.RealmID, cmd.ContentID)))
	if err != nil {
		return err
	}
	if err := content.Delete(domain.ActorID(cmd.ActorID)); err != nil {
		return err
	}

	if err := h.deps.Events.Save(ctx, content); err != nil {
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}

func (h *ContentHandler) loadWithType(ctx context.Context, realmID *uuid.UUID, contentID uuid.UUID) (*domain.Content, *domain.ContentType, error) {
	content, err := load(ctx, h.deps.Events, domain.NewContentAggregate(domain.NewStreamID(realmID, contentID)))
	if err != nil {
		return nil, nil, err
	}
	contentType, err := load(ctx, h.deps.Events, domain.NewContentTypeAggregate(domain.NewStreamID(realmID, content.ContentTypeID)))
	if err != nil {
		return nil, nil, err
	}
	return content, contentType, nil
}

func (h *ContentHandler) ensureLanguage(ctx context.Context, realmID *uuid.UUID, languageID uuid.UUID) error {
	language, err := h.deps.Repositories.Languages.FindByID(ctx, languageID)
	if err != nil {
		return fmt.Errorf("failed to find language: %w", err)
	}
	if language == nil || language.IsDeleted || !sameRealm(language.RealmKey, realmID) {
		return &NotFoundError{Kind: domain.LanguageAggregateType, ID: languageID.String()}
	}
	return nil
}

// prepareLocale converts the input and validates its field values
func (h *ContentHandler) prepareLocale(ctx context.Context, contentType *domain.ContentType, input LocaleInput) (domain.ContentLocale, error) {
	uniqueName, err := domain.NewUniqueName(input.UniqueName)
	if err != nil {
		return domain.ContentLocale{}, err
	}
	displayName, description, err := metadata(input.DisplayName, input.Description)
	if err != nil {
		return domain.ContentLocale{}, err
	}
	values := input.FieldValues
	if values == nil {
		values = map[uuid.UUID]string{}
	}
	if err := h.deps.Validator.ValidateFieldValues(ctx, contentType, values); err != nil {
		return domain.ContentLocale{}, err
	}
	return domain.ContentLocale{
		UniqueName:  uniqueName,
		DisplayName: displayName,
		Description: description,
		FieldValues: values,
	}, nil
}

// checkLocale verifies the unique name and the unique draft values of the
// side of locale that lands in the given language
func (h *ContentHandler) checkLocale(ctx context.Context, contentType *domain.ContentType, contentID uuid.UUID, languageID *uuid.UUID, locale domain.ContentLocale) error {
	languageKey := models.LanguageKeyOf(languageID)
	existing, err := h.deps.Repositories.Contents.FindLocaleByUniqueName(ctx, contentType.EntityID(), languageKey, locale.UniqueName.String())
	if err != nil {
		return fmt.Errorf("failed to find content locale by name: %w", err)
	}
	if existing != nil && existing.ContentID != contentID {
		return &domain.UniqueNameAlreadyUsedError{Kind: domain.ContentAggregateType, UniqueName: locale.UniqueName.String(), ConflictID: existing.ContentID.String()}
	}

	invariantValues, variantValues := contentType.SplitFieldValues(locale.FieldValues)
	values := variantValues
	if languageID == nil {
		values = invariantValues
	}
	return h.checkUniqueValues(ctx, contentType, contentID, languageID, models.StatusLatest, values)
}

func (h *ContentHandler) checkPublishable(ctx context.Context, contentType *domain.ContentType, contentID uuid.UUID, languageID *uuid.UUID, state *domain.LocaleState) error {
	if err := validation.ValidateRequired(contentType, state.FieldValues, languageID == nil); err != nil {
		return err
	}
	return h.checkUniqueValues(ctx, contentType, contentID, languageID, models.StatusPublished, state.FieldValues)
}

// checkUniqueValues runs against the projected content type; a content type
// not projected yet has no index rows to conflict with
func (h *ContentHandler) checkUniqueValues(ctx context.Context, contentType *domain.ContentType, contentID uuid.UUID, languageID *uuid.UUID, status string, values map[uuid.UUID]string) error {
	if len(values) == 0 {
		return nil
	}
	row, err := h.deps.Repositories.ContentTypes.FindByID(ctx, contentType.EntityID())
	if err != nil {
		return fmt.Errorf("failed to find content type: %w", err)
	}
	if row == nil {
		return nil
	}
	return h.deps.Engine.CheckUniqueness(ctx, row, contentID, languageID, status, values)
}

func publishOne(invariant func(domain.ActorID) (bool, error), locale func(uuid.UUID, domain.ActorID) (bool, error), contentID uuid.UUID, languageID *uuid.UUID, actor domain.ActorID) error {
	var found bool
	var err error
	if languageID == nil {
		found, err = invariant(actor)
	} else {
		found, err = locale(*languageID, actor)
	}
	if err != nil {
		return err
	}
	if !found {
		return localeNotFound(contentID, languageID)
	}
	return nil
}

func localeNotFound(contentID uuid.UUID, languageID *uuid.UUID) error {
	key := models.LanguageKeyOf(languageID)
	if key == models.InvariantLanguageKey {
		key = "invariant"
	}
	return &NotFoundError{Kind: "content locale", ID: contentID.String() + "/" + key}
}
