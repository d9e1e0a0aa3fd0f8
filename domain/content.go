package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ContentAggregateType is the aggregate type of contents
const ContentAggregateType = "content"

// Content event types
const (
	ContentCreated           = "V1_CONTENT_CREATED"
	ContentLocaleChanged     = "V1_CONTENT_LOCALE_CHANGED"
	ContentLocalePublished   = "V1_CONTENT_LOCALE_PUBLISHED"
	ContentLocaleUnpublished = "V1_CONTENT_LOCALE_UNPUBLISHED"
	ContentLocaleRemoved     = "V1_CONTENT_LOCALE_REMOVED"
	ContentDeleted           = "V1_CONTENT_DELETED"
)

// ContentLocale is the editable part of one locale of a content
type ContentLocale struct {
	UniqueName  UniqueName           `json:"unique_name"`
	DisplayName *DisplayName         `json:"display_name,omitempty"`
	Description *string              `json:"description,omitempty"`
	FieldValues map[uuid.UUID]string `json:"field_values"`
}

func (l ContentLocale) withValues(values map[uuid.UUID]string) ContentLocale {
	l.FieldValues = values
	return l
}

// LocaleState is a content locale with its revision and publish state
type LocaleState struct {
	ContentLocale

	Revision  int64
	CreatedBy ActorID
	CreatedOn time.Time
	UpdatedBy ActorID
	UpdatedOn time.Time

	IsPublished       bool
	PublishedRevision *int64
	PublishedBy       ActorID
	PublishedOn       *time.Time
}

// ContentCreatedEvent creates a content with its invariant locale
type ContentCreatedEvent struct {
	ContentTypeID uuid.UUID     `json:"content_type_id"`
	Invariant     ContentLocale `json:"invariant"`
}

func (ContentCreatedEvent) EventType() string { return ContentCreated }

// ContentLocaleChangedEvent replaces a locale. A nil language targets the invariant locale.
type ContentLocaleChangedEvent struct {
	LanguageID *uuid.UUID    `json:"language_id,omitempty"`
	Locale     ContentLocale `json:"locale"`
}

func (ContentLocaleChangedEvent) EventType() string { return ContentLocaleChanged }

// ContentLocalePublishedEvent publishes a locale at a revision
type ContentLocalePublishedEvent struct {
	LanguageID *uuid.UUID `json:"language_id,omitempty"`
	Revision   int64      `json:"revision"`
}

func (ContentLocalePublishedEvent) EventType() string { return ContentLocalePublished }

// ContentLocaleUnpublishedEvent clears the publish state of a locale
type ContentLocaleUnpublishedEvent struct {
	LanguageID *uuid.UUID `json:"language_id,omitempty"`
}

func (ContentLocaleUnpublishedEvent) EventType() string { return ContentLocaleUnpublished }

// ContentLocaleRemovedEvent removes a language locale
type ContentLocaleRemovedEvent struct {
	LanguageID uuid.UUID `json:"language_id"`
}

func (ContentLocaleRemovedEvent) EventType() string { return ContentLocaleRemoved }

// ContentDeletedEvent represents a content deletion
type ContentDeletedEvent struct {
	Tombstone
}

func (ContentDeletedEvent) EventType() string { return ContentDeleted }

func init() {
	RegisterEvent[ContentCreatedEvent]()
	RegisterEvent[ContentLocaleChangedEvent]()
	RegisterEvent[ContentLocalePublishedEvent]()
	RegisterEvent[ContentLocaleUnpublishedEvent]()
	RegisterEvent[ContentLocaleRemovedEvent]()
	RegisterEvent[ContentDeletedEvent]()
}

// Content is a localized content item of a content type
type Content struct {
	*AggregateBase

	ContentTypeID uuid.UUID
	Invariant     *LocaleState
	Locales       map[uuid.UUID]*LocaleState
}

// NewContentAggregate creates an empty content aggregate
func NewContentAggregate(id StreamID) *Content {
	c := &Content{Locales: map[uuid.UUID]*LocaleState{}}
	c.AggregateBase = NewAggregateBase(id, ContentAggregateType, c.apply)
	return c
}

// Create creates the content. Invariant content types take no language;
// other content types require one. Field values are split between the
// invariant locale and the language locale according to the field definitions.
func (c *Content) Create(contentType *ContentType, languageID *uuid.UUID, locale ContentLocale, actor ActorID) error {
	if err := c.ensureNew(); err != nil {
		return err
	}
	if contentType.IsDeleted() {
		return &AlreadyDeletedError{AggregateType: contentType.GetType(), ID: contentType.GetID()}
	}
	if contentType.IsInvariant && languageID != nil {
		return &LanguageNotAllowedError{ContentTypeID: contentType.EntityID(), LanguageID: *languageID}
	}
	if !contentType.IsInvariant && languageID == nil {
		return &LanguageRequiredError{ContentTypeID: contentType.EntityID()}
	}

	invariantValues, variantValues := contentType.SplitFieldValues(locale.FieldValues)

	created := ContentCreatedEvent{
		ContentTypeID: contentType.EntityID(),
		Invariant:     locale.withValues(invariantValues),
	}
	if err := c.Raise(created, actor); err != nil {
		return err
	}

	if languageID == nil {
		return nil
	}
	language := *languageID
	return c.Raise(ContentLocaleChangedEvent{LanguageID: &language, Locale: locale.withValues(variantValues)}, actor)
}

// SetInvariant replaces the invariant locale and increments its revision
func (c *Content) SetInvariant(contentType *ContentType, locale ContentLocale, actor ActorID) error {
	if err := c.ensureEditableBy(contentType); err != nil {
		return err
	}
	invariantValues, _ := contentType.SplitFieldValues(locale.FieldValues)
	return c.Raise(ContentLocaleChangedEvent{Locale: locale.withValues(invariantValues)}, actor)
}

// SetLocale creates or replaces a language locale and increments its revision
func (c *Content) SetLocale(contentType *ContentType, languageID uuid.UUID, locale ContentLocale, actor ActorID) error {
	if err := c.ensureEditableBy(contentType); err != nil {
		return err
	}
	if contentType.IsInvariant {
		return &LanguageNotAllowedError{ContentTypeID: contentType.EntityID(), LanguageID: languageID}
	}
	_, variantValues := contentType.SplitFieldValues(locale.FieldValues)
	return c.Raise(ContentLocaleChangedEvent{LanguageID: &languageID, Locale: locale.withValues(variantValues)}, actor)
}

// FindLocale returns the invariant locale for a nil language, or the language locale
func (c *Content) FindLocale(languageID *uuid.UUID) (*LocaleState, bool) {
	if languageID == nil {
		return c.Invariant, c.Invariant != nil
	}
	state, ok := c.Locales[*languageID]
	return state, ok
}

// LanguageIDs lists the languages of the content in a stable order
func (c *Content) LanguageIDs() []uuid.UUID {
	ids := lo.Keys(c.Locales)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// PublishInvariant publishes the invariant locale
func (c *Content) PublishInvariant(actor ActorID) (bool, error) {
	return c.publish(nil, actor)
}

// PublishLocale publishes a language locale. It reports false when the locale does not exist.
func (c *Content) PublishLocale(languageID uuid.UUID, actor ActorID) (bool, error) {
	return c.publish(&languageID, actor)
}

// Publish publishes the invariant locale and every language locale
func (c *Content) Publish(actor ActorID) error {
	if _, err := c.publish(nil, actor); err != nil {
		return err
	}
	for _, languageID := range c.LanguageIDs() {
		if _, err := c.publish(&languageID, actor); err != nil {
			return err
		}
	}
	return nil
}

// UnpublishInvariant unpublishes the invariant locale
func (c *Content) UnpublishInvariant(actor ActorID) (bool, error) {
	return c.unpublish(nil, actor)
}

// UnpublishLocale unpublishes a language locale. It reports false when the locale does not exist.
func (c *Content) UnpublishLocale(languageID uuid.UUID, actor ActorID) (bool, error) {
	return c.unpublish(&languageID, actor)
}

// Unpublish unpublishes the invariant locale and every language locale
func (c *Content) Unpublish(actor ActorID) error {
	if _, err := c.unpublish(nil, actor); err != nil {
		return err
	}
	for _, languageID := range c.LanguageIDs() {
		if _, err := c.unpublish(&languageID, actor); err != nil {
			return err
		}
	}
	return nil
}

// RemoveLocale removes a language locale. It reports false when the locale does not exist.
// Removing the last language locale keeps the content.
func (c *Content) RemoveLocale(languageID uuid.UUID, actor ActorID) (bool, error) {
	if err := c.ensureActive(); err != nil {
		return false, err
	}
	if _, ok := c.Locales[languageID]; !ok {
		return false, nil
	}
	if err := c.Raise(ContentLocaleRemovedEvent{LanguageID: languageID}, actor); err != nil {
		return false, err
	}
	return true, nil
}

// Delete deletes the content with all its locales
func (c *Content) Delete(actor ActorID) error {
	if err := c.ensureActive(); err != nil {
		return err
	}
	return c.Raise(ContentDeletedEvent{}, actor)
}

// Publishing a locale already published at its current revision records nothing.
func (c *Content) publish(languageID *uuid.UUID, actor ActorID) (bool, error) {
	if err := c.ensureActive(); err != nil {
		return false, err
	}
	state, ok := c.FindLocale(languageID)
	if !ok {
		return false, nil
	}
	if state.IsPublished && state.PublishedRevision != nil && *state.PublishedRevision == state.Revision {
		return true, nil
	}
	if err := c.Raise(ContentLocalePublishedEvent{LanguageID: copyID(languageID), Revision: state.Revision}, actor); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Content) unpublish(languageID *uuid.UUID, actor ActorID) (bool, error) {
	if err := c.ensureActive(); err != nil {
		return false, err
	}
	state, ok := c.FindLocale(languageID)
	if !ok {
		return false, nil
	}
	if !state.IsPublished {
		return true, nil
	}
	if err := c.Raise(ContentLocaleUnpublishedEvent{LanguageID: copyID(languageID)}, actor); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Content) ensureEditableBy(contentType *ContentType) error {
	if err := c.ensureActive(); err != nil {
		return err
	}
	if contentType.EntityID() != c.ContentTypeID {
		return &ContentTypeMismatchError{ContentID: c.EntityID(), Expected: c.ContentTypeID, ContentTypeID: contentType.EntityID()}
	}
	return nil
}

func (c *Content) apply(event Event) error {
	switch data := event.Data.(type) {
	case ContentCreatedEvent:
		c.ContentTypeID = data.ContentTypeID
		c.Invariant = newLocaleState(data.Invariant, event)
	case ContentLocaleChangedEvent:
		state, ok := c.FindLocale(data.LanguageID)
		if !ok {
			if data.LanguageID == nil {
				return errLocaleNotFound(nil)
			}
			c.Locales[*data.LanguageID] = newLocaleState(data.Locale, event)
			return nil
		}
		state.ContentLocale = data.Locale
		if state.FieldValues == nil {
			state.FieldValues = map[uuid.UUID]string{}
		}
		state.Revision++
		state.UpdatedBy = event.ActorID
		state.UpdatedOn = event.Timestamp
	case ContentLocalePublishedEvent:
		state, ok := c.FindLocale(data.LanguageID)
		if !ok {
			return errLocaleNotFound(data.LanguageID)
		}
		revision := data.Revision
		publishedOn := event.Timestamp
		state.IsPublished = true
		state.PublishedRevision = &revision
		state.PublishedBy = event.ActorID
		state.PublishedOn = &publishedOn
	case ContentLocaleUnpublishedEvent:
		state, ok := c.FindLocale(data.LanguageID)
		if !ok {
			return errLocaleNotFound(data.LanguageID)
		}
		state.IsPublished = false
		state.PublishedRevision = nil
		state.PublishedBy = ""
		state.PublishedOn = nil
	case ContentLocaleRemovedEvent:
		delete(c.Locales, data.LanguageID)
	case ContentDeletedEvent:
	default:
		return unexpectedEvent(c.GetType(), event)
	}
	return nil
}

func newLocaleState(locale ContentLocale, event Event) *LocaleState {
	if locale.FieldValues == nil {
		locale.FieldValues = map[uuid.UUID]string{}
	}
	return &LocaleState{
		ContentLocale: locale,
		Revision:      1,
		CreatedBy:     event.ActorID,
		CreatedOn:     event.Timestamp,
		UpdatedBy:     event.ActorID,
		UpdatedOn:     event.Timestamp,
	}
}

func errLocaleNotFound(languageID *uuid.UUID) error {
	if languageID == nil {
		return fmt.Errorf("invariant locale not found")
	}
	return fmt.Errorf("locale %s not found", *languageID)
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
