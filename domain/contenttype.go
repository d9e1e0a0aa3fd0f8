package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ContentTypeAggregateType is the aggregate type of content types
const ContentTypeAggregateType = "content_type"

// Content type event types
const (
	ContentTypeCreated                = "V1_CONTENT_TYPE_CREATED"
	ContentTypeUniqueNameChanged      = "V1_CONTENT_TYPE_UNIQUE_NAME_CHANGED"
	ContentTypeUpdated                = "V1_CONTENT_TYPE_UPDATED"
	ContentTypeFieldDefinitionChanged = "V1_CONTENT_TYPE_FIELD_DEFINITION_CHANGED"
	ContentTypeFieldDefinitionRemoved = "V1_CONTENT_TYPE_FIELD_DEFINITION_REMOVED"
	ContentTypeDeleted                = "V1_CONTENT_TYPE_DELETED"
)

// FieldDefinition is a named, typed slot on a content type
type FieldDefinition struct {
	ID          uuid.UUID    `json:"id"`
	FieldTypeID uuid.UUID    `json:"field_type_id"`
	IsInvariant bool         `json:"is_invariant"`
	IsRequired  bool         `json:"is_required"`
	IsIndexed   bool         `json:"is_indexed"`
	IsUnique    bool         `json:"is_unique"`
	UniqueName  Identifier   `json:"unique_name"`
	DisplayName *DisplayName `json:"display_name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Placeholder *string      `json:"placeholder,omitempty"`
}

// ContentTypeCreatedEvent represents a content type created event
type ContentTypeCreatedEvent struct {
	IsInvariant bool       `json:"is_invariant"`
	UniqueName  Identifier `json:"unique_name"`
}

func (ContentTypeCreatedEvent) EventType() string { return ContentTypeCreated }

// ContentTypeUniqueNameChangedEvent represents a content type rename
type ContentTypeUniqueNameChangedEvent struct {
	UniqueName Identifier `json:"unique_name"`
}

func (ContentTypeUniqueNameChangedEvent) EventType() string { return ContentTypeUniqueNameChanged }

// ContentTypeUpdatedEvent replaces the content type metadata
type ContentTypeUpdatedEvent struct {
	DisplayName *DisplayName `json:"display_name,omitempty"`
	Description *string      `json:"description,omitempty"`
}

func (ContentTypeUpdatedEvent) EventType() string { return ContentTypeUpdated }

// ContentTypeFieldDefinitionChangedEvent upserts a field definition
type ContentTypeFieldDefinitionChangedEvent struct {
	FieldDefinition FieldDefinition `json:"field_definition"`
}

func (ContentTypeFieldDefinitionChangedEvent) EventType() string {
	return ContentTypeFieldDefinitionChanged
}

// ContentTypeFieldDefinitionRemovedEvent removes a field definition
type ContentTypeFieldDefinitionRemovedEvent struct {
	FieldID uuid.UUID `json:"field_id"`
}

func (ContentTypeFieldDefinitionRemovedEvent) EventType() string {
	return ContentTypeFieldDefinitionRemoved
}

// ContentTypeDeletedEvent represents a content type deletion
type ContentTypeDeletedEvent struct {
	Tombstone
}

func (ContentTypeDeletedEvent) EventType() string { return ContentTypeDeleted }

func init() {
	RegisterEvent[ContentTypeCreatedEvent]()
	RegisterEvent[ContentTypeUniqueNameChangedEvent]()
	RegisterEvent[ContentTypeUpdatedEvent]()
	RegisterEvent[ContentTypeFieldDefinitionChangedEvent]()
	RegisterEvent[ContentTypeFieldDefinitionRemovedEvent]()
	RegisterEvent[ContentTypeDeletedEvent]()
}

// ContentType is the schema of a family of contents
type ContentType struct {
	*AggregateBase

	IsInvariant bool
	UniqueName  Identifier
	DisplayName *DisplayName
	Description *string
	Fields      []FieldDefinition
}

// NewContentTypeAggregate creates an empty content type aggregate
func NewContentTypeAggregate(id StreamID) *ContentType {
	c := &ContentType{}
	c.AggregateBase = NewAggregateBase(id, ContentTypeAggregateType, c.apply)
	return c
}

// Create creates the content type. IsInvariant cannot change afterwards.
func (c *ContentType) Create(uniqueName Identifier, isInvariant bool, actor ActorID) error {
	if err := c.ensureNew(); err != nil {
		return err
	}
	return c.Raise(ContentTypeCreatedEvent{IsInvariant: isInvariant, UniqueName: uniqueName}, actor)
}

// SetUniqueName renames the content type
func (c *ContentType) SetUniqueName(uniqueName Identifier, actor ActorID) error {
	if err := c.ensureActive(); err != nil {
		return err
	}
	if c.UniqueName == uniqueName {
		return nil
	}
	return c.Raise(ContentTypeUniqueNameChangedEvent{UniqueName: uniqueName}, actor)
}

// Update replaces the display name and description
func (c *ContentType) Update(displayName *DisplayName, description *string, actor ActorID) error {
	if err := c.ensureActive(); err != nil {
		return err
	}
	if equalPtr(c.DisplayName, displayName) && equalPtr(c.Description, description) {
		return nil
	}
	return c.Raise(ContentTypeUpdatedEvent{DisplayName: displayName, Description: description}, actor)
}

// SetField inserts or replaces a field definition by id.
// Inserted definitions go last; replaced ones keep their position.
func (c *ContentType) SetField(definition FieldDefinition, actor ActorID) error {
	if err := c.ensureActive(); err != nil {
		return err
	}

	errs := &ValidationError{}
	if definition.ID == uuid.Nil {
		errs.Add("ID", "required", "is required")
	}
	if definition.FieldTypeID == uuid.Nil {
		errs.Add("FieldTypeID", "required", "is required")
	}
	if strings.TrimSpace(definition.UniqueName.String()) == "" {
		errs.Add("UniqueName", "required", "is required")
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	normalized := NormalizeName(definition.UniqueName.String())
	conflict, found := lo.Find(c.Fields, func(field FieldDefinition) bool {
		return field.ID != definition.ID && NormalizeName(field.UniqueName.String()) == normalized
	})
	if found {
		return &UniqueNameAlreadyUsedError{
			Kind:       "field definition",
			UniqueName: definition.UniqueName.String(),
			ConflictID: conflict.ID.String(),
		}
	}

	if existing, ok := c.FindField(definition.ID); ok && existing.FieldTypeID != definition.FieldTypeID {
		errs.Add("FieldTypeID", "immutable", "cannot change once the field is defined")
		return errs
	}

	return c.Raise(ContentTypeFieldDefinitionChangedEvent{FieldDefinition: definition}, actor)
}

// RemoveField removes a field definition. It reports false when the id is unknown.
func (c *ContentType) RemoveField(fieldID uuid.UUID, actor ActorID) (bool, error) {
	if err := c.ensureActive(); err != nil {
		return false, err
	}
	if _, ok := c.FindField(fieldID); !ok {
		return false, nil
	}
	if err := c.Raise(ContentTypeFieldDefinitionRemovedEvent{FieldID: fieldID}, actor); err != nil {
		return false, err
	}
	return true, nil
}

// Delete deletes the content type. Its contents must be deleted by the caller.
func (c *ContentType) Delete(actor ActorID) error {
	if err := c.ensureActive(); err != nil {
		return err
	}
	return c.Raise(ContentTypeDeletedEvent{}, actor)
}

// FindField returns the field definition with the given id
func (c *ContentType) FindField(fieldID uuid.UUID) (FieldDefinition, bool) {
	return lo.Find(c.Fields, func(field FieldDefinition) bool { return field.ID == fieldID })
}

// FindFieldByName returns the field definition with the given unique name, ignoring case
func (c *ContentType) FindFieldByName(uniqueName string) (FieldDefinition, bool) {
	normalized := NormalizeName(uniqueName)
	return lo.Find(c.Fields, func(field FieldDefinition) bool {
		return NormalizeName(field.UniqueName.String()) == normalized
	})
}

// FieldsReferencing lists the definitions bound to a field type
func (c *ContentType) FieldsReferencing(fieldTypeID uuid.UUID) []FieldDefinition {
	return lo.Filter(c.Fields, func(field FieldDefinition, _ int) bool { return field.FieldTypeID == fieldTypeID })
}

// SplitFieldValues separates values for the invariant locale from values for a language locale.
// For an invariant content type every known field goes to the invariant side.
// Values for unknown field ids are dropped.
func (c *ContentType) SplitFieldValues(values map[uuid.UUID]string) (invariant, variant map[uuid.UUID]string) {
	invariant = map[uuid.UUID]string{}
	variant = map[uuid.UUID]string{}

	for fieldID, value := range values {
		field, ok := c.FindField(fieldID)
		if !ok {
			continue
		}
		if c.IsInvariant || field.IsInvariant {
			invariant[fieldID] = value
		} else {
			variant[fieldID] = value
		}
	}
	return invariant, variant
}

func (c *ContentType) apply(event Event) error {
	switch data := event.Data.(type) {
	case ContentTypeCreatedEvent:
		c.IsInvariant = data.IsInvariant
		c.UniqueName = data.UniqueName
		c.Fields = []FieldDefinition{}
	case ContentTypeUniqueNameChangedEvent:
		c.UniqueName = data.UniqueName
	case ContentTypeUpdatedEvent:
		c.DisplayName = data.DisplayName
		c.Description = data.Description
	case ContentTypeFieldDefinitionChangedEvent:
		_, index, found := lo.FindIndexOf(c.Fields, func(field FieldDefinition) bool {
			return field.ID == data.FieldDefinition.ID
		})
		if found {
			c.Fields[index] = data.FieldDefinition
		} else {
			c.Fields = append(c.Fields, data.FieldDefinition)
		}
	case ContentTypeFieldDefinitionRemovedEvent:
		c.Fields = lo.Reject(c.Fields, func(field FieldDefinition, _ int) bool {
			return field.ID == data.FieldID
		})
	case ContentTypeDeletedEvent:
	default:
		return unexpectedEvent(c.GetType(), event)
	}
	return nil
}
