package domain

// FieldTypeAggregateType is the aggregate type of field types
const FieldTypeAggregateType = "field_type"

// Field type event types
const (
	FieldTypeCreated                       = "V1_FIELD_TYPE_CREATED"
	FieldTypeUniqueNameChanged             = "V1_FIELD_TYPE_UNIQUE_NAME_CHANGED"
	FieldTypeUpdated                       = "V1_FIELD_TYPE_UPDATED"
	FieldTypeBooleanSettingsChanged        = "V1_FIELD_TYPE_BOOLEAN_SETTINGS_CHANGED"
	FieldTypeDateTimeSettingsChanged       = "V1_FIELD_TYPE_DATE_TIME_SETTINGS_CHANGED"
	FieldTypeNumberSettingsChanged         = "V1_FIELD_TYPE_NUMBER_SETTINGS_CHANGED"
	FieldTypeRelatedContentSettingsChanged = "V1_FIELD_TYPE_RELATED_CONTENT_SETTINGS_CHANGED"
	FieldTypeRichTextSettingsChanged       = "V1_FIELD_TYPE_RICH_TEXT_SETTINGS_CHANGED"
	FieldTypeSelectSettingsChanged         = "V1_FIELD_TYPE_SELECT_SETTINGS_CHANGED"
	FieldTypeStringSettingsChanged         = "V1_FIELD_TYPE_STRING_SETTINGS_CHANGED"
	FieldTypeTagsSettingsChanged           = "V1_FIELD_TYPE_TAGS_SETTINGS_CHANGED"
	FieldTypeDeleted                       = "V1_FIELD_TYPE_DELETED"
)

// FieldTypeCreatedEvent represents a field type created event
type FieldTypeCreatedEvent struct {
	UniqueName UniqueName `json:"unique_name"`
	DataType   DataType   `json:"data_type"`
}

func (FieldTypeCreatedEvent) EventType() string { return FieldTypeCreated }

// FieldTypeUniqueNameChangedEvent represents a field type rename
type FieldTypeUniqueNameChangedEvent struct {
	UniqueName UniqueName `json:"unique_name"`
}

func (FieldTypeUniqueNameChangedEvent) EventType() string { return FieldTypeUniqueNameChanged }

// FieldTypeUpdatedEvent replaces the field type metadata
type FieldTypeUpdatedEvent struct {
	DisplayName *DisplayName `json:"display_name,omitempty"`
	Description *string      `json:"description,omitempty"`
}

func (FieldTypeUpdatedEvent) EventType() string { return FieldTypeUpdated }

// FieldTypeBooleanSettingsChangedEvent replaces boolean settings
type FieldTypeBooleanSettingsChangedEvent struct {
	Settings BooleanSettings `json:"settings"`
}

func (FieldTypeBooleanSettingsChangedEvent) EventType() string { return FieldTypeBooleanSettingsChanged }

// FieldTypeDateTimeSettingsChangedEvent replaces date-time settings
type FieldTypeDateTimeSettingsChangedEvent struct {
	Settings DateTimeSettings `json:"settings"`
}

func (FieldTypeDateTimeSettingsChangedEvent) EventType() string { return FieldTypeDateTimeSettingsChanged }

// FieldTypeNumberSettingsChangedEvent replaces number settings
type FieldTypeNumberSettingsChangedEvent struct {
	Settings NumberSettings `json:"settings"`
}

func (FieldTypeNumberSettingsChangedEvent) EventType() string { return FieldTypeNumberSettingsChanged }

// FieldTypeRelatedContentSettingsChangedEvent replaces related content settings
type FieldTypeRelatedContentSettingsChangedEvent struct {
	Settings RelatedContentSettings `json:"settings"`
}

func (FieldTypeRelatedContentSettingsChangedEvent) EventType() string {
	return FieldTypeRelatedContentSettingsChanged
}

// FieldTypeRichTextSettingsChangedEvent replaces rich text settings
type FieldTypeRichTextSettingsChangedEvent struct {
	Settings RichTextSettings `json:"settings"`
}

func (FieldTypeRichTextSettingsChangedEvent) EventType() string { return FieldTypeRichTextSettingsChanged }

// FieldTypeSelectSettingsChangedEvent replaces select settings
type FieldTypeSelectSettingsChangedEvent struct {
	Settings SelectSettings `json:"settings"`
}

func (FieldTypeSelectSettingsChangedEvent) EventType() string { return FieldTypeSelectSettingsChanged }

// FieldTypeStringSettingsChangedEvent replaces string settings
type FieldTypeStringSettingsChangedEvent struct {
	Settings StringSettings `json:"settings"`
}

func (FieldTypeStringSettingsChangedEvent) EventType() string { return FieldTypeStringSettingsChanged }

// FieldTypeTagsSettingsChangedEvent replaces tags settings
type FieldTypeTagsSettingsChangedEvent struct {
	Settings TagsSettings `json:"settings"`
}

func (FieldTypeTagsSettingsChangedEvent) EventType() string { return FieldTypeTagsSettingsChanged }

// FieldTypeDeletedEvent represents a field type deletion
type FieldTypeDeletedEvent struct {
	Tombstone
}

func (FieldTypeDeletedEvent) EventType() string { return FieldTypeDeleted }

func init() {
	RegisterEvent[FieldTypeCreatedEvent]()
	RegisterEvent[FieldTypeUniqueNameChangedEvent]()
	RegisterEvent[FieldTypeUpdatedEvent]()
	RegisterEvent[FieldTypeBooleanSettingsChangedEvent]()
	RegisterEvent[FieldTypeDateTimeSettingsChangedEvent]()
	RegisterEvent[FieldTypeNumberSettingsChangedEvent]()
	RegisterEvent[FieldTypeRelatedContentSettingsChangedEvent]()
	RegisterEvent[FieldTypeRichTextSettingsChangedEvent]()
	RegisterEvent[FieldTypeSelectSettingsChangedEvent]()
	RegisterEvent[FieldTypeStringSettingsChangedEvent]()
	RegisterEvent[FieldTypeTagsSettingsChangedEvent]()
	RegisterEvent[FieldTypeDeletedEvent]()
}

// SettingsOf extracts the settings carried by a settings-changed event
func SettingsOf(data EventData) (FieldSettings, bool) {
	switch e := data.(type) {
	case FieldTypeBooleanSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeDateTimeSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeNumberSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeRelatedContentSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeRichTextSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeSelectSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeStringSettingsChangedEvent:
		return e.Settings, true
	case FieldTypeTagsSettingsChangedEvent:
		return e.Settings, true
	default:
		return nil, false
	}
}

func settingsChangedEvent(settings FieldSettings) (EventData, error) {
	switch s := settings.(type) {
	case BooleanSettings:
		return FieldTypeBooleanSettingsChangedEvent{Settings: s}, nil
	case DateTimeSettings:
		return FieldTypeDateTimeSettingsChangedEvent{Settings: s}, nil
	case NumberSettings:
		return FieldTypeNumberSettingsChangedEvent{Settings: s}, nil
	case RelatedContentSettings:
		return FieldTypeRelatedContentSettingsChangedEvent{Settings: s}, nil
	case RichTextSettings:
		return FieldTypeRichTextSettingsChangedEvent{Settings: s}, nil
	case SelectSettings:
		return FieldTypeSelectSettingsChangedEvent{Settings: s}, nil
	case StringSettings:
		return FieldTypeStringSettingsChangedEvent{Settings: s}, nil
	case TagsSettings:
		return FieldTypeTagsSettingsChangedEvent{Settings: s}, nil
	default:
		return nil, &DataTypeNotSupportedError{DataType: settings.DataType()}
	}
}

// FieldType is a reusable, typed field schema. Its data type never changes.
type FieldType struct {
	*AggregateBase

	UniqueName  UniqueName
	DisplayName *DisplayName
	Description *string
	DataType    DataType
	Settings    FieldSettings
}

// NewFieldTypeAggregate creates an empty field type aggregate
func NewFieldTypeAggregate(id StreamID) *FieldType {
	f := &FieldType{}
	f.AggregateBase = NewAggregateBase(id, FieldTypeAggregateType, f.apply)
	return f
}

// Create creates the field type with its data type and initial settings
func (f *FieldType) Create(uniqueName UniqueName, settings FieldSettings, actor ActorID) error {
	if err := f.ensureNew(); err != nil {
		return err
	}
	if settings == nil {
		return &DataTypeNotSupportedError{}
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	settingsEvent, err := settingsChangedEvent(settings)
	if err != nil {
		return err
	}

	if err := f.Raise(FieldTypeCreatedEvent{UniqueName: uniqueName, DataType: settings.DataType()}, actor); err != nil {
		return err
	}
	return f.Raise(settingsEvent, actor)
}

// SetUniqueName renames the field type
func (f *FieldType) SetUniqueName(uniqueName UniqueName, actor ActorID) error {
	if err := f.ensureActive(); err != nil {
		return err
	}
	if f.UniqueName == uniqueName {
		return nil
	}
	return f.Raise(FieldTypeUniqueNameChangedEvent{UniqueName: uniqueName}, actor)
}

// Update replaces the display name and description
func (f *FieldType) Update(displayName *DisplayName, description *string, actor ActorID) error {
	if err := f.ensureActive(); err != nil {
		return err
	}
	if equalPtr(f.DisplayName, displayName) && equalPtr(f.Description, description) {
		return nil
	}
	return f.Raise(FieldTypeUpdatedEvent{DisplayName: displayName, Description: description}, actor)
}

// SetSettings replaces the settings; their data type must match the field type
func (f *FieldType) SetSettings(settings FieldSettings, actor ActorID) error {
	if err := f.ensureActive(); err != nil {
		return err
	}
	if settings == nil {
		return &DataTypeNotSupportedError{}
	}
	if settings.DataType() != f.DataType {
		return &DataTypeMismatchError{FieldTypeID: f.EntityID(), Expected: f.DataType, Actual: settings.DataType()}
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	event, err := settingsChangedEvent(settings)
	if err != nil {
		return err
	}
	return f.Raise(event, actor)
}

// SetBooleanSettings replaces boolean settings
func (f *FieldType) SetBooleanSettings(settings BooleanSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetDateTimeSettings replaces date-time settings
func (f *FieldType) SetDateTimeSettings(settings DateTimeSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetNumberSettings replaces number settings
func (f *FieldType) SetNumberSettings(settings NumberSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetRelatedContentSettings replaces related content settings
func (f *FieldType) SetRelatedContentSettings(settings RelatedContentSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetRichTextSettings replaces rich text settings
func (f *FieldType) SetRichTextSettings(settings RichTextSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetSelectSettings replaces select settings
func (f *FieldType) SetSelectSettings(settings SelectSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetStringSettings replaces string settings
func (f *FieldType) SetStringSettings(settings StringSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// SetTagsSettings replaces tags settings
func (f *FieldType) SetTagsSettings(settings TagsSettings, actor ActorID) error {
	return f.SetSettings(settings, actor)
}

// Delete deletes the field type. Definitions referencing it must be removed first.
func (f *FieldType) Delete(actor ActorID) error {
	if err := f.ensureActive(); err != nil {
		return err
	}
	return f.Raise(FieldTypeDeletedEvent{}, actor)
}

func (f *FieldType) apply(event Event) error {
	if settings, ok := SettingsOf(event.Data); ok {
		if settings.DataType() != f.DataType {
			return &DataTypeMismatchError{FieldTypeID: f.EntityID(), Expected: f.DataType, Actual: settings.DataType()}
		}
		f.Settings = settings
		return nil
	}

	switch data := event.Data.(type) {
	case FieldTypeCreatedEvent:
		f.UniqueName = data.UniqueName
		f.DataType = data.DataType
	case FieldTypeUniqueNameChangedEvent:
		f.UniqueName = data.UniqueName
	case FieldTypeUpdatedEvent:
		f.DisplayName = data.DisplayName
		f.Description = data.Description
	case FieldTypeDeletedEvent:
	default:
		return unexpectedEvent(f.GetType(), event)
	}
	return nil
}
