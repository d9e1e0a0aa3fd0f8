package domain

// LanguageAggregateType is the aggregate type of languages
const LanguageAggregateType = "language"

// Language event types
const (
	LanguageCreated       = "V1_LANGUAGE_CREATED"
	LanguageLocaleChanged = "V1_LANGUAGE_LOCALE_CHANGED"
	LanguageSetDefault    = "V1_LANGUAGE_SET_DEFAULT"
	LanguageDeleted       = "V1_LANGUAGE_DELETED"
)

// LanguageCreatedEvent represents a language created event
type LanguageCreatedEvent struct {
	Locale    Locale `json:"locale"`
	IsDefault bool   `json:"is_default"`
}

func (LanguageCreatedEvent) EventType() string { return LanguageCreated }

// LanguageLocaleChangedEvent represents a locale change
type LanguageLocaleChangedEvent struct {
	Locale Locale `json:"locale"`
}

func (LanguageLocaleChangedEvent) EventType() string { return LanguageLocaleChanged }

// LanguageSetDefaultEvent flags or unflags the realm default language
type LanguageSetDefaultEvent struct {
	IsDefault bool `json:"is_default"`
}

func (LanguageSetDefaultEvent) EventType() string { return LanguageSetDefault }

// LanguageDeletedEvent represents a language deletion
type LanguageDeletedEvent struct {
	Tombstone
}

func (LanguageDeletedEvent) EventType() string { return LanguageDeleted }

func init() {
	RegisterEvent[LanguageCreatedEvent]()
	RegisterEvent[LanguageLocaleChangedEvent]()
	RegisterEvent[LanguageSetDefaultEvent]()
	RegisterEvent[LanguageDeletedEvent]()
}

// Language is a locale enabled in a realm
type Language struct {
	*AggregateBase

	Locale    Locale
	IsDefault bool
}

// NewLanguageAggregate creates an empty language aggregate
func NewLanguageAggregate(id StreamID) *Language {
	l := &Language{}
	l.AggregateBase = NewAggregateBase(id, LanguageAggregateType, l.apply)
	return l
}

// Create creates the language
func (l *Language) Create(locale Locale, isDefault bool, actor ActorID) error {
	if err := l.ensureNew(); err != nil {
		return err
	}
	return l.Raise(LanguageCreatedEvent{Locale: locale, IsDefault: isDefault}, actor)
}

// SetLocale changes the locale code
func (l *Language) SetLocale(locale Locale, actor ActorID) error {
	if err := l.ensureActive(); err != nil {
		return err
	}
	if l.Locale == locale {
		return nil
	}
	return l.Raise(LanguageLocaleChangedEvent{Locale: locale}, actor)
}

// SetDefault flags the language as the realm default, or clears the flag
func (l *Language) SetDefault(isDefault bool, actor ActorID) error {
	if err := l.ensureActive(); err != nil {
		return err
	}
	if l.IsDefault == isDefault {
		return nil
	}
	return l.Raise(LanguageSetDefaultEvent{IsDefault: isDefault}, actor)
}

// Delete deletes the language
func (l *Language) Delete(actor ActorID) error {
	if err := l.ensureActive(); err != nil {
		return err
	}
	return l.Raise(LanguageDeletedEvent{}, actor)
}

func (l *Language) apply(event Event) error {
	switch data := event.Data.(type) {
	case LanguageCreatedEvent:
		l.Locale = data.Locale
		l.IsDefault = data.IsDefault
	case LanguageLocaleChangedEvent:
		l.Locale = data.Locale
	case LanguageSetDefaultEvent:
		l.IsDefault = data.IsDefault
	case LanguageDeletedEvent:
	default:
		return unexpectedEvent(l.GetType(), event)
	}
	return nil
}
