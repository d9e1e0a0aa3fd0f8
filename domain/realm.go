package domain

import "github.com/google/uuid"

// RealmAggregateType is the aggregate type of realms
const RealmAggregateType = "realm"

// Realm event types
const (
	RealmCreated           = "V1_REALM_CREATED"
	RealmUniqueSlugChanged = "V1_REALM_UNIQUE_SLUG_CHANGED"
	RealmUpdated           = "V1_REALM_UPDATED"
	RealmDeleted           = "V1_REALM_DELETED"
)

// RealmCreatedEvent represents a realm created event
type RealmCreatedEvent struct {
	UniqueSlug Slug `json:"unique_slug"`
}

func (RealmCreatedEvent) EventType() string { return RealmCreated }

// RealmUniqueSlugChangedEvent represents a realm slug change
type RealmUniqueSlugChangedEvent struct {
	UniqueSlug Slug `json:"unique_slug"`
}

func (RealmUniqueSlugChangedEvent) EventType() string { return RealmUniqueSlugChanged }

// RealmUpdatedEvent replaces the realm metadata
type RealmUpdatedEvent struct {
	DisplayName *DisplayName `json:"display_name,omitempty"`
	Description *string      `json:"description,omitempty"`
}

func (RealmUpdatedEvent) EventType() string { return RealmUpdated }

// RealmDeletedEvent represents a realm deletion
type RealmDeletedEvent struct {
	Tombstone
}

func (RealmDeletedEvent) EventType() string { return RealmDeleted }

func init() {
	RegisterEvent[RealmCreatedEvent]()
	RegisterEvent[RealmUniqueSlugChangedEvent]()
	RegisterEvent[RealmUpdatedEvent]()
	RegisterEvent[RealmDeletedEvent]()
}

// Realm is a tenant. Realms themselves live in the global scope.
type Realm struct {
	*AggregateBase

	UniqueSlug  Slug
	DisplayName *DisplayName
	Description *string
}

// NewRealmAggregate creates an empty realm aggregate ready to be loaded or created
func NewRealmAggregate(id uuid.UUID) *Realm {
	r := &Realm{}
	r.AggregateBase = NewAggregateBase(GlobalStreamID(id), RealmAggregateType, r.apply)
	return r
}

// Create creates the realm
func (r *Realm) Create(slug Slug, actor ActorID) error {
	if err := r.ensureNew(); err != nil {
		return err
	}
	return r.Raise(RealmCreatedEvent{UniqueSlug: slug}, actor)
}

// SetUniqueSlug renames the realm slug
func (r *Realm) SetUniqueSlug(slug Slug, actor ActorID) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	if r.UniqueSlug == slug {
		return nil
	}
	return r.Raise(RealmUniqueSlugChangedEvent{UniqueSlug: slug}, actor)
}

// Update replaces the display name and description
func (r *Realm) Update(displayName *DisplayName, description *string, actor ActorID) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	if equalPtr(r.DisplayName, displayName) && equalPtr(r.Description, description) {
		return nil
	}
	return r.Raise(RealmUpdatedEvent{DisplayName: displayName, Description: description}, actor)
}

// Delete deletes the realm
func (r *Realm) Delete(actor ActorID) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	return r.Raise(RealmDeletedEvent{}, actor)
}

func (r *Realm) apply(event Event) error {
	switch data := event.Data.(type) {
	case RealmCreatedEvent:
		r.UniqueSlug = data.UniqueSlug
	case RealmUniqueSlugChangedEvent:
		r.UniqueSlug = data.UniqueSlug
	case RealmUpdatedEvent:
		r.DisplayName = data.DisplayName
		r.Description = data.Description
	case RealmDeletedEvent:
	default:
		return unexpectedEvent(r.GetType(), event)
	}
	return nil
}
