package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const streamSeparator = ":"

// StreamID identifies an event stream. Realm is nil for the global scope.
type StreamID struct {
	Realm  *uuid.UUID
	Entity uuid.UUID
}

// NewStreamID creates a stream identifier. The realm is copied.
func NewStreamID(realm *uuid.UUID, entity uuid.UUID) StreamID {
	id := StreamID{Entity: entity}
	if realm != nil {
		r := *realm
		id.Realm = &r
	}
	return id
}

// GlobalStreamID creates a stream identifier outside of any realm
func GlobalStreamID(entity uuid.UUID) StreamID {
	return StreamID{Entity: entity}
}

// String encodes the stream as "<entity>" or "<realm>:<entity>"
func (s StreamID) String() string {
	if s.Realm == nil {
		return s.Entity.String()
	}
	return s.Realm.String() + streamSeparator + s.Entity.String()
}

// IsZero reports whether the entity part is unset
func (s StreamID) IsZero() bool {
	return s.Entity == uuid.Nil
}

// Equals compares two stream identifiers by value
func (s StreamID) Equals(other StreamID) bool {
	return s.String() == other.String()
}

// RealmKey returns the nullable realm key stored on read rows
func (s StreamID) RealmKey() *string {
	if s.Realm == nil {
		return nil
	}
	key := s.Realm.String()
	return &key
}

// ParseStreamID decodes the output of StreamID.String
func ParseStreamID(value string) (StreamID, error) {
	parts := strings.Split(value, streamSeparator)
	switch len(parts) {
	case 1:
		entity, err := uuid.Parse(parts[0])
		if err != nil {
			return StreamID{}, fmt.Errorf("invalid stream id %q: %w", value, err)
		}
		return GlobalStreamID(entity), nil
	case 2:
		realm, err := uuid.Parse(parts[0])
		if err != nil {
			return StreamID{}, fmt.Errorf("invalid realm in stream id %q: %w", value, err)
		}
		entity, err := uuid.Parse(parts[1])
		if err != nil {
			return StreamID{}, fmt.Errorf("invalid entity in stream id %q: %w", value, err)
		}
		return NewStreamID(&realm, entity), nil
	default:
		return StreamID{}, fmt.Errorf("invalid stream id %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s StreamID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *StreamID) UnmarshalText(text []byte) error {
	id, err := ParseStreamID(string(text))
	if err != nil {
		return err
	}
	*s = id
	return nil
}

// ActorID identifies who caused an event. Empty means the system.
type ActorID string

// ParseRealmKey converts a nullable realm key back to a realm id
func ParseRealmKey(key *string) (*uuid.UUID, error) {
	if key == nil {
		return nil, nil
	}
	realm, err := uuid.Parse(*key)
	if err != nil {
		return nil, fmt.Errorf("invalid realm key %q: %w", *key, err)
	}
	return &realm, nil
}
