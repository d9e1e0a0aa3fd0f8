package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Index statuses
const (
	StatusLatest    = "Latest"
	StatusPublished = "Published"
)

// InvariantLanguageKey is the language key of invariant locales
const InvariantLanguageKey = ""

// Content represents a content item in the database
type Content struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	ContentID     uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"id"`
	StreamID      string          `gorm:"uniqueIndex;size:73" json:"stream_id"`
	RealmKey      *string         `gorm:"index;size:36" json:"realm_id"`
	ContentTypeID uuid.UUID       `gorm:"type:uuid;index" json:"content_type_id"`
	Version       int             `json:"version"`
	IsDeleted     bool            `gorm:"index" json:"is_deleted"`
	Locales       []ContentLocale `gorm:"foreignKey:ContentID;references:ContentID" json:"locales"`
	Audit         `gorm:"embedded"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// ContentLocale represents one locale of a content, with its draft values
// and the snapshot taken when it was last published
type ContentLocale struct {
	ID                   uint       `gorm:"primaryKey" json:"-"`
	ContentID            uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_content_locales_language" json:"content_id"`
	LanguageKey          string     `gorm:"uniqueIndex:idx_content_locales_language;size:36" json:"-"`
	LanguageID           *uuid.UUID `gorm:"type:uuid" json:"language_id"`
	ContentTypeID        uuid.UUID  `gorm:"type:uuid;index" json:"content_type_id"`
	RealmKey             *string    `gorm:"index;size:36" json:"realm_id"`
	UniqueName           string     `gorm:"size:255" json:"unique_name"`
	UniqueNameNormalized string     `gorm:"index;size:255" json:"-"`
	DisplayName          *string    `gorm:"size:255" json:"display_name"`
	Description          *string    `json:"description"`
	FieldValues          []byte     `json:"field_values"`
	Revision             int64      `json:"revision"`
	Audit                `gorm:"embedded"`

	IsPublished          bool       `json:"is_published"`
	PublishedRevision    *int64     `json:"published_revision"`
	PublishedBy          *string    `gorm:"size:255" json:"published_by"`
	PublishedOn          *time.Time `json:"published_on"`
	PublishedUniqueName  *string    `gorm:"size:255" json:"published_unique_name"`
	PublishedDisplayName *string    `gorm:"size:255" json:"published_display_name"`
	PublishedDescription *string    `json:"published_description"`
	PublishedFieldValues []byte     `json:"published_field_values"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// LanguageKeyOf is the non-null language key used in unique constraints
func LanguageKeyOf(languageID *uuid.UUID) string {
	if languageID == nil {
		return InvariantLanguageKey
	}
	return languageID.String()
}

// EncodeFieldValues serializes a field value map for storage
func EncodeFieldValues(values map[uuid.UUID]string) ([]byte, error) {
	if values == nil {
		values = map[uuid.UUID]string{}
	}
	return json.Marshal(values)
}

// DecodeFieldValues deserializes stored field values
func DecodeFieldValues(data []byte) (map[uuid.UUID]string, error) {
	values := map[uuid.UUID]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// FindLocale returns the locale of a language, or the invariant locale for nil
func (c *Content) FindLocale(languageID *uuid.UUID) (*ContentLocale, bool) {
	key := LanguageKeyOf(languageID)
	for i := range c.Locales {
		if c.Locales[i].LanguageKey == key {
			return &c.Locales[i], true
		}
	}
	return nil, false
}
