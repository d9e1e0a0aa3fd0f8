package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldType represents a field type in the database. Settings holds the JSON
// encoded settings of DataType.
type FieldType struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	FieldTypeID          uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"id"`
	StreamID             string    `gorm:"uniqueIndex;size:73" json:"stream_id"`
	RealmKey             *string   `gorm:"index;size:36" json:"realm_id"`
	Version              int       `json:"version"`
	UniqueName           string    `gorm:"size:255" json:"unique_name"`
	UniqueNameNormalized string    `gorm:"index;size:255" json:"-"`
	DisplayName          *string   `gorm:"size:255" json:"display_name"`
	Description          *string   `json:"description"`
	DataType             string    `gorm:"size:32" json:"data_type"`
	Settings             []byte    `json:"settings"`
	IsDeleted            bool      `gorm:"index" json:"is_deleted"`
	Audit                `gorm:"embedded"`
	CreatedAt            time.Time `json:"-"`
	UpdatedAt            time.Time `json:"-"`
}

// ContentType represents a content type in the database
type ContentType struct {
	ID                   uint              `gorm:"primaryKey" json:"-"`
	ContentTypeID        uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"id"`
	StreamID             string            `gorm:"uniqueIndex;size:73" json:"stream_id"`
	RealmKey             *string           `gorm:"index;size:36" json:"realm_id"`
	Version              int               `json:"version"`
	IsInvariant          bool              `json:"is_invariant"`
	UniqueName           string            `gorm:"size:255" json:"unique_name"`
	UniqueNameNormalized string            `gorm:"index;size:255" json:"-"`
	DisplayName          *string           `gorm:"size:255" json:"display_name"`
	Description          *string           `json:"description"`
	IsDeleted            bool              `gorm:"index" json:"is_deleted"`
	Fields               []FieldDefinition `gorm:"foreignKey:ContentTypeID;references:ContentTypeID" json:"fields"`
	Audit                `gorm:"embedded"`
	CreatedAt            time.Time `json:"-"`
	UpdatedAt            time.Time `json:"-"`
}

// FieldDefinition represents a field of a content type. DataType is copied
// from the field type so indexing never needs another lookup.
type FieldDefinition struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	FieldDefinitionID    uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"id"`
	ContentTypeID        uuid.UUID `gorm:"type:uuid;index" json:"content_type_id"`
	FieldTypeID          uuid.UUID `gorm:"type:uuid;index" json:"field_type_id"`
	DataType             string    `gorm:"size:32" json:"data_type"`
	Order                int       `json:"order"`
	IsInvariant          bool      `json:"is_invariant"`
	IsRequired           bool      `json:"is_required"`
	IsIndexed            bool      `json:"is_indexed"`
	IsUnique             bool      `json:"is_unique"`
	UniqueName           string    `gorm:"size:255" json:"unique_name"`
	UniqueNameNormalized string    `gorm:"size:255" json:"-"`
	DisplayName          *string   `gorm:"size:255" json:"display_name"`
	Description          *string   `json:"description"`
	Placeholder          *string   `gorm:"size:255" json:"placeholder"`
	CreatedAt            time.Time `json:"-"`
	UpdatedAt            time.Time `json:"-"`
}

// FindField returns the definition with the given id
func (c *ContentType) FindField(fieldID uuid.UUID) (*FieldDefinition, bool) {
	for i := range c.Fields {
		if c.Fields[i].FieldDefinitionID == fieldID {
			return &c.Fields[i], true
		}
	}
	return nil, false
}
