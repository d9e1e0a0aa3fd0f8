package models

import (
	"time"

	"github.com/google/uuid"
)

// UniqueIndex is one unique field value of a content locale. Key is unique
// within ScopeKey, so two contents never hold the same value in one scope.
type UniqueIndex struct {
	ID                uint       `gorm:"primaryKey" json:"-"`
	ScopeKey          string     `gorm:"uniqueIndex:idx_unique_indices_scope_key;size:160" json:"-"`
	Key               string     `gorm:"uniqueIndex:idx_unique_indices_scope_key;size:320" json:"key"`
	RealmKey          *string    `gorm:"index;size:36" json:"realm_id"`
	ContentTypeID     uuid.UUID  `gorm:"type:uuid;index" json:"content_type_id"`
	LanguageID        *uuid.UUID `gorm:"type:uuid" json:"language_id"`
	LanguageKey       string     `gorm:"index;size:36" json:"-"`
	FieldDefinitionID uuid.UUID  `gorm:"type:uuid;index" json:"field_definition_id"`
	ContentID         uuid.UUID  `gorm:"type:uuid;index" json:"content_id"`
	Status            string     `gorm:"size:16" json:"status"`
	Revision          int64      `json:"revision"`
	Value             string     `gorm:"size:255" json:"value"`
	Normalized        string     `gorm:"size:255" json:"normalized"`
	CreatedAt         time.Time  `json:"created_at"`
}

// FieldIndex is one searchable field value of a content locale, coerced to
// the column of its data type
type FieldIndex struct {
	ID                uint       `gorm:"primaryKey" json:"-"`
	RealmKey          *string    `gorm:"index;size:36" json:"realm_id"`
	ContentTypeID     uuid.UUID  `gorm:"type:uuid;index" json:"content_type_id"`
	LanguageID        *uuid.UUID `gorm:"type:uuid" json:"language_id"`
	LanguageKey       string     `gorm:"index;size:36" json:"-"`
	FieldDefinitionID uuid.UUID  `gorm:"type:uuid;index" json:"field_definition_id"`
	FieldName         string     `gorm:"size:255" json:"field_name"`
	ContentID         uuid.UUID  `gorm:"type:uuid;index" json:"content_id"`
	Status            string     `gorm:"size:16;index" json:"status"`
	Revision          int64      `json:"revision"`
	DataType          string     `gorm:"size:32" json:"data_type"`
	Boolean           *bool      `json:"boolean,omitempty"`
	DateTime          *time.Time `json:"date_time,omitempty"`
	Number            *float64   `json:"number,omitempty"`
	String            *string    `gorm:"size:255" json:"string,omitempty"`
	Normalized        string     `gorm:"index;size:255" json:"normalized"`
	CreatedAt         time.Time  `json:"created_at"`
}

// All lists every table of the service, in migration order
func All() []interface{} {
	return []interface{}{
		&Event{},
		&Realm{},
		&Language{},
		&FieldType{},
		&ContentType{},
		&FieldDefinition{},
		&Content{},
		&ContentLocale{},
		&UniqueIndex{},
		&FieldIndex{},
	}
}
