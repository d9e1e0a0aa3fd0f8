package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit carries the created/updated metadata every read row has
type Audit struct {
	CreatedBy string    `gorm:"size:255" json:"created_by"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedBy string    `gorm:"size:255" json:"updated_by"`
	UpdatedOn time.Time `json:"updated_on"`
}

// Realm represents a realm in the database
type Realm struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	RealmID              uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"id"`
	StreamID             string    `gorm:"uniqueIndex;size:73" json:"stream_id"`
	Version              int       `json:"version"`
	UniqueSlug           string    `gorm:"size:255" json:"unique_slug"`
	UniqueSlugNormalized string    `gorm:"index;size:255" json:"-"`
	DisplayName          *string   `gorm:"size:255" json:"display_name"`
	Description          *string   `json:"description"`
	IsDeleted            bool      `gorm:"index" json:"is_deleted"`
	Audit                `gorm:"embedded"`
	CreatedAt            time.Time `json:"-"`
	UpdatedAt            time.Time `json:"-"`
}

// Language represents a language of a realm in the database
type Language struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	LanguageID       uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"id"`
	StreamID         string    `gorm:"uniqueIndex;size:73" json:"stream_id"`
	RealmKey         *string   `gorm:"index;size:36" json:"realm_id"`
	Version          int       `json:"version"`
	Locale           string    `gorm:"size:16" json:"locale"`
	LocaleNormalized string    `gorm:"index;size:16" json:"-"`
	IsDefault        bool      `json:"is_default"`
	IsDeleted        bool      `gorm:"index" json:"is_deleted"`
	Audit            `gorm:"embedded"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}
