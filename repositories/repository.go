package repositories

import (
	"context"

	"github.com/google/uuid"

	"example.com/backstage/services/portal/models"
)

// Read repositories return (nil, nil) when a row does not exist.

// RealmRepository defines the interface for realm rows
type RealmRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Realm, error)
	FindBySlug(ctx context.Context, slug string) (*models.Realm, error)
	List(ctx context.Context) ([]models.Realm, error)
	Save(ctx context.Context, realm *models.Realm) error
}

// LanguageRepository defines the interface for language rows
type LanguageRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Language, error)
	FindByLocale(ctx context.Context, realmKey *string, locale string) (*models.Language, error)
	FindDefault(ctx context.Context, realmKey *string) (*models.Language, error)
	List(ctx context.Context, realmKey *string) ([]models.Language, error)
	Save(ctx context.Context, language *models.Language) error
}

// FieldTypeRepository defines the interface for field type rows
type FieldTypeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FieldType, error)
	FindByUniqueName(ctx context.Context, realmKey *string, uniqueName string) (*models.FieldType, error)
	List(ctx context.Context, realmKey *string) ([]models.FieldType, error)
	Save(ctx context.Context, fieldType *models.FieldType) error
}

// ContentTypeRepository defines the interface for content type rows.
// Content types are returned with their field definitions in order.
type ContentTypeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContentType, error)
	FindByUniqueName(ctx context.Context, realmKey *string, uniqueName string) (*models.ContentType, error)
	FindByFieldType(ctx context.Context, fieldTypeID uuid.UUID) ([]models.ContentType, error)
	List(ctx context.Context, realmKey *string) ([]models.ContentType, error)
	Save(ctx context.Context, contentType *models.ContentType) error
}

// ContentRepository defines the interface for content rows.
// Contents are returned with their locales.
type ContentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Content, error)
	FindByContentType(ctx context.Context, contentTypeID uuid.UUID) ([]models.Content, error)
	FindLocaleByUniqueName(ctx context.Context, contentTypeID uuid.UUID, languageKey string, uniqueName string) (*models.ContentLocale, error)
	Save(ctx context.Context, content *models.Content) error
}

// IndexRepository defines the interface for field and unique index rows
type IndexRepository interface {
	ReplaceFieldIndices(ctx context.Context, contentID uuid.UUID, languageKey, status string, rows []models.FieldIndex) error
	ReplaceUniqueIndices(ctx context.Context, contentID uuid.UUID, languageKey, status string, rows []models.UniqueIndex) error
	FindUniqueIndices(ctx context.Context, scopeKey string, keys []string) ([]models.UniqueIndex, error)
	ListFieldIndices(ctx context.Context, contentID uuid.UUID) ([]models.FieldIndex, error)
	ListUniqueIndices(ctx context.Context, contentID uuid.UUID) ([]models.UniqueIndex, error)
	DeleteByContent(ctx context.Context, contentID uuid.UUID, languageKey *string) error
	DeleteByField(ctx context.Context, fieldDefinitionID uuid.UUID) error
}

// Repositories groups the read model repositories
type Repositories struct {
	Realms       RealmRepository
	Languages    LanguageRepository
	FieldTypes   FieldTypeRepository
	ContentTypes ContentTypeRepository
	Contents     ContentRepository
	Indices      IndexRepository

	reset func(ctx context.Context) error
}

// Reset deletes every read model row so projections can be rebuilt
func (r *Repositories) Reset(ctx context.Context) error {
	return r.reset(ctx)
}
