package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// NewGormRepositories creates the read model repositories over a GORM connection
func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Realms:       &realmRepository{db: db},
		Languages:    &languageRepository{db: db},
		FieldTypes:   &fieldTypeRepository{db: db},
		ContentTypes: &contentTypeRepository{db: db},
		Contents:     &contentRepository{db: db},
		Indices:      &indexRepository{db: db},
		reset: func(ctx context.Context) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
				for _, model := range models.All()[1:] {
					if err := global.Delete(model).Error; err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func first[T any](query *gorm.DB) (*T, error) {
	var row T
	if err := query.First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func whereRealm(query *gorm.DB, realmKey *string) *gorm.DB {
	if realmKey == nil {
		return query.Where("realm_key IS NULL")
	}
	return query.Where("realm_key = ?", *realmKey)
}

// realmRepository implements RealmRepository
type realmRepository struct {
	db *gorm.DB
}

func (r *realmRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Realm, error) {
	return first[models.Realm](r.db.WithContext(ctx).Where("realm_id = ?", id))
}

func (r *realmRepository) FindBySlug(ctx context.Context, slug string) (*models.Realm, error) {
	return first[models.Realm](r.db.WithContext(ctx).
		Where("unique_slug_normalized = ? AND is_deleted = ?", domain.NormalizeName(slug), false))
}

func (r *realmRepository) List(ctx context.Context) ([]models.Realm, error) {
	var realms []models.Realm
	err := r.db.WithContext(ctx).Where("is_deleted = ?", false).Order("unique_slug ASC").Find(&realms).Error
	return realms, err
}

func (r *realmRepository) Save(ctx context.Context, realm *models.Realm) error {
	return r.db.WithContext(ctx).Save(realm).Error
}

// languageRepository implements LanguageRepository
type languageRepository struct {
	db *gorm.DB
}

func (r *languageRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Language, error) {
	return first[models.Language](r.db.WithContext(ctx).Where("language_id = ?", id))
}

func (r *languageRepository) FindByLocale(ctx context.Context, realmKey *string, locale string) (*models.Language, error) {
	query := r.db.WithContext(ctx).Where("locale_normalized = ? AND is_deleted = ?", domain.NormalizeName(locale), false)
	return first[models.Language](whereRealm(query, realmKey))
}

func (r *languageRepository) FindDefault(ctx context.Context, realmKey *string) (*models.Language, error) {
	query := r.db.WithContext(ctx).Where("is_default = ? AND is_deleted = ?", true, false)
	return first[models.Language](whereRealm(query, realmKey))
}

func (r *languageRepository) List(ctx context.Context, realmKey *string) ([]models.Language, error) {
	var languages []models.Language
	query := whereRealm(r.db.WithContext(ctx).Where("is_deleted = ?", false), realmKey)
	err := query.Order("locale ASC").Find(&languages).Error
	return languages, err
}

func (r *languageRepository) Save(ctx context.Context, language *models.Language) error {
	return r.db.WithContext(ctx).Save(language).Error
}

// fieldTypeRepository implements FieldTypeRepository
type fieldTypeRepository struct {
	db *gorm.DB
}

func (r *fieldTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.FieldType, error) {
	return first[models.FieldType](r.db.WithContext(ctx).Where("field_type_id = ?", id))
}

func (r *fieldTypeRepository) FindByUniqueName(ctx context.Context, realmKey *string, uniqueName string) (*models.FieldType, error) {
	query := r.db.WithContext(ctx).Where("unique_name_normalized = ? AND is_deleted = ?", domain.NormalizeName(uniqueName), false)
	return first[models.FieldType](whereRealm(query, realmKey))
}

func (r *fieldTypeRepository) List(ctx context.Context, realmKey *string) ([]models.FieldType, error) {
	var fieldTypes []models.FieldType
	query := whereRealm(r.db.WithContext(ctx).Where("is_deleted = ?", false), realmKey)
	err := query.Order("unique_name ASC").Find(&fieldTypes).Error
	return fieldTypes, err
}

func (r *fieldTypeRepository) Save(ctx context.Context, fieldType *models.FieldType) error {
	return r.db.WithContext(ctx).Save(fieldType).Error
}

// contentTypeRepository implements ContentTypeRepository
type contentTypeRepository struct {
	db *gorm.DB
}

func (r *contentTypeRepository) withFields(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order(`"order" ASC`)
	})
}

func (r *contentTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContentType, error) {
	return first[models.ContentType](r.withFields(ctx).Where("content_type_id = ?", id))
}

func (r *contentTypeRepository) FindByUniqueName(ctx context.Context, realmKey *string, uniqueName string) (*models.ContentType, error) {
	query := r.withFields(ctx).Where("unique_name_normalized = ? AND is_deleted = ?", domain.NormalizeName(uniqueName), false)
	return first[models.ContentType](whereRealm(query, realmKey))
}

func (r *contentTypeRepository) FindByFieldType(ctx context.Context, fieldTypeID uuid.UUID) ([]models.ContentType, error) {
	referencing := r.db.WithContext(ctx).
		Model(&models.FieldDefinition{}).
		Select("content_type_id").
		Where("field_type_id = ?", fieldTypeID)

	var contentTypes []models.ContentType
	err := r.withFields(ctx).
		Where("content_type_id IN (?) AND is_deleted = ?", referencing, false).
		Order("id ASC").
		Find(&contentTypes).Error
	return contentTypes, err
}

func (r *contentTypeRepository) List(ctx context.Context, realmKey *string) ([]models.ContentType, error) {
	var contentTypes []models.ContentType
	query := whereRealm(r.withFields(ctx).Where("is_deleted = ?", false), realmKey)
	err := query.Order("unique_name ASC").Find(&contentTypes).Error
	return contentTypes, err
}

// Save stores the content type and replaces its field definitions
func (r *contentTypeRepository) Save(ctx context.Context, contentType *models.ContentType) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(contentType).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type_id = ?", contentType.ContentTypeID).Delete(&models.FieldDefinition{}).Error; err != nil {
			return err
		}
		if len(contentType.Fields) == 0 {
			return nil
		}
		for i := range contentType.Fields {
			contentType.Fields[i].ID = 0
			contentType.Fields[i].ContentTypeID = contentType.ContentTypeID
			contentType.Fields[i].Order = i
		}
		return tx.Create(&contentType.Fields).Error
	})
}

// contentRepository implements ContentRepository
type contentRepository struct {
	db *gorm.DB
}

func (r *contentRepository) withLocales(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Locales", func(db *gorm.DB) *gorm.DB {
		return db.Order("language_key ASC")
	})
}

func (r *contentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	return first[models.Content](r.withLocales(ctx).Where("content_id = ?", id))
}

func (r *contentRepository) FindByContentType(ctx context.Context, contentTypeID uuid.UUID) ([]models.Content, error) {
	var contents []models.Content
	err := r.withLocales(ctx).
		Where("content_type_id = ? AND is_deleted = ?", contentTypeID, false).
		Order("id ASC").
		Find(&contents).Error
	return contents, err
}

func (r *contentRepository) FindLocaleByUniqueName(ctx context.Context, contentTypeID uuid.UUID, languageKey string, uniqueName string) (*models.ContentLocale, error) {
	live := r.db.WithContext(ctx).
		Model(&models.Content{}).
		Select("content_id").
		Where("is_deleted = ?", false)

	return first[models.ContentLocale](r.db.WithContext(ctx).
		Where("content_type_id = ? AND language_key = ? AND unique_name_normalized = ?",
			contentTypeID, languageKey, domain.NormalizeName(uniqueName)).
		Where("content_id IN (?)", live))
}

// Save stores the content and replaces its locales
func (r *contentRepository) Save(ctx context.Context, content *models.Content) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(content).Error; err != nil {
			return err
		}
		if err := tx.Where("content_id = ?", content.ContentID).Delete(&models.ContentLocale{}).Error; err != nil {
			return err
		}
		if len(content.Locales) == 0 {
			return nil
		}
		for i := range content.Locales {
			content.Locales[i].ID = 0
			content.Locales[i].ContentID = content.ContentID
		}
		return tx.Create(&content.Locales).Error
	})
}

// indexRepository implements IndexRepository
type indexRepository struct {
	db *gorm.DB
}

func (r *indexRepository) ReplaceFieldIndices(ctx context.Context, contentID uuid.UUID, languageKey, status string, rows []models.FieldIndex) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_id = ? AND language_key = ? AND status = ?", contentID, languageKey, status).
			Delete(&models.FieldIndex{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *indexRepository) ReplaceUniqueIndices(ctx context.Context, contentID uuid.UUID, languageKey, status string, rows []models.UniqueIndex) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_id = ? AND language_key = ? AND status = ?", contentID, languageKey, status).
			Delete(&models.UniqueIndex{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateKey
			}
			return err
		}
		return nil
	})
}

func (r *indexRepository) FindUniqueIndices(ctx context.Context, scopeKey string, keys []string) ([]models.UniqueIndex, error) {
	var rows []models.UniqueIndex
	if len(keys) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("scope_key = ? AND key IN ?", scopeKey, keys).Find(&rows).Error
	return rows, err
}

func (r *indexRepository) ListFieldIndices(ctx context.Context, contentID uuid.UUID) ([]models.FieldIndex, error) {
	var rows []models.FieldIndex
	err := r.db.WithContext(ctx).Where("content_id = ?", contentID).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *indexRepository) ListUniqueIndices(ctx context.Context, contentID uuid.UUID) ([]models.UniqueIndex, error) {
	var rows []models.UniqueIndex
	err := r.db.WithContext(ctx).Where("content_id = ?", contentID).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *indexRepository) DeleteByContent(ctx context.Context, contentID uuid.UUID, languageKey *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.FieldIndex{}, &models.UniqueIndex{}} {
			query := tx.Where("content_id = ?", contentID)
			if languageKey != nil {
				query = query.Where("language_key = ?", *languageKey)
			}
			if err := query.Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *indexRepository) DeleteByField(ctx context.Context, fieldDefinitionID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("field_definition_id = ?", fieldDefinitionID).Delete(&models.FieldIndex{}).Error; err != nil {
			return err
		}
		return tx.Where("field_definition_id = ?", fieldDefinitionID).Delete(&models.UniqueIndex{}).Error
	})
}
