package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// memoryState holds every read model table behind a single lock
type memoryState struct {
	mu           sync.RWMutex
	nextID       uint
	realms       map[uuid.UUID]models.Realm
	languages    map[uuid.UUID]models.Language
	fieldTypes   map[uuid.UUID]models.FieldType
	contentTypes map[uuid.UUID]models.ContentType
	contents     map[uuid.UUID]models.Content
	fieldIndices []models.FieldIndex
	uniques      []models.UniqueIndex
}

func newMemoryState() *memoryState {
	return &memoryState{
		realms:       make(map[uuid.UUID]models.Realm),
		languages:    make(map[uuid.UUID]models.Language),
		fieldTypes:   make(map[uuid.UUID]models.FieldType),
		contentTypes: make(map[uuid.UUID]models.ContentType),
		contents:     make(map[uuid.UUID]models.Content),
	}
}

func (s *memoryState) id() uint {
	s.nextID++
	return s.nextID
}

// NewMemoryRepositories creates read model repositories kept in memory
func NewMemoryRepositories() *Repositories {
	state := newMemoryState()
	return &Repositories{
		Realms:       &memoryRealms{state},
		Languages:    &memoryLanguages{state},
		FieldTypes:   &memoryFieldTypes{state},
		ContentTypes: &memoryContentTypes{state},
		Contents:     &memoryContents{state},
		Indices:      &memoryIndices{state},
		reset: func(ctx context.Context) error {
			state.mu.Lock()
			defer state.mu.Unlock()
			fresh := newMemoryState()
			state.realms = fresh.realms
			state.languages = fresh.languages
			state.fieldTypes = fresh.fieldTypes
			state.contentTypes = fresh.contentTypes
			state.contents = fresh.contents
			state.fieldIndices = nil
			state.uniques = nil
			return nil
		},
	}
}

func sameRealm(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stamp(id *uint, createdAt, updatedAt *time.Time, next func() uint) {
	now := time.Now().UTC()
	if *id == 0 {
		*id = next()
		*createdAt = now
	}
	*updatedAt = now
}

func copyContentType(ct models.ContentType) *models.ContentType {
	ct.Fields = append([]models.FieldDefinition(nil), ct.Fields...)
	return &ct
}

func copyContent(c models.Content) *models.Content {
	c.Locales = append([]models.ContentLocale(nil), c.Locales...)
	return &c
}

type memoryRealms struct{ s *memoryState }

func (r *memoryRealms) FindByID(_ context.Context, id uuid.UUID) (*models.Realm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if realm, ok := r.s.realms[id]; ok {
		return &realm, nil
	}
	return nil, nil
}

func (r *memoryRealms) FindBySlug(_ context.Context, slug string) (*models.Realm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	normalized := domain.NormalizeName(slug)
	for _, realm := range r.s.realms {
		if !realm.IsDeleted && realm.UniqueSlugNormalized == normalized {
			return &realm, nil
		}
	}
	return nil, nil
}

func (r *memoryRealms) List(_ context.Context) ([]models.Realm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	realms := lo.Filter(lo.Values(r.s.realms), func(realm models.Realm, _ int) bool { return !realm.IsDeleted })
	sort.Slice(realms, func(i, j int) bool { return realms[i].UniqueSlug < realms[j].UniqueSlug })
	return realms, nil
}

func (r *memoryRealms) Save(_ context.Context, realm *models.Realm) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&realm.ID, &realm.CreatedAt, &realm.UpdatedAt, r.s.id)
	r.s.realms[realm.RealmID] = *realm
	return nil
}

type memoryLanguages struct{ s *memoryState }

func (r *memoryLanguages) FindByID(_ context.Context, id uuid.UUID) (*models.Language, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if language, ok := r.s.languages[id]; ok {
		return &language, nil
	}
	return nil, nil
}

func (r *memoryLanguages) find(realmKey *string, match func(models.Language) bool) *models.Language {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, language := range r.s.languages {
		if !language.IsDeleted && sameRealm(language.RealmKey, realmKey) && match(language) {
			return &language
		}
	}
	return nil
}

func (r *memoryLanguages) FindByLocale(_ context.Context, realmKey *string, locale string) (*models.Language, error) {
	normalized := domain.NormalizeName(locale)
	return r.find(realmKey, func(l models.Language) bool { return l.LocaleNormalized == normalized }), nil
}

func (r *memoryLanguages) FindDefault(_ context.Context, realmKey *string) (*models.Language, error) {
	return r.find(realmKey, func(l models.Language) bool { return l.IsDefault }), nil
}

func (r *memoryLanguages) List(_ context.Context, realmKey *string) ([]models.Language, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	languages := lo.Filter(lo.Values(r.s.languages), func(l models.Language, _ int) bool {
		return !l.IsDeleted && sameRealm(l.RealmKey, realmKey)
	})
	sort.Slice(languages, func(i, j int) bool { return languages[i].Locale < languages[j].Locale })
	return languages, nil
}

func (r *memoryLanguages) Save(_ context.Context, language *models.Language) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&language.ID, &language.CreatedAt, &language.UpdatedAt, r.s.id)
	r.s.languages[language.LanguageID] = *language
	return nil
}

type memoryFieldTypes struct{ s *memoryState }

func (r *memoryFieldTypes) FindByID(_ context.Context, id uuid.UUID) (*models.FieldType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if fieldType, ok := r.s.fieldTypes[id]; ok {
		return &fieldType, nil
	}
	return nil, nil
}

func (r *memoryFieldTypes) FindByUniqueName(_ context.Context, realmKey *string, uniqueName string) (*models.FieldType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	normalized := domain.NormalizeName(uniqueName)
	for _, fieldType := range r.s.fieldTypes {
		if !fieldType.IsDeleted && sameRealm(fieldType.RealmKey, realmKey) && fieldType.UniqueNameNormalized == normalized {
			return &fieldType, nil
		}
	}
	return nil, nil
}

func (r *memoryFieldTypes) List(_ context.Context, realmKey *string) ([]models.FieldType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	fieldTypes := lo.Filter(lo.Values(r.s.fieldTypes), func(f models.FieldType, _ int) bool {
		return !f.IsDeleted && sameRealm(f.RealmKey, realmKey)
	})
	sort.Slice(fieldTypes, func(i, j int) bool { return fieldTypes[i].UniqueName < fieldTypes[j].UniqueName })
	return fieldTypes, nil
}

func (r *memoryFieldTypes) Save(_ context.Context, fieldType *models.FieldType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&fieldType.ID, &fieldType.CreatedAt, &fieldType.UpdatedAt, r.s.id)
	r.s.fieldTypes[fieldType.FieldTypeID] = *fieldType
	return nil
}

type memoryContentTypes struct{ s *memoryState }

func (r *memoryContentTypes) FindByID(_ context.Context, id uuid.UUID) (*models.ContentType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if contentType, ok := r.s.contentTypes[id]; ok {
		return copyContentType(contentType), nil
	}
	return nil, nil
}

func (r *memoryContentTypes) FindByUniqueName(_ context.Context, realmKey *string, uniqueName string) (*models.ContentType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	normalized := domain.NormalizeName(uniqueName)
	for _, contentType := range r.s.contentTypes {
		if !contentType.IsDeleted && sameRealm(contentType.RealmKey, realmKey) && contentType.UniqueNameNormalized == normalized {
			return copyContentType(contentType), nil
		}
	}
	return nil, nil
}

func (r *memoryContentTypes) filter(match func(models.ContentType) bool) []models.ContentType {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matches []models.ContentType
	for _, contentType := range r.s.contentTypes {
		if !contentType.IsDeleted && match(contentType) {
			matches = append(matches, *copyContentType(contentType))
		}
	}
	return matches
}

func (r *memoryContentTypes) FindByFieldType(_ context.Context, fieldTypeID uuid.UUID) ([]models.ContentType, error) {
	contentTypes := r.filter(func(ct models.ContentType) bool {
		return lo.ContainsBy(ct.Fields, func(f models.FieldDefinition) bool { return f.FieldTypeID == fieldTypeID })
	})
	sort.Slice(contentTypes, func(i, j int) bool { return contentTypes[i].ID < contentTypes[j].ID })
	return contentTypes, nil
}

func (r *memoryContentTypes) List(_ context.Context, realmKey *string) ([]models.ContentType, error) {
	contentTypes := r.filter(func(ct models.ContentType) bool { return sameRealm(ct.RealmKey, realmKey) })
	sort.Slice(contentTypes, func(i, j int) bool { return contentTypes[i].UniqueName < contentTypes[j].UniqueName })
	return contentTypes, nil
}

func (r *memoryContentTypes) Save(_ context.Context, contentType *models.ContentType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&contentType.ID, &contentType.CreatedAt, &contentType.UpdatedAt, r.s.id)
	for i := range contentType.Fields {
		contentType.Fields[i].ID = r.s.id()
		contentType.Fields[i].ContentTypeID = contentType.ContentTypeID
		contentType.Fields[i].Order = i
	}
	r.s.contentTypes[contentType.ContentTypeID] = *copyContentType(*contentType)
	return nil
}

type memoryContents struct{ s *memoryState }

func (r *memoryContents) FindByID(_ context.Context, id uuid.UUID) (*models.Content, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if content, ok := r.s.contents[id]; ok {
		return copyContent(content), nil
	}
	return nil, nil
}

func (r *memoryContents) FindByContentType(_ context.Context, contentTypeID uuid.UUID) ([]models.Content, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var contents []models.Content
	for _, content := range r.s.contents {
		if !content.IsDeleted && content.ContentTypeID == contentTypeID {
			contents = append(contents, *copyContent(content))
		}
	}
	sort.Slice(contents, func(i, j int) bool { return contents[i].ID < contents[j].ID })
	return contents, nil
}

func (r *memoryContents) FindLocaleByUniqueName(_ context.Context, contentTypeID uuid.UUID, languageKey string, uniqueName string) (*models.ContentLocale, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	normalized := domain.NormalizeName(uniqueName)
	for _, content := range r.s.contents {
		if content.IsDeleted || content.ContentTypeID != contentTypeID {
			continue
		}
		for _, locale := range content.Locales {
			if locale.LanguageKey == languageKey && locale.UniqueNameNormalized == normalized {
				return &locale, nil
			}
		}
	}
	return nil, nil
}

func (r *memoryContents) Save(_ context.Context, content *models.Content) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&content.ID, &content.CreatedAt, &content.UpdatedAt, r.s.id)
	for i := range content.Locales {
		content.Locales[i].ID = r.s.id()
		content.Locales[i].ContentID = content.ContentID
	}
	r.s.contents[content.ContentID] = *copyContent(*content)
	return nil
}

type memoryIndices struct{ s *memoryState }

func (r *memoryIndices) ReplaceFieldIndices(_ context.Context, contentID uuid.UUID, languageKey, status string, rows []models.FieldIndex) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.fieldIndices = lo.Reject(r.s.fieldIndices, func(row models.FieldIndex, _ int) bool {
		return row.ContentID == contentID && row.LanguageKey == languageKey && row.Status == status
	})
	now := time.Now().UTC()
	for _, row := range rows {
		row.ID = r.s.id()
		row.CreatedAt = now
		r.s.fieldIndices = append(r.s.fieldIndices, row)
	}
	return nil
}

func (r *memoryIndices) ReplaceUniqueIndices(_ context.Context, contentID uuid.UUID, languageKey, status string, rows []models.UniqueIndex) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := lo.Reject(r.s.uniques, func(row models.UniqueIndex, _ int) bool {
		return row.ContentID == contentID && row.LanguageKey == languageKey && row.Status == status
	})
	now := time.Now().UTC()
	for _, row := range rows {
		taken := lo.ContainsBy(kept, func(existing models.UniqueIndex) bool {
			return existing.ScopeKey == row.ScopeKey && existing.Key == row.Key
		})
		if taken {
			return ErrDuplicateKey
		}
		row.ID = r.s.id()
		row.CreatedAt = now
		kept = append(kept, row)
	}
	r.s.uniques = kept
	return nil
}

func (r *memoryIndices) FindUniqueIndices(_ context.Context, scopeKey string, keys []string) ([]models.UniqueIndex, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.Filter(r.s.uniques, func(row models.UniqueIndex, _ int) bool {
		return row.ScopeKey == scopeKey && lo.Contains(keys, row.Key)
	}), nil
}

func (r *memoryIndices) ListFieldIndices(_ context.Context, contentID uuid.UUID) ([]models.FieldIndex, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.Filter(r.s.fieldIndices, func(row models.FieldIndex, _ int) bool { return row.ContentID == contentID }), nil
}

func (r *memoryIndices) ListUniqueIndices(_ context.Context, contentID uuid.UUID) ([]models.UniqueIndex, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.Filter(r.s.uniques, func(row models.UniqueIndex, _ int) bool { return row.ContentID == contentID }), nil
}

func (r *memoryIndices) DeleteByContent(_ context.Context, contentID uuid.UUID, languageKey *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matches := func(rowContent uuid.UUID, rowLanguage string) bool {
		return rowContent == contentID && (languageKey == nil || *languageKey == rowLanguage)
	}
	r.s.fieldIndices = lo.Reject(r.s.fieldIndices, func(row models.FieldIndex, _ int) bool {
		return matches(row.ContentID, row.LanguageKey)
	})
	r.s.uniques = lo.Reject(r.s.uniques, func(row models.UniqueIndex, _ int) bool {
		return matches(row.ContentID, row.LanguageKey)
	})
	return nil
}

func (r *memoryIndices) DeleteByField(_ context.Context, fieldDefinitionID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.fieldIndices = lo.Reject(r.s.fieldIndices, func(row models.FieldIndex, _ int) bool {
		return row.FieldDefinitionID == fieldDefinitionID
	})
	r.s.uniques = lo.Reject(r.s.uniques, func(row models.UniqueIndex, _ int) bool {
		return row.FieldDefinitionID == fieldDefinitionID
	})
	return nil
}

var (
	_ RealmRepository       = (*realmRepository)(nil)
	_ LanguageRepository    = (*languageRepository)(nil)
	_ FieldTypeRepository   = (*fieldTypeRepository)(nil)
	_ ContentTypeRepository = (*contentTypeRepository)(nil)
	_ ContentRepository     = (*contentRepository)(nil)
	_ IndexRepository       = (*indexRepository)(nil)
	_ RealmRepository       = (*memoryRealms)(nil)
	_ LanguageRepository    = (*memoryLanguages)(nil)
	_ FieldTypeRepository   = (*memoryFieldTypes)(nil)
	_ ContentTypeRepository = (*memoryContentTypes)(nil)
	_ ContentRepository     = (*memoryContents)(nil)
	_ IndexRepository       = (*memoryIndices)(nil)
)
