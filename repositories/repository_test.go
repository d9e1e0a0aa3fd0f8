package repositories

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/cache"
	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/models"
)

func ptr[T any](v T) *T { return &v }

func TestLanguageLookupsAreScopedToRealm(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	realm := uuid.NewString()

	require.NoError(t, repos.Languages.Save(ctx, &models.Language{
		LanguageID: uuid.New(), RealmKey: &realm, Locale: "en-CA", LocaleNormalized: domain.NormalizeName("en-CA"), IsDefault: true,
	}))
	require.NoError(t, repos.Languages.Save(ctx, &models.Language{
		LanguageID: uuid.New(), Locale: "fr", LocaleNormalized: domain.NormalizeName("fr"),
	}))

	found, err := repos.Languages.FindByLocale(ctx, &realm, "EN-ca")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "en-CA", found.Locale)

	missing, err := repos.Languages.FindByLocale(ctx, nil, "en-CA")
	require.NoError(t, err)
	assert.Nil(t, missing)

	def, err := repos.Languages.FindDefault(ctx, &realm)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.True(t, def.IsDefault)

	global, err := repos.Languages.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, "fr", global[0].Locale)
}

func TestDeletedRowsAreHiddenFromLookups(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	id := uuid.New()

	realm := &models.Realm{RealmID: id, UniqueSlug: "acme", UniqueSlugNormalized: "acme"}
	require.NoError(t, repos.Realms.Save(ctx, realm))
	realm.IsDeleted = true
	require.NoError(t, repos.Realms.Save(ctx, realm))

	bySlug, err := repos.Realms.FindBySlug(ctx, "ACME")
	require.NoError(t, err)
	assert.Nil(t, bySlug)

	byID, err := repos.Realms.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.True(t, byID.IsDeleted)
}

func TestContentTypeSaveReplacesFields(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	fieldType := uuid.New()
	ct := &models.ContentType{
		ContentTypeID: uuid.New(),
		UniqueName:    "BlogArticle",
		Fields: []models.FieldDefinition{
			{FieldDefinitionID: uuid.New(), FieldTypeID: fieldType, UniqueName: "Title"},
			{FieldDefinitionID: uuid.New(), FieldTypeID: uuid.New(), UniqueName: "Body"},
		},
	}
	require.NoError(t, repos.ContentTypes.Save(ctx, ct))

	ct.Fields = ct.Fields[1:]
	require.NoError(t, repos.ContentTypes.Save(ctx, ct))

	loaded, err := repos.ContentTypes.FindByID(ctx, ct.ContentTypeID)
	require.NoError(t, err)
	require.Len(t, loaded.Fields, 1)
	assert.Equal(t, "Body", loaded.Fields[0].UniqueName)
	assert.Equal(t, 0, loaded.Fields[0].Order)

	loaded.Fields[0].UniqueName = "Changed"
	again, err := repos.ContentTypes.FindByID(ctx, ct.ContentTypeID)
	require.NoError(t, err)
	assert.Equal(t, "Body", again.Fields[0].UniqueName)

	referencing, err := repos.ContentTypes.FindByFieldType(ctx, fieldType)
	require.NoError(t, err)
	assert.Empty(t, referencing)
}

func TestFindLocaleByUniqueName(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	contentType := uuid.New()
	language := uuid.New()
	languageKey := models.LanguageKeyOf(&language)

	require.NoError(t, repos.Contents.Save(ctx, &models.Content{
		ContentID:     uuid.New(),
		ContentTypeID: contentType,
		Locales: []models.ContentLocale{{
			LanguageKey: languageKey, LanguageID: &language, ContentTypeID: contentType,
			UniqueName: "hello-world", UniqueNameNormalized: domain.NormalizeName("hello-world"),
		}},
	}))

	found, err := repos.Contents.FindLocaleByUniqueName(ctx, contentType, languageKey, "HELLO-WORLD")
	require.NoError(t, err)
	require.NotNil(t, found)

	other, err := repos.Contents.FindLocaleByUniqueName(ctx, contentType, models.InvariantLanguageKey, "hello-world")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestUniqueIndicesRejectDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	first, second := uuid.New(), uuid.New()
	row := func(content uuid.UUID) models.UniqueIndex {
		return models.UniqueIndex{ScopeKey: "scope", Key: "k|hello", ContentID: content, Status: models.StatusLatest}
	}

	require.NoError(t, repos.Indices.ReplaceUniqueIndices(ctx, first, "", models.StatusLatest, []models.UniqueIndex{row(first)}))
	err := repos.Indices.ReplaceUniqueIndices(ctx, second, "", models.StatusLatest, []models.UniqueIndex{row(second)})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// replacing its own row is not a conflict
	require.NoError(t, repos.Indices.ReplaceUniqueIndices(ctx, first, "", models.StatusLatest, []models.UniqueIndex{row(first)}))

	rows, err := repos.Indices.FindUniqueIndices(ctx, "scope", []string{"k|hello", "k|other"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first, rows[0].ContentID)

	require.NoError(t, repos.Indices.DeleteByContent(ctx, first, ptr("")))
	rows, err = repos.Indices.ListUniqueIndices(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	require.NoError(t, repos.Realms.Save(ctx, &models.Realm{RealmID: uuid.New(), UniqueSlug: "acme"}))
	require.NoError(t, repos.Indices.ReplaceFieldIndices(ctx, uuid.New(), "", models.StatusLatest, []models.FieldIndex{{FieldName: "Title"}}))

	require.NoError(t, repos.Reset(ctx))

	realms, err := repos.Realms.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, realms)
}

func TestCachedFieldTypesInvalidateOnSave(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repos := NewMemoryRepositories()
	cached := NewCachedFieldTypeRepository(repos.FieldTypes, cache.NewLocalClient(time.Minute), m)

	id := uuid.New()
	row := &models.FieldType{FieldTypeID: id, UniqueName: "Title", DataType: "String"}
	require.NoError(t, cached.Save(ctx, row))

	first, err := cached.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := cached.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Title", second.UniqueName)

	row.UniqueName = "Heading"
	require.NoError(t, cached.Save(ctx, row))
	third, err := cached.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Heading", third.UniqueName)

	missing, err := cached.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	expected := `
# HELP portal_cache_hits_total Total number of cache hits
# TYPE portal_cache_hits_total counter
portal_cache_hits_total{cache="field_type"} 1
# HELP portal_cache_misses_total Total number of cache misses
# TYPE portal_cache_misses_total counter
portal_cache_misses_total{cache="field_type"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"portal_cache_hits_total", "portal_cache_misses_total"))
}

func TestProjectionWritesEvictCachedFieldTypes(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	shared := cache.NewLocalClient(time.Minute)
	reader := NewCachedFieldTypeRepository(repos.FieldTypes, shared, nil)
	writer := NewInvalidatingFieldTypeRepository(repos.FieldTypes, shared)

	id := uuid.New()
	require.NoError(t, writer.Save(ctx, &models.FieldType{FieldTypeID: id, UniqueName: "Title", DataType: "String"}))
	cached, err := reader.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cached)

	row, err := writer.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, row.FieldTypeID)
	row.UniqueName = "Heading"
	require.NoError(t, writer.Save(ctx, row))

	fresh, err := reader.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Heading", fresh.UniqueName)
}
