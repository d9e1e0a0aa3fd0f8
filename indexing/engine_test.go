package indexing

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/repositories"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello \t WORLD  "))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
	assert.Len(t, []rune(Normalize(strings.Repeat("é", 300))), MaxValueLength)
}

func TestUniqueKeyIsStablePerField(t *testing.T) {
	field := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	key := UniqueKey(field, "hello")

	assert.True(t, strings.HasSuffix(key, "|hello"))
	assert.Equal(t, key, UniqueKey(field, "hello"))
	assert.NotEqual(t, key, UniqueKey(uuid.New(), "hello"))
	assert.NotContains(t, key, "=")
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name       string
		dataType   domain.DataType
		value      string
		normalized string
		wantErr    bool
	}{
		{name: "boolean", dataType: domain.DataTypeBoolean, value: "TRUE", normalized: "true"},
		{name: "invalid boolean", dataType: domain.DataTypeBoolean, value: "yes", wantErr: true},
		{name: "date time in utc", dataType: domain.DataTypeDateTime, value: "2024-05-01T10:00:00+02:00", normalized: "2024-05-01T08:00:00Z"},
		{name: "number", dataType: domain.DataTypeNumber, value: " 42.50 ", normalized: "42.5"},
		{name: "string", dataType: domain.DataTypeString, value: "Hello  World", normalized: "hello world"},
		{name: "tags", dataType: domain.DataTypeTags, value: `["Go"]`, normalized: `["go"]`},
		{name: "unsupported", dataType: "Geo", value: "1,2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := models.FieldIndex{}
			err := Coerce(&row, tt.dataType, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.normalized, row.Normalized)
			assert.Equal(t, string(tt.dataType), row.DataType)
		})
	}

	var unsupported *domain.DataTypeNotSupportedError
	assert.ErrorAs(t, Coerce(&models.FieldIndex{}, "Geo", ""), &unsupported)
}

type fixture struct {
	engine      *Engine
	repos       *repositories.Repositories
	contentType *models.ContentType
	title       uuid.UUID
	views       uuid.UUID
	language    uuid.UUID
}

func newFixture() *fixture {
	repos := repositories.NewMemoryRepositories()
	f := &fixture{
		engine:   NewEngine(repos.Indices),
		repos:    repos,
		title:    uuid.New(),
		views:    uuid.New(),
		language: uuid.New(),
	}
	f.contentType = &models.ContentType{
		ContentTypeID: uuid.New(),
		UniqueName:    "BlogArticle",
		Fields: []models.FieldDefinition{
			{FieldDefinitionID: f.title, UniqueName: "Title", DataType: string(domain.DataTypeString), IsUnique: true, IsIndexed: true},
			{FieldDefinitionID: f.views, UniqueName: "Views", DataType: string(domain.DataTypeNumber), IsIndexed: true},
			{FieldDefinitionID: uuid.New(), UniqueName: "Body", DataType: string(domain.DataTypeRichText)},
		},
	}
	return f
}

func (f *fixture) locale(t *testing.T, contentID uuid.UUID, title string) *models.ContentLocale {
	t.Helper()
	values, err := models.EncodeFieldValues(map[uuid.UUID]string{f.title: title, f.views: "3"})
	require.NoError(t, err)
	language := f.language
	return &models.ContentLocale{
		ContentID:     contentID,
		LanguageID:    &language,
		LanguageKey:   models.LanguageKeyOf(&language),
		ContentTypeID: f.contentType.ContentTypeID,
		FieldValues:   values,
		Revision:      1,
	}
}

func publish(locale *models.ContentLocale) {
	revision := locale.Revision
	locale.IsPublished = true
	locale.PublishedRevision = &revision
	locale.PublishedFieldValues = locale.FieldValues
}

func TestIndexLocaleWritesDraftAndPublishedRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	contentID := uuid.New()
	locale := f.locale(t, contentID, "Hello World")

	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, locale))
	fields, err := f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	publish(locale)
	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, locale))

	uniques, err := f.repos.Indices.ListUniqueIndices(ctx, contentID)
	require.NoError(t, err)
	require.Len(t, uniques, 2)
	statuses := []string{uniques[0].Status, uniques[1].Status}
	assert.ElementsMatch(t, []string{models.StatusLatest, models.StatusPublished}, statuses)
	assert.Equal(t, "hello world", uniques[0].Normalized)

	locale.IsPublished = false
	locale.PublishedRevision = nil
	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, locale))

	uniques, err = f.repos.Indices.ListUniqueIndices(ctx, contentID)
	require.NoError(t, err)
	require.Len(t, uniques, 1)
	assert.Equal(t, models.StatusLatest, uniques[0].Status)
}

func TestUniqueValuesHeldByAnotherContentAreSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, f.locale(t, first, "Hello World")))
	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, f.locale(t, second, "hello   world")))

	uniques, err := f.repos.Indices.ListUniqueIndices(ctx, second)
	require.NoError(t, err)
	assert.Empty(t, uniques)

	fields, err := f.repos.Indices.ListFieldIndices(ctx, second)
	require.NoError(t, err)
	assert.Len(t, fields, 2)
}

func TestCheckUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	holder := uuid.New()
	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, f.locale(t, holder, "Hello World")))

	values := map[uuid.UUID]string{f.title: "HELLO WORLD"}
	err := f.engine.CheckUniqueness(ctx, f.contentType, uuid.New(), &f.language, models.StatusLatest, values)

	var conflict *domain.UniqueValueAlreadyUsedError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, holder.String(), conflict.ContentID)
	assert.Equal(t, "Title", conflict.FieldName)

	assert.NoError(t, f.engine.CheckUniqueness(ctx, f.contentType, holder, &f.language, models.StatusLatest, values))
	assert.NoError(t, f.engine.CheckUniqueness(ctx, f.contentType, uuid.New(), &f.language, models.StatusPublished, values))
	assert.NoError(t, f.engine.CheckUniqueness(ctx, f.contentType, uuid.New(), nil, models.StatusLatest, values))
}

func TestRemoveLocaleAndField(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	contentID := uuid.New()
	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, f.locale(t, contentID, "Hello")))

	require.NoError(t, f.engine.RemoveField(ctx, f.views))
	fields, err := f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Title", fields[0].FieldName)

	require.NoError(t, f.engine.RemoveLocale(ctx, contentID, models.LanguageKeyOf(&f.language)))
	fields, err = f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestIndexLocaleRejectsUnsupportedDataType(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.contentType.Fields[0].DataType = "Geo"
	contentID := uuid.New()

	err := f.engine.IndexLocale(ctx, f.contentType, f.locale(t, contentID, "Hello World"))
	var unsupported *domain.DataTypeNotSupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, domain.DataType("Geo"), unsupported.DataType)

	fields, err := f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	assert.Empty(t, fields)

	err = f.engine.CheckUniqueness(ctx, f.contentType, contentID, &f.language, models.StatusLatest, map[uuid.UUID]string{f.title: "Hello"})
	assert.ErrorAs(t, err, &unsupported)
}

func TestIndexLocaleSkipsUnparsableValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	contentID := uuid.New()
	locale := f.locale(t, contentID, "Hello World")
	values, err := models.EncodeFieldValues(map[uuid.UUID]string{f.title: "Hello World", f.views: "many"})
	require.NoError(t, err)
	locale.FieldValues = values

	require.NoError(t, f.engine.IndexLocale(ctx, f.contentType, locale))
	fields, err := f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, f.title, fields[0].FieldDefinitionID)
}
