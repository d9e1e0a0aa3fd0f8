package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/models"
	"example.com/backstage/services/portal/projections"
	"example.com/backstage/services/portal/repositories"
)

type fixture struct {
	registry   *prometheus.Registry
	repos      *repositories.Repositories
	events     *eventstore.Repository
	handlers   *Handlers
	dispatcher *Dispatcher
	processor  *projections.EventProcessor
	realm      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	store := eventstore.NewMemoryEventStore()
	repos := repositories.NewMemoryRepositories()
	engine := indexing.NewEngine(repos.Indices)
	events := eventstore.NewRepository(store, m)

	h := New(Deps{Events: events, Repositories: repos, Engine: engine})
	projectors := projections.NewProjectors(projections.ProjectorDeps{Repositories: repos, Engine: engine})
	return &fixture{
		registry:   registry,
		repos:      repos,
		events:     events,
		handlers:   h,
		dispatcher: NewDispatcher(h, m),
		processor:  projections.NewEventProcessor(store, projectors, nil, nil, m, config.WorkerConfig{BatchSize: 100, Parallelism: 2}),
		realm:      uuid.New(),
	}
}

func (f *fixture) dispatch(t *testing.T, commandType string, cmd interface{}) (*Result, error) {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return f.dispatcher.Dispatch(context.Background(), commandType, data)
}

func (f *fixture) mustDispatch(t *testing.T, commandType string, cmd interface{}) uuid.UUID {
	t.Helper()
	result, err := f.dispatch(t, commandType, cmd)
	require.NoError(t, err)
	if result.ID == nil {
		return uuid.Nil
	}
	return *result.ID
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	_, err := f.processor.Drain(context.Background())
	require.NoError(t, err)
}

type blog struct {
	english     uuid.UUID
	shortText   uuid.UUID
	contentType uuid.UUID
	title       uuid.UUID
	sku         uuid.UUID
}

// setupBlog creates an English language, a ShortText field type and a
// BlogArticle content type with a unique indexed Title and a required
// invariant Sku, then projects everything
func (f *fixture) setupBlog(t *testing.T) blog {
	t.Helper()
	realm := &f.realm
	var b blog
	b.english = f.mustDispatch(t, CreateLanguage, CreateLanguageCommand{RealmID: realm, Locale: "en"})
	b.shortText = f.mustDispatch(t, CreateFieldType, CreateFieldTypeCommand{
		RealmID:    realm,
		UniqueName: "ShortText",
		DataType:   string(domain.DataTypeString),
		Settings:   json.RawMessage(`{"maximum_length":64}`),
	})
	f.drain(t)

	b.contentType = f.mustDispatch(t, CreateContentType, CreateContentTypeCommand{RealmID: realm, UniqueName: "BlogArticle"})
	b.title = f.mustDispatch(t, SetFieldDefinition, SetFieldDefinitionCommand{
		RealmID:       realm,
		ContentTypeID: b.contentType,
		FieldTypeID:   b.shortText,
		UniqueName:    "Title",
		IsIndexed:     true,
		IsUnique:      true,
	})
	b.sku = f.mustDispatch(t, SetFieldDefinition, SetFieldDefinitionCommand{
		RealmID:       realm,
		ContentTypeID: b.contentType,
		FieldTypeID:   b.shortText,
		UniqueName:    "Sku",
		IsInvariant:   true,
		IsRequired:    true,
	})
	f.drain(t)
	return b
}

func (f *fixture) createArticle(t *testing.T, b blog, name, title, sku string) (uuid.UUID, error) {
	t.Helper()
	values := map[uuid.UUID]string{b.title: title}
	if sku != "" {
		values[b.sku] = sku
	}
	result, err := f.dispatch(t, CreateContent, CreateContentCommand{
		RealmID:       &f.realm,
		ContentTypeID: b.contentType,
		LanguageID:    &b.english,
		LocaleInput:   LocaleInput{UniqueName: name, FieldValues: values},
		ActorID:       "editor",
	})
	if err != nil {
		return uuid.Nil, err
	}
	return *result.ID, nil
}

func TestBlogArticleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.setupBlog(t)

	contentID, err := f.createArticle(t, b, "hello-world", "Hello World", "A-1")
	require.NoError(t, err)
	f.drain(t)

	row, err := f.repos.Contents.FindByID(ctx, contentID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Len(t, row.Locales, 2)

	invariant, ok := row.FindLocale(nil)
	require.True(t, ok)
	invariantValues, err := models.DecodeFieldValues(invariant.FieldValues)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{b.sku: "A-1"}, invariantValues)

	english, ok := row.FindLocale(&b.english)
	require.True(t, ok)
	englishValues, err := models.DecodeFieldValues(english.FieldValues)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{b.title: "Hello World"}, englishValues)

	_, err = f.createArticle(t, b, "hello-again", "hello   world", "A-2")
	var taken *domain.UniqueValueAlreadyUsedError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, contentID.String(), taken.ContentID)

	f.mustDispatch(t, PublishContent, PublishContentCommand{RealmID: &f.realm, ContentID: contentID, All: true, ActorID: "publisher"})
	f.drain(t)

	row, err = f.repos.Contents.FindByID(ctx, contentID)
	require.NoError(t, err)
	for _, locale := range row.Locales {
		assert.True(t, locale.IsPublished)
		require.NotNil(t, locale.PublishedRevision)
		assert.Equal(t, locale.Revision, *locale.PublishedRevision)
		require.NotNil(t, locale.PublishedBy)
		assert.Equal(t, "publisher", *locale.PublishedBy)
	}

	fieldStatuses, uniqueStatuses := f.indexStatuses(t, contentID)
	assert.Contains(t, fieldStatuses, models.StatusPublished)
	assert.Contains(t, uniqueStatuses, models.StatusLatest)
	assert.Contains(t, uniqueStatuses, models.StatusPublished)

	f.mustDispatch(t, UnpublishContent, PublishContentCommand{RealmID: &f.realm, ContentID: contentID, All: true, ActorID: "publisher"})
	f.drain(t)

	row, err = f.repos.Contents.FindByID(ctx, contentID)
	require.NoError(t, err)
	for _, locale := range row.Locales {
		assert.False(t, locale.IsPublished)
		assert.Nil(t, locale.PublishedRevision)
		assert.Nil(t, locale.PublishedBy)
	}

	fieldStatuses, uniqueStatuses = f.indexStatuses(t, contentID)
	assert.NotEmpty(t, fieldStatuses)
	assert.NotContains(t, fieldStatuses, models.StatusPublished)
	assert.NotEmpty(t, uniqueStatuses)
	assert.NotContains(t, uniqueStatuses, models.StatusPublished)
	for _, status := range append(fieldStatuses, uniqueStatuses...) {
		assert.Equal(t, models.StatusLatest, status)
	}
}

// indexStatuses lists the status of every field and unique index row of a content
func (f *fixture) indexStatuses(t *testing.T, contentID uuid.UUID) ([]string, []string) {
	t.Helper()
	ctx := context.Background()

	fields, err := f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	uniques, err := f.repos.Indices.ListUniqueIndices(ctx, contentID)
	require.NoError(t, err)

	fieldStatuses := make([]string, 0, len(fields))
	for _, field := range fields {
		fieldStatuses = append(fieldStatuses, field.Status)
	}
	uniqueStatuses := make([]string, 0, len(uniques))
	for _, unique := range uniques {
		uniqueStatuses = append(uniqueStatuses, unique.Status)
	}
	return fieldStatuses, uniqueStatuses
}

func TestPublishRequiresValues(t *testing.T) {
	f := newFixture(t)
	b := f.setupBlog(t)

	contentID, err := f.createArticle(t, b, "draft", "Draft", "")
	require.NoError(t, err)

	_, err = f.dispatch(t, PublishContent, PublishContentCommand{RealmID: &f.realm, ContentID: contentID})
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Errors, 1)
	assert.Equal(t, "FieldValues.Sku", invalid.Errors[0].Field)

	_, err = f.dispatch(t, PublishContent, PublishContentCommand{RealmID: &f.realm, ContentID: contentID, LanguageID: &b.english})
	assert.NoError(t, err)

	missing := uuid.New()
	_, err = f.dispatch(t, UnpublishContent, PublishContentCommand{RealmID: &f.realm, ContentID: contentID, LanguageID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateContentChecksLanguage(t *testing.T) {
	f := newFixture(t)
	b := f.setupBlog(t)

	unknown := uuid.New()
	_, err := f.dispatch(t, CreateContent, CreateContentCommand{
		RealmID:       &f.realm,
		ContentTypeID: b.contentType,
		LanguageID:    &unknown,
		LocaleInput:   LocaleInput{UniqueName: "x"},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.dispatch(t, CreateContent, CreateContentCommand{
		RealmID:       &f.realm,
		ContentTypeID: b.contentType,
		LocaleInput:   LocaleInput{UniqueName: "x"},
	})
	var required *domain.LanguageRequiredError
	assert.ErrorAs(t, err, &required)
}

func TestContentLocaleNameIsUnique(t *testing.T) {
	f := newFixture(t)
	b := f.setupBlog(t)

	_, err := f.createArticle(t, b, "first", "First", "A-1")
	require.NoError(t, err)
	f.drain(t)

	_, err = f.createArticle(t, b, "FIRST", "Second", "A-2")
	var taken *domain.UniqueNameAlreadyUsedError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, domain.ContentAggregateType, taken.Kind)
}

func TestSaveLocaleIncrementsRevision(t *testing.T) {
	f := newFixture(t)
	b := f.setupBlog(t)

	contentID, err := f.createArticle(t, b, "post", "Post", "A-1")
	require.NoError(t, err)

	f.mustDispatch(t, SaveContentLocale, SaveContentLocaleCommand{
		RealmID:     &f.realm,
		ContentID:   contentID,
		LanguageID:  &b.english,
		LocaleInput: LocaleInput{UniqueName: "post", FieldValues: map[uuid.UUID]string{b.title: "Edited"}},
	})
	f.drain(t)

	row, err := f.repos.Contents.FindByID(context.Background(), contentID)
	require.NoError(t, err)
	english, ok := row.FindLocale(&b.english)
	require.True(t, ok)
	assert.Equal(t, int64(2), english.Revision)

	_, err = f.dispatch(t, SaveContentLocale, SaveContentLocaleCommand{
		RealmID:     &f.realm,
		ContentID:   contentID,
		LanguageID:  &b.english,
		LocaleInput: LocaleInput{UniqueName: "post", FieldValues: map[uuid.UUID]string{b.title: strings.Repeat("x", 65)}},
	})
	var invalid *domain.ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestDeleteFieldTypeRemovesFieldDefinitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.setupBlog(t)

	f.mustDispatch(t, DeleteFieldType, DeleteFieldTypeCommand{RealmID: &f.realm, FieldTypeID: b.shortText})
	f.drain(t)

	contentType, err := f.repos.ContentTypes.FindByID(ctx, b.contentType)
	require.NoError(t, err)
	assert.Empty(t, contentType.Fields)

	fieldType, err := f.repos.FieldTypes.FindByID(ctx, b.shortText)
	require.NoError(t, err)
	assert.True(t, fieldType.IsDeleted)

	_, err = f.dispatch(t, SetFieldDefinition, SetFieldDefinitionCommand{
		RealmID:       &f.realm,
		ContentTypeID: b.contentType,
		FieldTypeID:   b.shortText,
		UniqueName:    "Title",
	})
	var notFound *domain.FieldTypeNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteContentTypeDeletesContents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.setupBlog(t)

	contentID, err := f.createArticle(t, b, "post", "Post", "A-1")
	require.NoError(t, err)
	f.drain(t)

	f.mustDispatch(t, DeleteContentType, DeleteContentTypeCommand{RealmID: &f.realm, ContentTypeID: b.contentType})
	f.drain(t)

	row, err := f.repos.Contents.FindByID(ctx, contentID)
	require.NoError(t, err)
	assert.True(t, row.IsDeleted)

	indices, err := f.repos.Indices.ListFieldIndices(ctx, contentID)
	require.NoError(t, err)
	assert.Empty(t, indices)

	_, err = f.dispatch(t, DeleteContent, DeleteContentCommand{RealmID: &f.realm, ContentID: contentID})
	var deleted *domain.AlreadyDeletedError
	assert.ErrorAs(t, err, &deleted)
}

func TestLanguageDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	realmKey := realmKeyOf(&f.realm)

	english := f.mustDispatch(t, CreateLanguage, CreateLanguageCommand{RealmID: &f.realm, Locale: "en"})
	f.drain(t)
	french := f.mustDispatch(t, CreateLanguage, CreateLanguageCommand{RealmID: &f.realm, Locale: "fr-CA", IsDefault: true})
	f.drain(t)

	current, err := f.repos.Languages.FindDefault(ctx, realmKey)
	require.NoError(t, err)
	assert.Equal(t, french, current.LanguageID)

	_, err = f.dispatch(t, DeleteLanguage, DeleteLanguageCommand{RealmID: &f.realm, LanguageID: french})
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)

	f.mustDispatch(t, SetDefaultLanguage, SetDefaultLanguageCommand{RealmID: &f.realm, LanguageID: english})
	f.mustDispatch(t, DeleteLanguage, DeleteLanguageCommand{RealmID: &f.realm, LanguageID: french})
	f.drain(t)

	current, err = f.repos.Languages.FindDefault(ctx, realmKey)
	require.NoError(t, err)
	assert.Equal(t, english, current.LanguageID)

	_, err = f.dispatch(t, CreateLanguage, CreateLanguageCommand{RealmID: &f.realm, Locale: "EN"})
	var taken *domain.UniqueNameAlreadyUsedError
	assert.ErrorAs(t, err, &taken)
}

func TestRealmSlugIsUnique(t *testing.T) {
	f := newFixture(t)

	f.mustDispatch(t, CreateRealm, CreateRealmCommand{UniqueSlug: "acme"})
	f.drain(t)

	_, err := f.dispatch(t, CreateRealm, CreateRealmCommand{UniqueSlug: "acme"})
	var taken *domain.UniqueNameAlreadyUsedError
	assert.ErrorAs(t, err, &taken)

	_, err = f.dispatch(t, CreateRealm, CreateRealmCommand{UniqueSlug: "Not A Slug"})
	var invalid *domain.ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestRedeliveredCreateIsRejected(t *testing.T) {
	f := newFixture(t)
	languageID := uuid.New()
	cmd := CreateLanguageCommand{RealmID: &f.realm, LanguageID: languageID, Locale: "en"}

	f.mustDispatch(t, CreateLanguage, cmd)
	_, err := f.dispatch(t, CreateLanguage, cmd)
	assert.ErrorIs(t, err, domain.ErrAggregateExists)

	f.drain(t)
	_, err = f.dispatch(t, CreateLanguage, cmd)
	assert.ErrorIs(t, err, domain.ErrAggregateExists)
}

func TestDispatchRejectsUnknownAndMalformedCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, "LaunchRocket", nil)
	var unknown *UnknownCommandError
	assert.ErrorAs(t, err, &unknown)

	_, err = f.dispatcher.Dispatch(ctx, CreateRealm, json.RawMessage(`{"unique_slug":`))
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "malformed", invalid.Errors[0].Code)

	_, err = f.dispatcher.Dispatch(ctx, DeleteContent, json.RawMessage(`{"content_id":"`+uuid.NewString()+`"}`))
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := testutil.GatherAndCount(f.registry, "portal_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
