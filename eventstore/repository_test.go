package eventstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/metrics"
)

func newTestRepository() (*Repository, *MemoryEventStore) {
	store := NewMemoryEventStore()
	return NewRepository(store, metrics.New(prometheus.NewRegistry())), store
}

func newLanguage(t *testing.T, repo *Repository, locale domain.Locale) *domain.Language {
	t.Helper()
	realm := uuid.New()
	language := domain.NewLanguageAggregate(domain.NewStreamID(&realm, uuid.New()))
	require.NoError(t, language.Create(locale, false, "admin"))
	require.NoError(t, repo.Save(context.Background(), language))
	return language
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository()

	language := newLanguage(t, repo, "en")
	require.Empty(t, language.GetEvents())
	require.NoError(t, language.SetLocale("en-CA", "editor"))
	require.NoError(t, language.SetDefault(true, "editor"))
	require.NoError(t, repo.Save(ctx, language))

	loaded := domain.NewLanguageAggregate(language.GetID())
	found, err := repo.Load(ctx, loaded)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, 3, loaded.GetVersion())
	assert.Equal(t, domain.Locale("en-CA"), loaded.Locale)
	assert.True(t, loaded.IsDefault)
	assert.Equal(t, domain.ActorID("admin"), loaded.CreatedBy())
	assert.Equal(t, domain.ActorID("editor"), loaded.UpdatedBy())
	assert.Equal(t, language.UpdatedOn(), loaded.UpdatedOn())
	assert.Empty(t, loaded.GetEvents())
}

func TestLoadMissingStreamReportsAbsence(t *testing.T) {
	repo, _ := newTestRepository()

	found, err := repo.Load(context.Background(), domain.NewRealmAggregate(uuid.New()))

	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadWithVersion(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository()
	language := newLanguage(t, repo, "fr")
	require.NoError(t, language.SetLocale("fr-CA", ""))
	require.NoError(t, repo.Save(ctx, language))

	loaded := domain.NewLanguageAggregate(language.GetID())
	found, err := repo.Load(ctx, loaded, WithVersion(1))

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, loaded.GetVersion())
	assert.Equal(t, domain.Locale("fr"), loaded.Locale)
}

func TestConcurrentWritersConflict(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository()
	language := newLanguage(t, repo, "en")

	first := domain.NewLanguageAggregate(language.GetID())
	second := domain.NewLanguageAggregate(language.GetID())
	_, err := repo.Load(ctx, first)
	require.NoError(t, err)
	_, err = repo.Load(ctx, second)
	require.NoError(t, err)

	require.NoError(t, first.SetLocale("en-GB", "first"))
	require.NoError(t, second.SetLocale("en-US", "second"))

	require.NoError(t, repo.Save(ctx, first))
	err = repo.Save(ctx, second)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, errors.Is(err, ErrConcurrencyConflict))
	assert.Equal(t, 1, conflict.Expected)
	assert.Equal(t, 2, conflict.Actual)
	assert.Len(t, second.GetEvents(), 1)

	events, err := store.Load(ctx, language.GetID(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActorID("first"), events[1].ActorID)
}

func TestBatchSaveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository()
	existing := newLanguage(t, repo, "en")

	stale := domain.NewLanguageAggregate(existing.GetID())
	require.NoError(t, stale.Create("de", false, ""))

	fresh := domain.NewRealmAggregate(uuid.New())
	require.NoError(t, fresh.Create("acme", ""))

	err := repo.Save(ctx, fresh, stale)
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	exists, err := store.Exists(ctx, fresh.GetID())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Len(t, fresh.GetEvents(), 1)
}

func TestLoadAllSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository()

	kept := newLanguage(t, repo, "en")
	deleted := newLanguage(t, repo, "fr")
	require.NoError(t, deleted.Delete("admin"))
	require.NoError(t, repo.Save(ctx, deleted))

	active, err := LoadAll(ctx, repo, domain.LanguageAggregateType, domain.NewLanguageAggregate, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].GetID().Equals(kept.GetID()))

	all, err := LoadAll(ctx, repo, domain.LanguageAggregateType, domain.NewLanguageAggregate, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].IsDeleted())
}

func TestUnprocessedEventsSkipFailedStreams(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository()

	broken := newLanguage(t, repo, "en")
	require.NoError(t, broken.SetDefault(true, ""))
	require.NoError(t, repo.Save(ctx, broken))
	healthy := newLanguage(t, repo, "fr")

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, domain.LanguageCreated, pending[0].Type)
	assert.Equal(t, domain.LanguageSetDefault, pending[1].Type)
	assert.Equal(t, domain.LanguageCreated, pending[2].Type)

	require.NoError(t, store.MarkEventAsFailed(ctx, pending[0].ID, "gap", true))

	pending, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].StreamID.Equals(healthy.GetID()))

	require.NoError(t, store.MarkEventAsProcessed(ctx, pending[0].ID))
	count, err := store.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	failed, err := store.GetFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "gap", failed[0].Reason)

	require.NoError(t, store.ResetProcessing(ctx))
	pending, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestTransientFailureKeepsEventPending(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository()
	newLanguage(t, repo, "en")

	pending, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, store.MarkEventAsFailed(ctx, pending[0].ID, "timeout", false))

	pending, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
