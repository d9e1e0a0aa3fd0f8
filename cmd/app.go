package cmd

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/portal/api"
	"example.com/backstage/services/portal/cache"
	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/database"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/handlers"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/projections"
	"example.com/backstage/services/portal/repositories"
	"example.com/backstage/services/portal/search"
	"example.com/backstage/services/portal/tracing"
)

// app holds the collaborators shared by the commands
type app struct {
	cfg          config.Config
	db           *gorm.DB
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	tracer       *tracing.NewRelicTracer
	cache        cache.CacheClient
	events       *eventstore.Repository
	repositories *repositories.Repositories
	engine       *indexing.Engine
}

// newApp wires the event store and read models. In memory, nothing is
// persisted and the cache is process local.
func newApp(cfg config.Config, inMemory bool, reg *prometheus.Registry) (*app, error) {
	a := &app{cfg: cfg, gatherer: prometheus.DefaultGatherer}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	if reg != nil {
		registerer = reg
		a.gatherer = reg
	}
	a.metrics = metrics.New(registerer)

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}
	a.tracer = tracer

	if inMemory {
		a.cache = cache.NewLocalClient(cfg.Redis.TTL)
		a.events = eventstore.NewRepository(eventstore.NewMemoryEventStore(), a.metrics)
		a.repositories = repositories.NewMemoryRepositories()
		a.engine = indexing.NewEngine(a.repositories.Indices)
		return a, nil
	}

	db, err := database.Connect(cfg.DB, cfg.IsDevelopment(), a.metrics)
	if err != nil {
		return nil, err
	}
	a.db = db

	if cfg.DB.EnableMigration {
		if err := database.Migrate(db); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.cache, err = cache.NewFromConfig(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing with the local cache")
		a.cache = cache.NewLocalClient(cfg.Redis.TTL)
	}

	a.events = eventstore.NewRepository(eventstore.NewGormEventStore(db), a.metrics)
	a.repositories = repositories.NewGormRepositories(db)
	a.engine = indexing.NewEngine(a.repositories.Indices)
	return a, nil
}

// dispatcher builds the command handlers. They read field types through the
// cache; every other read goes to the read model directly.
func (a *app) dispatcher() *handlers.Dispatcher {
	reads := *a.repositories
	reads.FieldTypes = repositories.NewCachedFieldTypeRepository(a.repositories.FieldTypes, a.cache, a.metrics)

	h := handlers.New(handlers.Deps{
		Events:       a.events,
		Repositories: &reads,
		Engine:       a.engine,
	})
	return handlers.NewDispatcher(h, a.metrics)
}

// searchIndexer connects to Elasticsearch when it is enabled
func (a *app) searchIndexer(ctx context.Context) (projections.SearchIndexer, error) {
	if !a.cfg.Elastic.Enabled {
		log.Info().Msg("Elasticsearch disabled, published contents are not indexed")
		return projections.NopSearchIndexer{}, nil
	}

	client, err := search.NewElasticsearchClient(a.cfg.Elastic, nil)
	if err != nil {
		return nil, err
	}
	indexer := search.NewContentIndexer(client, a.cfg)
	if err := indexer.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return indexer, nil
}

// processor builds the projection worker
func (a *app) processor(indexer projections.SearchIndexer, publisher projections.EventPublisher) *projections.EventProcessor {
	projectors := projections.NewProjectors(projections.ProjectorDeps{
		Repositories:   a.repositories,
		Engine:         a.engine,
		Search:         indexer,
		FieldTypeCache: a.cache,
	})
	return projections.NewEventProcessor(a.events.Store(), projectors, publisher, a.tracer, a.metrics, a.cfg.Worker)
}

// server builds the HTTP API over dispatcher
func (a *app) server(dispatcher *handlers.Dispatcher) *api.Server {
	return api.NewServer(a.cfg.Server, api.ServerDeps{
		Dispatcher:   dispatcher,
		Repositories: a.repositories,
		Metrics:      a.metrics,
		Gatherer:     a.gatherer,
		Tracer:       a.tracer,
		Health:       a.health,
	})
}

func (a *app) health(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return database.Ping(ctx, a.db)
}

// Close releases the database and flushes the tracer
func (a *app) Close() {
	a.tracer.Close()
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}

// shutdownTimeout bounds graceful shutdown of servers and consumers
const shutdownTimeout = 10 * time.Second
