package projections

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/portal/cache"
	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/repositories"
	"example.com/backstage/services/portal/tracing"
)

// EventProcessor processes events from the event store and projects them.
// Streams are projected in parallel; the events of one stream in order.
type EventProcessor struct {
	eventStore         eventstore.EventStore
	projectors         map[string]Projector
	publisher          EventPublisher
	tracer             tracing.Tracer
	metrics            *metrics.Metrics
	batchSize          int
	parallelism        int
	processingInterval time.Duration
	backlogInterval    time.Duration
	scheduler          gocron.Scheduler
	running            bool
	mutex              sync.Mutex
	stopChan           chan struct{}
	done               chan struct{}
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(
	eventStore eventstore.EventStore,
	projectors map[string]Projector,
	publisher EventPublisher,
	tracer tracing.Tracer,
	m *metrics.Metrics,
	cfg config.WorkerConfig,
) *EventProcessor {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	p := &EventProcessor{
		eventStore:         eventStore,
		projectors:         projectors,
		publisher:          publisher,
		tracer:             tracer,
		metrics:            m,
		batchSize:          cfg.BatchSize,
		parallelism:        cfg.Parallelism,
		processingInterval: cfg.ProcessingInterval,
		backlogInterval:    cfg.BacklogInterval,
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.parallelism <= 0 {
		p.parallelism = 1
	}
	if p.processingInterval <= 0 {
		p.processingInterval = 5 * time.Second
	}
	if p.backlogInterval <= 0 {
		p.backlogInterval = time.Minute
	}
	return p
}

// Start starts the event processor
func (p *EventProcessor) Start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.running {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(p.backlogInterval),
		gocron.NewTask(func() {
			p.ReportBacklog(context.Background())
		}),
	); err != nil {
		return err
	}
	scheduler.Start()

	p.scheduler = scheduler
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.processEvents()

	log.Info().
		Int("batch_size", p.batchSize).
		Int("parallelism", p.parallelism).
		Dur("interval", p.processingInterval).
		Msg("Event processor started")
	return nil
}

// Stop stops the event processor and waits for the current batch
func (p *EventProcessor) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.running {
		return
	}

	p.running = false
	close(p.stopChan)
	<-p.done
	if err := p.scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown scheduler")
	}
	log.Info().Msg("Event processor stopped")
}

// processEvents processes events in a loop
func (p *EventProcessor) processEvents() {
	defer close(p.done)

	ticker := time.NewTicker(p.processingInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Failed to process event batch")
			}
		case <-ctx.Done():
			return
		}
	}
}

// ProcessBatch projects one batch of unprocessed events and returns how many
// were applied. A failing event stops its stream for the rest of the batch.
func (p *EventProcessor) ProcessBatch(ctx context.Context) (int, error) {
	events, err := p.eventStore.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	log.Debug().Msgf("Processing %d events", len(events))

	streams := make([][]domain.Event, 0)
	positions := map[string]int{}
	for _, event := range events {
		key := event.StreamID.String()
		i, ok := positions[key]
		if !ok {
			i = len(streams)
			positions[key] = i
			streams = append(streams, nil)
		}
		streams[i] = append(streams[i], event)
	}

	var applied atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, stream := range streams {
		stream := stream
		g.Go(func() error {
			for _, event := range stream {
				if err := gctx.Err(); err != nil {
					return err
				}
				if !p.processEvent(gctx, event) {
					return nil
				}
				applied.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return int(applied.Load()), err
}

// Drain projects batches until one applies nothing
func (p *EventProcessor) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		applied, err := p.ProcessBatch(ctx)
		total += applied
		if err != nil || applied == 0 {
			return total, err
		}
	}
}

// processEvent projects one event and records the outcome. It reports
// whether the next event of the stream may be projected.
func (p *EventProcessor) processEvent(ctx context.Context, event domain.Event) bool {
	logger := log.With().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("stream_id", event.StreamID.String()).
		Int("version", event.Version).
		Logger()

	projector, ok := p.projectors[event.AggregateType]
	if !ok {
		logger.Warn().Str("aggregate_type", event.AggregateType).Msg("Unknown aggregate type")
		p.metrics.ProjectionProcessed(event.Type, metrics.OutcomeSkipped)
		p.markProcessed(ctx, event)
		return true
	}

	ctx, txn := p.tracer.StartTransaction(ctx, "projection/"+event.Type)
	defer p.tracer.EndTransaction(txn)
	p.tracer.AddAttribute(txn, "stream_id", event.StreamID.String())
	p.tracer.AddAttribute(txn, "version", event.Version)

	timer := p.metrics.ProjectionDuration(event.Type)
	err := projector.Project(ctx, event)
	timer.ObserveDuration()

	if err != nil {
		p.tracer.RecordError(txn, err)
		fatal := errors.Is(err, ErrMissingPriorEvent)
		if fatal {
			logger.Error().Err(err).Msg("Event cannot be projected, stream halted until replay")
			p.metrics.ProjectionProcessed(event.Type, metrics.OutcomeFailed)
			p.metrics.ProjectionGap(event.AggregateType)
		} else {
			logger.Warn().Err(err).Msg("Failed to process event, will retry")
			p.metrics.ProjectionProcessed(event.Type, metrics.OutcomeRetry)
		}
		if markErr := p.eventStore.MarkEventAsFailed(ctx, event.ID, err.Error(), fatal); markErr != nil {
			logger.Error().Err(markErr).Msg("Failed to mark event as failed")
		}
		return false
	}

	p.metrics.ProjectionProcessed(event.Type, metrics.OutcomeApplied)
	if !p.markProcessed(ctx, event) {
		return false
	}

	if err := p.publisher.PublishEvent(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish projected event")
	}
	return true
}

func (p *EventProcessor) markProcessed(ctx context.Context, event domain.Event) bool {
	if err := p.eventStore.MarkEventAsProcessed(ctx, event.ID); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to mark event as processed")
		return false
	}
	return true
}

// ReportBacklog publishes the projection backlog and logs failed events
func (p *EventProcessor) ReportBacklog(ctx context.Context) {
	unprocessed, err := p.eventStore.CountUnprocessed(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count unprocessed events")
		return
	}
	failed, err := p.eventStore.GetFailedEvents(ctx, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list failed events")
		return
	}

	p.metrics.SetBacklog(unprocessed, int64(len(failed)))
	for _, event := range failed {
		log.Warn().
			Str("event_id", event.ID).
			Str("stream_id", event.StreamID.String()).
			Str("event_type", event.Type).
			Str("reason", event.Reason).
			Msg("Event failed projection")
	}
}

// ProjectorDeps are the read side stores the projectors write to
type ProjectorDeps struct {
	Repositories *repositories.Repositories
	Engine       *indexing.Engine
	Search       SearchIndexer

	// FieldTypeCache is evicted on every field type write when handlers
	// read field types through it
	FieldTypeCache cache.CacheClient
}

// NewProjectors creates the projector of every aggregate type
func NewProjectors(deps ProjectorDeps) map[string]Projector {
	fieldTypes := deps.Repositories.FieldTypes
	if deps.FieldTypeCache != nil {
		fieldTypes = repositories.NewInvalidatingFieldTypeRepository(fieldTypes, deps.FieldTypeCache)
	}
	return map[string]Projector{
		domain.RealmAggregateType:       NewRealmProjector(deps.Repositories.Realms),
		domain.LanguageAggregateType:    NewLanguageProjector(deps.Repositories.Languages),
		domain.FieldTypeAggregateType:   NewFieldTypeProjector(fieldTypes),
		domain.ContentTypeAggregateType: NewContentTypeProjector(deps.Repositories, deps.Engine, deps.Search),
		domain.ContentAggregateType:     NewContentProjector(deps.Repositories, deps.Engine, deps.Search),
	}
}
