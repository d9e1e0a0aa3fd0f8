package eventstore

import (
	"context"
	"errors"
	"fmt"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/metrics"
)

type loadOptions struct {
	version int
}

// LoadOption configures Repository.Load
type LoadOption func(*loadOptions)

// WithVersion loads the aggregate as it was at version
func WithVersion(version int) LoadOption {
	return func(o *loadOptions) { o.version = version }
}

// Repository rehydrates aggregates from their streams and persists new
// events with optimistic concurrency
type Repository struct {
	store   EventStore
	metrics *metrics.Metrics
}

// NewRepository creates a repository over an event store. m may be nil.
func NewRepository(store EventStore, m *metrics.Metrics) *Repository {
	return &Repository{store: store, metrics: m}
}

// Store returns the underlying event store
func (r *Repository) Store() EventStore {
	return r.store
}

// Load replays the stream of aggregate into it. It reports false when the
// stream has no events. Deleted aggregates are loaded like any other.
func (r *Repository) Load(ctx context.Context, aggregate domain.Aggregate, opts ...LoadOption) (bool, error) {
	if aggregate.GetID().IsZero() {
		return false, errors.New("aggregate id is empty")
	}
	if aggregate.GetVersion() != 0 || len(aggregate.GetEvents()) != 0 {
		return false, errors.New("aggregate must be fresh to be loaded")
	}

	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	timer := r.metrics.RepoLoadDuration(aggregate.GetType())
	defer timer.ObserveDuration()

	events, err := r.store.Load(ctx, aggregate.GetID(), options.version)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	if err := aggregate.LoadFromHistory(events); err != nil {
		return false, fmt.Errorf("failed to replay %s %s: %w", aggregate.GetType(), aggregate.GetID(), err)
	}
	return true, nil
}

// Save persists the uncommitted events of the aggregates as one batch
func (r *Repository) Save(ctx context.Context, aggregates ...domain.Aggregate) error {
	appended := map[string]int{}
	for _, aggregate := range aggregates {
		appended[aggregate.GetType()] += len(aggregate.GetEvents())
	}

	for aggregateType := range appended {
		timer := r.metrics.RepoSaveDuration(aggregateType)
		defer timer.ObserveDuration()
	}

	if err := r.store.Save(ctx, aggregates...); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			for _, aggregate := range aggregates {
				if aggregate.GetID().Equals(conflict.StreamID) {
					r.metrics.ConcurrencyConflict(aggregate.GetType())
				}
			}
		}
		return err
	}

	for aggregateType, count := range appended {
		if count > 0 {
			r.metrics.EventsAppended(aggregateType, count)
		}
	}
	return nil
}

// LoadAll loads every aggregate of a type. Deleted aggregates are skipped
// unless includeDeleted is set.
func LoadAll[T domain.Aggregate](
	ctx context.Context,
	r *Repository,
	aggregateType string,
	factory func(domain.StreamID) T,
	includeDeleted bool,
) ([]T, error) {
	streamIDs, err := r.store.ListStreams(ctx, aggregateType)
	if err != nil {
		return nil, err
	}

	aggregates := make([]T, 0, len(streamIDs))
	for _, streamID := range streamIDs {
		aggregate := factory(streamID)
		found, err := r.Load(ctx, aggregate)
		if err != nil {
			return nil, err
		}
		if !found || (aggregate.IsDeleted() && !includeDeleted) {
			continue
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates, nil
}
