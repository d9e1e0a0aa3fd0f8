package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/cache"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/models"
)

const fieldTypeCache = "field_type"

// cachedFieldTypeRepository serves field type lookups by id from the cache.
// Field types are read on every content type change, so they are the
// hottest rows of the read model. Cached rows carry no primary key, so
// projections write through NewInvalidatingFieldTypeRepository instead.
type cachedFieldTypeRepository struct {
	FieldTypeRepository
	cache   cache.CacheClient
	metrics *metrics.Metrics
}

// NewCachedFieldTypeRepository decorates a field type repository with a cache
func NewCachedFieldTypeRepository(next FieldTypeRepository, c cache.CacheClient, m *metrics.Metrics) FieldTypeRepository {
	return &cachedFieldTypeRepository{FieldTypeRepository: next, cache: c, metrics: m}
}

func fieldTypeKey(id uuid.UUID) string {
	return fmt.Sprintf("field_type:%s", id)
}

func (r *cachedFieldTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.FieldType, error) {
	var cached models.FieldType
	found, err := r.cache.Get(ctx, fieldTypeKey(id), &cached)
	if err != nil {
		log.Warn().Err(err).Str("field_type_id", id.String()).Msg("Failed to read field type from cache")
	}
	if found {
		r.metrics.CacheHit(fieldTypeCache)
		return &cached, nil
	}
	r.metrics.CacheMiss(fieldTypeCache)

	fieldType, err := r.FieldTypeRepository.FindByID(ctx, id)
	if err != nil || fieldType == nil {
		return fieldType, err
	}

	if err := r.cache.Set(ctx, fieldTypeKey(id), fieldType); err != nil {
		log.Warn().Err(err).Str("field_type_id", id.String()).Msg("Failed to cache field type")
	}
	return fieldType, nil
}

func (r *cachedFieldTypeRepository) Save(ctx context.Context, fieldType *models.FieldType) error {
	if err := r.FieldTypeRepository.Save(ctx, fieldType); err != nil {
		return err
	}
	return r.cache.Delete(ctx, fieldTypeKey(fieldType.FieldTypeID))
}

// invalidatingFieldTypeRepository reads from the database and evicts the
// cached row on every write. Projections use it so handlers reading through
// the cache see new settings.
type invalidatingFieldTypeRepository struct {
	FieldTypeRepository
	cache cache.CacheClient
}

// NewInvalidatingFieldTypeRepository decorates the write side of a field type repository
func NewInvalidatingFieldTypeRepository(next FieldTypeRepository, c cache.CacheClient) FieldTypeRepository {
	return &invalidatingFieldTypeRepository{FieldTypeRepository: next, cache: c}
}

func (r *invalidatingFieldTypeRepository) Save(ctx context.Context, fieldType *models.FieldType) error {
	if err := r.FieldTypeRepository.Save(ctx, fieldType); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, fieldTypeKey(fieldType.FieldTypeID)); err != nil {
		log.Warn().Err(err).Str("field_type_id", fieldType.FieldTypeID.String()).Msg("Failed to evict cached field type")
	}
	return nil
}
