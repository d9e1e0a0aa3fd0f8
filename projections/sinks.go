package projections

import (
	"context"

	"github.com/google/uuid"

	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/models"
)

// SearchIndexer mirrors content locales into a full text search engine
type SearchIndexer interface {
	IndexLocale(ctx context.Context, contentType *models.ContentType, content *models.Content, locale *models.ContentLocale) error
	DeleteLocale(ctx context.Context, contentID uuid.UUID, languageKey string) error
	DeleteContent(ctx context.Context, contentID uuid.UUID) error
}

// EventPublisher forwards projected events to downstream consumers
type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

// NopSearchIndexer indexes nothing
type NopSearchIndexer struct{}

func (NopSearchIndexer) IndexLocale(context.Context, *models.ContentType, *models.Content, *models.ContentLocale) error {
	return nil
}

func (NopSearchIndexer) DeleteLocale(context.Context, uuid.UUID, string) error { return nil }

func (NopSearchIndexer) DeleteContent(context.Context, uuid.UUID) error { return nil }

// NopPublisher publishes nothing
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, domain.Event) error { return nil }
