package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/models"
)

// ContentsIndex is the index of published content locales
const ContentsIndex = "contents"

// NewElasticsearchClient creates a new Elasticsearch client and checks the connection
func NewElasticsearchClient(cfg config.ElasticConfig, transport http.RoundTripper) (*elasticsearch.Client, error) {
	if transport == nil {
		transport = &http.Transport{MaxIdleConnsPerHost: 10}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Elasticsearch")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.Errorf("Elasticsearch returned error: %s", res.String())
	}

	log.Info().Msg("Successfully connected to Elasticsearch")
	return client, nil
}

// ContentIndexer mirrors published content locales into Elasticsearch. Draft
// values never reach the index.
type ContentIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewContentIndexer creates a content indexer writing to the prefixed contents index
func NewContentIndexer(client *elasticsearch.Client, cfg config.Config) *ContentIndexer {
	return &ContentIndexer{client: client, index: config.FormatIndex(cfg, ContentsIndex)}
}

// Index returns the name of the index documents are written to
func (c *ContentIndexer) Index() string {
	return c.index
}

// EnsureIndex creates the contents index when it does not exist
func (c *ContentIndexer) EnsureIndex(ctx context.Context) error {
	res, err := c.client.Indices.Exists([]string{c.index}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "failed to check if index %s exists", c.index)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	log.Info().Msgf("Creating index %s", c.index)
	res, err = c.client.Indices.Create(c.index, c.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "failed to create index %s", c.index)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("failed to create index %s: %s", c.index, res.String())
	}
	return nil
}

// DocumentID identifies the search document of one content locale
func DocumentID(contentID uuid.UUID, languageKey string) string {
	if languageKey == models.InvariantLanguageKey {
		return contentID.String() + "_invariant"
	}
	return contentID.String() + "_" + languageKey
}

// Document is the search representation of a published content locale
type Document struct {
	ContentID     string            `json:"content_id"`
	ContentTypeID string            `json:"content_type_id"`
	ContentType   string            `json:"content_type"`
	RealmID       *string           `json:"realm_id"`
	LanguageID    *string           `json:"language_id"`
	UniqueName    string            `json:"unique_name"`
	DisplayName   *string           `json:"display_name,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Revision      int64             `json:"revision"`
	PublishedBy   *string           `json:"published_by,omitempty"`
	PublishedOn   *time.Time        `json:"published_on,omitempty"`
	Fields        map[string]string `json:"fields"`
}

// NewDocument builds the document of a published locale, keying field values
// by field name. Values of removed fields are dropped.
func NewDocument(contentType *models.ContentType, content *models.Content, locale *models.ContentLocale) (*Document, error) {
	values, err := models.DecodeFieldValues(locale.PublishedFieldValues)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode published field values")
	}

	fields := make(map[string]string, len(values))
	for id, value := range values {
		if field, ok := contentType.FindField(id); ok {
			fields[field.UniqueName] = value
		}
	}

	doc := &Document{
		ContentID:     content.ContentID.String(),
		ContentTypeID: contentType.ContentTypeID.String(),
		ContentType:   contentType.UniqueName,
		RealmID:       content.RealmKey,
		DisplayName:   locale.PublishedDisplayName,
		Description:   locale.PublishedDescription,
		PublishedBy:   locale.PublishedBy,
		PublishedOn:   locale.PublishedOn,
		Fields:        fields,
	}
	if locale.LanguageID != nil {
		id := locale.LanguageID.String()
		doc.LanguageID = &id
	}
	if locale.PublishedUniqueName != nil {
		doc.UniqueName = *locale.PublishedUniqueName
	}
	if locale.PublishedRevision != nil {
		doc.Revision = *locale.PublishedRevision
	}
	return doc, nil
}

// IndexLocale writes the document of a published locale, or deletes it when
// the locale is not published
func (c *ContentIndexer) IndexLocale(ctx context.Context, contentType *models.ContentType, content *models.Content, locale *models.ContentLocale) error {
	if !locale.IsPublished {
		return c.DeleteLocale(ctx, locale.ContentID, locale.LanguageKey)
	}

	doc, err := NewDocument(contentType, content, locale)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal content document")
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: DocumentID(locale.ContentID, locale.LanguageKey),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res)
	}

	log.Debug().
		Str("content_id", doc.ContentID).
		Str("language_key", locale.LanguageKey).
		Msg("Content locale indexed")
	return nil
}

// DeleteLocale deletes the document of one locale. Missing documents are ignored.
func (c *ContentIndexer) DeleteLocale(ctx context.Context, contentID uuid.UUID, languageKey string) error {
	req := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: DocumentID(contentID, languageKey),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

// DeleteContent deletes the documents of every locale of a content
func (c *ContentIndexer) DeleteContent(ctx context.Context, contentID uuid.UUID) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"content_id": contentID.String(),
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return errors.Wrap(err, "failed to marshal delete query")
	}

	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:   []string{c.index},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete by query request")
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete by query", res)
	}
	return nil
}

func responseError(operation string, res *esapi.Response) error {
	var e map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch error response")
	}
	return fmt.Errorf("Elasticsearch %s error (%d): %v", operation, res.StatusCode, e)
}
