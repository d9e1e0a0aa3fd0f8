package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeTransport answers every request like a healthy cluster would
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	status := f.status
	f.mu.Unlock()

	response := `{"result":"ok"}`
	if req.URL.Path == "/" {
		status = http.StatusOK
		response = `{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`
	}
	if status == 0 {
		status = http.StatusOK
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(response)),
		Request:    req,
	}, nil
}

func (f *fakeTransport) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestIndexer(t *testing.T) (*ContentIndexer, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	cfg := config.Config{Elastic: config.ElasticConfig{URL: "http://search.local:9200", Prefix: "portal"}}
	client, err := NewElasticsearchClient(cfg.Elastic, transport)
	require.NoError(t, err)
	return NewContentIndexer(client, cfg), transport
}

func publishedLocale(contentID uuid.UUID, languageID uuid.UUID, values []byte) *models.ContentLocale {
	revision := int64(3)
	name := "hello-world"
	by := "editor"
	on := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &models.ContentLocale{
		ContentID:            contentID,
		LanguageID:           &languageID,
		LanguageKey:          languageID.String(),
		UniqueName:           "draft-name",
		IsPublished:          true,
		PublishedRevision:    &revision,
		PublishedBy:          &by,
		PublishedOn:          &on,
		PublishedUniqueName:  &name,
		PublishedFieldValues: values,
	}
}

func TestIndexPublishedLocale(t *testing.T) {
	indexer, transport := newTestIndexer(t)
	assert.Equal(t, "portal-contents", indexer.Index())

	titleID := uuid.New()
	removedID := uuid.New()
	contentType := &models.ContentType{
		ContentTypeID: uuid.New(),
		UniqueName:    "BlogArticle",
		Fields:        []models.FieldDefinition{{FieldDefinitionID: titleID, UniqueName: "Title"}},
	}
	content := &models.Content{ContentID: uuid.New(), ContentTypeID: contentType.ContentTypeID}
	values, err := models.EncodeFieldValues(map[uuid.UUID]string{titleID: "Hello", removedID: "stale"})
	require.NoError(t, err)
	locale := publishedLocale(content.ContentID, uuid.New(), values)

	require.NoError(t, indexer.IndexLocale(context.Background(), contentType, content, locale))

	req := transport.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/portal-contents/_doc/"+DocumentID(content.ContentID, locale.LanguageKey), req.Path)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(req.Body), &doc))
	assert.Equal(t, "hello-world", doc.UniqueName)
	assert.Equal(t, "BlogArticle", doc.ContentType)
	assert.Equal(t, int64(3), doc.Revision)
	assert.Equal(t, map[string]string{"Title": "Hello"}, doc.Fields)
}

func TestIndexUnpublishedLocaleDeletesDocument(t *testing.T) {
	indexer, transport := newTestIndexer(t)
	transport.status = http.StatusNotFound

	contentID := uuid.New()
	locale := &models.ContentLocale{ContentID: contentID, LanguageKey: models.InvariantLanguageKey}

	err := indexer.IndexLocale(context.Background(), &models.ContentType{}, &models.Content{ContentID: contentID}, locale)

	require.NoError(t, err)
	req := transport.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/portal-contents/_doc/"+contentID.String()+"_invariant", req.Path)
}

func TestDeleteContent(t *testing.T) {
	indexer, transport := newTestIndexer(t)
	contentID := uuid.New()

	require.NoError(t, indexer.DeleteContent(context.Background(), contentID))

	req := transport.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/portal-contents/_delete_by_query", req.Path)
	assert.Contains(t, req.Body, contentID.String())
}

func TestIndexErrorIsReported(t *testing.T) {
	indexer, transport := newTestIndexer(t)
	transport.status = http.StatusBadRequest

	values, err := models.EncodeFieldValues(nil)
	require.NoError(t, err)
	locale := publishedLocale(uuid.New(), uuid.New(), values)

	err = indexer.IndexLocale(context.Background(), &models.ContentType{}, &models.Content{ContentID: locale.ContentID}, locale)
	assert.Error(t, err)
}
