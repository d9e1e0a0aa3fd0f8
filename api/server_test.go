package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/config"
	"example.com/backstage/services/portal/domain"
	"example.com/backstage/services/portal/eventstore"
	"example.com/backstage/services/portal/handlers"
	"example.com/backstage/services/portal/indexing"
	"example.com/backstage/services/portal/metrics"
	"example.com/backstage/services/portal/projections"
	"example.com/backstage/services/portal/repositories"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	server    *Server
	processor *projections.EventProcessor
}

func newFixture(t *testing.T, health func(context.Context) error) *fixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	store := eventstore.NewMemoryEventStore()
	repos := repositories.NewMemoryRepositories()
	engine := indexing.NewEngine(repos.Indices)

	h := handlers.New(handlers.Deps{Events: eventstore.NewRepository(store, m), Repositories: repos, Engine: engine})
	projectors := projections.NewProjectors(projections.ProjectorDeps{Repositories: repos, Engine: engine})

	server := NewServer(config.ServerConfig{CorsEnabled: true, CorsOrigins: []string{"https://admin.example.com"}}, ServerDeps{
		Dispatcher:   handlers.NewDispatcher(h, m),
		Repositories: repos,
		Metrics:      m,
		Gatherer:     registry,
		Health:       health,
	})
	return &fixture{
		server:    server,
		processor: projections.NewEventProcessor(store, projectors, nil, nil, m, config.WorkerConfig{}),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) command(t *testing.T, commandType string, data interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/v1/commands", map[string]interface{}{"commandType": commandType, "data": data})
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	_, err := f.processor.Drain(context.Background())
	require.NoError(t, err)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCommandThenQuery(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.command(t, handlers.CreateRealm, map[string]interface{}{"unique_slug": "acme", "display_name": "Acme"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	result := decodeBody[handlers.Result](t, rec)
	require.NotNil(t, result.ID)
	f.drain(t)

	rec = f.do(t, http.MethodGet, "/api/v1/realms/"+result.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	realm := decodeBody[map[string]interface{}](t, rec)
	assert.Equal(t, "acme", realm["unique_slug"])
	assert.Equal(t, "Acme", realm["display_name"])
	assert.EqualValues(t, 2, realm["version"])

	rec = f.command(t, handlers.CreateRealm, map[string]interface{}{"unique_slug": "acme"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_used", decodeBody[ErrorResponse](t, rec).Code)
}

func TestFieldTypeSettingsAreJSON(t *testing.T) {
	f := newFixture(t, nil)
	realm := uuid.New()

	rec := f.command(t, handlers.CreateFieldType, map[string]interface{}{
		"realm_id":    realm,
		"unique_name": "Rating",
		"data_type":   "Number",
		"settings":    map[string]interface{}{"minimum_value": 1, "maximum_value": 5},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decodeBody[handlers.Result](t, rec).ID
	f.drain(t)

	rec = f.do(t, http.MethodGet, "/api/v1/field-types/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]interface{}](t, rec)
	assert.Equal(t, "Number", body["data_type"])
	settings, ok := body["settings"].(map[string]interface{})
	require.True(t, ok, "settings should be an object, got %T", body["settings"])
	assert.EqualValues(t, 5, settings["maximum_value"])

	rec = f.do(t, http.MethodGet, "/api/v1/field-types?realm_id="+realm.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]interface{}](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/v1/field-types?realm_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/commands", map[string]interface{}{"data": map[string]interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.command(t, handlers.CreateRealm, map[string]interface{}{"unique_slug": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	require.NotEmpty(t, body.Errors)
	assert.Equal(t, "UniqueSlug", body.Errors[0].Field)

	rec = f.command(t, handlers.DeleteContent, map[string]interface{}{"content_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.command(t, "Explode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryNotFound(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/api/v1/contents/", "/api/v1/content-types/", "/api/v1/field-types/", "/api/v1/realms/"} {
		rec := f.do(t, http.MethodGet, path+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/contents/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDKey))

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portal_http_requests_total{method="GET",path="/health",status="200"} 1`)

	down := newFixture(t, func(context.Context) error { return errors.New("database unreachable") })
	rec = down.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/commands", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRedeliveredCreateConflicts(t *testing.T) {
	f := newFixture(t, nil)
	data := map[string]interface{}{"realm_id": uuid.NewString(), "unique_slug": "acme"}

	rec := f.command(t, handlers.CreateRealm, data)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	f.drain(t)

	rec = f.command(t, handlers.CreateRealm, data)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "already_exists", decodeBody[ErrorResponse](t, rec).Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&domain.ValidationError{}, http.StatusBadRequest},
		{&handlers.NotFoundError{Kind: "content"}, http.StatusNotFound},
		{&domain.FieldTypeNotFoundError{}, http.StatusNotFound},
		{fmt.Errorf("save: %w", &eventstore.ConflictError{}), http.StatusConflict},
		{&domain.UniqueValueAlreadyUsedError{}, http.StatusConflict},
		{fmt.Errorf("realm 1: %w", domain.ErrAggregateExists), http.StatusConflict},
		{&domain.AlreadyDeletedError{}, http.StatusGone},
		{&domain.LanguageRequiredError{}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
