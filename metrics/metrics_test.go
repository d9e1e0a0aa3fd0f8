package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RepoLoadDuration("content").ObserveDuration()
	m.RepoSaveDuration("content").ObserveDuration()
	m.EventsAppended("content", 3)
	m.ConcurrencyConflict("content")
	m.ProjectionDuration("V1_CONTENT_CREATED").ObserveDuration()
	m.ProjectionProcessed("V1_CONTENT_CREATED", OutcomeApplied)
	m.ProjectionGap("content")
	m.SetBacklog(7, 1)
	m.CommandHandled("CreateContent", true)
	m.CacheHit("field_type")
	m.CacheMiss("field_type")
	m.HTTPRequest("GET", "/health", 200, time.Millisecond)
	m.DBQuery("query", "events", time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["portal_repo_load_duration_seconds"])
	assert.True(t, names["portal_projection_events_total"])
	assert.True(t, names["portal_http_requests_total"])

	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsAppended.WithLabelValues("content")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.unprocessedEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedEvents))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RepoLoadDuration("content").ObserveDuration()
		m.EventsAppended("content", 1)
		m.ProjectionProcessed("V1_CONTENT_CREATED", OutcomeFailed)
		m.SetBacklog(1, 1)
		m.HTTPRequest("GET", "/", 500, time.Second)
	})
}
