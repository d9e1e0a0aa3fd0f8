package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/portal/config"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{Enabled: true})
	require.NoError(t, err)

	ctx, txn := tracer.StartTransaction(context.Background(), "projection")
	assert.Nil(t, txn)
	assert.Nil(t, tracer.Application())
	assert.Nil(t, tracer.StartSegment(ctx, "load"))

	assert.NotPanics(t, func() {
		tracer.AddAttribute(txn, "event_type", "V1_REALM_CREATED")
		tracer.RecordError(txn, errors.New("boom"))
		tracer.EndTransaction(txn)
		tracer.Close()
	})
}

func TestTracingOffByConfig(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{Enabled: false, LicenseKey: "ignored"})
	require.NoError(t, err)
	assert.Nil(t, tracer.Application())
}
