package tracer

import (
	"context"
	"testing"

	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	traceSpan "go.opentelemetry.io/otel/trace"
)

func TestCarrierRoundTrip(t *testing.T) {
	tr := NewClient(Config{ServiceName: "test"}, logger.NewNop())
	defer func() { _ = tr.Shutdown(context.Background()) }()

	ctx, span := tr.StartSpan(context.Background(), "publish")
	defer span.End()

	carrier := tr.GetCarrier(ctx)
	require.Contains(t, carrier, "traceparent")

	restored := tr.SetCarrierOnContext(context.Background(), carrier)
	sc := traceSpan.SpanContextFromContext(restored)
	assert.True(t, sc.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), sc.TraceID())
}

func TestRecordErrorOnSpanNil(t *testing.T) {
	tr := NewClient(Config{ServiceName: "test"}, logger.NewNop())
	_, span := tr.StartSpan(context.Background(), "noop")
	defer span.End()

	// must not panic on nil
	tr.RecordErrorOnSpan(span, nil)
	tr.SetAttributes(span, map[string]interface{}{"owner": "alice", "count": 3, "raw": []int{1}})
}
