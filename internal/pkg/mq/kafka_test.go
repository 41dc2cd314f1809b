package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaHeaderCarrier(t *testing.T) {
	c := KafkaHeaderCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, c.Keys())
}

func TestProduceMessage_PropagatesTraceContext(t *testing.T) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	w := &recordingWriter{}
	require.NoError(t, ProduceMessage(ctx, w, "topic", []byte("k"), []byte("v")))
	require.Len(t, w.msgs, 1)

	extracted := ExtractTraceContext(context.Background(), w.msgs[0].Headers)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestFailureHandler_AddsDiagnosticHeaders(t *testing.T) {
	dlt := &recordingWriter{}
	h := NewFailureHandler(dlt, "dlt")

	h.Handle(context.Background(), kafka.Message{Topic: "orders", Partition: 2, Offset: 41, Key: []byte("o1")}, errors.New("boom"))

	require.Len(t, dlt.msgs, 1)
	carrier := KafkaHeaderCarrier(dlt.msgs[0].Headers)
	assert.Equal(t, "orders", carrier.Get(HeaderOriginalTopic))
	assert.Equal(t, "2", carrier.Get(HeaderOriginalPartition))
	assert.Equal(t, "41", carrier.Get(HeaderOriginalOffset))
	assert.Equal(t, "boom", carrier.Get(HeaderExceptionMessage))
}
