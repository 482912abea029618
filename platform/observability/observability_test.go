package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func testSpanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func TestKafkaHeaders_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	sc := testSpanContext(t)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg := kafkago.Message{Headers: []kafkago.Header{{Key: "x-other", Value: []byte("1")}}}
	InjectKafkaHeaders(ctx, &msg)

	require.Len(t, msg.Headers, 2)
	require.Equal(t, "traceparent", msg.Headers[1].Key)

	// повторный inject перезаписывает, а не дублирует
	InjectKafkaHeaders(ctx, &msg)
	require.Len(t, msg.Headers, 2)

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), msg))
	require.Equal(t, sc.TraceID(), extracted.TraceID())
	require.Equal(t, sc.SpanID(), extracted.SpanID())
}

func TestL(t *testing.T) {
	base := zap.NewNop()
	require.Same(t, base, L(context.Background(), base))

	ctx := trace.ContextWithSpanContext(context.Background(), testSpanContext(t))
	require.Len(t, TraceFields(ctx), 2)
	require.NotSame(t, base, L(ctx, base))
}

func TestHTTPMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware("settlement", zap.NewNop()))
	r.Get("/purchases/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/purchases/p-1", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
