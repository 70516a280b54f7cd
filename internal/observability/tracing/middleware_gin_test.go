package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tapcoin/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/invoices/check", func(c *gin.Context) {
		c.Set("user_id", "7")
		c.Set("invoice_id", "1001")
		_ = c.Error(errors.New("db down: dial tcp 10.0.0.1"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/invoices/check", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP POST /api/invoices/check", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "7", attrs["tapcoin.user_id"])
	assert.Equal(t, "1001", attrs["tapcoin.invoice_id"])
	require.Len(t, span.Events(), 1)
	var message string
	for _, kv := range span.Events()[0].Attributes {
		if kv.Key == "exception.message" {
			message = kv.Value.AsString()
		}
	}
	assert.Equal(t, "db down", message)
}

func TestWithRequestBaggage(t *testing.T) {
	ctx := withRequestBaggage(context.Background())
	assert.Equal(t, 0, baggage.FromContext(ctx).Len())

	ctx = withRequestBaggage(obscontext.WithRequestID(context.Background(), "req-9"))
	assert.Equal(t, "req-9", baggage.FromContext(ctx).Member("request_id").Value())
}
