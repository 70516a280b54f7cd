package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tier", "package"),
		attribute.String("user_id", "456"),
		attribute.String("tx_id", "abc"),
		attribute.Int64("package_id", 2),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	assert.Equal(t, attribute.Key("tier"), attrs[0].Key)
	assert.Equal(t, attribute.Key("package_id"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTap(context.Background(), "free")
		m.RecordClaimRace(context.Background())
		m.RecordFeedError(context.Background(), "timeout")
	})
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoop()
	assert.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.RecordInvoiceCreated(context.Background(), 1)
		m.RecordPaymentCredited(context.Background(), 1, "check")
		m.RecordRateLimitDenied(context.Background(), "/api/tap", "rate_limited")
	})
}
