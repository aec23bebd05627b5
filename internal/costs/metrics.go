package costs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var meter = otel.GetMeterProvider().Meter("resume-optimizer/costs")

// recordMetrics exports one tracked completion. Instruments are created lazily
// so a meter provider installed after package init is still honored.
func recordMetrics(ctx context.Context, b Breakdown, provider string) {
	attrs := otelmetric.WithAttributes(
		attribute.String("llm.model", b.Model),
		attribute.String("llm.task", b.Task),
		attribute.String("llm.provider", provider),
	)

	if counter, err := meter.Int64Counter("llm.tokens", otelmetric.WithUnit("{token}")); err == nil {
		counter.Add(ctx, int64(b.TotalTokens), attrs)
	}
	if counter, err := meter.Float64Counter("llm.cost", otelmetric.WithUnit("USD")); err == nil {
		counter.Add(ctx, b.TotalCost, attrs)
	}
	if counter, err := meter.Int64Counter("llm.requests"); err == nil {
		counter.Add(ctx, 1, attrs)
	}
}
