package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// settlementMetricsRecorder считает вебхуки и возвраты в OTLP counters
type settlementMetricsRecorder struct {
	webhookEvents metric.Int64Counter
	refunds       metric.Int64Counter
}

func newSettlementMetricsRecorder() *settlementMetricsRecorder {
	meter := otel.Meter("settlement")
	webhookEvents, _ := meter.Int64Counter("settlement_webhook_events_total",
		metric.WithDescription("Processor webhook events by type and result"))
	refunds, _ := meter.Int64Counter("settlement_refunds_total",
		metric.WithDescription("Refund executions by result"))
	return &settlementMetricsRecorder{webhookEvents: webhookEvents, refunds: refunds}
}

func (r *settlementMetricsRecorder) RecordWebhookEvent(eventType, result string) {
	if r.webhookEvents == nil {
		return
	}
	r.webhookEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("result", result),
	))
}

func (r *settlementMetricsRecorder) RecordRefund(result string) {
	if r.refunds == nil {
		return
	}
	r.refunds.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}
