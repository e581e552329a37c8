package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const (
	metricItemsTotal    = "freelaudit.items.total"
	metricItemDuration  = "freelaudit.item.duration.seconds"
	metricHTTPRequests  = "freelaudit.http.requests.total"
	metricActiveWorkers = "freelaudit.workers.active"

	attrStage   = "stage"
	attrOutcome = "outcome"
	attrHost    = "host"
	attrStatus  = "status"
)

// Outcomes recorded per processed item.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// durationBucketBoundaries covers a fast page parse up to a slow scanner run.
var durationBucketBoundaries = []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

// PipelineMetrics holds the OTel instruments shared by all jobs.
type PipelineMetrics struct {
	itemsTotal    metric.Int64Counter
	itemDuration  metric.Float64Histogram
	httpRequests  metric.Int64Counter
	activeWorkers metric.Int64UpDownCounter
}

// NewPipelineMetrics creates the instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	items, err := mt.Int64Counter(metricItemsTotal,
		metric.WithDescription("Items processed per stage and outcome"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricItemsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricItemDuration,
		metric.WithDescription("Per-item processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricItemDuration, err)
	}

	requests, err := mt.Int64Counter(metricHTTPRequests,
		metric.WithDescription("Outbound HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricHTTPRequests, err)
	}

	workers, err := mt.Int64UpDownCounter(metricActiveWorkers,
		metric.WithDescription("Scanner jobs currently running"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricActiveWorkers, err)
	}

	return &PipelineMetrics{
		itemsTotal:    items,
		itemDuration:  duration,
		httpRequests:  requests,
		activeWorkers: workers,
	}, nil
}

// NoopMetrics returns instruments backed by the no-op meter.
func NoopMetrics() *PipelineMetrics {
	pm, _ := NewPipelineMetrics(noopmetric.NewMeterProvider().Meter(meterName))

	return pm
}

// RecordItem records one processed entity (profile, repository, report) and how long it took.
func (pm *PipelineMetrics) RecordItem(ctx context.Context, stage, outcome string, duration time.Duration) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrOutcome, outcome),
	)

	pm.itemsTotal.Add(ctx, 1, attrs)
	pm.itemDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordHTTP counts one outbound request by host and status class.
func (pm *PipelineMetrics) RecordHTTP(ctx context.Context, host, status string) {
	if pm == nil {
		return
	}

	pm.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrHost, host),
		attribute.String(attrStatus, status),
	))
}

// TrackWorker increments the active worker gauge and returns a function to decrement it.
func (pm *PipelineMetrics) TrackWorker(ctx context.Context, stage string) func() {
	if pm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrStage, stage))
	pm.activeWorkers.Add(ctx, 1, attrs)

	return func() {
		pm.activeWorkers.Add(ctx, -1, attrs)
	}
}
