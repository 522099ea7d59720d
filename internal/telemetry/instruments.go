package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Result attribute values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ImportInstruments records import and notification activity.
type ImportInstruments struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	notify   metric.Int64Counter
}

// NewImportInstruments registers the import instruments on meter.
func NewImportInstruments(meter metric.Meter) (*ImportInstruments, error) {
	runs, err := meter.Int64Counter("focal.import.runs",
		metric.WithDescription("Import runs by result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("focal.import.runs: %w", err)
	}

	duration, err := meter.Float64Histogram("focal.import.duration",
		metric.WithDescription("Wall time of one project import"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("focal.import.duration: %w", err)
	}

	notify, err := meter.Int64Counter("focal.notify.attempts",
		metric.WithDescription("Chat notification attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("focal.notify.attempts: %w", err)
	}

	return &ImportInstruments{runs: runs, duration: duration, notify: notify}, nil
}

// RecordImport counts one import run and its duration.
func (i *ImportInstruments) RecordImport(ctx context.Context, result string, iterationCreated, metricCreated bool, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("result", result),
		attribute.Bool("iteration_created", iterationCreated),
		attribute.Bool("metric_created", metricCreated),
	)
	i.runs.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attribute.String("result", result)))
}

// RecordNotify counts one notification attempt.
func (i *ImportInstruments) RecordNotify(ctx context.Context, result string) {
	if i == nil {
		return
	}
	i.notify.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
