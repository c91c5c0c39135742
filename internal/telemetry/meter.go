// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ManuGH/condense/internal/job"

// Instrument names exported through the global meter provider.
const (
	MetricJobsTotal   = "condense.jobs"
	MetricJobDuration = "condense.job.duration"
)

// RecordJobOutcome counts a finished job and its wall time. The provider is
// looked up on every call so tests and late initialisation take effect.
func RecordJobOutcome(ctx context.Context, recipe, outcome string, d time.Duration) {
	meter := otel.GetMeterProvider().Meter(meterName)
	attrs := metric.WithAttributes(
		attribute.String("recipe", recipe),
		attribute.String("outcome", outcome),
	)

	if jobs, err := meter.Int64Counter(MetricJobsTotal, metric.WithDescription("Finished compression jobs")); err == nil {
		jobs.Add(ctx, 1, attrs)
	}
	if hist, err := meter.Float64Histogram(MetricJobDuration,
		metric.WithDescription("Compression job wall time"),
		metric.WithUnit("s"),
	); err == nil {
		hist.Record(ctx, d.Seconds(), attrs)
	}
}
