// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "aleutian.codegraph.ast"

var extractTracer = otel.Tracer(instrumentationName)

var (
	metricsOnce       sync.Once
	extractDuration   metric.Float64Histogram
	extractedEntities metric.Int64Counter
	extractErrors     metric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	extractDuration, err = meter.Float64Histogram(
		"codegraph.extract.duration_seconds",
		metric.WithDescription("Per-file extraction duration in seconds"),
	)
	if err != nil {
		slog.Warn("failed to create extraction duration histogram", "error", err)
	}
	extractedEntities, err = meter.Int64Counter(
		"codegraph.extract.entities_total",
		metric.WithDescription("Total entities extracted"),
	)
	if err != nil {
		slog.Warn("failed to create entity counter", "error", err)
	}
	extractErrors, err = meter.Int64Counter(
		"codegraph.extract.errors_total",
		metric.WithDescription("Total files with extraction errors"),
	)
	if err != nil {
		slog.Warn("failed to create error counter", "error", err)
	}
}

// startExtractSpan begins the per-file extraction span.
func startExtractSpan(ctx context.Context, language, filePath string, contentSize int) (context.Context, trace.Span) {
	return extractTracer.Start(ctx, "ast.Extractor.Extract",
		trace.WithAttributes(
			attribute.String("codegraph.language", language),
			attribute.String("codegraph.file_path", filePath),
			attribute.Int("codegraph.content_bytes", contentSize),
		))
}

// recordExtractMetrics records the per-file extraction outcome.
func recordExtractMetrics(ctx context.Context, language string, elapsed time.Duration, entityCount int, ok bool) {
	metricsOnce.Do(initMetrics)
	attrs := metric.WithAttributes(attribute.String("codegraph.language", language))
	if extractDuration != nil {
		extractDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if extractedEntities != nil && entityCount > 0 {
		extractedEntities.Add(ctx, int64(entityCount), attrs)
	}
	if extractErrors != nil && !ok {
		extractErrors.Add(ctx, 1, attrs)
	}
}
