// Package metrics wires the process's in-memory OpenTelemetry metrics:
// request counts and durations for the HTTP surface, and a gauge-style
// counter for the orchestrator's debounced extraction fan-in. There is
// no external exporter wired (no collector is named anywhere in the
// spec's External Interfaces), so the meter provider is purely
// in-process and its values are surfaced through the health endpoint.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder counts HTTP requests by route and status, and extraction
// runs, readable back out for the health endpoint's "stats" block.
type Recorder struct {
	requests metric.Int64Counter
	durationMs metric.Float64Histogram
	extractions metric.Int64Counter

	mu            sync.Mutex
	requestTotal  int64
	extractionTotal int64
}

// New builds a Recorder backed by an in-process MeterProvider
// registered as the global otel provider.
func New() *Recorder {
	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	meter := provider.Meter("github.com/codeready-toolchain/anketa")

	requests, _ := meter.Int64Counter("anketa.http.requests_total")
	durationMs, _ := meter.Float64Histogram("anketa.http.request_duration_ms")
	extractions, _ := meter.Int64Counter("anketa.orchestrator.extractions_total")

	return &Recorder{requests: requests, durationMs: durationMs, extractions: extractions}
}

// RecordRequest records one completed HTTP request.
func (r *Recorder) RecordRequest(ctx context.Context, route string, status int, durationMs float64) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("status", statusClass(status)),
	)
	r.requests.Add(ctx, 1, attrs)
	r.durationMs.Record(ctx, durationMs, attrs)

	r.mu.Lock()
	r.requestTotal++
	r.mu.Unlock()
}

// RecordExtraction records one completed extraction pass (§4.6 step 2).
func (r *Recorder) RecordExtraction(ctx context.Context) {
	if r == nil {
		return
	}
	r.extractions.Add(ctx, 1)
	r.mu.Lock()
	r.extractionTotal++
	r.mu.Unlock()
}

// Stats is a cheap in-memory snapshot for the health endpoint; the
// canonical, attributed series live in the meter itself.
type Stats struct {
	RequestTotal    int64 `json:"request_total"`
	ExtractionTotal int64 `json:"extraction_total"`
}

// Snapshot returns the current totals.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{RequestTotal: r.requestTotal, ExtractionTotal: r.extractionTotal}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
