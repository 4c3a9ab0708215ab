// Package otel publishes the auth manager's metrics through OpenTelemetry
// observable instruments.
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is
// flattened into one Int64ObservableGauge per cumulative bucket, plus count
// and sum gauges. A single callback reads MetricsSnapshot per collection.
// Callers own the MeterProvider.
package otel
