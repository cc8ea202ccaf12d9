// Package otel bridges authcore engine counters into OpenTelemetry.
//
// [New] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per cumulative latency bucket; a single callback reads
// Engine.MetricsSnapshot on each collection. Callers own the MeterProvider.
package otel
