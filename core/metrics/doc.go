// Package metrics defines the observability contract of the scheduler.
// A MetricsSink receives one TickEvent per poll; sinks that also implement
// FiringRecorder receive one FiringEvent per due occurrence. Backends are
// registered by infra/metrics and selected from configuration through
// NewMetricsSink, which wraps several sinks in a MultiSink.
package metrics
