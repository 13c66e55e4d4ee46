package dispatch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	writeOps    *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	lastWriteTS prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge) {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_store_writes_total",
			Help: "Create, update and delete calls by outcome",
		},
		[]string{"operation", "result"},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_validation_rejections_total",
			Help: "Writes rejected by validation, by offending field",
		},
		[]string{"field"},
	)
	last := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_last_write_timestamp_seconds",
			Help: "Unix time of the last successful dispatch write",
		},
	)
	return ops, rej, last
}

func init() {
	writeOps, rejections, lastWriteTS = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(writeOps, rejections, lastWriteTS)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	writeOps, rejections, lastWriteTS = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// observeWrite records the outcome of a write operation.
func observeWrite(op string, err error) {
	var verr *ValidationError
	switch {
	case err == nil:
		writeOps.WithLabelValues(op, "ok").Inc()
	case errors.As(err, &verr):
		writeOps.WithLabelValues(op, "invalid").Inc()
		rejections.WithLabelValues(verr.Field).Inc()
	case IsNotFound(err):
		writeOps.WithLabelValues(op, "not_found").Inc()
	default:
		writeOps.WithLabelValues(op, "error").Inc()
	}
}
