package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/microgrid-dispatch/core/metrics"
)

// PromSink records scheduler activity in Prometheus metrics.
type PromSink struct {
	evaluations  *prometheus.CounterVec
	firings      *prometheus.CounterVec
	dropped      prometheus.Counter
	tickDuration prometheus.Histogram
	firingDelay  prometheus.Histogram
	active       prometheus.Gauge
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.evaluations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_evaluations_total",
		Help: "Dispatch eligibility evaluations by resulting status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.firings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_firings_total",
		Help: "Due dispatch occurrences handed to notifiers",
	}, []string{"type", "dry_run"})); err != nil {
		return nil, err
	}
	if s.dropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_due_dropped_total",
		Help: "Due dispatch occurrences that never reached the notifiers",
	})); err != nil {
		return nil, err
	}
	if s.tickDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Time spent evaluating all dispatches in one scheduler tick",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.firingDelay, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_firing_delay_seconds",
		Help:    "Delay between a scheduled occurrence and its notification",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.active, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatches_active",
		Help: "Active dispatches seen in the last scheduler tick",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTick updates the evaluation and drop counters, the tick histogram
// and the active gauge.
func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	s.evaluations.WithLabelValues("not_due").Add(float64(ev.NotDue))
	s.evaluations.WithLabelValues("due_now").Add(float64(ev.Due))
	s.evaluations.WithLabelValues("finished").Add(float64(ev.Finished))
	if ev.Errors > 0 {
		s.evaluations.WithLabelValues("error").Add(float64(ev.Errors))
	}
	s.dropped.Add(float64(ev.Dropped))
	s.tickDuration.Observe(ev.Duration.Seconds())
	s.active.Set(float64(ev.Active))
	return nil
}

// RecordFiring counts the firing and observes its delay.
func (s *PromSink) RecordFiring(ev coremetrics.FiringEvent) error {
	s.firings.WithLabelValues(ev.Type, strconv.FormatBool(ev.DryRun)).Inc()
	s.firingDelay.Observe(ev.Delay.Seconds())
	return nil
}
