package metrics

import (
	"errors"
	"time"
)

// TickEvent summarises one scheduler poll.
type TickEvent struct {
	Time     time.Time
	Duration time.Duration
	// Active is the number of active dispatches evaluated.
	Active   int
	NotDue   int
	Due      int
	Finished int
	Errors   int
	// Dropped counts due occurrences that could not be handed on before
	// the scheduler was stopped.
	Dropped int
}

// MetricsSink records scheduler activity for observability purposes.
type MetricsSink interface {
	RecordTick(ev TickEvent) error
}

// FiringEvent describes a due occurrence handed to the notifiers.
type FiringEvent struct {
	MicrogridID uint64
	DispatchID  uint64
	Type        string
	DryRun      bool
	Delivered   bool
	Occurrence  time.Time
	// Delay is the time between the occurrence and its handling.
	Delay time.Duration
}

// FiringRecorder records firings.
type FiringRecorder interface {
	RecordFiring(ev FiringEvent) error
}

// NopSink implements MetricsSink and FiringRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTick(TickEvent) error     { return nil }
func (NopSink) RecordFiring(FiringEvent) error { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the tick to every sink. All sinks are called even
// when one fails; the errors are joined.
func (m *MultiSink) RecordTick(ev TickEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordTick(ev))
	}
	return errors.Join(errs...)
}

// RecordFiring forwards the firing to sinks implementing FiringRecorder.
func (m *MultiSink) RecordFiring(ev FiringEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(FiringRecorder); ok {
			errs = append(errs, r.RecordFiring(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordFiring forwards ev to sink when it implements FiringRecorder.
func RecordFiring(sink MetricsSink, ev FiringEvent) error {
	if r, ok := sink.(FiringRecorder); ok {
		return r.RecordFiring(ev)
	}
	return nil
}
