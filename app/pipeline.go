package app

import (
	"context"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/core/logger"
	"github.com/kilianp07/microgrid-dispatch/core/metrics"
	"github.com/kilianp07/microgrid-dispatch/core/scheduler"
)

// Notifier delivers a due occurrence downstream and returns its command id.
type Notifier interface {
	Notify(ctx context.Context, ev scheduler.DueEvent) (string, error)
}

// Pipeline consumes due events: live dispatches are notified, dry runs are
// only logged, and every firing is recorded.
type Pipeline struct {
	notifier Notifier
	firings  firelog.LogStore
	sink     metrics.MetricsSink
	log      logger.Logger
	now      func() time.Time
}

// NewPipeline wires the consumers of due events. A nil notifier turns every
// firing into a log-only one.
func NewPipeline(n Notifier, firings firelog.LogStore, sink metrics.MetricsSink, log logger.Logger) *Pipeline {
	if firings == nil {
		firings = firelog.NopStore{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Pipeline{notifier: n, firings: firings, sink: sink, log: log, now: time.Now}
}

// Run handles events until ch is closed or ctx is done.
func (p *Pipeline) Run(ctx context.Context, ch <-chan scheduler.DueEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle processes a single due event.
func (p *Pipeline) Handle(ctx context.Context, ev scheduler.DueEvent) firelog.LogRecord {
	rec := firelog.LogRecord{
		Timestamp:   p.now().UTC(),
		Occurrence:  ev.Occurrence,
		MicrogridID: ev.MicrogridID,
		DispatchID:  ev.DispatchID,
		Type:        ev.Dispatch.Type,
		DryRun:      ev.Dispatch.IsDryRun,
	}
	switch {
	case ev.Dispatch.IsDryRun:
		p.log.Infof("dry run: dispatch %d (%s) due at %s", ev.DispatchID, ev.Dispatch.Type, ev.Occurrence.Format(time.RFC3339))
	case p.notifier == nil:
		p.log.Infof("no notifier: dispatch %d (%s) due at %s", ev.DispatchID, ev.Dispatch.Type, ev.Occurrence.Format(time.RFC3339))
	default:
		cmdID, err := p.notifier.Notify(ctx, ev)
		rec.CommandID = cmdID
		if err != nil {
			rec.Error = err.Error()
			p.log.Errorf("notify dispatch %d: %v", ev.DispatchID, err)
		} else {
			rec.Delivered = true
		}
	}

	if err := p.firings.Append(ctx, rec); err != nil {
		p.log.Errorf("append firing log: %v", err)
	}
	if err := metrics.RecordFiring(p.sink, metrics.FiringEvent{
		MicrogridID: ev.MicrogridID,
		DispatchID:  ev.DispatchID,
		Type:        ev.Dispatch.Type,
		DryRun:      ev.Dispatch.IsDryRun,
		Delivered:   rec.Delivered,
		Occurrence:  ev.Occurrence,
		Delay:       rec.Timestamp.Sub(ev.Occurrence),
	}); err != nil {
		p.log.Warnf("record firing metrics: %v", err)
	}
	return rec
}
