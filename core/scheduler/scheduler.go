package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/microgrid-dispatch/core/eligibility"
	"github.com/kilianp07/microgrid-dispatch/core/logger"
	"github.com/kilianp07/microgrid-dispatch/core/metrics"
	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/monitoring"
	"github.com/kilianp07/microgrid-dispatch/internal/eventbus"
)

// DueEvent announces that a dispatch occurrence is due at Occurrence.
type DueEvent struct {
	MicrogridID uint64
	DispatchID  uint64
	Dispatch    model.Dispatch
	Occurrence  time.Time
	// Next is the following occurrence, when one exists within the horizon.
	Next model.Optional[time.Time]
}

// Lister supplies the dispatches to evaluate. dispatch.Store satisfies it.
type Lister interface {
	ListAll(ctx context.Context) ([]model.DispatchDetail, error)
}

// Scheduler evaluates every stored dispatch once per tick.
type Scheduler struct {
	cfg   Config
	store Lister
	bus   *eventbus.Bus[DueEvent]
	sink  metrics.MetricsSink
	log   logger.Logger
	eval  eligibility.Evaluator
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock used to derive tick instants.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New validates cfg and returns a stopped Scheduler. A nil sink disables
// metrics.
func New(cfg Config, store Lister, bus *eventbus.Bus[DueEvent], sink metrics.MetricsSink, log logger.Logger, opts ...Option) (*Scheduler, error) {
	if store == nil || bus == nil || log == nil {
		return nil, fmt.Errorf("scheduler: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	s := &Scheduler{
		cfg:   cfg,
		store: store,
		bus:   bus,
		sink:  sink,
		log:   log,
		eval:  eligibility.Evaluator{Horizon: cfg.Horizon()},
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run polls until ctx is cancelled, then waits for the running tick.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(alignedEvery{s.cfg.Tick()}, cron.FuncJob(func() {
		if err := s.Poll(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorf("scheduler poll: %v", err)
		}
	}))

	s.log.Infof("scheduler started: tick=%s workers=%d", s.cfg.Tick(), s.cfg.Workers)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Infof("scheduler stopped")
	return nil
}

// Poll evaluates the tick containing the current time, replaying up to
// MaxCatchUpTicks ticks missed since the previous poll. A tick is never
// evaluated twice.
func (s *Scheduler) Poll(ctx context.Context) error {
	period := s.cfg.Tick()
	tick := s.now().UTC().Truncate(period)

	s.mu.Lock()
	last := s.last
	if !last.IsZero() && !tick.After(last) {
		s.mu.Unlock()
		return nil
	}
	s.last = tick
	s.mu.Unlock()

	first := tick
	if !last.IsZero() {
		first = last.Add(period)
		if missed := int(tick.Sub(first) / period); missed > s.cfg.MaxCatchUpTicks {
			skipped := missed - s.cfg.MaxCatchUpTicks
			s.log.Warnf("scheduler fell behind: skipping %d ticks before %s", skipped, tick.Format(time.RFC3339))
			first = first.Add(time.Duration(skipped) * period)
		}
	}
	for t := first; !t.After(tick); t = t.Add(period) {
		if _, err := s.Tick(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

type result struct {
	status eligibility.Status
	next   model.Optional[time.Time]
	err    error
}

// Tick evaluates every stored dispatch at the given instant and publishes
// the due ones in (microgrid, id) order. Publishing waits for the consumer,
// so a due occurrence is only lost when ctx ends first.
func (s *Scheduler) Tick(ctx context.Context, tick time.Time) (metrics.TickEvent, error) {
	started := time.Now()
	ev := metrics.TickEvent{Time: tick}
	all, err := s.store.ListAll(ctx)
	if err != nil {
		ev.Errors++
		s.record(ev, started)
		monitoring.CaptureException(err, map[string]string{"component": "scheduler"})
		return ev, fmt.Errorf("list dispatches: %w", err)
	}

	results := make([]result, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, dd := range all {
		if !dd.Dispatch.IsActive {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.evaluate(dd, tick)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ev, err
	}

	for i, dd := range all {
		if !dd.Dispatch.IsActive {
			continue
		}
		ev.Active++
		r := results[i]
		switch {
		case r.err != nil:
			ev.Errors++
			s.log.Errorf("evaluate dispatch %d: %v", dd.ID, r.err)
		case r.status == eligibility.StatusDueNow:
			ev.Due++
			err := s.bus.PublishCtx(ctx, DueEvent{
				MicrogridID: dd.MicrogridID,
				DispatchID:  dd.ID,
				Dispatch:    dd.Dispatch,
				Occurrence:  tick,
				Next:        r.next,
			})
			if err != nil {
				ev.Dropped++
				s.log.Errorf("due dispatch %d at %s dropped: %v", dd.ID, tick.Format(time.RFC3339), err)
			}
		case r.status == eligibility.StatusFinished:
			ev.Finished++
		default:
			ev.NotDue++
		}
	}
	s.record(ev, started)
	if ev.Due > 0 {
		s.log.Debugw("scheduler tick", logger.Fields{"tick": tick, "active": ev.Active, "due": ev.Due})
	}
	if ev.Dropped > 0 {
		return ev, fmt.Errorf("deliver due events: %d dropped: %w", ev.Dropped, ctx.Err())
	}
	return ev, nil
}

// evaluate converts a panic in the recurrence engine into an error after
// reporting it.
func (s *Scheduler) evaluate(dd model.DispatchDetail, tick time.Time) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: monitoring.CapturePanic(r, map[string]string{
				"component":   "scheduler",
				"dispatch_id": strconv.FormatUint(dd.ID, 10),
			})}
		}
	}()
	status := s.eval.IsDue(dd.Dispatch, tick)
	res = result{status: status}
	if status == eligibility.StatusDueNow {
		res.next = s.eval.NextOccurrence(dd.Dispatch, tick.Add(time.Nanosecond))
	}
	return res
}

func (s *Scheduler) record(ev metrics.TickEvent, started time.Time) {
	ev.Duration = time.Since(started)
	if err := s.sink.RecordTick(ev); err != nil {
		s.log.Warnf("record tick metrics: %v", err)
	}
}

// alignedEvery fires on multiples of d since the zero time, which keeps
// ticks on whole minutes for a one minute period.
type alignedEvery struct{ d time.Duration }

func (a alignedEvery) Next(t time.Time) time.Time { return t.Truncate(a.d).Add(a.d) }

// cronLogger adapts the core logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
	monitoring.CaptureException(err, map[string]string{"component": "cron"})
}

func kvFields(kv []any) logger.Fields {
	f := make(logger.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
