package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/core/metrics"
	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/scheduler"
	"github.com/kilianp07/microgrid-dispatch/infra/logger"
)

type fakeNotifier struct {
	events []scheduler.DueEvent
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, ev scheduler.DueEvent) (string, error) {
	f.events = append(f.events, ev)
	if f.err != nil {
		return "", f.err
	}
	return "cmd-1", nil
}

type memFirings struct{ recs []firelog.LogRecord }

func (m *memFirings) Append(_ context.Context, r firelog.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}
func (m *memFirings) Query(context.Context, firelog.LogQuery) ([]firelog.LogRecord, error) {
	return m.recs, nil
}
func (m *memFirings) Close() error { return nil }

type firingSink struct {
	metrics.NopSink
	firings []metrics.FiringEvent
}

func (s *firingSink) RecordFiring(ev metrics.FiringEvent) error {
	s.firings = append(s.firings, ev)
	return nil
}

var occ = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func due(dryRun bool) scheduler.DueEvent {
	return scheduler.DueEvent{
		MicrogridID: 1,
		DispatchID:  7,
		Occurrence:  occ,
		Dispatch:    model.Dispatch{Type: "charge", StartTime: occ, IsActive: true, IsDryRun: dryRun},
	}
}

func newTestPipeline(n Notifier) (*Pipeline, *memFirings, *firingSink) {
	fl, sink := &memFirings{}, &firingSink{}
	p := NewPipeline(n, fl, sink, logger.NopLogger{})
	p.now = func() time.Time { return occ.Add(250 * time.Millisecond) }
	return p, fl, sink
}

func TestPipelineDelivers(t *testing.T) {
	n := &fakeNotifier{}
	p, fl, sink := newTestPipeline(n)
	rec := p.Handle(context.Background(), due(false))

	assert.Len(t, n.events, 1)
	assert.True(t, rec.Delivered)
	assert.Equal(t, "cmd-1", rec.CommandID)
	require.Len(t, fl.recs, 1)
	assert.Equal(t, uint64(7), fl.recs[0].DispatchID)
	require.Len(t, sink.firings, 1)
	assert.Equal(t, 250*time.Millisecond, sink.firings[0].Delay)
	assert.True(t, sink.firings[0].Delivered)
}

func TestPipelineDryRunIsNotNotified(t *testing.T) {
	n := &fakeNotifier{}
	p, fl, sink := newTestPipeline(n)
	rec := p.Handle(context.Background(), due(true))

	assert.Empty(t, n.events)
	assert.True(t, rec.DryRun)
	assert.False(t, rec.Delivered)
	require.Len(t, fl.recs, 1)
	assert.True(t, sink.firings[0].DryRun)
}

func TestPipelineRecordsNotifyError(t *testing.T) {
	p, fl, _ := newTestPipeline(&fakeNotifier{err: errors.New("broker down")})
	rec := p.Handle(context.Background(), due(false))
	assert.False(t, rec.Delivered)
	assert.Equal(t, "broker down", rec.Error)
	assert.Equal(t, "broker down", fl.recs[0].Error)
}

func TestPipelineWithoutNotifier(t *testing.T) {
	p, fl, _ := newTestPipeline(nil)
	rec := p.Handle(context.Background(), due(false))
	assert.False(t, rec.Delivered)
	assert.Len(t, fl.recs, 1)
}

func TestPipelineRunStopsWhenChannelCloses(t *testing.T) {
	n := &fakeNotifier{}
	p, fl, _ := newTestPipeline(n)
	ch := make(chan scheduler.DueEvent, 2)
	ch <- due(false)
	ch <- due(true)
	close(ch)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.Len(t, fl.recs, 2)
	assert.Len(t, n.events, 1)
}
