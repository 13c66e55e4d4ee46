package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/microgrid-dispatch/core/events"
	"github.com/kilianp07/microgrid-dispatch/infra/logger"
)

type fakeEventPublisher struct {
	mu   sync.Mutex
	got  []events.DispatchEvent
	fail bool
}

func (f *fakeEventPublisher) PublishEvent(_ context.Context, ev events.DispatchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	if f.fail {
		return errors.New("broker down")
	}
	return nil
}

func TestForwardEventsUntilClosed(t *testing.T) {
	ch := make(chan events.DispatchEvent, 3)
	ch <- events.DispatchEvent{Kind: events.KindCreated, DispatchID: 1}
	ch <- events.DispatchEvent{Kind: events.KindUpdated, DispatchID: 1}
	ch <- events.DispatchEvent{Kind: events.KindDeleted, DispatchID: 1}
	close(ch)

	pub := &fakeEventPublisher{fail: true}
	forwardEvents(context.Background(), ch, pub, logger.NopLogger{})
	assert.Len(t, pub.got, 3, "a failed publish does not stop forwarding")
	assert.Equal(t, events.KindDeleted, pub.got[2].Kind)
}

func TestForwardEventsWithoutPublisher(t *testing.T) {
	ch := make(chan events.DispatchEvent, 1)
	ch <- events.DispatchEvent{Kind: events.KindCreated}
	close(ch)
	forwardEvents(context.Background(), ch, nil, logger.NopLogger{})
}

func TestForwardEventsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		forwardEvents(ctx, make(chan events.DispatchEvent), &fakeEventPublisher{}, logger.NopLogger{})
		close(done)
	}()
	<-done
}
