package app

import (
	"context"

	"github.com/kilianp07/microgrid-dispatch/core/events"
	"github.com/kilianp07/microgrid-dispatch/core/logger"
)

// EventPublisher forwards dispatch lifecycle events downstream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev events.DispatchEvent) error
}

// forwardEvents drains ch into pub until ch is closed or ctx is done. A nil
// publisher only logs the events.
func forwardEvents(ctx context.Context, ch <-chan events.DispatchEvent, pub EventPublisher, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if pub == nil {
				log.Debugf("dispatch %d in microgrid %d %s", ev.DispatchID, ev.MicrogridID, ev.Kind)
				continue
			}
			if err := pub.PublishEvent(ctx, ev); err != nil {
				log.Errorf("forward %s event of dispatch %d: %v", ev.Kind, ev.DispatchID, err)
			}
		}
	}
}
