package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kilianp07/microgrid-dispatch/core/events"
	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/monitoring"
	"github.com/kilianp07/microgrid-dispatch/core/scheduler"
	"github.com/kilianp07/microgrid-dispatch/infra/logger"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 100 * time.Millisecond
)

// DueMessage is the JSON body published for a due occurrence.
type DueMessage struct {
	CommandID      string                    `json:"command_id"`
	MicrogridID    uint64                    `json:"microgrid_id"`
	DispatchID     uint64                    `json:"dispatch_id"`
	Occurrence     time.Time                 `json:"occurrence"`
	NextOccurrence model.Optional[time.Time] `json:"next_occurrence,omitzero"`
	Dispatch       model.Dispatch            `json:"dispatch"`
	Timestamp      int64                     `json:"timestamp"`
}

// Notifier publishes due dispatch occurrences to the broker.
type Notifier struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     logger.Logger
	now        func() time.Time
}

// NewNotifier connects to the configured broker.
func NewNotifier(cfg Config) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_notifier")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newNotifier(c, cfg, log), nil
}

func newNotifier(c pahoClient, cfg Config, log logger.Logger) *Notifier {
	n := &Notifier{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     log,
		now:        time.Now,
	}
	if n.maxRetries <= 0 {
		n.maxRetries = defaultMaxRetries
	}
	if n.backoff <= 0 {
		n.backoff = defaultBackoff
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return n
}

// Topic returns the topic a due occurrence of the dispatch is published on.
func (n *Notifier) Topic(microgridID, dispatchID uint64) string {
	return n.dispatchTopic(microgridID, dispatchID, "due")
}

// Notify publishes ev and returns the generated command id.
func (n *Notifier) Notify(ctx context.Context, ev scheduler.DueEvent) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	cmdID := uuid.NewString()
	payload, err := json.Marshal(DueMessage{
		CommandID:      cmdID,
		MicrogridID:    ev.MicrogridID,
		DispatchID:     ev.DispatchID,
		Occurrence:     ev.Occurrence.UTC(),
		NextOccurrence: ev.Next,
		Dispatch:       ev.Dispatch,
		Timestamp:      n.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encode due message: %w", err)
	}

	if err := n.publish(ctx, n.Topic(ev.MicrogridID, ev.DispatchID), ev.DispatchID, payload); err != nil {
		return "", err
	}
	n.logger.Infof("sent %s for dispatch %d", cmdID, ev.DispatchID)
	return cmdID, nil
}

// EventTopic returns the topic lifecycle events of the dispatch are
// published on.
func (n *Notifier) EventTopic(microgridID, dispatchID uint64) string {
	return n.dispatchTopic(microgridID, dispatchID, "events")
}

func (n *Notifier) dispatchTopic(microgridID, dispatchID uint64, leaf string) string {
	return n.prefix + "microgrid/" + strconv.FormatUint(microgridID, 10) +
		"/dispatch/" + strconv.FormatUint(dispatchID, 10) + "/" + leaf
}

// PublishEvent forwards a lifecycle event with the same retry policy as
// Notify.
func (n *Notifier) PublishEvent(ctx context.Context, ev events.DispatchEvent) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	if err := n.publish(ctx, n.EventTopic(ev.MicrogridID, ev.DispatchID), ev.DispatchID, payload); err != nil {
		return err
	}
	n.logger.Debugf("sent %s event for dispatch %d", ev.Kind, ev.DispatchID)
	return nil
}

// publish retries with exponential backoff until the retries are exhausted
// or ctx is done.
func (n *Notifier) publish(ctx context.Context, topic string, dispatchID uint64, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			wait := n.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		token := n.cli.Publish(topic, n.qos, n.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		n.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
	}
	monitoring.CaptureException(publishErr, map[string]string{
		"component":   "mqtt",
		"topic":       topic,
		"dispatch_id": strconv.FormatUint(dispatchID, 10),
	})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
}
