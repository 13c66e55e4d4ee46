// Package app assembles the dispatch service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	apidispatch "github.com/kilianp07/microgrid-dispatch/api/dispatch"
	"github.com/kilianp07/microgrid-dispatch/app/plugins"
	"github.com/kilianp07/microgrid-dispatch/config"
	"github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/events"
	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	coremetrics "github.com/kilianp07/microgrid-dispatch/core/metrics"
	coremon "github.com/kilianp07/microgrid-dispatch/core/monitoring"
	"github.com/kilianp07/microgrid-dispatch/core/scheduler"
	"github.com/kilianp07/microgrid-dispatch/infra/logger"
	"github.com/kilianp07/microgrid-dispatch/infra/metrics"
	"github.com/kilianp07/microgrid-dispatch/infra/monitoring"
	"github.com/kilianp07/microgrid-dispatch/infra/mqtt"
	"github.com/kilianp07/microgrid-dispatch/internal/eventbus"
)

// Service owns every long running component of the dispatch service.
type Service struct {
	cfg        *config.Config
	log        logger.Logger
	store      dispatch.Store
	Dispatches *dispatch.Service
	Scheduler  *scheduler.Scheduler
	Pipeline   *Pipeline
	bus        *eventbus.Bus[scheduler.DueEvent]
	events     <-chan scheduler.DueEvent
	lifecycle  *eventbus.Bus[events.DispatchEvent]
	changes    <-chan events.DispatchEvent
	notifier   *mqtt.Notifier
	firings    firelog.LogStore
	server     *http.Server
}

// New creates a Service from the configuration. Resources acquired before
// a failure are released.
func New(cfg *config.Config) (svc *Service, err error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.store, err = plugins.NewStore(cfg.Store.Backend, cfg.Store.Path); err != nil {
		return nil, fmt.Errorf("dispatch store: %w", err)
	}
	catalog, err := cfg.Catalog.Build()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	s.lifecycle = eventbus.New[events.DispatchEvent]()
	s.changes = s.lifecycle.Subscribe()
	opts := []dispatch.Option{dispatch.WithEvents(s.lifecycle)}
	if catalog != nil {
		opts = append(opts, dispatch.WithCatalog(catalog))
	}
	if s.Dispatches, err = dispatch.NewService(s.store, logger.New("dispatch"), opts...); err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if s.firings, err = firelog.New(cfg.FiringLog); err != nil {
		return nil, fmt.Errorf("firing log: %w", err)
	}

	var notifier Notifier
	if cfg.MQTT.Enabled() {
		if s.notifier, err = mqtt.NewNotifier(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = s.notifier
	} else {
		s.log.Warnf("mqtt broker not configured: due dispatches are only logged")
	}

	s.bus = eventbus.New[scheduler.DueEvent]()
	s.events = s.bus.Subscribe()
	if s.Scheduler, err = scheduler.New(cfg.Scheduler, s.store, s.bus, sink, logger.New("scheduler")); err != nil {
		return nil, err
	}
	s.Pipeline = NewPipeline(notifier, s.firings, sink, logger.New("pipeline"))

	s.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apidispatch.NewHandler(s.Dispatches, s.firings, cfg.Server.Token, logger.New("api")),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
	}
	return s, nil
}

// Run starts the scheduler, the due event pipeline and the HTTP servers,
// and blocks until ctx is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Scheduler.Run(ctx) })
	g.Go(func() error {
		s.Pipeline.Run(ctx, s.events)
		return nil
	})
	g.Go(func() error {
		var pub EventPublisher
		if s.notifier != nil {
			pub = s.notifier
		}
		forwardEvents(ctx, s.changes, pub, s.log)
		return nil
	})
	g.Go(func() error { return s.serveAPI(ctx) })
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr) })
	}
	s.log.Infof("dispatch service listening on %s", s.cfg.Server.Addr)
	return g.Wait()
}

func (s *Service) serveAPI(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()
	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.bus != nil {
		if dropped := s.bus.Dropped(); dropped > 0 {
			s.log.Warnf("%d due events were dropped by slow consumers", dropped)
		}
		s.bus.Close()
	}
	if s.lifecycle != nil {
		s.lifecycle.Close()
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.firings != nil {
		errs = append(errs, s.firings.Close())
	}
	if s.store != nil {
		errs = append(errs, plugins.CloseStore(s.store))
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
