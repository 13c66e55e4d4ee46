package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/events"
	"github.com/kilianp07/microgrid-dispatch/core/filter"
	"github.com/kilianp07/microgrid-dispatch/core/logger"
	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/recurrence"
)

// Service implements the dispatch CRUD operations on top of a Store.
type Service struct {
	store   Store
	catalog ComponentCatalog
	events  events.Publisher
	log     logger.Logger
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the clock used for timestamps and start time checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCatalog enables microgrid lookups and selector category checks.
func WithCatalog(c ComponentCatalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithEvents publishes a lifecycle event after every successful write.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService returns a Service persisting to store.
func NewService(store Store, log logger.Logger, opts ...Option) (*Service, error) {
	if store == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewService")
	}
	s := &Service{store: store, events: events.NopPublisher{}, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) checkMicrogrid(microgridID uint64) error {
	if s.catalog != nil && !s.catalog.HasMicrogrid(microgridID) {
		return &NotFoundError{MicrogridID: microgridID}
	}
	return nil
}

// List returns the dispatches of a microgrid matching f, ordered by id.
func (s *Service) List(ctx context.Context, microgridID uint64, f model.DispatchFilter) ([]model.DispatchDetail, error) {
	if err := s.checkMicrogrid(microgridID); err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx, microgridID)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	return filter.Apply(all, f), nil
}

// Create validates and stores d. The start time must not lie in the past.
func (s *Service) Create(ctx context.Context, microgridID uint64, d model.Dispatch) (model.DispatchDetail, error) {
	dd, err := s.create(ctx, microgridID, d)
	observeWrite("create", err)
	return dd, err
}

func (s *Service) create(ctx context.Context, microgridID uint64, d model.Dispatch) (model.DispatchDetail, error) {
	if err := s.checkMicrogrid(microgridID); err != nil {
		return model.DispatchDetail{}, err
	}
	now := s.clock()
	d = d.Clone()
	d.StartTime = d.StartTime.UTC()
	if err := validateDispatch(d, microgridID, s.catalog, now, true); err != nil {
		s.log.Warnf("rejected dispatch for microgrid %d: %v", microgridID, err)
		return model.DispatchDetail{}, err
	}
	d.Recurrence = d.Recurrence.Normalized()
	dd, err := s.store.Create(ctx, microgridID, d, now)
	if err != nil {
		return model.DispatchDetail{}, fmt.Errorf("create dispatch: %w", err)
	}
	s.log.Infof("created dispatch %d (%s) in microgrid %d", dd.ID, dd.Dispatch.Type, microgridID)
	if st := dd.Dispatch.StartTime; st.Second() != 0 || st.Nanosecond() != 0 {
		// Default ticks fall on whole minutes and never match such occurrences.
		s.log.Warnf("dispatch %d in microgrid %d starts off the minute grid at %s: it is never due with minute ticks",
			dd.ID, microgridID, st.Format(time.RFC3339Nano))
	}
	s.publish(events.KindCreated, microgridID, dd.ID, dd, now)
	return dd, nil
}

// Get returns a single dispatch.
func (s *Service) Get(ctx context.Context, microgridID, dispatchID uint64) (model.DispatchDetail, error) {
	if err := s.checkMicrogrid(microgridID); err != nil {
		return model.DispatchDetail{}, err
	}
	dd, err := s.store.Get(ctx, microgridID, dispatchID)
	if err != nil {
		return model.DispatchDetail{}, s.storeErr("get", microgridID, dispatchID, err)
	}
	return dd, nil
}

// Update applies the masked fields of u. An empty mask applies every field
// present in u. The stored dispatch is left unchanged on any error.
func (s *Service) Update(ctx context.Context, microgridID, dispatchID uint64, mask []string, u model.DispatchUpdate) (model.DispatchDetail, error) {
	dd, err := s.update(ctx, microgridID, dispatchID, mask, u)
	observeWrite("update", err)
	return dd, err
}

func (s *Service) update(ctx context.Context, microgridID, dispatchID uint64, mask []string, u model.DispatchUpdate) (model.DispatchDetail, error) {
	if err := s.checkMicrogrid(microgridID); err != nil {
		return model.DispatchDetail{}, err
	}
	now := s.clock()
	dd, err := s.store.Update(ctx, microgridID, dispatchID, func(cur model.Dispatch) (model.Dispatch, error) {
		next, touchedStart, err := applyMask(cur, u, mask)
		if err != nil {
			return model.Dispatch{}, err
		}
		if err := validateDispatch(next, microgridID, s.catalog, now, touchedStart); err != nil {
			return model.Dispatch{}, err
		}
		next.Recurrence = next.Recurrence.Normalized()
		return next, nil
	}, now)
	if err != nil {
		if IsValidation(err) {
			s.log.Warnf("rejected update of dispatch %d: %v", dispatchID, err)
			return model.DispatchDetail{}, err
		}
		return model.DispatchDetail{}, s.storeErr("update", microgridID, dispatchID, err)
	}
	s.log.Infof("updated dispatch %d in microgrid %d", dispatchID, microgridID)
	s.publish(events.KindUpdated, microgridID, dispatchID, dd, now)
	return dd, nil
}

// Delete removes a dispatch. Its id is never handed out again.
func (s *Service) Delete(ctx context.Context, microgridID, dispatchID uint64) error {
	err := s.remove(ctx, microgridID, dispatchID)
	observeWrite("delete", err)
	return err
}

func (s *Service) remove(ctx context.Context, microgridID, dispatchID uint64) error {
	if err := s.checkMicrogrid(microgridID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, microgridID, dispatchID); err != nil {
		return s.storeErr("delete", microgridID, dispatchID, err)
	}
	s.log.Infof("deleted dispatch %d in microgrid %d", dispatchID, microgridID)
	s.publish(events.KindDeleted, microgridID, dispatchID, model.DispatchDetail{}, s.clock())
	return nil
}

// Occurrences returns up to limit occurrences of a dispatch at or after from.
func (s *Service) Occurrences(ctx context.Context, microgridID, dispatchID uint64, from time.Time, limit int) ([]time.Time, error) {
	dd, err := s.Get(ctx, microgridID, dispatchID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []time.Time{}, nil
	}
	seq := recurrence.Expand(dd.Dispatch.StartTime, dd.Dispatch.Recurrence)
	out := recurrence.TakeFrom(seq, from.UTC(), limit)
	if out == nil {
		out = []time.Time{}
	}
	return out, nil
}

func (s *Service) publish(k events.Kind, microgridID, dispatchID uint64, dd model.DispatchDetail, at time.Time) {
	lastWriteTS.Set(float64(at.Unix()))
	s.events.Publish(events.DispatchEvent{
		Kind:        k,
		MicrogridID: microgridID,
		DispatchID:  dispatchID,
		Time:        at,
		Detail:      dd,
	})
}

func (s *Service) storeErr(op string, microgridID, dispatchID uint64, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{MicrogridID: microgridID, DispatchID: dispatchID}
	}
	return fmt.Errorf("%s dispatch %d: %w", op, dispatchID, err)
}
