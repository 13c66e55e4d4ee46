package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// MutateFunc derives the new dispatch from the stored one. Returning an
// error aborts the update and leaves the record untouched.
type MutateFunc func(current model.Dispatch) (model.Dispatch, error)

// Store persists dispatches. Implementations own write concurrency control
// and must assign ids that are never reused, even after deletion.
type Store interface {
	Create(ctx context.Context, microgridID uint64, d model.Dispatch, now time.Time) (model.DispatchDetail, error)
	Get(ctx context.Context, microgridID, dispatchID uint64) (model.DispatchDetail, error)
	// Update applies fn atomically. modification_time never moves backwards.
	Update(ctx context.Context, microgridID, dispatchID uint64, fn MutateFunc, now time.Time) (model.DispatchDetail, error)
	Delete(ctx context.Context, microgridID, dispatchID uint64) error
	// List returns the dispatches of one microgrid ordered by id.
	List(ctx context.Context, microgridID uint64) ([]model.DispatchDetail, error)
	// ListAll returns every dispatch ordered by microgrid then id.
	ListAll(ctx context.Context) ([]model.DispatchDetail, error)
}

type recordKey struct {
	microgrid uint64
	dispatch  uint64
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID uint64
	data   map[recordKey]model.DispatchDetail
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[recordKey]model.DispatchDetail{}}
}

func (s *MemoryStore) Create(_ context.Context, microgridID uint64, d model.Dispatch, now time.Time) (model.DispatchDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	dd := model.DispatchDetail{
		ID:               s.nextID,
		MicrogridID:      microgridID,
		Dispatch:         d.Clone(),
		CreateTime:       now.UTC(),
		ModificationTime: now.UTC(),
	}
	s.data[recordKey{microgridID, dd.ID}] = dd
	return cloneDetail(dd), nil
}

func (s *MemoryStore) Get(_ context.Context, microgridID, dispatchID uint64) (model.DispatchDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dd, ok := s.data[recordKey{microgridID, dispatchID}]
	if !ok {
		return model.DispatchDetail{}, ErrNotFound
	}
	return cloneDetail(dd), nil
}

func (s *MemoryStore) Update(_ context.Context, microgridID, dispatchID uint64, fn MutateFunc, now time.Time) (model.DispatchDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{microgridID, dispatchID}
	dd, ok := s.data[key]
	if !ok {
		return model.DispatchDetail{}, ErrNotFound
	}
	next, err := fn(dd.Dispatch.Clone())
	if err != nil {
		return model.DispatchDetail{}, err
	}
	dd.Dispatch = next.Clone()
	if now = now.UTC(); now.After(dd.ModificationTime) {
		dd.ModificationTime = now
	}
	s.data[key] = dd
	return cloneDetail(dd), nil
}

func (s *MemoryStore) Delete(_ context.Context, microgridID, dispatchID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{microgridID, dispatchID}
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, microgridID uint64) ([]model.DispatchDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.DispatchDetail, 0)
	for k, dd := range s.data {
		if k.microgrid == microgridID {
			res = append(res, cloneDetail(dd))
		}
	}
	sortDetails(res)
	return res, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]model.DispatchDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.DispatchDetail, 0, len(s.data))
	for _, dd := range s.data {
		res = append(res, cloneDetail(dd))
	}
	sortDetails(res)
	return res, nil
}

func cloneDetail(dd model.DispatchDetail) model.DispatchDetail {
	dd.Dispatch = dd.Dispatch.Clone()
	return dd
}

func sortDetails(res []model.DispatchDetail) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].MicrogridID != res[j].MicrogridID {
			return res[i].MicrogridID < res[j].MicrogridID
		}
		return res[i].ID < res[j].ID
	})
}
