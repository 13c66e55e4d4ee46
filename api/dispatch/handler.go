// Package dispatch exposes the dispatch service and the firing log over
// HTTP.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	coredispatch "github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/core/logger"
	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/monitoring"
)

const (
	maxBodyBytes       = 1 << 20
	defaultOccurrences = 10
	maxOccurrences     = 1000
)

// Service is the dispatch API backing the handlers. *dispatch.Service
// satisfies it.
type Service interface {
	List(ctx context.Context, microgridID uint64, f model.DispatchFilter) ([]model.DispatchDetail, error)
	Create(ctx context.Context, microgridID uint64, d model.Dispatch) (model.DispatchDetail, error)
	Get(ctx context.Context, microgridID, dispatchID uint64) (model.DispatchDetail, error)
	Update(ctx context.Context, microgridID, dispatchID uint64, mask []string, u model.DispatchUpdate) (model.DispatchDetail, error)
	Delete(ctx context.Context, microgridID, dispatchID uint64) error
	Occurrences(ctx context.Context, microgridID, dispatchID uint64, from time.Time, limit int) ([]time.Time, error)
}

// UpdateRequest is the PATCH body.
type UpdateRequest struct {
	UpdateMask []string             `json:"update_mask"`
	Update     model.DispatchUpdate `json:"update"`
}

// OccurrencesResponse lists upcoming occurrences of one dispatch.
type OccurrencesResponse struct {
	DispatchID  uint64      `json:"dispatch_id"`
	Occurrences []time.Time `json:"occurrences"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	svc     Service
	firings firelog.LogStore
	log     logger.Logger
	now     func() time.Time
}

// NewHandler routes the dispatch API. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty. A nil firings
// store serves an empty firing log.
func NewHandler(svc Service, firings firelog.LogStore, token string, log logger.Logger) http.Handler {
	if firings == nil {
		firings = firelog.NopStore{}
	}
	h := &handler{svc: svc, firings: firings, log: log, now: time.Now}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/microgrids/{mid}/dispatches", h.list)
	mux.HandleFunc("POST /api/microgrids/{mid}/dispatches", h.create)
	mux.HandleFunc("GET /api/microgrids/{mid}/dispatches/{id}", h.get)
	mux.HandleFunc("PATCH /api/microgrids/{mid}/dispatches/{id}", h.update)
	mux.HandleFunc("DELETE /api/microgrids/{mid}/dispatches/{id}", h.delete)
	mux.HandleFunc("GET /api/microgrids/{mid}/dispatches/{id}/occurrences", h.occurrences)
	mux.HandleFunc("GET /api/firings", h.listFirings)
	return requireToken(token, mux)
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	mid, ok := pathID(w, r, "mid")
	if !ok {
		return
	}
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.List(r.Context(), mid, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	mid, ok := pathID(w, r, "mid")
	if !ok {
		return
	}
	var d model.Dispatch
	if !decodeBody(w, r, &d) {
		return
	}
	dd, err := h.svc.Create(r.Context(), mid, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dd)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	mid, id, ok := pathIDs(w, r)
	if !ok {
		return
	}
	dd, err := h.svc.Get(r.Context(), mid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dd)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	mid, id, ok := pathIDs(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dd, err := h.svc.Update(r.Context(), mid, id, req.UpdateMask, req.Update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dd)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	mid, id, ok := pathIDs(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), mid, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) occurrences(w http.ResponseWriter, r *http.Request) {
	mid, id, ok := pathIDs(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from := h.now().UTC()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from: " + err.Error()})
			return
		}
		from = t
	}
	limit := defaultOccurrences
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > maxOccurrences {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("limit must be between 0 and %d", maxOccurrences)})
			return
		}
		limit = n
	}
	out, err := h.svc.Occurrences(r.Context(), mid, id, from, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OccurrencesResponse{DispatchID: id, Occurrences: out})
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case coredispatch.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case coredispatch.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		h.log.Warnf("%s %s cancelled", r.Method, r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"})
	default:
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		monitoring.CaptureException(err, map[string]string{"component": "api", "path": r.URL.Path})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid %s %q", name, r.PathValue(name))})
		return 0, false
	}
	return v, true
}

func pathIDs(w http.ResponseWriter, r *http.Request) (mid, id uint64, ok bool) {
	if mid, ok = pathID(w, r, "mid"); !ok {
		return 0, 0, false
	}
	id, ok = pathID(w, r, "id")
	return mid, id, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
