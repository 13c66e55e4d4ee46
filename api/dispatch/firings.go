package dispatch

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/pkg/export"
)

// listFirings serves GET /api/firings?start=&end=&microgrid_id=&dispatch_id=&type=&limit=&format=.
// format is json (default) or csv.
func (h *handler) listFirings(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := firelog.LogQuery{Type: v.Get("type")}
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if s := v.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + ": " + err.Error()})
				return
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*uint64{"microgrid_id": &q.MicrogridID, "dispatch_id": &q.DispatchID} {
		if s := v.Get(name); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + ": " + err.Error()})
				return
			}
			*dst = id
		}
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		q.Limit = n
	}
	format := v.Get("format")
	if format != "" && format != "json" && format != "csv" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "format must be json or csv"})
		return
	}
	records, err := h.firings.Query(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="firings.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := export.WriteCSV(w, records); err != nil {
			h.log.Errorf("write firings csv: %v", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := export.WriteJSON(w, records); err != nil {
		h.log.Errorf("write firings: %v", err)
	}
}
