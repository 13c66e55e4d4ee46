package dispatch

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// parseFilter reads list filters from the query string:
//
//	component_ids=1,2        one id selector per parameter
//	component_category=BATTERY
//	start_from, start_to, end_from, end_to   RFC 3339
//	is_active, is_dry_run    booleans
func parseFilter(q url.Values) (model.DispatchFilter, error) {
	var f model.DispatchFilter
	for _, raw := range q["component_ids"] {
		ids, err := parseIDs(raw)
		if err != nil {
			return f, fmt.Errorf("component_ids: %w", err)
		}
		f.Selectors = append(f.Selectors, ids)
	}
	for _, raw := range q["component_category"] {
		cat, err := model.ParseComponentCategory(raw)
		if err != nil {
			return f, err
		}
		f.Selectors = append(f.Selectors, cat)
	}

	var ti model.TimeIntervalFilter
	bounds := []struct {
		name string
		dst  *model.Optional[time.Time]
	}{
		{"start_from", &ti.StartFrom},
		{"start_to", &ti.StartTo},
		{"end_from", &ti.EndFrom},
		{"end_to", &ti.EndTo},
	}
	for _, b := range bounds {
		s := q.Get(b.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = model.Some(t.UTC())
	}
	if ti != (model.TimeIntervalFilter{}) {
		f.TimeInterval = &ti
	}

	var err error
	if f.IsActive, err = parseBool(q, "is_active"); err != nil {
		return f, err
	}
	if f.IsDryRun, err = parseBool(q, "is_dry_run"); err != nil {
		return f, err
	}
	return f, nil
}

func parseIDs(raw string) (model.ComponentIDs, error) {
	parts := strings.Split(raw, ",")
	ids := make(model.ComponentIDs, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBool(q url.Values, name string) (model.Optional[bool], error) {
	s := q.Get(name)
	if s == "" {
		return model.None[bool](), nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return model.None[bool](), fmt.Errorf("%s: %w", name, err)
	}
	return model.Some(v), nil
}
