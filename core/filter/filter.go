// Package filter evaluates list-query filters against dispatch metadata.
package filter

import (
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// Matches reports whether d satisfies every predicate set in f. Unset
// predicates impose no constraint.
func Matches(d model.Dispatch, f model.DispatchFilter) bool {
	if len(f.Selectors) > 0 && !selectorsOverlap(d.Selector, f.Selectors) {
		return false
	}
	if ti := f.TimeInterval; ti != nil {
		if !within(d.StartTime, ti.StartFrom, ti.StartTo) {
			return false
		}
		if until, ok := d.Recurrence.Until(); ok && !within(until, ti.EndFrom, ti.EndTo) {
			return false
		}
	}
	if v, ok := f.IsActive.Get(); ok && d.IsActive != v {
		return false
	}
	if v, ok := f.IsDryRun.Get(); ok && d.IsDryRun != v {
		return false
	}
	return true
}

// Apply returns the details whose dispatch matches f, preserving order.
func Apply(details []model.DispatchDetail, f model.DispatchFilter) []model.DispatchDetail {
	out := make([]model.DispatchDetail, 0, len(details))
	for _, dd := range details {
		if Matches(dd.Dispatch, f) {
			out = append(out, dd)
		}
	}
	return out
}

// within reports whether t lies in the half-open range [from, to).
func within(t time.Time, from, to model.Optional[time.Time]) bool {
	if v, ok := from.Get(); ok && t.Before(v) {
		return false
	}
	if v, ok := to.Get(); ok && !t.Before(v) {
		return false
	}
	return true
}

func selectorsOverlap(sel model.ComponentSelector, wanted []model.ComponentSelector) bool {
	for _, w := range wanted {
		if selectorMatches(sel, w) {
			return true
		}
	}
	return false
}

func selectorMatches(have, want model.ComponentSelector) bool {
	switch w := want.(type) {
	case model.ComponentIDs:
		h, ok := have.(model.ComponentIDs)
		if !ok {
			return false
		}
		for _, id := range w {
			if slices.Contains(h, id) {
				return true
			}
		}
		return false
	case model.ComponentCategory:
		h, ok := have.(model.ComponentCategory)
		return ok && h == w
	default:
		panic(fmt.Sprintf("filter: unknown selector variant %T", want))
	}
}
