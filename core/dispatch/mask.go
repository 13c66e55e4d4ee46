package dispatch

import (
	"slices"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// Update mask paths.
const (
	PathType                  = "type"
	PathStartTime             = "start_time"
	PathDuration              = "duration"
	PathSelector              = "selector"
	PathIsActive              = "is_active"
	PathIsDryRun              = "is_dry_run"
	PathPayload               = "payload"
	PathRecurrence            = "recurrence"
	PathRecurrenceFreq        = "recurrence.freq"
	PathRecurrenceInterval    = "recurrence.interval"
	PathRecurrenceEndCriteria = "recurrence.end_criteria"
	PathRecurrenceByMinutes   = "recurrence.byminutes"
	PathRecurrenceByHours     = "recurrence.byhours"
	PathRecurrenceByWeekdays  = "recurrence.byweekdays"
	PathRecurrenceByMonthdays = "recurrence.bymonthdays"
	PathRecurrenceByMonths    = "recurrence.bymonths"
)

var knownPaths = []string{
	PathType, PathStartTime, PathDuration, PathSelector, PathIsActive,
	PathIsDryRun, PathPayload, PathRecurrence, PathRecurrenceFreq,
	PathRecurrenceInterval, PathRecurrenceEndCriteria, PathRecurrenceByMinutes,
	PathRecurrenceByHours, PathRecurrenceByWeekdays, PathRecurrenceByMonthdays,
	PathRecurrenceByMonths,
}

// presentPaths lists the mask paths of every field carried by u.
func presentPaths(u model.DispatchUpdate) []string {
	var paths []string
	add := func(ok bool, p string) {
		if ok {
			paths = append(paths, p)
		}
	}
	add(u.Type.IsSet(), PathType)
	add(u.StartTime.IsSet(), PathStartTime)
	add(u.Duration.IsSet(), PathDuration)
	add(u.Selector != nil, PathSelector)
	add(u.IsActive.IsSet(), PathIsActive)
	add(u.IsDryRun.IsSet(), PathIsDryRun)
	add(u.Payload != nil, PathPayload)
	if r := u.Recurrence; r != nil {
		add(r.Freq.IsSet(), PathRecurrenceFreq)
		add(r.Interval.IsSet(), PathRecurrenceInterval)
		add(r.EndCriteria != nil, PathRecurrenceEndCriteria)
		add(r.ByMinutes != nil, PathRecurrenceByMinutes)
		add(r.ByHours != nil, PathRecurrenceByHours)
		add(r.ByWeekdays != nil, PathRecurrenceByWeekdays)
		add(r.ByMonthdays != nil, PathRecurrenceByMonthdays)
		add(r.ByMonths != nil, PathRecurrenceByMonths)
	}
	return paths
}

// applyMask writes the masked fields of u onto a copy of d. A masked field
// that u leaves unset is reset to its default. It reports whether the start
// time was touched.
func applyMask(d model.Dispatch, u model.DispatchUpdate, mask []string) (model.Dispatch, bool, error) {
	if len(mask) == 0 {
		mask = presentPaths(u)
	}
	for _, p := range mask {
		if !slices.Contains(knownPaths, p) {
			return model.Dispatch{}, false, invalid("update_mask", "unknown path %q", p)
		}
	}
	out := d.Clone()
	ru := u.Recurrence
	if ru == nil {
		ru = &model.RecurrenceUpdate{}
	}
	rule := func() *model.RecurrenceRule {
		if out.Recurrence == nil {
			out.Recurrence = &model.RecurrenceRule{Interval: 1}
		}
		return out.Recurrence
	}
	touchedStart := false
	for _, p := range mask {
		switch p {
		case PathType:
			out.Type = u.Type.OrElse("")
		case PathStartTime:
			out.StartTime = u.StartTime.OrElse(time.Time{}).UTC()
			touchedStart = true
		case PathDuration:
			out.Duration = u.Duration
		case PathSelector:
			out.Selector = model.CloneSelector(u.Selector)
		case PathIsActive:
			out.IsActive = u.IsActive.OrElse(false)
		case PathIsDryRun:
			out.IsDryRun = u.IsDryRun.OrElse(false)
		case PathPayload:
			out.Payload = model.ClonePayload(u.Payload)
		case PathRecurrence:
			out.Recurrence = nil
			if u.Recurrence != nil {
				out.Recurrence = ruleFromUpdate(u.Recurrence)
			}
		case PathRecurrenceFreq:
			rule().Freq = ru.Freq.OrElse(model.FrequencyUnspecified)
		case PathRecurrenceInterval:
			rule().Interval = ru.Interval.OrElse(1)
		case PathRecurrenceEndCriteria:
			rule().EndCriteria = ru.EndCriteria
		case PathRecurrenceByMinutes:
			rule().ByMinutes = slices.Clone(ru.ByMinutes)
		case PathRecurrenceByHours:
			rule().ByHours = slices.Clone(ru.ByHours)
		case PathRecurrenceByWeekdays:
			rule().ByWeekdays = slices.Clone(ru.ByWeekdays)
		case PathRecurrenceByMonthdays:
			rule().ByMonthdays = slices.Clone(ru.ByMonthdays)
		case PathRecurrenceByMonths:
			rule().ByMonths = slices.Clone(ru.ByMonths)
		}
	}
	return out, touchedStart, nil
}

func ruleFromUpdate(u *model.RecurrenceUpdate) *model.RecurrenceRule {
	return &model.RecurrenceRule{
		Freq:        u.Freq.OrElse(model.FrequencyUnspecified),
		Interval:    u.Interval.OrElse(1),
		EndCriteria: u.EndCriteria,
		ByMinutes:   slices.Clone(u.ByMinutes),
		ByHours:     slices.Clone(u.ByHours),
		ByWeekdays:  slices.Clone(u.ByWeekdays),
		ByMonthdays: slices.Clone(u.ByMonthdays),
		ByMonths:    slices.Clone(u.ByMonths),
	}
}
