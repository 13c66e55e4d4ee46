package model

import (
	"encoding/json"
	"time"
)

// DispatchUpdate carries the new values for an update request. Which of
// them are applied is decided by the accompanying field mask.
type DispatchUpdate struct {
	Type       Optional[string]
	StartTime  Optional[time.Time]
	Duration   Optional[uint32]
	Selector   ComponentSelector
	IsActive   Optional[bool]
	IsDryRun   Optional[bool]
	Payload    map[string]any
	Recurrence *RecurrenceUpdate
}

// RecurrenceUpdate carries new values for the recurrence rule parts.
// Nil slices and absent optionals mean "not provided".
type RecurrenceUpdate struct {
	Freq        Optional[Frequency]
	Interval    Optional[int]
	EndCriteria EndCriteria
	ByMinutes   []int
	ByHours     []int
	ByWeekdays  []Weekday
	ByMonthdays []int
	ByMonths    []int
}

type recurrenceUpdateJSON struct {
	Freq        Optional[Frequency] `json:"freq,omitzero"`
	Interval    Optional[int]       `json:"interval,omitzero"`
	EndCriteria *endCriteriaJSON    `json:"end_criteria,omitempty"`
	ByMinutes   []int               `json:"byminutes,omitempty"`
	ByHours     []int               `json:"byhours,omitempty"`
	ByWeekdays  []Weekday           `json:"byweekdays,omitempty"`
	ByMonthdays []int               `json:"bymonthdays,omitempty"`
	ByMonths    []int               `json:"bymonths,omitempty"`
}

type dispatchUpdateJSON struct {
	Type       Optional[string]      `json:"type,omitzero"`
	StartTime  Optional[time.Time]   `json:"start_time,omitzero"`
	Duration   Optional[uint32]      `json:"duration,omitzero"`
	Selector   *selectorJSON         `json:"selector,omitempty"`
	IsActive   Optional[bool]        `json:"is_active,omitzero"`
	IsDryRun   Optional[bool]        `json:"is_dry_run,omitzero"`
	Payload    map[string]any        `json:"payload,omitempty"`
	Recurrence *recurrenceUpdateJSON `json:"recurrence,omitempty"`
}

func (u DispatchUpdate) MarshalJSON() ([]byte, error) {
	j := dispatchUpdateJSON{
		Type:      u.Type,
		StartTime: u.StartTime,
		Duration:  u.Duration,
		Selector:  encodeSelector(u.Selector),
		IsActive:  u.IsActive,
		IsDryRun:  u.IsDryRun,
		Payload:   u.Payload,
	}
	if r := u.Recurrence; r != nil {
		j.Recurrence = &recurrenceUpdateJSON{
			Freq:        r.Freq,
			Interval:    r.Interval,
			EndCriteria: encodeEndCriteria(r.EndCriteria),
			ByMinutes:   r.ByMinutes,
			ByHours:     r.ByHours,
			ByWeekdays:  r.ByWeekdays,
			ByMonthdays: r.ByMonthdays,
			ByMonths:    r.ByMonths,
		}
	}
	return json.Marshal(j)
}

func (u *DispatchUpdate) UnmarshalJSON(b []byte) error {
	var j dispatchUpdateJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	sel, err := decodeSelector(j.Selector)
	if err != nil {
		return err
	}
	out := DispatchUpdate{
		Type:      j.Type,
		StartTime: j.StartTime,
		Duration:  j.Duration,
		Selector:  sel,
		IsActive:  j.IsActive,
		IsDryRun:  j.IsDryRun,
		Payload:   j.Payload,
	}
	if st, ok := out.StartTime.Get(); ok {
		out.StartTime = Some(st.UTC())
	}
	if r := j.Recurrence; r != nil {
		ec, err := decodeEndCriteria(r.EndCriteria)
		if err != nil {
			return err
		}
		out.Recurrence = &RecurrenceUpdate{
			Freq:        r.Freq,
			Interval:    r.Interval,
			EndCriteria: ec,
			ByMinutes:   r.ByMinutes,
			ByHours:     r.ByHours,
			ByWeekdays:  r.ByWeekdays,
			ByMonthdays: r.ByMonthdays,
			ByMonths:    r.ByMonths,
		}
	}
	*u = out
	return nil
}
