package model

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// RecurrenceRule describes a repeating schedule anchored at a dispatch's
// start time. Empty by-rule slices impose no filter.
type RecurrenceRule struct {
	Freq        Frequency
	Interval    int
	EndCriteria EndCriteria
	ByMinutes   []int
	ByHours     []int
	ByWeekdays  []Weekday
	ByMonthdays []int
	ByMonths    []int
}

// EndCriteria bounds a recurring schedule. It is either EndCount or
// EndUntil; a nil EndCriteria leaves the schedule unbounded.
type EndCriteria interface {
	isEndCriteria()
}

// EndCount stops the schedule after Count occurrences.
type EndCount struct {
	Count int
}

// EndUntil stops the schedule before Until (exclusive).
type EndUntil struct {
	Until time.Time
}

func (EndCount) isEndCriteria() {}
func (EndUntil) isEndCriteria() {}

// Until returns the until bound of the rule, if it has one.
func (r *RecurrenceRule) Until() (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	if u, ok := r.EndCriteria.(EndUntil); ok {
		return u.Until, true
	}
	return time.Time{}, false
}

// Clone returns a deep copy of r.
func (r *RecurrenceRule) Clone() *RecurrenceRule {
	if r == nil {
		return nil
	}
	c := *r
	c.ByMinutes = slices.Clone(r.ByMinutes)
	c.ByHours = slices.Clone(r.ByHours)
	c.ByWeekdays = slices.Clone(r.ByWeekdays)
	c.ByMonthdays = slices.Clone(r.ByMonthdays)
	c.ByMonths = slices.Clone(r.ByMonths)
	return &c
}

// Normalized returns a copy whose by-rule sets are sorted and free of
// duplicates. Input order never affects generated occurrences.
func (r *RecurrenceRule) Normalized() *RecurrenceRule {
	c := r.Clone()
	if c == nil {
		return nil
	}
	c.ByMinutes = sortedSet(c.ByMinutes)
	c.ByHours = sortedSet(c.ByHours)
	c.ByWeekdays = sortedSet(c.ByWeekdays)
	c.ByMonthdays = sortedSet(c.ByMonthdays)
	c.ByMonths = sortedSet(c.ByMonths)
	return c
}

func sortedSet[T int | Weekday](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	slices.Sort(in)
	return slices.Compact(in)
}

type endCriteriaJSON struct {
	Count *int       `json:"count,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

type recurrenceJSON struct {
	Freq        Frequency        `json:"freq"`
	Interval    *int             `json:"interval,omitempty"`
	EndCriteria *endCriteriaJSON `json:"end_criteria,omitempty"`
	ByMinutes   []int            `json:"byminutes,omitempty"`
	ByHours     []int            `json:"byhours,omitempty"`
	ByWeekdays  []Weekday        `json:"byweekdays,omitempty"`
	ByMonthdays []int            `json:"bymonthdays,omitempty"`
	ByMonths    []int            `json:"bymonths,omitempty"`
}

func encodeEndCriteria(ec EndCriteria) *endCriteriaJSON {
	switch v := ec.(type) {
	case nil:
		return nil
	case EndCount:
		n := v.Count
		return &endCriteriaJSON{Count: &n}
	case EndUntil:
		t := v.Until.UTC()
		return &endCriteriaJSON{Until: &t}
	default:
		panic("model: unknown end criteria variant")
	}
}

var errEndCriteriaVariant = errors.New("end_criteria must set exactly one of count or until")

func decodeEndCriteria(j *endCriteriaJSON) (EndCriteria, error) {
	if j == nil {
		return nil, nil
	}
	switch {
	case j.Count != nil && j.Until != nil, j.Count == nil && j.Until == nil:
		return nil, errEndCriteriaVariant
	case j.Count != nil:
		return EndCount{Count: *j.Count}, nil
	default:
		return EndUntil{Until: j.Until.UTC()}, nil
	}
}

func (r RecurrenceRule) MarshalJSON() ([]byte, error) {
	interval := r.Interval
	return json.Marshal(recurrenceJSON{
		Freq:        r.Freq,
		Interval:    &interval,
		EndCriteria: encodeEndCriteria(r.EndCriteria),
		ByMinutes:   r.ByMinutes,
		ByHours:     r.ByHours,
		ByWeekdays:  r.ByWeekdays,
		ByMonthdays: r.ByMonthdays,
		ByMonths:    r.ByMonths,
	})
}

// UnmarshalJSON decodes a rule; a missing interval defaults to 1.
func (r *RecurrenceRule) UnmarshalJSON(b []byte) error {
	var j recurrenceJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	ec, err := decodeEndCriteria(j.EndCriteria)
	if err != nil {
		return err
	}
	interval := 1
	if j.Interval != nil {
		interval = *j.Interval
	}
	*r = RecurrenceRule{
		Freq:        j.Freq,
		Interval:    interval,
		EndCriteria: ec,
		ByMinutes:   j.ByMinutes,
		ByHours:     j.ByHours,
		ByWeekdays:  j.ByWeekdays,
		ByMonthdays: j.ByMonthdays,
		ByMonths:    j.ByMonths,
	}
	return nil
}
