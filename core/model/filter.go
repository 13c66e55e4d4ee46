package model

import "time"

// TimeIntervalFilter restricts dispatches by start time and by the until
// bound of their recurrence. Each bound is optional; ranges are half-open.
type TimeIntervalFilter struct {
	StartFrom Optional[time.Time]
	StartTo   Optional[time.Time]
	EndFrom   Optional[time.Time]
	EndTo     Optional[time.Time]
}

// DispatchFilter is a conjunction of optional predicates used when listing.
type DispatchFilter struct {
	Selectors    []ComponentSelector
	TimeInterval *TimeIntervalFilter
	IsActive     Optional[bool]
	IsDryRun     Optional[bool]
}
