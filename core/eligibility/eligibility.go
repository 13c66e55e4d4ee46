// Package eligibility decides whether a dispatch is due at a given
// evaluation tick.
package eligibility

import (
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/core/recurrence"
)

// Status is the eligibility of a dispatch at an instant.
type Status int

const (
	StatusNotDue Status = iota
	StatusDueNow
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusNotDue:
		return "not_due"
	case StatusDueNow:
		return "due_now"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Verdict combines the status with the next pending occurrence.
type Verdict struct {
	Status Status
	// Next is the smallest occurrence >= now, when one exists within the
	// evaluator horizon.
	Next model.Optional[time.Time]
}

// Evaluator evaluates dispatch schedules. The zero value is ready to use.
type Evaluator struct {
	// Horizon limits how far past now NextOccurrence looks. Zero means no
	// limit beyond the generator's own exhaustion guard.
	Horizon time.Duration
}

// Evaluate computes status and next occurrence in a single pass. Inactive
// dispatches are never due. Dry-run has no effect on eligibility.
//
// A due_now verdict requires an occurrence exactly equal to now, so now
// should be the scheduler's discrete tick instant.
func (e Evaluator) Evaluate(d model.Dispatch, now time.Time) Verdict {
	now = now.UTC()
	if !d.IsActive {
		return Verdict{Status: StatusNotDue}
	}
	it := recurrence.Seek(recurrence.Expand(d.StartTime, d.Recurrence), now)
	next, ok := it.Next()
	if !ok {
		return Verdict{Status: StatusFinished}
	}
	v := Verdict{Status: StatusNotDue}
	if next.Equal(now) {
		v.Status = StatusDueNow
	}
	if e.Horizon <= 0 || !next.After(now.Add(e.Horizon)) {
		v.Next = model.Some(next)
	}
	return v
}

// IsDue reports the eligibility status of d at now.
func (e Evaluator) IsDue(d model.Dispatch, now time.Time) Status {
	return e.Evaluate(d, now).Status
}

// NextOccurrence returns the smallest occurrence of d at or after now.
func (e Evaluator) NextOccurrence(d model.Dispatch, now time.Time) model.Optional[time.Time] {
	return e.Evaluate(d, now).Next
}
