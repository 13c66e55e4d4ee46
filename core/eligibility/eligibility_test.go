package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

func at(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }

func daily(count int) model.Dispatch {
	rule := &model.RecurrenceRule{Freq: model.FrequencyDaily, Interval: 1}
	if count > 0 {
		rule.EndCriteria = model.EndCount{Count: count}
	}
	return model.Dispatch{Type: "t", StartTime: at(1, 6), IsActive: true, Recurrence: rule}
}

func TestEvaluateDueNow(t *testing.T) {
	var e Evaluator
	v := e.Evaluate(daily(0), at(2, 6))
	assert.Equal(t, StatusDueNow, v.Status)
	next, ok := v.Next.Get()
	assert.True(t, ok)
	assert.Equal(t, at(2, 6), next)
}

func TestEvaluateNotDueReportsNext(t *testing.T) {
	var e Evaluator
	assert.Equal(t, StatusNotDue, e.IsDue(daily(0), at(2, 7)))
	next, ok := e.NextOccurrence(daily(0), at(2, 7)).Get()
	assert.True(t, ok)
	assert.Equal(t, at(3, 6), next)

	// Before start the first occurrence is next.
	next, _ = e.NextOccurrence(daily(0), at(1, 0)).Get()
	assert.Equal(t, at(1, 6), next)
}

func TestEvaluateFinishedAfterCount(t *testing.T) {
	var e Evaluator
	d := daily(3)
	assert.Equal(t, StatusDueNow, e.IsDue(d, at(3, 6)))
	assert.Equal(t, StatusFinished, e.IsDue(d, at(3, 7)))
	assert.False(t, e.NextOccurrence(d, at(3, 7)).IsSet())
	assert.Equal(t, StatusFinished, e.IsDue(d, at(20, 0)))
}

func TestEvaluateOneShot(t *testing.T) {
	var e Evaluator
	d := model.Dispatch{StartTime: at(5, 12), IsActive: true}
	assert.Equal(t, StatusNotDue, e.IsDue(d, at(5, 11)))
	assert.Equal(t, StatusDueNow, e.IsDue(d, at(5, 12)))
	assert.Equal(t, StatusFinished, e.IsDue(d, at(5, 13)))
}

func TestEvaluateInactiveNeverDue(t *testing.T) {
	var e Evaluator
	d := daily(0)
	d.IsActive = false
	for h := 0; h < 48; h++ {
		now := at(1, 0).Add(time.Duration(h) * time.Hour)
		assert.Equal(t, StatusNotDue, e.IsDue(d, now))
	}
	d = daily(1)
	d.IsActive = false
	assert.Equal(t, StatusNotDue, e.IsDue(d, at(10, 0)))
}

func TestEvaluateDryRunIsOrthogonal(t *testing.T) {
	var e Evaluator
	d := daily(0)
	d.IsDryRun = true
	assert.Equal(t, StatusDueNow, e.IsDue(d, at(4, 6)))
}

func TestEvaluateUnreachableSubDailyNeverDue(t *testing.T) {
	var e Evaluator
	d := model.Dispatch{
		StartTime: at(1, 0),
		IsActive:  true,
		Recurrence: &model.RecurrenceRule{
			Freq: model.FrequencyHourly, Interval: 24, ByHours: []int{5},
		},
	}
	for _, now := range []time.Time{at(1, 5), at(3, 5), time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)} {
		v := e.Evaluate(d, now)
		assert.Equal(t, StatusFinished, v.Status, now)
		assert.False(t, v.Next.IsSet(), now)
	}

	d.Recurrence = &model.RecurrenceRule{Freq: model.FrequencyMinutely, Interval: 2, ByMinutes: []int{1}}
	assert.Equal(t, StatusFinished, e.IsDue(d, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)))
	assert.False(t, e.NextOccurrence(d, at(1, 0)).IsSet())
}

func TestEvaluateHorizon(t *testing.T) {
	e := Evaluator{Horizon: 12 * time.Hour}
	d := model.Dispatch{StartTime: at(10, 0), IsActive: true}
	v := e.Evaluate(d, at(1, 0))
	assert.Equal(t, StatusNotDue, v.Status)
	assert.False(t, v.Next.IsSet())
	v = e.Evaluate(d, at(9, 13))
	assert.True(t, v.Next.IsSet())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "due_now", StatusDueNow.String())
	assert.Equal(t, "finished", StatusFinished.String())
	assert.Equal(t, "not_due", StatusNotDue.String())
}
