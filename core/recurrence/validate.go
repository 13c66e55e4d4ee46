package recurrence

import (
	"fmt"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// ValidationError reports the first rule part that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recurrence %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural validity of rule and returns the first
// violation found. A nil rule is valid and means "fire once".
func Validate(rule *model.RecurrenceRule) error {
	if rule == nil {
		return nil
	}
	if rule.Interval < 1 {
		return invalid("interval", "must be >= 1, got %d", rule.Interval)
	}
	if !rule.Freq.Valid() {
		return invalid("freq", "unsupported frequency %s", rule.Freq)
	}
	if len(rule.ByMonthdays) > 0 && rule.Freq == model.FrequencyWeekly {
		return invalid("bymonthdays", "not allowed with WEEKLY frequency")
	}
	for _, d := range rule.ByMonthdays {
		if d == 0 || d < -31 || d > 31 {
			return invalid("bymonthdays", "%d outside [-31,-1] or [1,31]", d)
		}
	}
	for _, h := range rule.ByHours {
		if h < 0 || h > 23 {
			return invalid("byhours", "%d outside [0,23]", h)
		}
	}
	for _, m := range rule.ByMinutes {
		if m < 0 || m > 59 {
			return invalid("byminutes", "%d outside [0,59]", m)
		}
	}
	for _, m := range rule.ByMonths {
		if m < 1 || m > 12 {
			return invalid("bymonths", "%d outside [1,12]", m)
		}
	}
	for _, w := range rule.ByWeekdays {
		if !w.Valid() {
			return invalid("byweekdays", "unsupported weekday %s", w)
		}
	}
	switch ec := rule.EndCriteria.(type) {
	case nil:
	case model.EndCount:
		if ec.Count < 1 {
			return invalid("end_criteria.count", "must be >= 1, got %d", ec.Count)
		}
	case model.EndUntil:
		if ec.Until.IsZero() {
			return invalid("end_criteria.until", "must be a valid instant")
		}
	default:
		return invalid("end_criteria", "unknown variant %T", ec)
	}
	return nil
}
