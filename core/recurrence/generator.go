package recurrence

import (
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// gregorianCycleYears is the period after which weekdays, month lengths and
// leap days repeat. A rule stepping by Interval units repeats its whole
// pattern within Interval cycles, so if that span passes without an
// occurrence the rule can never match again.
const gregorianCycleYears = 400

const maxYear = 9999

// Generate expands rule anchored at start into its unbounded occurrence
// sequence. End criteria are not applied; see Bound and Expand. A nil rule
// yields start alone.
//
// The rule must have passed Validate; an invalid rule here is a programming
// error and panics.
func Generate(start time.Time, rule *model.RecurrenceRule) Sequence {
	start = start.UTC()
	if rule == nil {
		return once{at: start}
	}
	if err := Validate(rule); err != nil {
		panic(fmt.Sprintf("recurrence: generate called with invalid rule: %v", err))
	}
	return &generator{start: start, rule: rule.Normalized()}
}

// Expand returns the occurrence sequence of start and rule bounded by the
// rule's end criteria.
func Expand(start time.Time, rule *model.RecurrenceRule) Sequence {
	seq := Generate(start, rule)
	if rule == nil {
		return seq
	}
	return Bound(seq, rule.EndCriteria)
}

type generator struct {
	start time.Time
	rule  *model.RecurrenceRule
}

func (g *generator) Iterator() Iterator { return g.iteratorFrom(time.Time{}) }

func (g *generator) iteratorFrom(t time.Time) Iterator {
	it := &windowIter{g: g, base: g.origin(), floor: g.start}
	if g.subDaily() && !g.reachable() {
		it.done = true
		return it
	}
	if t.After(g.start) {
		it.floor = t
		it.k = g.windowIndex(it.base, t)
	}
	it.giveUp = g.giveUpAfter(it.floor)
	return it
}

func (g *generator) subDaily() bool {
	return g.rule.Freq == model.FrequencyMinutely || g.rule.Freq == model.FrequencyHourly
}

// onePerWindow reports whether every window yields exactly one occurrence.
func (g *generator) onePerWindow() bool {
	r := g.rule
	switch r.Freq {
	case model.FrequencyMinutely, model.FrequencyHourly, model.FrequencyDaily, model.FrequencyWeekly:
	default:
		return false
	}
	return len(r.ByMonths) == 0 && len(r.ByMonthdays) == 0 && len(r.ByWeekdays) == 0 &&
		len(r.ByHours) == 0 && len(r.ByMinutes) == 0
}

// origin returns the cursor of window zero.
func (g *generator) origin() time.Time {
	s := g.start
	switch g.rule.Freq {
	case model.FrequencyMinutely, model.FrequencyHourly:
		return s
	case model.FrequencyDaily:
		return midnight(s)
	case model.FrequencyWeekly:
		offset := (int(s.Weekday()) + 6) % 7
		return midnight(s).AddDate(0, 0, -offset)
	case model.FrequencyMonthly:
		return time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, time.UTC)
	case model.FrequencyYearly:
		return time.Date(s.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		panic(fmt.Sprintf("recurrence: unsupported frequency %s", g.rule.Freq))
	}
}

// giveUpAfter returns the cursor beyond which a rule that produced nothing
// since last can be declared exhausted. A sub-daily cursor returns to the
// same time of day every lcm(step, 1 day), so its pattern repeats within
// that many gregorian cycles.
func (g *generator) giveUpAfter(last time.Time) time.Time {
	if g.subDaily() {
		step := g.stepMinutes()
		days := step / gcd(step, minutesPerDay)
		return last.AddDate(gregorianCycleYears*int(days), 0, 0)
	}
	return last.AddDate(gregorianCycleYears*g.rule.Interval, 0, 0)
}

const minutesPerDay = 24 * 60

// stepMinutes returns the length of one sub-daily cursor step.
func (g *generator) stepMinutes() int64 {
	unit := int64(1)
	if g.rule.Freq == model.FrequencyHourly {
		unit = 60
	}
	return int64(g.rule.Interval) * unit
}

// reachable reports whether a sub-daily cursor ever lands on a weekday,
// hour and minute the rule accepts. The cursor only visits offsets from the
// start that are multiples of gcd(step, period), where period is a day, or
// a week when weekdays are restricted.
func (g *generator) reachable() bool {
	r := g.rule
	period := int64(minutesPerDay)
	days := []int{0}
	if len(r.ByWeekdays) > 0 {
		period *= 7
		days = days[:0]
		for _, w := range r.ByWeekdays {
			days = append(days, int(w-model.Monday))
		}
	}
	from := int64(g.start.Hour()*60 + g.start.Minute())
	if len(r.ByWeekdays) > 0 {
		from += int64(model.WeekdayOf(g.start.Weekday())-model.Monday) * minutesPerDay
	}
	stride := gcd(g.stepMinutes(), period)
	hours := r.ByHours
	if len(hours) == 0 {
		hours = everyValue(24)
	}
	var minutes []int
	switch {
	case r.Freq == model.FrequencyHourly:
		// An HOURLY window covers its whole hour, so only the hour counts.
		minutes = []int{g.start.Minute()}
	case len(r.ByMinutes) > 0:
		minutes = r.ByMinutes
	default:
		minutes = everyValue(60)
	}
	for _, d := range days {
		for _, h := range hours {
			for _, m := range minutes {
				if mod(int64(d*minutesPerDay+h*60+m)-from, stride) == 0 {
					return true
				}
			}
		}
	}
	return false
}

// cursor returns the start of window k.
func (g *generator) cursor(base time.Time, k int) time.Time {
	n := k * g.rule.Interval
	switch g.rule.Freq {
	case model.FrequencyMinutely, model.FrequencyHourly:
		total := int64(k) * g.stepMinutes()
		return base.AddDate(0, 0, int(total/minutesPerDay)).
			Add(time.Duration(total%minutesPerDay) * time.Minute)
	case model.FrequencyDaily:
		return base.AddDate(0, 0, n)
	case model.FrequencyWeekly:
		return base.AddDate(0, 0, 7*n)
	case model.FrequencyMonthly:
		return base.AddDate(0, n, 0)
	default:
		return base.AddDate(n, 0, 0)
	}
}

// windowIndex returns the index of the last window starting at or before t.
// Every earlier window ends before t and can be skipped.
func (g *generator) windowIndex(base, t time.Time) int {
	var units int64
	switch g.rule.Freq {
	case model.FrequencyMinutely, model.FrequencyHourly:
		secs, _ := elapsed(base, t)
		return int(secs / (60 * g.stepMinutes()))
	case model.FrequencyDaily:
		secs, _ := elapsed(base, t)
		units = secs / (minutesPerDay * 60)
	case model.FrequencyWeekly:
		secs, _ := elapsed(base, t)
		units = secs / (7 * minutesPerDay * 60)
	case model.FrequencyMonthly:
		units = int64((t.Year()-base.Year())*12 + int(t.Month()-base.Month()))
	default:
		units = int64(t.Year() - base.Year())
	}
	return int(units / int64(g.rule.Interval))
}

// nextIndexAtOrAfter returns the first window index whose cursor is at or
// after boundary. Only meaningful for sub-daily frequencies.
func (g *generator) nextIndexAtOrAfter(base time.Time, boundary time.Time) int {
	step := 60 * g.stepMinutes()
	secs, frac := elapsed(base, boundary)
	k := secs / step
	if secs%step != 0 || frac {
		k++
	}
	return int(k)
}

// elapsed returns the whole seconds from a to b, b not before a, and
// whether a fraction of a second remains. Durations cap at about 292
// years, so long spans are measured on Unix seconds instead.
func elapsed(a, b time.Time) (int64, bool) {
	secs := b.Unix() - a.Unix()
	if b.Nanosecond() < a.Nanosecond() {
		secs--
	}
	return secs, b.Nanosecond() != a.Nanosecond()
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func mod(a, n int64) int64 {
	return (a%n + n) % n
}

func everyValue(n int) []int {
	out := make([]int, n)
	for i := range n {
		out[i] = i
	}
	return out
}

type windowIter struct {
	g      *generator
	base   time.Time
	floor  time.Time
	giveUp time.Time
	k      int
	buf    []time.Time
	done   bool
}

func (it *windowIter) Next() (time.Time, bool) {
	for len(it.buf) == 0 {
		if it.done {
			return time.Time{}, false
		}
		it.fill()
	}
	t := it.buf[0]
	it.buf = it.buf[1:]
	return t, true
}

// fill expands the current window into buf and advances the cursor.
func (it *windowIter) fill() {
	c := it.g.cursor(it.base, it.k)
	if c.After(it.giveUp) || c.Year() > maxYear {
		it.done = true
		return
	}
	next := it.k + 1
	var cands []time.Time
	switch it.g.rule.Freq {
	case model.FrequencyMinutely, model.FrequencyHourly:
		cands, next = it.subDaily(c)
	default:
		cands = it.g.calendarWindow(c)
	}
	it.k = next
	for _, t := range cands {
		if !t.Before(it.floor) {
			it.buf = append(it.buf, t)
		}
	}
	if n := len(it.buf); n > 0 {
		it.giveUp = it.g.giveUpAfter(it.buf[n-1])
	}
}

// subDaily expands a MINUTELY or HOURLY window starting at c. When the day
// or hour cannot match, the cursor jumps straight past it.
func (it *windowIter) subDaily(c time.Time) ([]time.Time, int) {
	g := it.g
	r := g.rule
	if !g.dayMatches(c) {
		return nil, max(it.k+1, g.nextIndexAtOrAfter(it.base, midnight(c).AddDate(0, 0, 1)))
	}
	if len(r.ByHours) > 0 && !slices.Contains(r.ByHours, c.Hour()) {
		hour := c.Truncate(time.Hour).Add(time.Hour)
		return nil, max(it.k+1, g.nextIndexAtOrAfter(it.base, hour))
	}
	if r.Freq == model.FrequencyMinutely {
		if len(r.ByMinutes) > 0 && !slices.Contains(r.ByMinutes, c.Minute()) {
			return nil, it.k + 1
		}
		return []time.Time{c}, it.k + 1
	}
	minutes := r.ByMinutes
	if len(minutes) == 0 {
		minutes = []int{g.start.Minute()}
	}
	out := make([]time.Time, 0, len(minutes))
	for _, m := range minutes {
		out = append(out, time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), m,
			g.start.Second(), g.start.Nanosecond(), time.UTC))
	}
	return out, it.k + 1
}

// calendarWindow expands a DAILY, WEEKLY, MONTHLY or YEARLY window.
func (g *generator) calendarWindow(c time.Time) []time.Time {
	var end time.Time
	switch g.rule.Freq {
	case model.FrequencyDaily:
		end = c.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		end = c.AddDate(0, 0, 7)
	case model.FrequencyMonthly:
		end = c.AddDate(0, 1, 0)
	default:
		end = c.AddDate(1, 0, 0)
	}
	hours := g.rule.ByHours
	if len(hours) == 0 {
		hours = []int{g.start.Hour()}
	}
	minutes := g.rule.ByMinutes
	if len(minutes) == 0 {
		minutes = []int{g.start.Minute()}
	}
	var out []time.Time
	for day := c; day.Before(end); day = day.AddDate(0, 0, 1) {
		if !g.dayMatches(day) {
			continue
		}
		for _, h := range hours {
			for _, m := range minutes {
				out = append(out, time.Date(day.Year(), day.Month(), day.Day(), h, m,
					g.start.Second(), g.start.Nanosecond(), time.UTC))
			}
		}
	}
	return out
}

// dayMatches applies the month, month-day and weekday parts to day. Parts
// that are absent fall back to the start time where the frequency window
// is wider than that part.
func (g *generator) dayMatches(day time.Time) bool {
	r := g.rule
	freq := r.Freq
	switch {
	case len(r.ByMonths) > 0:
		if !slices.Contains(r.ByMonths, int(day.Month())) {
			return false
		}
	case freq == model.FrequencyYearly && len(r.ByMonthdays) == 0 && len(r.ByWeekdays) == 0:
		if day.Month() != g.start.Month() {
			return false
		}
	}
	switch {
	case len(r.ByMonthdays) > 0:
		if !monthdayMatches(r.ByMonthdays, day) {
			return false
		}
	case (freq == model.FrequencyMonthly || freq == model.FrequencyYearly) && len(r.ByWeekdays) == 0:
		if day.Day() != g.start.Day() {
			return false
		}
	}
	wd := model.WeekdayOf(day.Weekday())
	switch {
	case len(r.ByWeekdays) > 0:
		return slices.Contains(r.ByWeekdays, wd)
	case freq == model.FrequencyWeekly:
		return day.Weekday() == g.start.Weekday()
	}
	return true
}

func monthdayMatches(days []int, day time.Time) bool {
	last := daysIn(day.Year(), day.Month())
	for _, md := range days {
		want := md
		if md < 0 {
			want = last + md + 1
		}
		if want == day.Day() {
			return true
		}
	}
	return false
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
