// Package recurrence expands dispatch recurrence rules into ordered
// occurrence instants.
//
// Sequences are restartable: every call to Iterator starts from the
// beginning and never affects other iterators. Computation is pure, so a
// Sequence may be shared between goroutines; an Iterator may not.
package recurrence

import (
	"iter"
	"time"
)

// Sequence is a restartable, strictly increasing stream of UTC instants.
type Sequence interface {
	Iterator() Iterator
}

// Iterator yields instants in ascending order until exhausted.
type Iterator interface {
	Next() (time.Time, bool)
}

// seeker is implemented by sequences able to start close to an instant
// without walking every earlier window.
type seeker interface {
	iteratorFrom(t time.Time) Iterator
}

// All adapts seq to a range-over-func iterator.
func All(seq Sequence) iter.Seq[time.Time] {
	return drain(seq.Iterator())
}

func drain(it Iterator) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for {
			t, ok := it.Next()
			if !ok || !yield(t) {
				return
			}
		}
	}
}

// Seek returns an iterator positioned on the first instant >= t.
func Seek(seq Sequence, t time.Time) Iterator {
	if s, ok := seq.(seeker); ok {
		return s.iteratorFrom(t)
	}
	return &dropBefore{it: seq.Iterator(), t: t}
}

// Take collects at most n instants of seq.
func Take(seq Sequence, n int) []time.Time {
	return collect(seq.Iterator(), n)
}

// TakeFrom collects at most n instants of seq that are >= from.
func TakeFrom(seq Sequence, from time.Time, n int) []time.Time {
	return collect(Seek(seq, from), n)
}

func collect(it Iterator, n int) []time.Time {
	var out []time.Time
	for len(out) < n {
		t, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out
}

type dropBefore struct {
	it Iterator
	t  time.Time
}

func (d *dropBefore) Next() (time.Time, bool) {
	for {
		v, ok := d.it.Next()
		if !ok || !v.Before(d.t) {
			return v, ok
		}
	}
}

// once is the sequence of a dispatch without recurrence.
type once struct{ at time.Time }

func (o once) Iterator() Iterator { return &onceIter{at: o.at} }

func (o once) iteratorFrom(t time.Time) Iterator {
	return &onceIter{at: o.at, done: o.at.Before(t)}
}

type onceIter struct {
	at   time.Time
	done bool
}

func (o *onceIter) Next() (time.Time, bool) {
	if o.done {
		return time.Time{}, false
	}
	o.done = true
	return o.at, true
}
