package recurrence

import (
	"fmt"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

// Bound truncates seq according to ec. EndCount keeps the first Count
// instants; EndUntil keeps instants strictly before Until. A nil ec leaves
// seq unbounded.
func Bound(seq Sequence, ec model.EndCriteria) Sequence {
	switch v := ec.(type) {
	case nil:
		return seq
	case model.EndCount:
		return counted{inner: seq, n: v.Count}
	case model.EndUntil:
		return until{inner: seq, t: v.Until.UTC()}
	default:
		panic(fmt.Sprintf("recurrence: unknown end criteria %T", ec))
	}
}

type counted struct {
	inner Sequence
	n     int
}

func (c counted) Iterator() Iterator { return &countedIter{it: c.inner.Iterator(), left: c.n} }

// iteratorFrom skips straight to t when every window of the inner rule
// holds exactly one occurrence, so the window index is the occurrence
// index. Other rules are counted from the start.
func (c counted) iteratorFrom(t time.Time) Iterator {
	g, ok := c.inner.(*generator)
	if !ok || !g.onePerWindow() {
		return &dropBefore{it: c.Iterator(), t: t}
	}
	it := g.iteratorFrom(t)
	first, ok := it.Next()
	if !ok {
		return &countedIter{}
	}
	left := c.n - g.windowIndex(g.origin(), first)
	return &countedIter{it: &pushback{head: first, it: it}, left: left}
}

type countedIter struct {
	it   Iterator
	left int
}

func (c *countedIter) Next() (time.Time, bool) {
	if c.left <= 0 {
		return time.Time{}, false
	}
	t, ok := c.it.Next()
	if !ok {
		c.left = 0
		return t, false
	}
	c.left--
	return t, true
}

type pushback struct {
	head time.Time
	it   Iterator
	used bool
}

func (p *pushback) Next() (time.Time, bool) {
	if !p.used {
		p.used = true
		return p.head, true
	}
	return p.it.Next()
}

type until struct {
	inner Sequence
	t     time.Time
}

func (u until) Iterator() Iterator { return &untilIter{it: u.inner.Iterator(), t: u.t} }

func (u until) iteratorFrom(from time.Time) Iterator {
	return &untilIter{it: Seek(u.inner, from), t: u.t}
}

type untilIter struct {
	it   Iterator
	t    time.Time
	done bool
}

func (u *untilIter) Next() (time.Time, bool) {
	if u.done {
		return time.Time{}, false
	}
	v, ok := u.it.Next()
	if !ok || !v.Before(u.t) {
		u.done = true
		return time.Time{}, false
	}
	return v, true
}
