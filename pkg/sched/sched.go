// Package sched runs the fixed-delay completions of the simulation
// (deployment settle, issue fix, checkpoint re-run) behind a small
// interface so they can be cancelled and driven deterministically in tests.
package sched

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending delayed call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

// Scheduler arranges for f to run once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules on the wall clock.
type Real struct{}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a virtual clock. Nothing fires until Advance is called.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	m       *Manual
	due     time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, due: m.now + d, seq: m.seq, f: f}
	m.pending = append(m.pending, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing every timer that becomes due
// in due-time order. Timers scheduled by fired callbacks are honoured if they
// fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.popDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		next.fired = true
		m.mu.Unlock()

		next.f()
	}
}

// popDue removes and returns the earliest live timer due at or before target.
func (m *Manual) popDue(target time.Duration) *manualTimer {
	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.pending = live
	if len(m.pending) == 0 {
		return nil
	}
	sort.Slice(m.pending, func(i, j int) bool {
		if m.pending[i].due != m.pending[j].due {
			return m.pending[i].due < m.pending[j].due
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	if m.pending[0].due > target {
		return nil
	}
	t := m.pending[0]
	m.pending = m.pending[1:]
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Group tracks keyed delayed calls so that a key has at most one pending call
// and can be cancelled by key.
type Group struct {
	s      Scheduler
	mu     sync.Mutex
	timers map[string]Timer
}

func NewGroup(s Scheduler) *Group {
	if s == nil {
		s = Real{}
	}
	return &Group{s: s, timers: make(map[string]Timer)}
}

// Schedule arranges f to run after d under key. It returns false, and does
// nothing, if key already has a pending call.
func (g *Group) Schedule(key string, d time.Duration, f func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.timers[key]; ok {
		return false
	}
	var t Timer
	t = g.s.AfterFunc(d, func() {
		g.mu.Lock()
		cur, ok := g.timers[key]
		if !ok || cur != t {
			g.mu.Unlock()
			return
		}
		delete(g.timers, key)
		g.mu.Unlock()
		f()
	})
	g.timers[key] = t
	return true
}

// Pending reports whether key has a call waiting to fire.
func (g *Group) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.timers[key]
	return ok
}

// Cancel stops the pending call for key, if any.
func (g *Group) Cancel(key string) bool {
	g.mu.Lock()
	t, ok := g.timers[key]
	delete(g.timers, key)
	g.mu.Unlock()
	if !ok {
		return false
	}
	t.Stop()
	return true
}

// Keys returns the keys with pending calls.
func (g *Group) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.timers))
	for k := range g.timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stop cancels every pending call.
func (g *Group) Stop() {
	g.mu.Lock()
	timers := g.timers
	g.timers = make(map[string]Timer)
	g.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}
