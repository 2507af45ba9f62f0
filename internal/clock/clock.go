// Package clock abstracts wall-clock time so cooldown windows, debounce
// checks, and banner expiry are deterministic under test.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable single-shot deferred action.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// function from firing.
	Stop() bool
}

// Clock provides current time and single-shot scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// New returns a Clock backed by the system clock.
func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Mock is a manually advanced Clock for tests. Timers fire synchronously
// on the goroutine calling Advance, in deadline order.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

type mockTimer struct {
	m        *Mock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

// NewMock returns a Mock positioned at the given instant.
func NewMock(start time.Time) *Mock { return &Mock{now: start} }

// Now returns the mock's current instant.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers f to run once the mock has advanced past d.
func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTimer{m: m, deadline: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the mock forward by d, firing due timers in deadline order.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var due []*mockTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && !t.deadline.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (t *mockTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
