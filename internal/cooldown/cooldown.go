// Package cooldown implements the duplicate-operation suppression window.
//
// A cache entry maps an operation fingerprint to the moment it was last
// accepted; identical operations are rejected until the window has elapsed.
package cooldown

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stockscan/stockscan/internal/clock"
)

// ErrCooldownActive indicates the same operation was accepted within the
// cooldown window and must not be submitted again yet.
var ErrCooldownActive = errors.New("identical operation accepted recently")

// Cache rejects replays of recently accepted operation fingerprints.
type Cache interface {
	// Check fails with ErrCooldownActive while the fingerprint's window
	// is still open.
	Check(ctx context.Context, fingerprint string) error
	// Record marks the fingerprint accepted now, opening a new window.
	Record(ctx context.Context, fingerprint string) error
}

// Memory is an in-process Cache. Expiry is lazy: deadlines are compared on
// lookup, and expired entries are swept opportunistically on Record, so no
// timer outlives its entry.
type Memory struct {
	clk      clock.Clock
	window   time.Duration
	mu       sync.Mutex
	deadline map[string]time.Time
}

// NewMemory creates a Memory cache with the given window.
func NewMemory(clk clock.Clock, window time.Duration) *Memory {
	return &Memory{
		clk:      clk,
		window:   window,
		deadline: make(map[string]time.Time),
	}
}

// Check implements Cache.
func (m *Memory) Check(_ context.Context, fingerprint string) error {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	dl, ok := m.deadline[fingerprint]
	if !ok {
		return nil
	}
	if now.Before(dl) {
		return ErrCooldownActive
	}
	delete(m.deadline, fingerprint)
	return nil
}

// Record implements Cache.
func (m *Memory) Record(_ context.Context, fingerprint string) error {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for fp, dl := range m.deadline {
		if !now.Before(dl) {
			delete(m.deadline, fp)
		}
	}
	m.deadline[fingerprint] = now.Add(m.window)
	return nil
}

// Len reports live (non-expired) entries; used by metrics.
func (m *Memory) Len() int {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, dl := range m.deadline {
		if now.Before(dl) {
			n++
		}
	}
	return n
}
