// Package locks provides per-key mutual exclusion. Session lifecycle
// transitions and participant admission for the same session must never
// interleave, so both take the session's lock before touching its rows.
package locks

import (
	"sync"

	"github.com/google/uuid"
)

// PerKey hands out one mutex per key. Locks are created on first use and
// kept for the life of the process; the key space (session ids) is small
// enough that no eviction is needed.
type PerKey struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewPerKey creates an empty keyed lock set.
func NewPerKey() *PerKey {
	return &PerKey{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it if absent.
func (p *PerKey) Lock(key uuid.UUID) {
	p.mu.Lock()
	m, ok := p.locks[key]
	if !ok {
		m = &sync.Mutex{}
		p.locks[key] = m
	}
	p.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for key. Must follow a matching Lock.
func (p *PerKey) Unlock(key uuid.UUID) {
	p.mu.Lock()
	m := p.locks[key]
	p.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
