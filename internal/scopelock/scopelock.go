// Package scopelock serialises reorders per sequencing scope. At most one
// reorder may be in flight for a scope; a second caller is refused rather
// than queued.
package scopelock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when another reorder already holds the scope.
var ErrHeld = errors.New("scope lock held")

// Release gives a lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker hands out per-scope locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Key builds the lock key for a scope of a given kind.
func Key(kind, scopeID string) string {
	return kind + ":" + scopeID
}

// Memory is a process-local Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, key string) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, ErrHeld
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
		return nil
	}, nil
}
