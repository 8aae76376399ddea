package workspace

import (
	"fmt"
	"sync"
	"time"
)

// LockManager hands out per-path write locks. A lock older than its
// timeout is treated as abandoned and may be taken over.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]heldLock
	seq   uint64
	now   func() time.Time
}

type heldLock struct {
	token    uint64
	acquired time.Time
	timeout  time.Duration
}

func (l heldLock) stale(now time.Time) bool {
	return now.Sub(l.acquired) > l.timeout
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]heldLock), now: time.Now}
}

// Acquire takes the lock for key. It fails with ErrLocked when a live lock
// is held. The returned release func is idempotent and only drops the lock
// it acquired.
func (m *LockManager) Acquire(key string, timeout time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.locks[key]; ok && !held.stale(now) {
		return nil, fmt.Errorf("%w: %s (locked %s ago)", ErrLocked, key, now.Sub(held.acquired).Round(time.Millisecond))
	}

	m.seq++
	token := m.seq
	m.locks[key] = heldLock{token: token, acquired: now, timeout: timeout}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if held, ok := m.locks[key]; ok && held.token == token {
				delete(m.locks, key)
			}
		})
	}, nil
}

// IsLocked reports whether key holds a live lock.
func (m *LockManager) IsLocked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, ok := m.locks[key]
	return ok && !held.stale(m.now())
}

// CleanupStale drops abandoned locks and returns how many were removed.
func (m *LockManager) CleanupStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for key, held := range m.locks {
		if held.stale(now) {
			delete(m.locks, key)
			n++
		}
	}
	return n
}
