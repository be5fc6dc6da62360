package engine

import "sync"

// userLocks serializes message processing per user while letting different
// users proceed in parallel. The lock for one user is held across that user's
// collaborator calls; no lock covers more than one user.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for userID, creating it on first use, and returns
// the unlock function. Entries are never removed; the set is bounded by the
// bot's audience.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
