/*
Per-user lock registry.

All writes for one user are serialized through a dedicated mutex so that
idempotency checks, cap counters and chain balances are read and written
without interleaving. Writes for different users proceed in parallel.
*/
package ledger

import (
	"sync"
)

// UserLocks hands out one mutex per user, created on first use.
type UserLocks struct {
	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[UserID]*sync.Mutex)}
}

func (l *UserLocks) lockFor(userID UserID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}

// Lock acquires the user's mutex and returns the unlock function.
func (l *UserLocks) Lock(userID UserID) func() {
	m := l.lockFor(userID)
	m.Lock()
	return m.Unlock
}
