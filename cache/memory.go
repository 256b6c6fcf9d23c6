package cache

import (
	"context"
	"sync"
	"time"

	"github.com/officebrew/points-engine/ledger"
)

// Memory is a mutex-guarded in-process cache with per-entry expiry.
// The default tier when no Redis address is configured.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[ledger.UserID]memoryEntry
}

type memoryEntry struct {
	view      View
	expiresAt time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Memory{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[ledger.UserID]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, userID ledger.UserID) (View, error) {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok || m.clock().After(e.expiresAt) {
		return View{}, ErrMiss
	}
	return e.view, nil
}

func (m *Memory) Set(_ context.Context, v View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[v.UserID] = memoryEntry{view: v, expiresAt: m.clock().Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, userID ledger.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}
