/*
Package memory provides the in-memory Store implementation (for testing/dev).

Implements every persistence interface of the engine:
  ledger.ReconcileStore    entries + balance rows
  achievements.UnlockStore unlock records
  points.EventStore        the action journal

Transactions are simulated with a deep snapshot taken under the write
lock and restored on error, mirroring how the SQLite store's real
transactions behave.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/points"
)

type Store struct {
	mu       sync.RWMutex
	entries  map[ledger.UserID][]ledger.Entry
	balances map[ledger.UserID]ledger.Balance
	unlocks  map[ledger.UserID][]achievements.Unlock
	events   []points.Event
	eventIDs map[string]bool
}

func New() *Store {
	return &Store{
		entries:  make(map[ledger.UserID][]ledger.Entry),
		balances: make(map[ledger.UserID]ledger.Balance),
		unlocks:  make(map[ledger.UserID][]achievements.Unlock),
		eventIDs: make(map[string]bool),
	}
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) AppendEntry(_ context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendEntryLocked(e)
}

func (s *Store) appendEntryLocked(e ledger.Entry) error {
	list := s.entries[e.UserID]

	// Binary search for the insertion point keeps each user's slice in
	// chronological order.
	i := sort.Search(len(list), func(i int) bool {
		if list[i].Timestamp.Equal(e.Timestamp) {
			return list[i].CreatedAt.After(e.CreatedAt)
		}
		return list[i].Timestamp.After(e.Timestamp)
	})
	list = append(list, ledger.Entry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	s.entries[e.UserID] = list
	return nil
}

func (s *Store) FindBySourceKey(_ context.Context, userID ledger.UserID, source ledger.Source, sourceKey string) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findBySourceKeyLocked(userID, source, sourceKey)
}

func (s *Store) findBySourceKeyLocked(userID ledger.UserID, source ledger.Source, sourceKey string) (ledger.Entry, error) {
	var found *ledger.Entry
	for i := range s.entries[userID] {
		e := &s.entries[userID][i]
		if e.Source != source || e.SourceKey != sourceKey {
			continue
		}
		// A confirmed entry wins over a reversed one for the same key.
		if found == nil || (found.Status != ledger.StatusConfirmed && e.Status == ledger.StatusConfirmed) {
			found = e
		}
	}
	if found == nil {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return *found, nil
}

func (s *Store) GetEntry(_ context.Context, id ledger.EntryID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntryLocked(id)
}

func (s *Store) getEntryLocked(id ledger.EntryID) (ledger.Entry, error) {
	for _, list := range s.entries {
		for i := range list {
			if list[i].ID == id {
				return list[i], nil
			}
		}
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (s *Store) LoadEntries(_ context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEntriesLocked(userID, f)
}

func (s *Store) loadEntriesLocked(userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range s.entries[userID] {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return append([]ledger.Entry(nil), out...), nil
}

func (s *Store) LastEntry(_ context.Context, userID ledger.UserID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEntryLocked(userID)
}

func (s *Store) lastEntryLocked(userID ledger.UserID) (ledger.Entry, error) {
	list := s.entries[userID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Status == ledger.StatusConfirmed {
			return list[i], nil
		}
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (s *Store) MarkReversed(_ context.Context, id ledger.EntryID, at int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markReversedLocked(id, at, reason)
}

func (s *Store) markReversedLocked(id ledger.EntryID, at int64, reason string) error {
	for userID, list := range s.entries {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			t := timeFromNanos(at)
			list[i].Status = ledger.StatusReversed
			list[i].ReversedAt = &t
			list[i].ReversedReason = reason
			s.entries[userID] = list
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func (s *Store) Balance(_ context.Context, userID ledger.UserID) (ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balanceLocked(userID)
}

func (s *Store) balanceLocked(userID ledger.UserID) (ledger.Balance, error) {
	b, ok := s.balances[userID]
	if !ok {
		return ledger.Balance{}, ledger.ErrUserNotFound
	}
	return copyBalance(b), nil
}

func (s *Store) PutBalance(_ context.Context, b ledger.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putBalanceLocked(b)
}

func (s *Store) putBalanceLocked(b ledger.Balance) error {
	s.balances[b.UserID] = copyBalance(b)
	return nil
}

// =============================================================================
// RECONCILE STORE
// =============================================================================

func (s *Store) ListUsers(_ context.Context) ([]ledger.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[ledger.UserID]bool)
	var out []ledger.UserID
	for u := range s.entries {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for u := range s.balances {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) AllEntries(_ context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allEntriesLocked(userID), nil
}

func (s *Store) allEntriesLocked(userID ledger.UserID) []ledger.Entry {
	return append([]ledger.Entry(nil), s.entries[userID]...)
}

func (s *Store) RewriteBalances(_ context.Context, updated []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewriteBalancesLocked(updated)
}

func (s *Store) rewriteBalancesLocked(updated []ledger.Entry) error {
	for _, u := range updated {
		list := s.entries[u.UserID]
		found := false
		for i := range list {
			if list[i].ID == u.ID {
				list[i].BalanceBefore = u.BalanceBefore
				list[i].BalanceAfter = u.BalanceAfter
				found = true
				break
			}
		}
		if !found {
			return ledger.ErrEntryNotFound
		}
		s.entries[u.UserID] = list
	}
	return nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback
// =============================================================================

func (s *Store) WithTx(_ context.Context, fn func(tx ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	view := &txView{parent: s}
	if err := fn(view); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	entries  map[ledger.UserID][]ledger.Entry
	balances map[ledger.UserID]ledger.Balance
	unlocks  map[ledger.UserID][]achievements.Unlock
}

func (s *Store) snapshotLocked() storeSnapshot {
	snap := storeSnapshot{
		entries:  make(map[ledger.UserID][]ledger.Entry, len(s.entries)),
		balances: make(map[ledger.UserID]ledger.Balance, len(s.balances)),
		unlocks:  make(map[ledger.UserID][]achievements.Unlock, len(s.unlocks)),
	}
	for u, list := range s.entries {
		snap.entries[u] = append([]ledger.Entry(nil), list...)
	}
	for u, b := range s.balances {
		snap.balances[u] = copyBalance(b)
	}
	for u, list := range s.unlocks {
		snap.unlocks[u] = append([]achievements.Unlock(nil), list...)
	}
	return snap
}

func (s *Store) restoreLocked(snap storeSnapshot) {
	s.entries = snap.entries
	s.balances = snap.balances
	s.unlocks = snap.unlocks
}

// txView routes calls back to the parent's locked methods; the parent
// holds the write lock for the whole transaction.
type txView struct {
	parent *Store
}

func (v *txView) AppendEntry(_ context.Context, e ledger.Entry) error {
	return v.parent.appendEntryLocked(e)
}

func (v *txView) FindBySourceKey(_ context.Context, userID ledger.UserID, source ledger.Source, sourceKey string) (ledger.Entry, error) {
	return v.parent.findBySourceKeyLocked(userID, source, sourceKey)
}

func (v *txView) GetEntry(_ context.Context, id ledger.EntryID) (ledger.Entry, error) {
	return v.parent.getEntryLocked(id)
}

func (v *txView) LoadEntries(_ context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	return v.parent.loadEntriesLocked(userID, f)
}

func (v *txView) LastEntry(_ context.Context, userID ledger.UserID) (ledger.Entry, error) {
	return v.parent.lastEntryLocked(userID)
}

func (v *txView) MarkReversed(_ context.Context, id ledger.EntryID, at int64, reason string) error {
	return v.parent.markReversedLocked(id, at, reason)
}

func (v *txView) Balance(_ context.Context, userID ledger.UserID) (ledger.Balance, error) {
	return v.parent.balanceLocked(userID)
}

func (v *txView) PutBalance(_ context.Context, b ledger.Balance) error {
	return v.parent.putBalanceLocked(b)
}

// The repair surface the reconciler widens the view to.

func (v *txView) AllEntries(_ context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	return v.parent.allEntriesLocked(userID), nil
}

func (v *txView) RewriteBalances(_ context.Context, updated []ledger.Entry) error {
	return v.parent.rewriteBalancesLocked(updated)
}

func (v *txView) ListUnlocks(_ context.Context, userID ledger.UserID) ([]achievements.Unlock, error) {
	return v.parent.listUnlocksLocked(userID), nil
}

func (v *txView) CreateUnlock(_ context.Context, u achievements.Unlock) error {
	return v.parent.createUnlockLocked(u)
}

// =============================================================================
// UNLOCK STORE
// =============================================================================

func (s *Store) CreateUnlock(_ context.Context, u achievements.Unlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUnlockLocked(u)
}

func (s *Store) createUnlockLocked(u achievements.Unlock) error {
	for _, existing := range s.unlocks[u.UserID] {
		if existing.AchievementID == u.AchievementID {
			return achievements.ErrAlreadyUnlocked
		}
	}
	s.unlocks[u.UserID] = append(s.unlocks[u.UserID], u)
	return nil
}

func (s *Store) ListUnlocks(_ context.Context, userID ledger.UserID) ([]achievements.Unlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listUnlocksLocked(userID), nil
}

func (s *Store) listUnlocksLocked(userID ledger.UserID) []achievements.Unlock {
	out := append([]achievements.Unlock(nil), s.unlocks[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out
}

func (s *Store) HasUnlock(_ context.Context, userID ledger.UserID, achievementID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.unlocks[userID] {
		if u.AchievementID == achievementID {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) AppendEvent(_ context.Context, e points.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventIDs[e.ID] {
		return points.ErrDuplicateEvent
	}
	s.eventIDs[e.ID] = true
	s.events = append(s.events, e)
	return nil
}

func (s *Store) EventsByActor(_ context.Context, userID ledger.UserID) ([]points.Event, error) {
	return s.filterEvents(func(e points.Event) bool { return e.ActorID == userID })
}

func (s *Store) EventsBySubject(_ context.Context, userID ledger.UserID) ([]points.Event, error) {
	return s.filterEvents(func(e points.Event) bool { return e.SubjectID == userID })
}

func (s *Store) EventsOfKind(_ context.Context, kind points.EventKind) ([]points.Event, error) {
	return s.filterEvents(func(e points.Event) bool { return e.Kind == kind })
}

func (s *Store) filterEvents(keep func(points.Event) bool) ([]points.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []points.Event
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func copyBalance(b ledger.Balance) ledger.Balance {
	daily := make(map[ledger.Source]ledger.DailyCounter, len(b.Daily))
	for k, v := range b.Daily {
		daily[k] = v
	}
	b.Daily = daily
	return b
}

func timeFromNanos(ns int64) time.Time {
	return time.Unix(0, ns)
}
