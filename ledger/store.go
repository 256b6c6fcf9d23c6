/*
Store interfaces for the ledger.

The engine talks to persistence through these interfaces only. Two
implementations ship with the module:
  - store/memory: mutex-guarded maps with snapshot/rollback transactions
  - store/sqlite: database/sql over mattn/go-sqlite3 in WAL mode

Appends and balance updates for one user always happen inside a single
WithTx call so the chain and the denormalized row can never diverge on a
clean commit.
*/
package ledger

import (
	"context"
)

// =============================================================================
// STORE - Persistence contract for the append path
// =============================================================================

type Store interface {
	// AppendEntry persists a new entry. The engine has already assigned
	// ID, chain balances and timestamps.
	AppendEntry(ctx context.Context, e Entry) error

	// FindBySourceKey returns the entry for an idempotency tuple, reversed
	// or confirmed, or ErrEntryNotFound.
	FindBySourceKey(ctx context.Context, userID UserID, source Source, sourceKey string) (Entry, error)

	// GetEntry returns an entry by ID or ErrEntryNotFound.
	GetEntry(ctx context.Context, id EntryID) (Entry, error)

	// LoadEntries returns a user's entries matching the filter, ordered by
	// Timestamp ascending then CreatedAt ascending.
	LoadEntries(ctx context.Context, userID UserID, f Filter) ([]Entry, error)

	// LastEntry returns the user's most recent confirmed entry, or
	// ErrEntryNotFound when the chain is empty.
	LastEntry(ctx context.Context, userID UserID) (Entry, error)

	// MarkReversed flips an entry's status to reversed. The compensating
	// entry is appended separately in the same transaction.
	MarkReversed(ctx context.Context, id EntryID, at int64, reason string) error

	// Balance returns the denormalized row, or ErrUserNotFound.
	Balance(ctx context.Context, userID UserID) (Balance, error)

	// PutBalance upserts the denormalized row.
	PutBalance(ctx context.Context, b Balance) error
}

// =============================================================================
// TXSTORE - Transactional wrapper
// =============================================================================

// TxStore runs fn against a transactional view. A non-nil error from fn
// rolls everything back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// =============================================================================
// RECONCILESTORE - Extra surface for replay and repair
// =============================================================================

type ReconcileStore interface {
	TxStore

	// ListUsers returns every user that has at least one entry or balance row.
	ListUsers(ctx context.Context) ([]UserID, error)

	// AllEntries returns every entry for a user, any status, ordered by
	// Timestamp ascending then CreatedAt ascending.
	AllEntries(ctx context.Context, userID UserID) ([]Entry, error)

	// RewriteBalances replaces the chain balances of existing entries.
	// Only BalanceBefore/BalanceAfter may change; amounts are untouched.
	RewriteBalances(ctx context.Context, entries []Entry) error
}
