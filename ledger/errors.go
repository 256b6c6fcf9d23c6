/*
Error definitions for the ledger package.

Sentinel errors are compared with errors.Is at call sites; structured error
types wrap them with context and expose Unwrap so the sentinels stay matchable
through the wrapping.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrEntryNotFound indicates a lookup for an entry that does not exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrUserNotFound indicates the user has no balance row yet.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEntry indicates a confirmed entry already exists for the
	// same (user, source, source key). Callers treat this as success.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrDailyCapReached indicates the per-action daily cap is exhausted.
	// No entry is written; callers treat this as a silent no-op.
	ErrDailyCapReached = errors.New("daily cap reached")

	// ErrAlreadyReversed indicates the entry was reversed before.
	ErrAlreadyReversed = errors.New("entry already reversed")

	// ErrInvalidAmount indicates a zero or otherwise unusable amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrChainBroken indicates a balance-chain violation detected at append
	// or replay time. The reconciler repairs these.
	ErrChainBroken = errors.New("balance chain broken")

	// ErrStoreUnavailable wraps transient persistence failures after the
	// bounded retry loop is exhausted.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// DuplicateError carries the existing entry so callers can return the
// original credit without a second lookup.
type DuplicateError struct {
	Existing Entry
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate ledger entry: key %s already confirmed as %s",
		e.Existing.IdempotencyKey(), e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateEntry }

// CapError reports which cap blocked the append.
type CapError struct {
	UserID UserID
	Source Source
	Cap    int
	Count  int
	Day    string
}

func (e *CapError) Error() string {
	return fmt.Sprintf("daily cap reached: user %s source %s at %d/%d on %s",
		e.UserID, e.Source, e.Count, e.Cap, e.Day)
}

func (e *CapError) Unwrap() error { return ErrDailyCapReached }

// RetryExhaustedError wraps the last transient failure after all attempts.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("store unavailable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return ErrStoreUnavailable }

// IsDuplicate reports whether err means the credit already happened.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateEntry) }

// IsCapReached reports whether err means the daily cap blocked the credit.
func IsCapReached(err error) bool { return errors.Is(err, ErrDailyCapReached) }
