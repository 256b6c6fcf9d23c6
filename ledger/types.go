/*
Package ledger provides the append-only XP transaction log.

PURPOSE:
  The Ledger is the immutable source of truth for every XP change.
  Every action credit, achievement reward, admin adjustment, and reversal
  is recorded here. The denormalized balance row is always derivable by
  replaying entries - the ledger wins any disagreement.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: An immutable ledger record with a before/after balance chain
  - Source: The action family that produced the credit (coffee-made, ...)
  - Balance: The denormalized per-user summary kept in sync with the chain
  - DailyCounter: Per-action, per-calendar-day counter backing daily caps

DESIGN PRINCIPLES:
  1. Immutability: Entries are never edited, only reversed
  2. Idempotency: One confirmed entry per (user, source, source key)
  3. Chaining: BalanceAfter of entry N equals BalanceBefore of entry N+1
  4. Auditability: Every entry carries reason, source key, and metadata

SEE ALSO:
  - ledger.go: Append/Reverse engine with per-user serialization
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EntryID string

// Source identifies the action family that produced an entry.
type Source string

const (
	SourceCoffeeMade       Source = "coffee-made"
	SourceCoffeeBrought    Source = "coffee-brought"
	SourceRatingGiven      Source = "rating-given"
	SourceFiveStarReceived Source = "five-star-received"
	SourceFourStarReceived Source = "four-star-received"
	SourceMessageSent      Source = "message-sent"
	SourceReactionGiven    Source = "reaction-given"
	SourceReactionReceived Source = "reaction-received"
	SourceAchievement      Source = "achievement"
	SourceManual           Source = "manual"
	SourceReversal         Source = "reversal"
	SourceCorrection       Source = "system-correction"
)

// Status of a ledger entry. Entries start confirmed; a reversal flips the
// status and appends a compensating entry - the amount itself never changes.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusReversed  Status = "reversed"
)

// =============================================================================
// ENTRY - Atomic, immutable XP change
// =============================================================================

type Entry struct {
	ID        EntryID
	UserID    UserID
	Source    Source
	SourceKey string // id of the underlying record: message id, coffee id, achievement type
	Amount    int64  // signed; negative only for reversals and corrections
	Reason    string

	// Balance chain. For a user's confirmed entries ordered by Timestamp:
	// BalanceAfter[i] == BalanceBefore[i] + Amount[i]
	// BalanceBefore[i+1] == BalanceAfter[i]
	BalanceBefore int64
	BalanceAfter  int64

	Status    Status
	Timestamp time.Time
	Metadata  map[string]string

	CreatedAt      time.Time
	ReversedAt     *time.Time
	ReversedReason string
}

// IdempotencyKey is the tuple that prevents double-crediting the same
// underlying event. At most one confirmed entry exists per key.
func (e Entry) IdempotencyKey() string {
	return IdempotencyKey(e.UserID, e.Source, e.SourceKey)
}

func IdempotencyKey(userID UserID, source Source, sourceKey string) string {
	return string(userID) + ":" + string(source) + ":" + sourceKey
}

// =============================================================================
// BALANCE - Denormalized per-user summary (the fast-read row)
// =============================================================================

// Balance is the per-user cache row maintained in the same transaction as
// every append. Invariant (enforced eventually by the reconciler):
// TotalXP == sum of Amount over the user's chain entries, where the chain
// is every confirmed entry plus every reversed entry that has a confirmed
// compensating entry (the reversal pair nets to zero).
type Balance struct {
	UserID        UserID
	TotalXP       int64
	Level         int
	XPWithinLevel int64

	// Per-action daily counters backing the high-frequency caps.
	Daily map[Source]DailyCounter

	StreakCurrent int
	StreakBest    int

	UpdatedAt time.Time
}

// DailyCounter counts credited occurrences of one action on one calendar day.
// Date is the day in "2006-01-02" form; a new day resets the count.
type DailyCounter struct {
	Count int
	Date  string
}

// DayKey formats a timestamp as the calendar-day key used by daily counters.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// =============================================================================
// FILTERS - Ledger queries for audit/display
// =============================================================================

type Filter struct {
	Source *Source
	Status *Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (f Filter) Matches(e Entry) bool {
	if f.Source != nil && e.Source != *f.Source {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
