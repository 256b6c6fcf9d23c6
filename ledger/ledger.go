/*
Ledger engine - the only writer of XP entries.

RESPONSIBILITIES:
  1. Append: idempotency check, daily-cap check, balance chaining, and the
     denormalized balance update, all inside one per-user critical section
     and one store transaction
  2. Reverse: mark an entry reversed and append the compensating entry,
     clamping the running balance at zero
  3. Retry: wrap transient store failures in a bounded exponential backoff
     with jitter; never retry after an ambiguous commit

WHAT THIS PACKAGE DOES NOT DO:
  - Decide amounts (rates package)
  - Evaluate achievements (achievements package)
  - Serve HTTP (api package)
*/
package ledger

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// LevelFunc maps a lifetime XP total to (level, xp within level). Injected
// so the engine stays independent of the level table.
type LevelFunc func(totalXP int64) (level int, withinLevel int64)

// RetryPolicy bounds the append retry loop for transient store failures.
type RetryPolicy struct {
	Attempts int           // total attempts, not extra retries
	BaseWait time.Duration // doubled per attempt, +/- jitter
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseWait: 100 * time.Millisecond}
}

// Options configures a Ledger.
type Options struct {
	Store  TxStore
	Levels LevelFunc
	Retry  RetryPolicy
	Clock  func() time.Time
	NewID  func() string
	Logger *zap.Logger

	// Locks serializes writes per user. Share one registry with every
	// other writer of the same store (the reconciler) so their critical
	// sections never interleave. Nil gets a private registry.
	Locks *UserLocks
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store  TxStore
	levels LevelFunc
	retry  RetryPolicy
	clock  func() time.Time
	newID  func() string
	locks  *UserLocks
	log    *zap.Logger
}

func New(opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Levels == nil {
		opts.Levels = func(int64) (int, int64) { return 1, 0 }
	}
	if opts.Locks == nil {
		opts.Locks = NewUserLocks()
	}
	return &Ledger{
		store:  opts.Store,
		levels: opts.Levels,
		retry:  opts.Retry,
		clock:  opts.Clock,
		newID:  opts.NewID,
		locks:  opts.Locks,
		log:    opts.Logger,
	}
}

// =============================================================================
// APPEND
// =============================================================================

// AppendRequest describes one credit (or signed adjustment).
type AppendRequest struct {
	UserID    UserID
	Source    Source
	SourceKey string
	Amount    int64
	Reason    string
	Timestamp time.Time // zero means now
	Metadata  map[string]string

	// DailyCap, when positive, limits confirmed entries of this Source per
	// user per calendar day. Zero means uncapped.
	DailyCap int
}

// Append writes one entry. Behavior on the edges:
//   - existing confirmed entry for the idempotency tuple: returns the
//     existing entry and a *DuplicateError (errors.Is ErrDuplicateEntry)
//   - daily cap exhausted: returns *CapError, nothing is written
//   - amount would push the balance below zero: clamped so BalanceAfter is
//     exactly zero, the shortfall logged
func (l *Ledger) Append(ctx context.Context, req AppendRequest) (Entry, error) {
	if req.Amount == 0 {
		return Entry{}, ErrInvalidAmount
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = l.clock()
	}

	unlock := l.locks.Lock(req.UserID)
	defer unlock()

	var out Entry
	err := l.withRetry(ctx, func() error {
		return l.store.WithTx(ctx, func(tx Store) error {
			e, txErr := l.appendInTx(ctx, tx, req)
			if txErr != nil {
				return txErr
			}
			out = e
			return nil
		})
	})
	if err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			l.log.Debug("duplicate credit suppressed",
				zap.String("user", string(req.UserID)),
				zap.String("source", string(req.Source)),
				zap.String("source_key", req.SourceKey))
			return dup.Existing, dup
		}
		return Entry{}, err
	}
	return out, nil
}

func (l *Ledger) appendInTx(ctx context.Context, tx Store, req AppendRequest) (Entry, error) {
	// Idempotency first: a confirmed entry for the tuple wins over
	// everything else. A reversed entry does not block a re-credit.
	existing, err := tx.FindBySourceKey(ctx, req.UserID, req.Source, req.SourceKey)
	if err == nil && existing.Status == StatusConfirmed {
		return Entry{}, &DuplicateError{Existing: existing}
	}
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		return Entry{}, err
	}

	bal, err := tx.Balance(ctx, req.UserID)
	if errors.Is(err, ErrUserNotFound) {
		bal = Balance{UserID: req.UserID, Level: 1, Daily: map[Source]DailyCounter{}}
	} else if err != nil {
		return Entry{}, err
	}
	if bal.Daily == nil {
		bal.Daily = map[Source]DailyCounter{}
	}

	// Daily cap check inside the same lock and transaction as the append,
	// so concurrent events cannot both pass an 9/10 reading.
	day := DayKey(req.Timestamp)
	if req.DailyCap > 0 {
		c := bal.Daily[req.Source]
		if c.Date != day {
			c = DailyCounter{Date: day}
		}
		if c.Count >= req.DailyCap {
			return Entry{}, &CapError{
				UserID: req.UserID, Source: req.Source,
				Cap: req.DailyCap, Count: c.Count, Day: day,
			}
		}
		c.Count++
		bal.Daily[req.Source] = c
	}

	before := int64(0)
	if last, lerr := tx.LastEntry(ctx, req.UserID); lerr == nil {
		before = last.BalanceAfter
	} else if !errors.Is(lerr, ErrEntryNotFound) {
		return Entry{}, lerr
	}

	amount := req.Amount
	after := before + amount
	if after < 0 {
		// Reversals and corrections never take a balance negative.
		l.log.Warn("amount clamped at zero balance",
			zap.String("user", string(req.UserID)),
			zap.Int64("requested", req.Amount),
			zap.Int64("balance_before", before))
		amount = -before
		after = 0
	}

	now := l.clock()
	e := Entry{
		ID:            EntryID(l.newID()),
		UserID:        req.UserID,
		Source:        req.Source,
		SourceKey:     req.SourceKey,
		Amount:        amount,
		Reason:        req.Reason,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        StatusConfirmed,
		Timestamp:     req.Timestamp,
		Metadata:      req.Metadata,
		CreatedAt:     now,
	}
	if err := tx.AppendEntry(ctx, e); err != nil {
		return Entry{}, err
	}

	lvl, within := l.levels(after)
	bal.TotalXP = after
	bal.Level = lvl
	bal.XPWithinLevel = within
	bal.UpdatedAt = now
	if err := tx.PutBalance(ctx, bal); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// =============================================================================
// REVERSE
// =============================================================================

// Reverse marks an entry reversed and appends the compensating entry. The
// original record keeps its amount; only its status changes.
func (l *Ledger) Reverse(ctx context.Context, entryID EntryID, reason string) (Entry, error) {
	orig, err := l.store.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}

	unlock := l.locks.Lock(orig.UserID)
	defer unlock()

	var comp Entry
	err = l.withRetry(ctx, func() error {
		return l.store.WithTx(ctx, func(tx Store) error {
			cur, txErr := tx.GetEntry(ctx, entryID)
			if txErr != nil {
				return txErr
			}
			if cur.Status == StatusReversed {
				return ErrAlreadyReversed
			}

			// Read the chain tip before flipping the original's status:
			// the reversed entry stays in the chain and the compensating
			// entry nets it out, so its amount must still be in `before`.
			before := int64(0)
			if last, lerr := tx.LastEntry(ctx, cur.UserID); lerr == nil {
				before = last.BalanceAfter
			} else if !errors.Is(lerr, ErrEntryNotFound) {
				return lerr
			}

			now := l.clock()
			if txErr := tx.MarkReversed(ctx, entryID, now.UnixNano(), reason); txErr != nil {
				return txErr
			}

			amount := -cur.Amount
			after := before + amount
			if after < 0 {
				l.log.Warn("reversal clamped at zero balance",
					zap.String("user", string(cur.UserID)),
					zap.String("entry", string(entryID)),
					zap.Int64("balance_before", before))
				amount = -before
				after = 0
			}

			comp = Entry{
				ID:            EntryID(l.newID()),
				UserID:        cur.UserID,
				Source:        SourceReversal,
				SourceKey:     string(entryID),
				Amount:        amount,
				Reason:        reason,
				BalanceBefore: before,
				BalanceAfter:  after,
				Status:        StatusConfirmed,
				Timestamp:     now,
				Metadata:      map[string]string{"reversed_entry": string(entryID)},
				CreatedAt:     now,
			}
			if txErr := tx.AppendEntry(ctx, comp); txErr != nil {
				return txErr
			}

			bal, berr := tx.Balance(ctx, cur.UserID)
			if berr != nil {
				return berr
			}
			lvl, within := l.levels(after)
			bal.TotalXP = after
			bal.Level = lvl
			bal.XPWithinLevel = within
			bal.UpdatedAt = now
			return tx.PutBalance(ctx, bal)
		})
	})
	if err != nil {
		return Entry{}, err
	}
	l.log.Info("entry reversed",
		zap.String("user", string(orig.UserID)),
		zap.String("entry", string(entryID)),
		zap.Int64("compensation", comp.Amount))
	return comp, nil
}

// =============================================================================
// READS
// =============================================================================

// Balance returns the denormalized row straight from the store.
func (l *Ledger) Balance(ctx context.Context, userID UserID) (Balance, error) {
	return l.store.Balance(ctx, userID)
}

// Entries returns a user's entries matching the filter.
func (l *Ledger) Entries(ctx context.Context, userID UserID, f Filter) ([]Entry, error) {
	return l.store.LoadEntries(ctx, userID, f)
}

// Entry returns one entry by ID.
func (l *Ledger) Entry(ctx context.Context, id EntryID) (Entry, error) {
	return l.store.GetEntry(ctx, id)
}

// =============================================================================
// RETRY
// =============================================================================

// withRetry runs fn up to retry.Attempts times. Business outcomes
// (duplicates, caps, reversals, validation) pass through untouched; only
// other errors are considered transient.
func (l *Ledger) withRetry(ctx context.Context, fn func() error) error {
	var last error
	wait := l.retry.BaseWait
	for attempt := 1; attempt <= l.retry.Attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		last = err
		if attempt == l.retry.Attempts {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(wait)/2 + 1))
		l.log.Warn("ledger store failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait+jitter),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait + jitter):
		}
		wait *= 2
	}
	return &RetryExhaustedError{Attempts: l.retry.Attempts, Last: last}
}

func transient(err error) bool {
	switch {
	case errors.Is(err, ErrDuplicateEntry),
		errors.Is(err, ErrDailyCapReached),
		errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
