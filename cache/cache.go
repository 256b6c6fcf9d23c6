/*
Package cache is the fast-read tier in front of the balance rows.

The authoritative denormalized balance lives in the store and is updated
in the same transaction as every ledger append; this layer only shortens
the read path. Entries are invalidated on every write for their user, so
a stale read can only ever be one write old.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/officebrew/points-engine/ledger"
)

// ErrMiss is returned when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// View is the cached balance projection served to read endpoints.
type View struct {
	UserID        ledger.UserID `json:"user_id"`
	TotalXP       int64         `json:"total_xp"`
	Level         int           `json:"level"`
	XPWithinLevel int64         `json:"xp_within_level"`
	XPToNext      int64         `json:"xp_to_next"`
	StreakCurrent int           `json:"streak_current"`
	StreakBest    int           `json:"streak_best"`
	CachedAt      time.Time     `json:"cached_at"`
}

// BalanceCache is implemented by the in-process and Redis tiers.
type BalanceCache interface {
	// Get returns the cached view or ErrMiss.
	Get(ctx context.Context, userID ledger.UserID) (View, error)

	// Set stores the view with the cache's TTL.
	Set(ctx context.Context, v View) error

	// Invalidate drops the user's entry. Absence is not an error.
	Invalidate(ctx context.Context, userID ledger.UserID) error
}
