/*
Package achievements evaluates the achievement catalog against user stats
and awards unlocks.

PURPOSE:
  Achievements are declarative: a Definition names a metric, a requirement
  and a rarity. The engine never hard-codes per-achievement logic - it
  resolves the metric from a stats snapshot and compares. Adding an
  achievement is a catalog change, not a code change.

KEY CONCEPTS IN THIS FILE (types.go):
  - Definition: one catalog entry (metric + requirement + rarity)
  - Snapshot: the per-user stats the metrics are resolved from
  - StatsProvider: builds snapshots from the authoritative event journal
  - UnlockStore: idempotent persistence of unlocks

INVARIANTS:
  - Unlocks are never revoked, even when the underlying stat later drops
  - One unlock per (user, achievement), enforced by the store
  - Time-window metrics consider coffee-MADE timestamps only
*/
package achievements

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/officebrew/points-engine/ledger"
)

// =============================================================================
// RARITIES AND CATEGORIES
// =============================================================================

const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
	RarityPlatinum  = "platinum"
)

const (
	CategoryCoffee    = "coffee"
	CategorySupply    = "supply"
	CategoryRating    = "rating"
	CategoryChat      = "chat"
	CategorySpecial   = "special"
	CategoryStreak    = "streak"
	CategoryMilestone = "milestone"
	CategoryFun       = "fun"
)

// =============================================================================
// DEFINITION
// =============================================================================

// Definition is one catalog entry. Metric names a Snapshot field via the
// metric registry; Requirement is the inclusive threshold the resolved
// value must reach.
type Definition struct {
	ID          string  `toml:"id"`
	Name        string  `toml:"name"`
	Description string  `toml:"description"`
	Category    string  `toml:"category"`
	Metric      string  `toml:"metric"`
	Requirement float64 `toml:"requirement"`
	Rarity      string  `toml:"rarity"`
	Secret      bool    `toml:"secret"`
}

// =============================================================================
// SNAPSHOT - Per-user stats, rebuilt from the event journal
// =============================================================================

// Snapshot carries every value a metric can resolve. It is recomputed from
// the authoritative action journal, never from incremental counters.
type Snapshot struct {
	UserID ledger.UserID
	At     time.Time

	// Lifetime action counters.
	CoffeesMade       int64
	CoffeesBrought    int64
	RatingsGiven      int64
	FiveStarsReceived int64
	FourStarsReceived int64
	MessagesSent      int64
	ReactionsGiven    int64
	ReactionsReceived int64

	// Distinct emojis the user has reacted with.
	DistinctEmojisUsed int64

	// Rating aggregate over received ratings.
	AverageRating decimal.Decimal
	RatingSamples int64

	// Workday streaks over coffee-made days.
	StreakCurrent int64
	StreakBest    int64

	// Time-window counters over coffee-MADE timestamps only.
	EarlyCoffees           int64 // before 07:00
	LateCoffees            int64 // 20:00 or later
	MidnightCoffees        int64 // before 05:00
	WeekendCoffees         int64 // Saturday or Sunday
	MondayMorningCoffees   int64 // Monday before 10:00
	FridayAfternoonCoffees int64 // Friday 14:00 or later
	EarlyDaysBefore6       int64 // distinct days with a coffee before 06:00

	// Milestone inputs.
	DaysActive          int64
	UnlockedCount       int64
	CatalogSize         int64
	CategoriesUnlocked  int64
	CategoriesAvailable int64

	// Secret-achievement signals.
	MaxMessageBurst     int64 // most messages inside any 60s window
	CoffeeSameDay       bool  // made coffee the same day as another member
	TripleActionDay     bool  // made, brought and rated on one day
	HumbleSupplies      int64 // supplies brought without announcement messages
	DoubleFiveStar      bool  // two 5-star ratings on one coffee
	UnanimousFiveStar   bool  // five 5-star ratings on one coffee
	ComebackAfter30Days bool  // coffee after 30+ days away
	PerfectMonth        bool  // coffee on every workday of a month
	FirstOfDayCount     int64 // days opening the machine
	LastOfDayCount      int64 // days closing the machine
	DistinctMakersRated int64
}

// StatsProvider rebuilds a user's snapshot from source-of-truth records.
type StatsProvider interface {
	Snapshot(ctx context.Context, userID ledger.UserID) (Snapshot, error)
}

// =============================================================================
// UNLOCKS
// =============================================================================

type Unlock struct {
	ID            string
	UserID        ledger.UserID
	AchievementID string
	Rarity        string
	XPAwarded     int64
	UnlockedAt    time.Time
}

var (
	// ErrAlreadyUnlocked indicates the (user, achievement) pair exists.
	ErrAlreadyUnlocked = errors.New("achievement already unlocked")

	// ErrUnknownMetric indicates a catalog entry names a metric the
	// registry cannot resolve. Caught at catalog load time.
	ErrUnknownMetric = errors.New("unknown achievement metric")
)

// UnlockStore persists unlocks with (user, achievement) uniqueness.
type UnlockStore interface {
	// CreateUnlock inserts the unlock or returns ErrAlreadyUnlocked.
	CreateUnlock(ctx context.Context, u Unlock) error

	// ListUnlocks returns a user's unlocks ordered by UnlockedAt.
	ListUnlocks(ctx context.Context, userID ledger.UserID) ([]Unlock, error)

	// HasUnlock reports whether the pair exists.
	HasUnlock(ctx context.Context, userID ledger.UserID, achievementID string) (bool, error)
}
