/*
Package rates holds the reward table: how much XP each action is worth and
which actions carry a per-day cap.

The table is an immutable snapshot. Admin updates swap in a new snapshot
with a bumped version; in-flight evaluations keep the snapshot they
started with, so a rate change never splits one event's computation.
Defaults are compiled in; a TOML file can override them at startup.
*/
package rates

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/officebrew/points-engine/ledger"
)

// =============================================================================
// RATE TABLE
// =============================================================================

// Rate is one action's reward rule.
type Rate struct {
	Amount   int64 `toml:"amount"`
	DailyCap int   `toml:"daily_cap"` // 0 = uncapped
}

// Table is an immutable snapshot of every action's rate plus the
// achievement rarity rewards.
type Table struct {
	Version   int
	UpdatedAt time.Time
	Actions   map[ledger.Source]Rate
	Rarities  map[string]int64 // common/rare/epic/legendary/platinum
}

// Defaults returns version 1 of the production table.
func Defaults() Table {
	return Table{
		Version:   1,
		UpdatedAt: time.Time{},
		Actions: map[ledger.Source]Rate{
			ledger.SourceCoffeeMade:       {Amount: 50},
			ledger.SourceCoffeeBrought:    {Amount: 75},
			ledger.SourceRatingGiven:      {Amount: 15},
			ledger.SourceFiveStarReceived: {Amount: 30},
			ledger.SourceFourStarReceived: {Amount: 15},
			ledger.SourceMessageSent:      {Amount: 1, DailyCap: 10},
			ledger.SourceReactionGiven:    {Amount: 3, DailyCap: 10},
			ledger.SourceReactionReceived: {Amount: 5},
		},
		Rarities: map[string]int64{
			"common":    25,
			"rare":      50,
			"epic":      100,
			"legendary": 200,
			"platinum":  500,
		},
	}
}

// Reward looks up the rate for an action. Unknown actions are worth
// nothing and carry no cap.
func (t Table) Reward(source ledger.Source) Rate {
	return t.Actions[source]
}

// AchievementXP returns the reward for an achievement rarity key.
func (t Table) AchievementXP(rarity string) int64 {
	return t.Rarities[rarity]
}

// =============================================================================
// SOURCE - Versioned holder with atomic swap
// =============================================================================

// Provider is the read side handed to engines.
type Provider interface {
	Current() Table
}

// Source holds the live table and versions admin updates.
type Source struct {
	mu    sync.RWMutex
	table Table
	clock func() time.Time
}

func NewSource(initial Table) *Source {
	return &Source{table: initial, clock: time.Now}
}

// Current returns the live snapshot. Safe to hold across a computation.
func (s *Source) Current() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Update installs a new table, bumping the version past the current one.
func (s *Source) Update(actions map[ledger.Source]Rate, rarities map[string]int64) Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Table{
		Version:   s.table.Version + 1,
		UpdatedAt: s.clock(),
		Actions:   actions,
		Rarities:  rarities,
	}
	if next.Actions == nil {
		next.Actions = s.table.Actions
	}
	if next.Rarities == nil {
		next.Rarities = s.table.Rarities
	}
	s.table = next
	return next
}

// =============================================================================
// TOML LOADING
// =============================================================================

type fileConfig struct {
	Actions  map[string]Rate  `toml:"actions"`
	Rarities map[string]int64 `toml:"rarities"`
}

// LoadFile reads a TOML rate file and overlays it on the defaults.
// Missing actions keep their default amount and cap.
func LoadFile(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read rate config: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return Table{}, fmt.Errorf("parse rate config %s: %w", path, err)
	}
	t := Defaults()
	for name, r := range fc.Actions {
		t.Actions[ledger.Source(name)] = r
	}
	for name, xp := range fc.Rarities {
		t.Rarities[name] = xp
	}
	return t, nil
}
