/*
Package level maps lifetime XP totals to levels.

Pure functions over an immutable Config; no storage, no clock, no I/O.
This is the only place level is computed - display, caching and
reconciliation all call through here, so level and XP can never disagree.

The curve is polynomial: stepping up to level L costs
floor(BaseXP * (L-1)^Exponent) on top of everything before it, so each
level is more expensive than the last. Reaching level L from zero costs
the sum of all steps up to it.
*/
package level

import (
	"math"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type Config struct {
	BaseXP   int64
	Exponent float64
	MaxLevel int
}

// DefaultConfig is the production curve: level 2 costs 100 XP, level 3
// another 282, level 4 another 519, capped at level 100.
func DefaultConfig() Config {
	return Config{BaseXP: 100, Exponent: 1.5, MaxLevel: 100}
}

// =============================================================================
// CALCULATOR
// =============================================================================

// XPForLevel returns the incremental cost of stepping up to lvl from the
// level below. Level 1 and below cost nothing.
func (c Config) XPForLevel(lvl int) int64 {
	if lvl <= 1 {
		return 0
	}
	return int64(math.Floor(float64(c.BaseXP) * math.Pow(float64(lvl-1), c.Exponent)))
}

// TotalXPForLevel returns the lifetime XP needed to reach lvl from zero:
// the sum of every step up to and including it.
func (c Config) TotalXPForLevel(lvl int) int64 {
	if lvl > c.MaxLevel {
		lvl = c.MaxLevel
	}
	var total int64
	for i := 2; i <= lvl; i++ {
		total += c.XPForLevel(i)
	}
	return total
}

// LevelForXP returns the largest level whose cumulative cost is at or
// below totalXP. Negative totals map to level 1.
func (c Config) LevelForXP(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	lvl := 1
	var needed int64
	for lvl < c.MaxLevel {
		next := c.XPForLevel(lvl + 1)
		if totalXP < needed+next {
			break
		}
		needed += next
		lvl++
	}
	return lvl
}

// Progress returns the current level, the XP earned within it, and the XP
// still needed for the next level. At MaxLevel the remainder is zero.
func (c Config) Progress(totalXP int64) (lvl int, within int64, toNext int64) {
	lvl = c.LevelForXP(totalXP)
	within = totalXP - c.TotalXPForLevel(lvl)
	if within < 0 {
		within = 0
	}
	if lvl >= c.MaxLevel {
		return lvl, within, 0
	}
	toNext = c.XPForLevel(lvl+1) - within
	if toNext < 0 {
		toNext = 0
	}
	return lvl, within, toNext
}

// LevelFunc adapts the config to the ledger's injection point.
func (c Config) LevelFunc() func(totalXP int64) (int, int64) {
	return func(totalXP int64) (int, int64) {
		lvl, within, _ := c.Progress(totalXP)
		return lvl, within
	}
}
