package level_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/officebrew/points-engine/level"
)

// =============================================================================
// CURVE SHAPE
// =============================================================================

func TestXPForLevel_IncrementalCosts(t *testing.T) {
	// GIVEN: The default curve (base 100, exponent 1.5)
	// THEN: Each step up costs floor(100 * (L-1)^1.5)

	c := level.DefaultConfig()

	assert.Equal(t, int64(0), c.XPForLevel(0))
	assert.Equal(t, int64(0), c.XPForLevel(1))
	assert.Equal(t, int64(100), c.XPForLevel(2))
	assert.Equal(t, int64(282), c.XPForLevel(3)) // floor(100 * 2^1.5)
	assert.Equal(t, int64(519), c.XPForLevel(4)) // floor(100 * 3^1.5)
}

func TestTotalXPForLevel_CumulativeSums(t *testing.T) {
	// GIVEN: The default curve
	// THEN: Reaching a level from zero costs the sum of all steps

	c := level.DefaultConfig()

	assert.Equal(t, int64(0), c.TotalXPForLevel(1))
	assert.Equal(t, int64(100), c.TotalXPForLevel(2))
	assert.Equal(t, int64(382), c.TotalXPForLevel(3)) // 100 + 282
	assert.Equal(t, int64(901), c.TotalXPForLevel(4)) // 100 + 282 + 519
}

func TestTotalXPForLevel_StrictlyIncreasing(t *testing.T) {
	c := level.DefaultConfig()
	for lvl := 2; lvl <= c.MaxLevel; lvl++ {
		assert.Greater(t, c.TotalXPForLevel(lvl), c.TotalXPForLevel(lvl-1),
			"cumulative cost must grow at level %d", lvl)
	}
}

// =============================================================================
// LEVEL LOOKUP
// =============================================================================

func TestLevelForXP_Thresholds(t *testing.T) {
	c := level.DefaultConfig()

	assert.Equal(t, 1, c.LevelForXP(0))
	assert.Equal(t, 1, c.LevelForXP(99))
	assert.Equal(t, 2, c.LevelForXP(100))
	assert.Equal(t, 2, c.LevelForXP(381))
	assert.Equal(t, 3, c.LevelForXP(382))
	assert.Equal(t, 3, c.LevelForXP(900))
	assert.Equal(t, 4, c.LevelForXP(901))
}

func TestLevelForXP_NegativeTotal(t *testing.T) {
	c := level.DefaultConfig()
	assert.Equal(t, 1, c.LevelForXP(-500))
}

func TestLevelForXP_RoundTrip(t *testing.T) {
	// GIVEN: Exactly the cumulative cost of each level
	// THEN: The lookup lands on that level, never one off

	c := level.DefaultConfig()
	for lvl := 1; lvl <= c.MaxLevel; lvl++ {
		total := c.TotalXPForLevel(lvl)
		assert.Equal(t, lvl, c.LevelForXP(total), "round trip at level %d (total %d)", lvl, total)
		if lvl > 1 {
			assert.Equal(t, lvl-1, c.LevelForXP(total-1), "one XP short of level %d", lvl)
		}
	}
}

func TestLevelForXP_CappedAtMaxLevel(t *testing.T) {
	c := level.DefaultConfig()
	assert.Equal(t, c.MaxLevel, c.LevelForXP(1<<50))
}

// =============================================================================
// PROGRESS
// =============================================================================

func TestProgress_WithinAndToNext(t *testing.T) {
	c := level.DefaultConfig()

	lvl, within, toNext := c.Progress(50)
	assert.Equal(t, 1, lvl)
	assert.Equal(t, int64(50), within)
	assert.Equal(t, int64(50), toNext)

	lvl, within, toNext = c.Progress(100)
	assert.Equal(t, 2, lvl)
	assert.Equal(t, int64(0), within)
	assert.Equal(t, int64(282), toNext)

	lvl, within, toNext = c.Progress(450)
	assert.Equal(t, 3, lvl)
	assert.Equal(t, int64(68), within) // 450 - 382
	assert.Equal(t, int64(451), toNext)
}

func TestProgress_AtMaxLevel(t *testing.T) {
	c := level.DefaultConfig()
	lvl, _, toNext := c.Progress(1 << 50)
	assert.Equal(t, c.MaxLevel, lvl)
	assert.Equal(t, int64(0), toNext, "no next level past the cap")
}

func TestLevelFunc_MatchesProgress(t *testing.T) {
	c := level.DefaultConfig()
	fn := c.LevelFunc()
	for _, total := range []int64{0, 1, 99, 100, 382, 901, 12345} {
		wantLvl, wantWithin, _ := c.Progress(total)
		lvl, within := fn(total)
		assert.Equal(t, wantLvl, lvl)
		assert.Equal(t, wantWithin, within)
	}
}
