package achievements_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/officebrew/points-engine/achievements"
)

// March 2025: the 1st is a Saturday, so the 3rd is a Monday.
func day(d, hour int) time.Time {
	return time.Date(2025, time.March, d, hour, 0, 0, 0, time.UTC)
}

func TestWorkdayStreaks_Empty(t *testing.T) {
	current, best := achievements.WorkdayStreaks(nil, day(10, 12))
	assert.Equal(t, 0, current)
	assert.Equal(t, 0, best)
}

func TestWorkdayStreaks_ConsecutiveWorkdays(t *testing.T) {
	// Mon-Wed, observed on Wednesday afternoon.
	made := []time.Time{day(3, 9), day(4, 9), day(5, 9)}
	current, best := achievements.WorkdayStreaks(made, day(5, 17))
	assert.Equal(t, 3, current)
	assert.Equal(t, 3, best)
}

func TestWorkdayStreaks_WeekendGap_DoesNotBreak(t *testing.T) {
	// GIVEN: Coffee on Friday the 7th and Monday the 10th
	// THEN: The weekend in between is skipped, not a break

	made := []time.Time{day(7, 9), day(10, 9)}
	current, best := achievements.WorkdayStreaks(made, day(10, 12))
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, best)
}

func TestWorkdayStreaks_MissedWorkday_Breaks(t *testing.T) {
	// Monday and Wednesday with no coffee on Tuesday.
	made := []time.Time{day(3, 9), day(5, 9)}
	current, best := achievements.WorkdayStreaks(made, day(5, 12))
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, best)
}

func TestWorkdayStreaks_WeekendCoffee_Ignored(t *testing.T) {
	// A Saturday coffee neither extends nor breaks the workday streak.
	made := []time.Time{day(7, 9), day(8, 11), day(10, 9)}
	current, best := achievements.WorkdayStreaks(made, day(10, 12))
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, best)
}

func TestWorkdayStreaks_MultipleCoffeesSameDay_CountOnce(t *testing.T) {
	made := []time.Time{day(3, 8), day(3, 14), day(4, 9)}
	current, best := achievements.WorkdayStreaks(made, day(4, 12))
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, best)
}

func TestWorkdayStreaks_CurrentAliveUntilNextWorkdayPasses(t *testing.T) {
	// GIVEN: Last coffee on Friday the 7th
	// WHEN: Observed on Monday the 10th before any coffee
	// THEN: The streak is still alive (today's coffee may just not exist yet)

	made := []time.Time{day(6, 9), day(7, 9)}
	current, best := achievements.WorkdayStreaks(made, day(10, 9))
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, best)
}

func TestWorkdayStreaks_StaleStreak_CurrentZero(t *testing.T) {
	// GIVEN: A three-day run that ended a week ago
	// THEN: Best remembers it, current is dead

	made := []time.Time{day(3, 9), day(4, 9), day(5, 9)}
	current, best := achievements.WorkdayStreaks(made, day(12, 9))
	assert.Equal(t, 0, current)
	assert.Equal(t, 3, best)
}

func TestWorkdayStreaks_BestSurvivesLaterShorterRun(t *testing.T) {
	// Mon-Wed run (3), then a gap, then Friday and Monday (2).
	made := []time.Time{day(3, 9), day(4, 9), day(5, 9), day(7, 9), day(10, 9)}
	// Thursday the 6th is missing, so the runs are separate... except the
	// Friday-Monday pair still forms its own streak of 2.
	current, best := achievements.WorkdayStreaks(made, day(10, 12))
	assert.Equal(t, 2, current)
	assert.Equal(t, 3, best)
}
