/*
Workday streak calculation over coffee-made timestamps.

Weekends do not count and do not break anything: a coffee on Friday and
the next on Monday is a continuous streak. A missed workday ends it.
*/
package achievements

import (
	"sort"
	"time"
)

func isWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func previousWorkday(t time.Time) time.Time {
	t = t.AddDate(0, 0, -1)
	for !isWorkday(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// lastWorkdayAt returns t's date if it is a workday, else the Friday before.
func lastWorkdayAt(t time.Time) time.Time {
	t = truncateDay(t)
	for !isWorkday(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WorkdayStreaks computes the current and the best workday streak from
// coffee-made timestamps. The current streak survives as long as the most
// recent coffee day is the last workday or the one before it (today's
// coffee may simply not have happened yet).
func WorkdayStreaks(made []time.Time, now time.Time) (current, best int) {
	if len(made) == 0 {
		return 0, 0
	}

	seen := make(map[string]bool)
	var days []time.Time
	for _, t := range made {
		if !isWorkday(t) {
			continue
		}
		d := truncateDay(t)
		key := d.Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return 0, 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	has := func(d time.Time) bool { return seen[d.Format("2006-01-02")] }

	// Best streak: walk every day forward, extending when the previous
	// workday was also a coffee day.
	run := 0
	for i, d := range days {
		if i > 0 && previousWorkday(d).Equal(days[i-1]) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}

	// Current streak: anchored at the most recent coffee day, but only if
	// that day is recent enough to still be alive.
	lastCoffee := days[len(days)-1]
	lastWork := lastWorkdayAt(now)
	if !lastCoffee.Equal(lastWork) && !lastCoffee.Equal(previousWorkday(lastWork)) {
		return 0, best
	}
	current = 1
	for d := previousWorkday(lastCoffee); has(d); d = previousWorkday(d) {
		current++
	}
	if current > best {
		best = current
	}
	return current, best
}
