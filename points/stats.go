/*
Stats snapshot builder.

Rebuilds a user's full stats from the action journal on every call.
Deliberately replay-based: counters drift, journals do not. The unlock-set
fields of the snapshot are filled in by the achievement engine itself.
*/
package points

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/ledger"
)

// StatsService derives achievement snapshots from the event journal.
type StatsService struct {
	events EventStore
	clock  func() time.Time
}

func NewStatsService(events EventStore) *StatsService {
	return &StatsService{events: events, clock: time.Now}
}

func (s *StatsService) Snapshot(ctx context.Context, userID ledger.UserID) (achievements.Snapshot, error) {
	now := s.clock()
	snap := achievements.Snapshot{UserID: userID, At: now}

	mine, err := s.events.EventsByActor(ctx, userID)
	if err != nil {
		return snap, err
	}
	received, err := s.events.EventsBySubject(ctx, userID)
	if err != nil {
		return snap, err
	}
	allCoffees, err := s.events.EventsOfKind(ctx, EventCoffeeMade)
	if err != nil {
		return snap, err
	}

	var (
		madeTimes    []time.Time
		messageTimes []time.Time
		makersRated  = map[ledger.UserID]bool{}
		emojisUsed   = map[string]bool{}
		dayActions   = map[string]map[EventKind]bool{}
	)

	for _, e := range mine {
		day := dayOf(e.Timestamp)
		if dayActions[day] == nil {
			dayActions[day] = map[EventKind]bool{}
		}
		dayActions[day][e.Kind] = true

		switch e.Kind {
		case EventCoffeeMade:
			snap.CoffeesMade++
			madeTimes = append(madeTimes, e.Timestamp)
		case EventCoffeeBrought:
			snap.CoffeesBrought++
			if !e.Announced {
				snap.HumbleSupplies++
			}
		case EventRatingGiven:
			snap.RatingsGiven++
			makersRated[e.SubjectID] = true
		case EventMessageSent:
			snap.MessagesSent++
			messageTimes = append(messageTimes, e.Timestamp)
		case EventReactionAdded:
			snap.ReactionsGiven++
			emojisUsed[e.Emoji] = true
		}
	}
	snap.DistinctMakersRated = int64(len(makersRated))
	snap.DistinctEmojisUsed = int64(len(emojisUsed))

	// Ratings and reactions received.
	fiveStarByCoffee := map[string]int{}
	var starSum, starCount int64
	for _, e := range received {
		switch e.Kind {
		case EventRatingGiven:
			starSum += int64(e.Stars)
			starCount++
			if e.Stars == 5 {
				snap.FiveStarsReceived++
				fiveStarByCoffee[e.RefID]++
			}
			if e.Stars == 4 {
				snap.FourStarsReceived++
			}
		case EventReactionAdded:
			snap.ReactionsReceived++
		}
	}
	snap.RatingSamples = starCount
	if starCount > 0 {
		snap.AverageRating = decimal.NewFromInt(starSum).
			Div(decimal.NewFromInt(starCount))
	}
	for _, n := range fiveStarByCoffee {
		if n >= 2 {
			snap.DoubleFiveStar = true
		}
		if n >= 5 {
			snap.UnanimousFiveStar = true
		}
	}

	// Time windows over the user's own coffee-made timestamps.
	earlyDays := map[string]bool{}
	for _, t := range madeTimes {
		h := t.Hour()
		switch {
		case h < 5:
			snap.MidnightCoffees++
			snap.EarlyCoffees++
		case h < 7:
			snap.EarlyCoffees++
		case h >= 20:
			snap.LateCoffees++
		}
		if h < 6 {
			earlyDays[dayOf(t)] = true
		}
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			snap.WeekendCoffees++
		case time.Monday:
			if h < 10 {
				snap.MondayMorningCoffees++
			}
		case time.Friday:
			if h >= 14 {
				snap.FridayAfternoonCoffees++
			}
		}
	}
	snap.EarlyDaysBefore6 = int64(len(earlyDays))

	cur, best := achievements.WorkdayStreaks(madeTimes, now)
	snap.StreakCurrent = int64(cur)
	snap.StreakBest = int64(best)

	// Account age from the first journaled action.
	if len(mine) > 0 {
		first := mine[0].Timestamp
		for _, e := range mine[1:] {
			if e.Timestamp.Before(first) {
				first = e.Timestamp
			}
		}
		snap.DaysActive = int64(now.Sub(first).Hours() / 24)
	}

	snap.TripleActionDay = hasTripleDay(dayActions)
	snap.ComebackAfter30Days = hasComeback(madeTimes)
	snap.PerfectMonth = hasPerfectMonth(madeTimes, now)
	snap.MaxMessageBurst = maxBurst(messageTimes, time.Minute)
	s.crossUserCoffeeStats(&snap, userID, madeTimes, allCoffees)

	return snap, nil
}

// =============================================================================
// DERIVED SIGNALS
// =============================================================================

func dayOf(t time.Time) string { return t.Format("2006-01-02") }

func hasTripleDay(days map[string]map[EventKind]bool) bool {
	for _, kinds := range days {
		if kinds[EventCoffeeMade] && kinds[EventCoffeeBrought] && kinds[EventRatingGiven] {
			return true
		}
	}
	return false
}

// hasComeback reports a 30+ day gap between two consecutive coffees.
func hasComeback(made []time.Time) bool {
	if len(made) < 2 {
		return false
	}
	sorted := append([]time.Time(nil), made...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) > 30*24*time.Hour {
			return true
		}
	}
	return false
}

// hasPerfectMonth reports a fully-elapsed month where every workday had a
// coffee. The running month never qualifies.
func hasPerfectMonth(made []time.Time, now time.Time) bool {
	if len(made) == 0 {
		return false
	}
	days := map[string]bool{}
	months := map[string]time.Time{}
	for _, t := range made {
		days[dayOf(t)] = true
		monthKey := t.Format("2006-01")
		if _, ok := months[monthKey]; !ok {
			months[monthKey] = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		}
	}
	currentMonth := now.Format("2006-01")
	for key, start := range months {
		if key >= currentMonth {
			continue
		}
		complete := true
		for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
			wd := d.Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
			if !days[dayOf(d)] {
				complete = false
				break
			}
		}
		if complete {
			return true
		}
	}
	return false
}

// maxBurst returns the most events inside any sliding window.
func maxBurst(times []time.Time, window time.Duration) int64 {
	if len(times) == 0 {
		return 0
	}
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	var peak int64
	lo := 0
	for hi := range sorted {
		for sorted[hi].Sub(sorted[lo]) > window {
			lo++
		}
		if n := int64(hi - lo + 1); n > peak {
			peak = n
		}
	}
	return peak
}

// crossUserCoffeeStats fills the signals that need the whole office's
// coffee history: shared days, day openers and day closers.
func (s *StatsService) crossUserCoffeeStats(snap *achievements.Snapshot, userID ledger.UserID, mine []time.Time, all []Event) {
	myDays := map[string]bool{}
	for _, t := range mine {
		myDays[dayOf(t)] = true
	}

	type dayEdge struct {
		first, last     time.Time
		firstBy, lastBy ledger.UserID
		othersOnMyDay   bool
	}
	edges := map[string]*dayEdge{}
	for _, e := range all {
		day := dayOf(e.Timestamp)
		ed := edges[day]
		if ed == nil {
			ed = &dayEdge{first: e.Timestamp, last: e.Timestamp, firstBy: e.ActorID, lastBy: e.ActorID}
			edges[day] = ed
		} else {
			if e.Timestamp.Before(ed.first) {
				ed.first, ed.firstBy = e.Timestamp, e.ActorID
			}
			if e.Timestamp.After(ed.last) {
				ed.last, ed.lastBy = e.Timestamp, e.ActorID
			}
		}
		if e.ActorID != userID && myDays[day] {
			ed.othersOnMyDay = true
		}
	}
	for day, ed := range edges {
		if !myDays[day] {
			continue
		}
		if ed.othersOnMyDay {
			snap.CoffeeSameDay = true
		}
		if ed.firstBy == userID {
			snap.FirstOfDayCount++
		}
		if ed.lastBy == userID {
			snap.LastOfDayCount++
		}
	}
}
