/*
Metric registry: resolves a Definition's metric name against a Snapshot.

Every metric is a pure function of the snapshot, so evaluation order never
matters and re-evaluating after a downward stat correction simply finds
fewer metrics at threshold - it never touches existing unlocks.
*/
package achievements

import (
	"fmt"
)

// Metric names used by the built-in catalog.
const (
	MetricCoffeeMade          = "coffee-made"
	MetricCoffeeBrought       = "coffee-brought"
	MetricRatingsGiven        = "ratings-given"
	MetricFiveStarReceived    = "five-star-received"
	MetricAverageRating       = "average-rating"
	MetricPerfectAverage      = "perfect-average"
	MetricMessagesSent        = "messages-sent"
	MetricReactionsGiven      = "reactions-given"
	MetricReactionsReceived   = "reactions-received"
	MetricStreak              = "streak"
	MetricEarlyCoffee         = "early-coffee"
	MetricLateCoffee          = "late-coffee"
	MetricMidnightCoffee      = "midnight-coffee"
	MetricWeekendCoffee       = "weekend-coffee"
	MetricMondayCoffee        = "monday-coffee"
	MetricFridayCoffee        = "friday-coffee"
	MetricEarlyCoffeeCount    = "early-coffee-count"
	MetricDaysActive          = "days-active"
	MetricAllCategories       = "all-categories"
	MetricAchievementPercent  = "achievement-percentage"
	MetricMessagesPerMinute   = "messages-per-minute"
	MetricCoffeeSameDay       = "coffee-same-day"
	MetricTripleAction        = "triple-action"
	MetricHumbleSupplier      = "humble-supplier"
	MetricPerfectMonth        = "perfect-month"
	MetricComeback            = "comeback"
	MetricDoubleFiveStar      = "double-five-star"
	MetricUnanimousFiveStar   = "unanimous-five-star"
	MetricFirstCoffeeOfDay    = "first-coffee-of-day"
	MetricLastCoffeeOfDay     = "last-coffee-of-day"
	MetricRatedDifferentUsers = "rated-different-makers"
)

// minSamplesForAverage guards the rating-aggregate metrics against a
// single lucky rating.
const minSamplesForAverage = 5

type metricFunc func(s Snapshot) float64

func boolMetric(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

var metricRegistry = map[string]metricFunc{
	MetricCoffeeMade:        func(s Snapshot) float64 { return float64(s.CoffeesMade) },
	MetricCoffeeBrought:     func(s Snapshot) float64 { return float64(s.CoffeesBrought) },
	MetricRatingsGiven:      func(s Snapshot) float64 { return float64(s.RatingsGiven) },
	MetricFiveStarReceived:  func(s Snapshot) float64 { return float64(s.FiveStarsReceived) },
	MetricMessagesSent:      func(s Snapshot) float64 { return float64(s.MessagesSent) },
	MetricReactionsGiven:    func(s Snapshot) float64 { return float64(s.ReactionsGiven) },
	MetricReactionsReceived: func(s Snapshot) float64 { return float64(s.ReactionsReceived) },
	MetricStreak:            func(s Snapshot) float64 { return float64(s.StreakBest) },

	MetricAverageRating:  ratingAverage,
	MetricPerfectAverage: ratingAverage,

	MetricEarlyCoffee:    func(s Snapshot) float64 { return float64(s.EarlyCoffees) },
	MetricLateCoffee:     func(s Snapshot) float64 { return float64(s.LateCoffees) },
	MetricMidnightCoffee: func(s Snapshot) float64 { return float64(s.MidnightCoffees) },
	MetricWeekendCoffee:  func(s Snapshot) float64 { return float64(s.WeekendCoffees) },
	MetricMondayCoffee:   func(s Snapshot) float64 { return float64(s.MondayMorningCoffees) },
	MetricFridayCoffee:   func(s Snapshot) float64 { return float64(s.FridayAfternoonCoffees) },

	MetricEarlyCoffeeCount: func(s Snapshot) float64 { return float64(s.EarlyDaysBefore6) },

	MetricDaysActive: func(s Snapshot) float64 { return float64(s.DaysActive) },
	MetricAllCategories: func(s Snapshot) float64 {
		if s.CategoriesAvailable > 0 && s.CategoriesUnlocked >= s.CategoriesAvailable {
			return 1
		}
		return 0
	},
	MetricAchievementPercent: func(s Snapshot) float64 {
		if s.CatalogSize == 0 {
			return 0
		}
		return float64(s.UnlockedCount) / float64(s.CatalogSize)
	},

	MetricMessagesPerMinute:   func(s Snapshot) float64 { return float64(s.MaxMessageBurst) },
	MetricCoffeeSameDay:       func(s Snapshot) float64 { return boolMetric(s.CoffeeSameDay) },
	MetricTripleAction:        func(s Snapshot) float64 { return boolMetric(s.TripleActionDay) },
	MetricHumbleSupplier:      func(s Snapshot) float64 { return float64(s.HumbleSupplies) },
	MetricPerfectMonth:        func(s Snapshot) float64 { return boolMetric(s.PerfectMonth) },
	MetricComeback:            func(s Snapshot) float64 { return boolMetric(s.ComebackAfter30Days) },
	MetricDoubleFiveStar:      func(s Snapshot) float64 { return boolMetric(s.DoubleFiveStar) },
	MetricUnanimousFiveStar:   func(s Snapshot) float64 { return boolMetric(s.UnanimousFiveStar) },
	MetricFirstCoffeeOfDay:    func(s Snapshot) float64 { return float64(s.FirstOfDayCount) },
	MetricLastCoffeeOfDay:     func(s Snapshot) float64 { return float64(s.LastOfDayCount) },
	MetricRatedDifferentUsers: func(s Snapshot) float64 { return float64(s.DistinctMakersRated) },
}

// ratingAverage returns the average as a float once enough samples exist.
// decimal keeps the 4.4999... vs 4.5 comparison exact before conversion.
func ratingAverage(s Snapshot) float64 {
	if s.RatingSamples < minSamplesForAverage {
		return 0
	}
	f, _ := s.AverageRating.Round(2).Float64()
	return f
}

// Resolve evaluates a definition's metric against the snapshot.
func Resolve(def Definition, s Snapshot) (float64, error) {
	fn, ok := metricRegistry[def.Metric]
	if !ok {
		return 0, fmt.Errorf("%w: %q (achievement %s)", ErrUnknownMetric, def.Metric, def.ID)
	}
	return fn(s), nil
}

// Met reports whether the snapshot satisfies the definition.
func Met(def Definition, s Snapshot) (bool, error) {
	v, err := Resolve(def, s)
	if err != nil {
		return false, err
	}
	return v >= def.Requirement, nil
}
