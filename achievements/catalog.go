/*
Built-in achievement catalog plus TOML loading.

The catalog is data: 65 definitions across eight categories. A TOML file
can replace or extend it at startup; every loaded definition is validated
against the metric registry so a typo fails fast instead of silently
never unlocking.
*/
package achievements

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Catalog is an immutable ordered set of definitions.
type Catalog struct {
	defs []Definition
	byID map[string]Definition
	cats map[string]bool
}

func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		byID: make(map[string]Definition, len(defs)),
		cats: make(map[string]bool),
	}
	for _, d := range defs {
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", d.ID)
		}
		if _, ok := metricRegistry[d.Metric]; !ok {
			return nil, fmt.Errorf("%w: %q (achievement %s)", ErrUnknownMetric, d.Metric, d.ID)
		}
		c.byID[d.ID] = d
		c.cats[d.Category] = true
		c.defs = append(c.defs, d)
	}
	return c, nil
}

func (c *Catalog) All() []Definition { return c.defs }
func (c *Catalog) Size() int         { return len(c.defs) }
func (c *Catalog) Categories() int   { return len(c.cats) }

func (c *Catalog) Get(id string) (Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Visible filters out secret achievements that the user has not unlocked.
func (c *Catalog) Visible(unlocked map[string]bool) []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		if d.Secret && !unlocked[d.ID] {
			continue
		}
		out = append(out, d)
	}
	return out
}

type catalogFile struct {
	Achievements []Definition `toml:"achievements"`
}

// LoadFile reads a TOML catalog. Entries replace same-ID defaults; new
// IDs are appended.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read achievement catalog: %w", err)
	}
	var cf catalogFile
	if err := toml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parse achievement catalog %s: %w", path, err)
	}
	merged := DefaultDefinitions()
	index := make(map[string]int, len(merged))
	for i, d := range merged {
		index[d.ID] = i
	}
	for _, d := range cf.Achievements {
		if i, ok := index[d.ID]; ok {
			merged[i] = d
		} else {
			merged = append(merged, d)
		}
	}
	return NewCatalog(merged)
}

// MustDefaultCatalog builds the built-in catalog; the definitions below
// are static so this cannot fail at runtime.
func MustDefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultDefinitions returns the built-in catalog.
func DefaultDefinitions() []Definition {
	return []Definition{
		// Coffee making.
		{ID: "first-coffee", Name: "First Coffee", Description: "Made your first coffee", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 1, Rarity: RarityCommon},
		{ID: "coffee-lover", Name: "Coffee Lover", Description: "Made 10 coffees", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 10, Rarity: RarityCommon},
		{ID: "barista-junior", Name: "Junior Barista", Description: "Made 25 coffees", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 25, Rarity: RarityRare},
		{ID: "barista-senior", Name: "Senior Barista", Description: "Made 50 coffees", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 50, Rarity: RarityEpic},
		{ID: "coffee-master", Name: "Coffee Master", Description: "Made 100 coffees", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 100, Rarity: RarityLegendary},
		{ID: "coffee-legend", Name: "Coffee Legend", Description: "Made 250 coffees", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 250, Rarity: RarityPlatinum},
		{ID: "coffee-god", Name: "Coffee God", Description: "Made 500 coffees", Category: CategoryCoffee, Metric: MetricCoffeeMade, Requirement: 500, Rarity: RarityPlatinum},

		// Supplies.
		{ID: "first-supply", Name: "First Supply", Description: "Brought coffee supplies for the first time", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 1, Rarity: RarityCommon},
		{ID: "supplier", Name: "Supplier", Description: "Brought supplies 5 times", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 5, Rarity: RarityCommon},
		{ID: "generous", Name: "Generous", Description: "Brought supplies 15 times", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 15, Rarity: RarityRare},
		{ID: "benefactor", Name: "Benefactor", Description: "Brought supplies 30 times", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 30, Rarity: RarityEpic},
		{ID: "philanthropist", Name: "Coffee Philanthropist", Description: "Brought supplies 50 times", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 50, Rarity: RarityLegendary},
		{ID: "supply-king", Name: "Supply King", Description: "Brought supplies 100 times", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 100, Rarity: RarityPlatinum},
		{ID: "supply-legend", Name: "Supply Legend", Description: "Brought supplies 200 times", Category: CategorySupply, Metric: MetricCoffeeBrought, Requirement: 200, Rarity: RarityPlatinum},

		// Ratings.
		{ID: "first-rate", Name: "Critic", Description: "Rated a coffee for the first time", Category: CategoryRating, Metric: MetricRatingsGiven, Requirement: 1, Rarity: RarityCommon},
		{ID: "taste-expert", Name: "Taste Expert", Description: "Rated 20 coffees", Category: CategoryRating, Metric: MetricRatingsGiven, Requirement: 20, Rarity: RarityRare},
		{ID: "sommelier", Name: "Coffee Sommelier", Description: "Rated 50 coffees", Category: CategoryRating, Metric: MetricRatingsGiven, Requirement: 50, Rarity: RarityEpic},
		{ID: "critic-master", Name: "Master Critic", Description: "Rated 100 coffees", Category: CategoryRating, Metric: MetricRatingsGiven, Requirement: 100, Rarity: RarityLegendary},
		{ID: "five-stars", Name: "Five Stars", Description: "Received a 5-star rating", Category: CategoryRating, Metric: MetricFiveStarReceived, Requirement: 1, Rarity: RarityCommon},
		{ID: "five-stars-master", Name: "Star Collector", Description: "Received 10 five-star ratings", Category: CategoryRating, Metric: MetricFiveStarReceived, Requirement: 10, Rarity: RarityEpic},
		{ID: "five-stars-legend", Name: "Constellation", Description: "Received 25 five-star ratings", Category: CategoryRating, Metric: MetricFiveStarReceived, Requirement: 25, Rarity: RarityLegendary},
		{ID: "galaxy-of-stars", Name: "Galaxy of Stars", Description: "Received 50 five-star ratings", Category: CategoryRating, Metric: MetricFiveStarReceived, Requirement: 50, Rarity: RarityPlatinum},
		{ID: "top-rated", Name: "Top Rated", Description: "Holds an average rating of 4.5 or better", Category: CategoryRating, Metric: MetricAverageRating, Requirement: 4.5, Rarity: RarityEpic},
		{ID: "perfect-score", Name: "Perfection", Description: "Holds a perfect 5.0 average rating", Category: CategoryRating, Metric: MetricPerfectAverage, Requirement: 5.0, Rarity: RarityPlatinum},
		{ID: "diversity-champion", Name: "Diversity Champion", Description: "Rated coffees from 10 different makers", Category: CategoryRating, Metric: MetricRatedDifferentUsers, Requirement: 10, Rarity: RarityRare},
		{ID: "double-rainbow", Name: "Double Rainbow", Description: "Received two 5-star ratings on the same coffee", Category: CategoryRating, Metric: MetricDoubleFiveStar, Requirement: 1, Rarity: RarityEpic, Secret: true},
		{ID: "unanimous", Name: "Unanimous", Description: "Received five 5-star ratings on the same coffee", Category: CategoryRating, Metric: MetricUnanimousFiveStar, Requirement: 1, Rarity: RarityPlatinum, Secret: true},

		// Chat.
		{ID: "first-message", Name: "First Contact", Description: "Sent your first message", Category: CategoryChat, Metric: MetricMessagesSent, Requirement: 1, Rarity: RarityCommon},
		{ID: "chatterbox", Name: "Chatterbox", Description: "Sent 50 messages", Category: CategoryChat, Metric: MetricMessagesSent, Requirement: 50, Rarity: RarityCommon},
		{ID: "social-butterfly", Name: "Social Butterfly", Description: "Sent 200 messages", Category: CategoryChat, Metric: MetricMessagesSent, Requirement: 200, Rarity: RarityRare},
		{ID: "communicator", Name: "Communicator", Description: "Sent 500 messages", Category: CategoryChat, Metric: MetricMessagesSent, Requirement: 500, Rarity: RarityEpic},
		{ID: "influencer", Name: "Influencer", Description: "Sent 1000 messages", Category: CategoryChat, Metric: MetricMessagesSent, Requirement: 1000, Rarity: RarityLegendary},
		{ID: "viral", Name: "Viral", Description: "Received 50 reactions", Category: CategoryChat, Metric: MetricReactionsReceived, Requirement: 50, Rarity: RarityEpic},
		{ID: "popular", Name: "Popular", Description: "Received 200 reactions", Category: CategoryChat, Metric: MetricReactionsReceived, Requirement: 200, Rarity: RarityLegendary},

		// Special (coffee-made time windows).
		{ID: "early-bird", Name: "Early Bird", Description: "Made coffee before 7am", Category: CategorySpecial, Metric: MetricEarlyCoffee, Requirement: 1, Rarity: RarityRare},
		{ID: "night-owl", Name: "Night Owl", Description: "Made coffee at 8pm or later", Category: CategorySpecial, Metric: MetricLateCoffee, Requirement: 1, Rarity: RarityRare},
		{ID: "weekend-warrior", Name: "Weekend Warrior", Description: "Made coffee on a weekend", Category: CategorySpecial, Metric: MetricWeekendCoffee, Requirement: 1, Rarity: RarityRare},
		{ID: "monday-hero", Name: "Monday Hero", Description: "Made coffee on a Monday morning", Category: CategorySpecial, Metric: MetricMondayCoffee, Requirement: 1, Rarity: RarityRare},
		{ID: "friday-finisher", Name: "Friday Finisher", Description: "Made the last coffee of the week on Friday afternoon", Category: CategorySpecial, Metric: MetricFridayCoffee, Requirement: 1, Rarity: RarityRare},
		{ID: "night-shift", Name: "Night Shift", Description: "Made coffee after midnight", Category: CategorySpecial, Metric: MetricMidnightCoffee, Requirement: 1, Rarity: RarityEpic, Secret: true},
		{ID: "early-legend", Name: "Morning Legend", Description: "Made coffee before 6am on 5 different days", Category: CategorySpecial, Metric: MetricEarlyCoffeeCount, Requirement: 5, Rarity: RarityLegendary},
		{ID: "first-of-the-day", Name: "First of the Day", Description: "Opened the machine 10 times", Category: CategorySpecial, Metric: MetricFirstCoffeeOfDay, Requirement: 10, Rarity: RarityEpic},
		{ID: "last-of-the-day", Name: "Last of the Day", Description: "Closed the machine 10 times", Category: CategorySpecial, Metric: MetricLastCoffeeOfDay, Requirement: 10, Rarity: RarityEpic},
		{ID: "comeback-king", Name: "Comeback King", Description: "Made coffee again after more than 30 days away", Category: CategorySpecial, Metric: MetricComeback, Requirement: 1, Rarity: RarityRare, Secret: true},

		// Streaks (workdays only).
		{ID: "streak-3", Name: "Consistent", Description: "Made coffee 3 workdays in a row", Category: CategoryStreak, Metric: MetricStreak, Requirement: 3, Rarity: RarityCommon},
		{ID: "streak-7", Name: "Dedicated", Description: "Made coffee 7 workdays in a row", Category: CategoryStreak, Metric: MetricStreak, Requirement: 7, Rarity: RarityRare},
		{ID: "streak-14", Name: "Two Weeks", Description: "Made coffee 14 workdays in a row", Category: CategoryStreak, Metric: MetricStreak, Requirement: 14, Rarity: RarityEpic},
		{ID: "streak-30", Name: "Unstoppable", Description: "Made coffee 30 workdays in a row", Category: CategoryStreak, Metric: MetricStreak, Requirement: 30, Rarity: RarityLegendary},
		{ID: "streak-60", Name: "Coffee Machine", Description: "Made coffee 60 workdays in a row", Category: CategoryStreak, Metric: MetricStreak, Requirement: 60, Rarity: RarityPlatinum},
		{ID: "coffee-streak-master", Name: "Streak Master", Description: "Reached a 100-workday streak", Category: CategoryStreak, Metric: MetricStreak, Requirement: 100, Rarity: RarityPlatinum},
		{ID: "perfect-month", Name: "Perfect Month", Description: "Made coffee on every workday of a month", Category: CategoryStreak, Metric: MetricPerfectMonth, Requirement: 1, Rarity: RarityLegendary, Secret: true},

		// Milestones.
		{ID: "veteran", Name: "Veteran", Description: "Active for over 30 days", Category: CategoryMilestone, Metric: MetricDaysActive, Requirement: 30, Rarity: RarityRare},
		{ID: "ancient", Name: "Ancient", Description: "Active for over 90 days", Category: CategoryMilestone, Metric: MetricDaysActive, Requirement: 90, Rarity: RarityEpic},
		{ID: "founding-member", Name: "Founding Member", Description: "Active for over 180 days", Category: CategoryMilestone, Metric: MetricDaysActive, Requirement: 180, Rarity: RarityLegendary},
		{ID: "community-pillar", Name: "Community Pillar", Description: "Active for a full year", Category: CategoryMilestone, Metric: MetricDaysActive, Requirement: 365, Rarity: RarityPlatinum},
		{ID: "eternal-legend", Name: "Eternal Legend", Description: "Active for two full years", Category: CategoryMilestone, Metric: MetricDaysActive, Requirement: 730, Rarity: RarityPlatinum},
		{ID: "all-rounder", Name: "All-Rounder", Description: "Unlocked achievements in every category", Category: CategoryMilestone, Metric: MetricAllCategories, Requirement: 1, Rarity: RarityEpic},
		{ID: "perfectionist", Name: "Perfectionist", Description: "Unlocked 75% of all achievements", Category: CategoryMilestone, Metric: MetricAchievementPercent, Requirement: 0.75, Rarity: RarityLegendary},
		{ID: "completionist", Name: "Completionist", Description: "Unlocked every achievement", Category: CategoryMilestone, Metric: MetricAchievementPercent, Requirement: 1.0, Rarity: RarityPlatinum},

		// Fun and secret.
		{ID: "reactor", Name: "Reactor", Description: "Reacted to 100 messages", Category: CategoryFun, Metric: MetricReactionsGiven, Requirement: 100, Rarity: RarityRare},
		{ID: "reaction-god", Name: "Reaction God", Description: "Reacted to 500 messages", Category: CategoryFun, Metric: MetricReactionsGiven, Requirement: 500, Rarity: RarityLegendary},
		{ID: "speed-typer", Name: "Speed Typer", Description: "Sent 5 messages inside one minute", Category: CategoryFun, Metric: MetricMessagesPerMinute, Requirement: 5, Rarity: RarityRare, Secret: true},
		{ID: "coffee-duo", Name: "Coffee Duo", Description: "Made coffee the same day as another member", Category: CategoryFun, Metric: MetricCoffeeSameDay, Requirement: 1, Rarity: RarityRare, Secret: true},
		{ID: "triple-threat", Name: "Triple Threat", Description: "Made, brought and rated coffee on the same day", Category: CategoryFun, Metric: MetricTripleAction, Requirement: 1, Rarity: RarityLegendary, Secret: true},
		{ID: "silent-hero", Name: "Silent Hero", Description: "Brought supplies 10 times without announcing it", Category: CategorySupply, Metric: MetricHumbleSupplier, Requirement: 10, Rarity: RarityEpic, Secret: true},
	}
}
