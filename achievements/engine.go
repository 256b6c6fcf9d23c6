/*
Achievement rule engine.

Evaluation is a full catalog sweep against a fresh stats snapshot:
resolve every metric, unlock what newly qualifies, credit the XP through
the ledger. Both halves are idempotent, so a crash between them leaves a
repairable state and a re-run changes nothing.
*/
package achievements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/officebrew/points-engine/ledger"
)

// RarityXP resolves the XP reward for a rarity at evaluation time.
type RarityXP interface {
	AchievementXP(rarity string) int64
}

// Crediter is the slice of the ledger the engine needs.
type Crediter interface {
	Append(ctx context.Context, req ledger.AppendRequest) (ledger.Entry, error)
}

type Engine struct {
	catalog *Catalog
	stats   StatsProvider
	unlocks UnlockStore
	credit  Crediter
	rarity  RarityXP
	clock   func() time.Time
	newID   func() string
	log     *zap.Logger
}

type EngineOptions struct {
	Catalog *Catalog
	Stats   StatsProvider
	Unlocks UnlockStore
	Credit  Crediter
	Rarity  RarityXP
	Clock   func() time.Time
	NewID   func() string
	Logger  *zap.Logger
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		catalog: opts.Catalog,
		stats:   opts.Stats,
		unlocks: opts.Unlocks,
		credit:  opts.Credit,
		rarity:  opts.Rarity,
		clock:   opts.Clock,
		newID:   opts.NewID,
		log:     opts.Logger,
	}
}

// Catalog exposes the engine's catalog for display surfaces.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Unlocked returns the user's unlock set keyed by achievement ID.
func (e *Engine) Unlocked(ctx context.Context, userID ledger.UserID) (map[string]Unlock, error) {
	list, err := e.unlocks.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Unlock, len(list))
	for _, u := range list {
		out[u.AchievementID] = u
	}
	return out, nil
}

// EvaluateUser sweeps the whole catalog for one user and returns the
// unlocks awarded by this call. Already-unlocked achievements are never
// re-examined and never revoked, whatever the snapshot now says.
func (e *Engine) EvaluateUser(ctx context.Context, userID ledger.UserID) ([]Unlock, error) {
	snap, err := e.stats.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlocked, err := e.Unlocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Milestone metrics depend on the unlock set itself. A sweep can
	// therefore cascade: unlocking "sommelier" may tip
	// "achievement-percentage" over its threshold. One extra pass covers
	// that; requirements only reference the pre-pass set beyond depth two.
	var awarded []Unlock
	for pass := 0; pass < 2; pass++ {
		snap.UnlockedCount = int64(len(unlocked))
		snap.CatalogSize = int64(e.catalog.Size())
		snap.CategoriesAvailable = int64(e.catalog.Categories())
		snap.CategoriesUnlocked = countCategories(e.catalog, unlocked)

		progressed := false
		for _, def := range e.catalog.All() {
			if _, done := unlocked[def.ID]; done {
				continue
			}
			ok, merr := Met(def, snap)
			if merr != nil {
				return awarded, merr
			}
			if !ok {
				continue
			}
			u, uerr := e.award(ctx, userID, def)
			if uerr != nil {
				return awarded, uerr
			}
			unlocked[def.ID] = u
			awarded = append(awarded, u)
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return awarded, nil
}

// award persists the unlock and credits its XP. Either half may find its
// work already done; both outcomes count as success.
func (e *Engine) award(ctx context.Context, userID ledger.UserID, def Definition) (Unlock, error) {
	xp := e.rarity.AchievementXP(def.Rarity)
	u := Unlock{
		ID:            e.newID(),
		UserID:        userID,
		AchievementID: def.ID,
		Rarity:        def.Rarity,
		XPAwarded:     xp,
		UnlockedAt:    e.clock(),
	}

	err := e.unlocks.CreateUnlock(ctx, u)
	if err != nil && !errors.Is(err, ErrAlreadyUnlocked) {
		return Unlock{}, err
	}

	if xp > 0 {
		_, err = e.credit.Append(ctx, ledger.AppendRequest{
			UserID:    userID,
			Source:    ledger.SourceAchievement,
			SourceKey: def.ID,
			Amount:    xp,
			Reason:    "achievement unlocked: " + def.Name,
			Metadata: map[string]string{
				"achievement": def.ID,
				"rarity":      def.Rarity,
			},
		})
		if err != nil && !ledger.IsDuplicate(err) {
			return Unlock{}, err
		}
	}

	e.log.Info("achievement unlocked",
		zap.String("user", string(userID)),
		zap.String("achievement", def.ID),
		zap.String("rarity", def.Rarity),
		zap.Int64("xp", xp))
	return u, nil
}

func countCategories(c *Catalog, unlocked map[string]Unlock) int64 {
	cats := make(map[string]bool)
	for id := range unlocked {
		if def, ok := c.Get(id); ok {
			cats[def.Category] = true
		}
	}
	return int64(len(cats))
}
