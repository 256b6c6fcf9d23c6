/*
Points engine - the orchestrator.

ProcessEvent is the single entry point for action events:

  1. Journal the event (idempotent by event ID)
  2. Price it against the current rate table snapshot
  3. Append one ledger entry per credited party, caps enforced
  4. Invalidate the balance cache for everyone touched
  5. Re-evaluate achievements for everyone touched

A crash anywhere in the pipeline is safe to retry end to end: every step
is idempotent, and the reconciler repairs a half-finished unlock.
*/
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/cache"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/level"
	"github.com/officebrew/points-engine/metrics"
	"github.com/officebrew/points-engine/rates"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	ledger  *ledger.Ledger
	events  EventStore
	rates   rates.Provider
	achieve *achievements.Engine
	stats   *StatsService
	cache   cache.BalanceCache
	levels  level.Config
	metrics *metrics.Metrics
	clock   func() time.Time
	newID   func() string
	log     *zap.Logger
}

type EngineOptions struct {
	Ledger  *ledger.Ledger
	Events  EventStore
	Rates   rates.Provider
	Achieve *achievements.Engine
	Stats   *StatsService
	Cache   cache.BalanceCache
	Levels  level.Config
	Metrics *metrics.Metrics
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
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory(0)
	}
	return &Engine{
		ledger:  opts.Ledger,
		events:  opts.Events,
		rates:   opts.Rates,
		achieve: opts.Achieve,
		stats:   opts.Stats,
		cache:   opts.Cache,
		levels:  opts.Levels,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		newID:   opts.NewID,
		log:     opts.Logger,
	}
}

// =============================================================================
// PROCESS EVENT
// =============================================================================

// Result reports what one event produced.
type Result struct {
	Entries    []ledger.Entry
	Duplicates int
	CapsHit    int
	Unlocks    []achievements.Unlock
}

func (e *Engine) ProcessEvent(ctx context.Context, ev Event) (Result, error) {
	var res Result
	if err := ev.Validate(); err != nil {
		return res, err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.clock()
	}

	// Journal first. A duplicate event still runs the credit pipeline so
	// that a retry after a crash can finish the half-done work; the
	// ledger's own idempotency turns finished work into no-ops.
	if err := e.events.AppendEvent(ctx, ev); err != nil && !errors.Is(err, ErrDuplicateEvent) {
		return res, err
	}

	table := e.rates.Current()
	credits := deriveCredits(ev, table)

	touched := map[ledger.UserID]bool{}
	for _, req := range credits {
		entry, err := e.ledger.Append(ctx, req)
		switch {
		case err == nil:
			res.Entries = append(res.Entries, entry)
			touched[req.UserID] = true
			e.count(func(m *metrics.Metrics) {
				m.EntriesAppended.WithLabelValues(string(req.Source)).Inc()
			})
		case ledger.IsDuplicate(err):
			res.Duplicates++
			touched[req.UserID] = true
			e.count(func(m *metrics.Metrics) {
				m.DuplicatesSuppressed.WithLabelValues(string(req.Source)).Inc()
			})
		case ledger.IsCapReached(err):
			res.CapsHit++
			e.count(func(m *metrics.Metrics) {
				m.CapsHit.WithLabelValues(string(req.Source)).Inc()
			})
			e.log.Debug("daily cap reached",
				zap.String("user", string(req.UserID)),
				zap.String("source", string(req.Source)))
		default:
			return res, fmt.Errorf("credit %s for %s: %w", req.Source, req.UserID, err)
		}
	}

	for userID := range touched {
		if err := e.cache.Invalidate(ctx, userID); err != nil {
			e.log.Warn("cache invalidation failed",
				zap.String("user", string(userID)), zap.Error(err))
		}
		unlocks, err := e.achieve.EvaluateUser(ctx, userID)
		if err != nil {
			return res, fmt.Errorf("evaluate achievements for %s: %w", userID, err)
		}
		res.Unlocks = append(res.Unlocks, unlocks...)
		for _, u := range unlocks {
			e.count(func(m *metrics.Metrics) {
				m.AchievementsUnlocked.WithLabelValues(u.Rarity).Inc()
			})
			// Unlock credits changed the balance again.
			_ = e.cache.Invalidate(ctx, userID)
		}
	}
	return res, nil
}

// deriveCredits maps an event to the ledger appends it is worth under the
// given table snapshot. Reaction keys carry message, emoji and reactor so
// different reactors (or emojis) credit independently while retries of
// the same reaction collapse.
func deriveCredits(ev Event, table rates.Table) []ledger.AppendRequest {
	var out []ledger.AppendRequest

	add := func(userID ledger.UserID, source ledger.Source, key, reason string, meta map[string]string) {
		r := table.Reward(source)
		if r.Amount == 0 {
			return
		}
		out = append(out, ledger.AppendRequest{
			UserID:    userID,
			Source:    source,
			SourceKey: key,
			Amount:    r.Amount,
			Reason:    reason,
			Timestamp: ev.Timestamp,
			Metadata:  meta,
			DailyCap:  r.DailyCap,
		})
	}

	switch ev.Kind {
	case EventCoffeeMade:
		add(ev.ActorID, ledger.SourceCoffeeMade, ev.RefID, "made coffee", nil)
	case EventCoffeeBrought:
		add(ev.ActorID, ledger.SourceCoffeeBrought, ev.RefID, "brought coffee supplies", nil)
	case EventMessageSent:
		add(ev.ActorID, ledger.SourceMessageSent, ev.RefID, "sent a message", nil)
	case EventRatingGiven:
		meta := map[string]string{"coffee": ev.RefID, "stars": fmt.Sprint(ev.Stars)}
		add(ev.ActorID, ledger.SourceRatingGiven, ev.ID, "rated a coffee", meta)
		if ev.SubjectID != "" && ev.SubjectID != ev.ActorID {
			switch ev.Stars {
			case 5:
				add(ev.SubjectID, ledger.SourceFiveStarReceived, ev.ID, "received a 5-star rating", meta)
			case 4:
				add(ev.SubjectID, ledger.SourceFourStarReceived, ev.ID, "received a 4-star rating", meta)
			}
		}
	case EventReactionAdded:
		key := ev.RefID + ":" + ev.Emoji + ":" + string(ev.ActorID)
		meta := map[string]string{"message": ev.RefID, "emoji": ev.Emoji}
		add(ev.ActorID, ledger.SourceReactionGiven, key, "reacted to a message", meta)
		if ev.SubjectID != "" && ev.SubjectID != ev.ActorID {
			add(ev.SubjectID, ledger.SourceReactionReceived, key, "received a reaction", meta)
		}
	}
	return out
}

func (e *Engine) count(fn func(*metrics.Metrics)) {
	if e.metrics != nil {
		fn(e.metrics)
	}
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// AdminAdjust appends a manual, signed correction. Key, when empty, gets
// a fresh UUID so repeated calls are distinct adjustments; callers that
// want retry-safety pass their own key.
func (e *Engine) AdminAdjust(ctx context.Context, userID ledger.UserID, amount int64, reason, adminID, key string) (ledger.Entry, error) {
	if reason == "" {
		return ledger.Entry{}, fmt.Errorf("%w: adjustment requires a reason", ErrInvalidEvent)
	}
	if key == "" {
		key = e.newID()
	}
	entry, err := e.ledger.Append(ctx, ledger.AppendRequest{
		UserID:    userID,
		Source:    ledger.SourceManual,
		SourceKey: key,
		Amount:    amount,
		Reason:    reason,
		Metadata:  map[string]string{"admin": adminID},
	})
	if err != nil && !ledger.IsDuplicate(err) {
		return ledger.Entry{}, err
	}
	_ = e.cache.Invalidate(ctx, userID)
	e.log.Info("manual adjustment",
		zap.String("user", string(userID)),
		zap.String("admin", adminID),
		zap.Int64("amount", amount))
	return entry, nil
}

// ReverseEntry backs out one credit. Achievements the entry helped unlock
// stay unlocked.
func (e *Engine) ReverseEntry(ctx context.Context, entryID ledger.EntryID, reason string) (ledger.Entry, error) {
	comp, err := e.ledger.Reverse(ctx, entryID, reason)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.count(func(m *metrics.Metrics) { m.Reversals.Inc() })
	_ = e.cache.Invalidate(ctx, comp.UserID)
	return comp, nil
}

// =============================================================================
// READS
// =============================================================================

// QueryBalance serves the balance view, cache first.
func (e *Engine) QueryBalance(ctx context.Context, userID ledger.UserID) (cache.View, error) {
	if v, err := e.cache.Get(ctx, userID); err == nil {
		e.count(func(m *metrics.Metrics) { m.CacheHits.Inc() })
		return v, nil
	}
	e.count(func(m *metrics.Metrics) { m.CacheMisses.Inc() })

	bal, err := e.ledger.Balance(ctx, userID)
	if errors.Is(err, ledger.ErrUserNotFound) {
		bal = ledger.Balance{UserID: userID, Level: 1}
	} else if err != nil {
		return cache.View{}, err
	}

	lvl, within, toNext := e.levels.Progress(bal.TotalXP)
	v := cache.View{
		UserID:        userID,
		TotalXP:       bal.TotalXP,
		Level:         lvl,
		XPWithinLevel: within,
		XPToNext:      toNext,
		CachedAt:      e.clock(),
	}
	// Streaks come from the journal, not the balance row, so they stay
	// correct across reconciliations.
	if e.stats != nil {
		if snap, serr := e.stats.Snapshot(ctx, userID); serr == nil {
			v.StreakCurrent = int(snap.StreakCurrent)
			v.StreakBest = int(snap.StreakBest)
		}
	}
	if err := e.cache.Set(ctx, v); err != nil {
		e.log.Warn("cache write failed", zap.String("user", string(userID)), zap.Error(err))
	}
	return v, nil
}

// QueryLedger returns a page of the user's entries.
func (e *Engine) QueryLedger(ctx context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	return e.ledger.Entries(ctx, userID, f)
}

// QueryAchievements returns the visible catalog annotated with the
// user's unlock state. Secret achievements stay hidden until unlocked.
func (e *Engine) QueryAchievements(ctx context.Context, userID ledger.UserID) ([]AchievementStatus, error) {
	unlocked, err := e.achieve.Unlocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(unlocked))
	for id := range unlocked {
		ids[id] = true
	}
	var out []AchievementStatus
	for _, def := range e.achieve.Catalog().Visible(ids) {
		st := AchievementStatus{Definition: def}
		if u, ok := unlocked[def.ID]; ok {
			st.Unlocked = true
			st.UnlockedAt = &u.UnlockedAt
			st.XPAwarded = u.XPAwarded
		}
		out = append(out, st)
	}
	return out, nil
}

// AchievementStatus pairs a catalog entry with one user's unlock state.
type AchievementStatus struct {
	Definition achievements.Definition
	Unlocked   bool
	UnlockedAt *time.Time
	XPAwarded  int64
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditReport summarizes a user's ledger over a period. Reversed credits
// count toward Earned (the XP was earned in the period) and their
// compensations toward Reversed, so Net tracks the actual balance delta.
type AuditReport struct {
	UserID     ledger.UserID
	From, To   time.Time
	Earned     int64 // sum of positive amounts, reversed ones included
	Reversed   int64 // sum backed out by reversals (absolute)
	Net        int64
	EntryCount int
	BySource   map[ledger.Source]int64
}

func (e *Engine) Audit(ctx context.Context, userID ledger.UserID, from, to time.Time) (AuditReport, error) {
	entries, err := e.ledger.Entries(ctx, userID, ledger.Filter{From: &from, To: &to})
	if err != nil {
		return AuditReport{}, err
	}
	rep := AuditReport{
		UserID:   userID,
		From:     from,
		To:       to,
		BySource: map[ledger.Source]int64{},
	}
	compensated := map[string]bool{}
	for _, en := range entries {
		if en.Source == ledger.SourceReversal && en.Status == ledger.StatusConfirmed {
			compensated[en.SourceKey] = true
		}
	}
	for _, en := range entries {
		// Entries reversed without a compensation are collapsed
		// duplicates: they never counted.
		if en.Status == ledger.StatusReversed && !compensated[string(en.ID)] {
			continue
		}
		rep.EntryCount++
		rep.Net += en.Amount
		rep.BySource[en.Source] += en.Amount
		if en.Amount > 0 {
			rep.Earned += en.Amount
		} else if en.Source == ledger.SourceReversal {
			rep.Reversed += -en.Amount
		}
	}
	return rep, nil
}
