/*
Package reconcile repairs drift between the ledger, the balance rows and
the achievement unlocks.

The sweep replays every user's chain from zero and fixes what it finds:

  - duplicate confirmed entries for one idempotency key: all but the
    earliest are marked reversed
  - broken before/after chains: balances rewritten from the replay;
    reversed entries that carry their compensating entry stay in the
    chain (the pair nets to zero), entries reversed without one are
    collapsed duplicates and drop out
  - balance row below the replayed total: raised to match
  - balance row above the replayed total: flagged, never lowered - a
    higher stored balance means lost ledger entries, which a sweep must
    not silently destroy
  - unlock without its XP credit: the credit is appended
  - achievement credit without its unlock: the unlock is created

Every user's repairs commit as one store transaction, taken under the
same per-user lock the live ledger appends with, so a sweep can never
interleave with an append or leave a user half-fixed. Sweeps are
idempotent: a clean second pass reports zero anomalies.
*/
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/cache"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/level"
	"github.com/officebrew/points-engine/metrics"
)

// =============================================================================
// REPORT
// =============================================================================

type AnomalyKind string

const (
	AnomalyDuplicate     AnomalyKind = "duplicate-collapsed"
	AnomalyChainRepaired AnomalyKind = "chain-repaired"
	AnomalyBalanceRaised AnomalyKind = "balance-raised"
	AnomalyBalanceHigher AnomalyKind = "balance-higher-than-ledger"
	AnomalyMissingCredit AnomalyKind = "unlock-missing-credit"
	AnomalyMissingUnlock AnomalyKind = "credit-missing-unlock"
)

type Anomaly struct {
	UserID ledger.UserID
	Kind   AnomalyKind
	Detail string
}

type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Users      int
	Anomalies  []Anomaly
}

func (r *Report) add(userID ledger.UserID, kind AnomalyKind, detail string) {
	r.Anomalies = append(r.Anomalies, Anomaly{UserID: userID, Kind: kind, Detail: detail})
}

// =============================================================================
// RECONCILER
// =============================================================================

// RarityXP mirrors the achievement engine's rate lookup.
type RarityXP interface {
	AchievementXP(rarity string) int64
}

// RepairTx is the widened transactional view the repairs write through.
// Both shipped stores implement it on the view their WithTx hands out;
// the reconciler upgrades to it the way database/sql upgrades drivers
// to optional interfaces.
type RepairTx interface {
	ledger.Store

	AllEntries(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error)
	RewriteBalances(ctx context.Context, entries []ledger.Entry) error
	ListUnlocks(ctx context.Context, userID ledger.UserID) ([]achievements.Unlock, error)
	CreateUnlock(ctx context.Context, u achievements.Unlock) error
}

// ErrRepairUnsupported indicates the store's transaction view does not
// expose the repair surface.
var ErrRepairUnsupported = errors.New("store transaction does not support repairs")

type Reconciler struct {
	store   ledger.ReconcileStore
	catalog *achievements.Catalog
	rarity  RarityXP
	levels  level.Config
	cache   cache.BalanceCache
	metrics *metrics.Metrics
	clock   func() time.Time
	newID   func() string
	locks   *ledger.UserLocks
	log     *zap.Logger
}

type Options struct {
	Store   ledger.ReconcileStore
	Catalog *achievements.Catalog
	Rarity  RarityXP
	Levels  level.Config
	Cache   cache.BalanceCache
	Metrics *metrics.Metrics
	Clock   func() time.Time
	NewID   func() string
	Logger  *zap.Logger

	// Locks must be the same registry the live ledger writes under, so a
	// sweep and an append for one user never interleave. Nil gets a
	// private registry, acceptable only when nothing else writes.
	Locks *ledger.UserLocks
}

func New(opts Options) *Reconciler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Locks == nil {
		opts.Locks = ledger.NewUserLocks()
	}
	return &Reconciler{
		store:   opts.Store,
		catalog: opts.Catalog,
		rarity:  opts.Rarity,
		levels:  opts.Levels,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		newID:   opts.NewID,
		locks:   opts.Locks,
		log:     opts.Logger,
	}
}

// ReconcileAll sweeps every known user.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Report, error) {
	rep := Report{StartedAt: r.clock()}
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return rep, err
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := r.reconcileUser(ctx, userID, &rep); err != nil {
			return rep, err
		}
		rep.Users++
	}
	rep.FinishedAt = r.clock()
	if r.metrics != nil {
		r.metrics.ReconcileRuns.Inc()
		for _, a := range rep.Anomalies {
			r.metrics.ReconcileAnomalies.WithLabelValues(string(a.Kind)).Inc()
		}
	}
	r.log.Info("reconciliation sweep finished",
		zap.Int("users", rep.Users),
		zap.Int("anomalies", len(rep.Anomalies)),
		zap.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

// ReconcileUser sweeps a single user.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID ledger.UserID) (Report, error) {
	rep := Report{StartedAt: r.clock()}
	if err := r.reconcileUser(ctx, userID, &rep); err != nil {
		return rep, err
	}
	rep.Users = 1
	rep.FinishedAt = r.clock()
	return rep, nil
}

// reconcileUser repairs one user inside a single store transaction,
// serialized against live appends through the shared per-user lock. A
// failure rolls every fix for the user back together; nothing is ever
// left half-repaired.
func (r *Reconciler) reconcileUser(ctx context.Context, userID ledger.UserID, rep *Report) error {
	release := r.locks.Lock(userID)
	defer release()

	err := r.store.WithTx(ctx, func(view ledger.Store) error {
		tx, ok := view.(RepairTx)
		if !ok {
			return ErrRepairUnsupported
		}
		entries, err := tx.AllEntries(ctx, userID)
		if err != nil {
			return err
		}
		replayTotal, err := r.replayChain(ctx, tx, userID, entries, rep)
		if err != nil {
			return err
		}
		if err := r.fixBalanceRow(ctx, tx, userID, replayTotal, rep); err != nil {
			return err
		}
		return r.repairUnlockPairs(ctx, tx, userID, rep)
	})
	if err != nil {
		return err
	}

	if r.cache != nil {
		_ = r.cache.Invalidate(ctx, userID)
	}
	return nil
}

// replayChain walks the user's entries in order, collapsing duplicates
// and rewriting any entry whose before/after does not match the running
// total. Returns the replayed net total.
//
// A reversed entry that carries a confirmed compensating entry stays in
// the chain: the pair nets to zero, exactly as the live ledger wrote it.
// A reversed entry WITHOUT a compensation is a collapsed duplicate and
// contributes nothing.
func (r *Reconciler) replayChain(ctx context.Context, tx RepairTx, userID ledger.UserID, entries []ledger.Entry, rep *Report) (int64, error) {
	compensated := compensatedIDs(entries)
	seen := map[string]bool{}
	var running int64
	var rewrite []ledger.Entry

	now := r.clock()
	for i := range entries {
		e := entries[i]
		if e.Status == ledger.StatusReversed && !compensated[string(e.ID)] {
			continue
		}

		if e.Status == ledger.StatusConfirmed {
			key := e.IdempotencyKey()
			// Reversal and manual keys are unique by construction; only
			// action and achievement credits can legitimately collide.
			if seen[key] {
				if terr := tx.MarkReversed(ctx, e.ID, now.UnixNano(), "reconciler: duplicate collapsed"); terr != nil {
					return 0, terr
				}
				rep.add(userID, AnomalyDuplicate, key)
				continue
			}
			seen[key] = true
		}

		after := running + e.Amount
		if after < 0 {
			after = 0
		}
		if e.BalanceBefore != running || e.BalanceAfter != after {
			e.BalanceBefore = running
			e.BalanceAfter = after
			rewrite = append(rewrite, e)
			rep.add(userID, AnomalyChainRepaired, string(e.ID))
		}
		running = after
	}

	if len(rewrite) > 0 {
		if err := tx.RewriteBalances(ctx, rewrite); err != nil {
			return 0, err
		}
	}
	return running, nil
}

// fixBalanceRow raises a low balance row to the replayed total. A high
// row is only reported: it can mean lost entries, and destroying the
// evidence would make the loss unrecoverable.
func (r *Reconciler) fixBalanceRow(ctx context.Context, tx RepairTx, userID ledger.UserID, replayTotal int64, rep *Report) error {
	bal, err := tx.Balance(ctx, userID)
	if errors.Is(err, ledger.ErrUserNotFound) {
		bal = ledger.Balance{UserID: userID, Level: 1}
	} else if err != nil {
		return err
	}

	switch {
	case bal.TotalXP == replayTotal:
		return nil
	case bal.TotalXP > replayTotal:
		rep.add(userID, AnomalyBalanceHigher, "")
		r.log.Warn("balance row above replayed ledger total",
			zap.String("user", string(userID)),
			zap.Int64("row", bal.TotalXP),
			zap.Int64("replayed", replayTotal))
		return nil
	}

	rep.add(userID, AnomalyBalanceRaised, "")
	lvl, within, _ := r.levels.Progress(replayTotal)
	bal.TotalXP = replayTotal
	bal.Level = lvl
	bal.XPWithinLevel = within
	bal.UpdatedAt = r.clock()
	return tx.PutBalance(ctx, bal)
}

// repairUnlockPairs makes unlock records and achievement credits agree.
func (r *Reconciler) repairUnlockPairs(ctx context.Context, tx RepairTx, userID ledger.UserID, rep *Report) error {
	unlocks, err := tx.ListUnlocks(ctx, userID)
	if err != nil {
		return err
	}
	entries, err := tx.AllEntries(ctx, userID)
	if err != nil {
		return err
	}

	// A deliberately reversed achievement credit still counts as credited:
	// restoring it would undo the admin's reversal.
	compensated := compensatedIDs(entries)
	credited := map[string]bool{}
	for _, e := range entries {
		if e.Source != ledger.SourceAchievement {
			continue
		}
		if e.Status == ledger.StatusConfirmed || compensated[string(e.ID)] {
			credited[e.SourceKey] = true
		}
	}
	unlockedIDs := map[string]bool{}
	for _, u := range unlocks {
		unlockedIDs[u.AchievementID] = true
	}

	// Unlock without credit: append the missing XP.
	for _, u := range unlocks {
		if credited[u.AchievementID] {
			continue
		}
		def, ok := r.catalog.Get(u.AchievementID)
		if !ok {
			continue // removed from catalog, nothing to credit
		}
		xp := r.rarity.AchievementXP(def.Rarity)
		if xp <= 0 {
			continue
		}
		if err := r.appendRepairCredit(ctx, tx, userID, def, xp); err != nil {
			return err
		}
		rep.add(userID, AnomalyMissingCredit, u.AchievementID)
	}

	// Credit without unlock: create the missing record.
	for achievementID := range credited {
		if unlockedIDs[achievementID] {
			continue
		}
		def, ok := r.catalog.Get(achievementID)
		if !ok {
			continue
		}
		u := achievements.Unlock{
			ID:            r.newID(),
			UserID:        userID,
			AchievementID: def.ID,
			Rarity:        def.Rarity,
			XPAwarded:     r.rarity.AchievementXP(def.Rarity),
			UnlockedAt:    r.clock(),
		}
		if err := tx.CreateUnlock(ctx, u); err != nil && !errors.Is(err, achievements.ErrAlreadyUnlocked) {
			return err
		}
		rep.add(userID, AnomalyMissingUnlock, achievementID)
	}
	return nil
}

// compensatedIDs returns the IDs of entries that have a confirmed
// compensating reversal entry pointing at them.
func compensatedIDs(entries []ledger.Entry) map[string]bool {
	out := map[string]bool{}
	for _, e := range entries {
		if e.Source == ledger.SourceReversal && e.Status == ledger.StatusConfirmed {
			out[e.SourceKey] = true
		}
	}
	return out
}

// appendRepairCredit restores a lost achievement credit inside the
// caller's transaction, chaining off the current confirmed tip.
func (r *Reconciler) appendRepairCredit(ctx context.Context, tx RepairTx, userID ledger.UserID, def achievements.Definition, xp int64) error {
	before := int64(0)
	if last, err := tx.LastEntry(ctx, userID); err == nil {
		before = last.BalanceAfter
	} else if !errors.Is(err, ledger.ErrEntryNotFound) {
		return err
	}
	now := r.clock()
	e := ledger.Entry{
		ID:            ledger.EntryID(r.newID()),
		UserID:        userID,
		Source:        ledger.SourceAchievement,
		SourceKey:     def.ID,
		Amount:        xp,
		Reason:        "reconciler: restored achievement credit for " + def.Name,
		BalanceBefore: before,
		BalanceAfter:  before + xp,
		Status:        ledger.StatusConfirmed,
		Timestamp:     now,
		CreatedAt:     now,
	}
	if err := tx.AppendEntry(ctx, e); err != nil {
		return err
	}
	bal, err := tx.Balance(ctx, userID)
	if errors.Is(err, ledger.ErrUserNotFound) {
		bal = ledger.Balance{UserID: userID, Level: 1}
	} else if err != nil {
		return err
	}
	lvl, within, _ := r.levels.Progress(e.BalanceAfter)
	bal.TotalXP = e.BalanceAfter
	bal.Level = lvl
	bal.XPWithinLevel = within
	bal.UpdatedAt = now
	return tx.PutBalance(ctx, bal)
}
