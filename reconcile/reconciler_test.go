package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/level"
	"github.com/officebrew/points-engine/rates"
	"github.com/officebrew/points-engine/reconcile"
	"github.com/officebrew/points-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	rec    *reconcile.Reconciler
	ledger *ledger.Ledger
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return wireFixture(t, store, store)
}

// wireFixture wires the reconciler against txStore (usually the memory
// store itself, sometimes a wrapper) while the raw store stays reachable
// for seeding and assertions. Ledger and reconciler share one lock
// registry, like production wiring.
func wireFixture(t *testing.T, store *memory.Store, txStore ledger.ReconcileStore) *fixture {
	t.Helper()
	levels := level.DefaultConfig()
	locks := ledger.NewUserLocks()
	led := ledger.New(ledger.Options{
		Store:  store,
		Levels: levels.LevelFunc(),
		Retry:  ledger.RetryPolicy{Attempts: 3, BaseWait: time.Millisecond},
		Locks:  locks,
	})
	var idSeq int
	rec := reconcile.New(reconcile.Options{
		Store:   txStore,
		Catalog: achievements.MustDefaultCatalog(),
		Rarity:  rates.Defaults(),
		Levels:  levels,
		Locks:   locks,
		NewID: func() string {
			idSeq++
			return fmt.Sprintf("repair-%d", idSeq)
		},
	})
	return &fixture{rec: rec, ledger: led, store: store}
}

// seedEntry writes a raw entry directly, bypassing the ledger's chain and
// idempotency guards, to stage the corruption a sweep must repair.
func (f *fixture) seedEntry(t *testing.T, e ledger.Entry) {
	t.Helper()
	if e.Status == "" {
		e.Status = ledger.StatusConfirmed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.Timestamp
	}
	require.NoError(t, f.store.AppendEntry(context.Background(), e))
}

func (f *fixture) seedBalance(t *testing.T, user ledger.UserID, total int64) {
	t.Helper()
	require.NoError(t, f.store.PutBalance(context.Background(), ledger.Balance{
		UserID: user, TotalXP: total, Level: 1, UpdatedAt: time.Now(),
	}))
}

func kinds(rep reconcile.Report) []reconcile.AnomalyKind {
	out := make([]reconcile.AnomalyKind, 0, len(rep.Anomalies))
	for _, a := range rep.Anomalies {
		out = append(out, a.Kind)
	}
	return out
}

func at(minute int) time.Time {
	return time.Date(2025, time.March, 5, 10, minute, 0, 0, time.UTC)
}

// =============================================================================
// CLEAN SWEEPS
// =============================================================================

func TestReconcile_CleanLedger_NoAnomalies(t *testing.T) {
	// GIVEN: Entries written only through the ledger
	// WHEN: A sweep runs
	// THEN: Nothing is flagged and nothing changes

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1", Amount: 50, Timestamp: at(0),
	})
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-2", Amount: 50, Timestamp: at(1),
	})
	require.NoError(t, err)

	rep, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Users)
	assert.Empty(t, rep.Anomalies)

	bal, err := f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.TotalXP)
}

func TestReconcile_LiveReversal_NoAnomalies(t *testing.T) {
	// GIVEN: A coffee credit, an achievement credit, and an admin reversal
	//        of the coffee - all through the live ledger
	// WHEN: A sweep runs
	// THEN: The reversal pair is recognized as-is: zero anomalies, the
	//       balance row untouched

	f := newFixture(t)
	ctx := context.Background()

	coffee, err := f.ledger.Append(ctx, ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1", Amount: 50, Timestamp: at(0),
	})
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceAchievement, SourceKey: "first-coffee", Amount: 25, Timestamp: at(1),
	})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateUnlock(ctx, achievements.Unlock{
		ID: "u-1", UserID: "alice", AchievementID: "first-coffee",
		Rarity: achievements.RarityCommon, XPAwarded: 25, UnlockedAt: at(1),
	}))

	_, err = f.ledger.Reverse(ctx, coffee.ID, "machine was broken")
	require.NoError(t, err)

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies, "a live reversal is not drift")

	bal, err := f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(25), bal.TotalXP)

	// And again, to prove the sweep did not disturb anything.
	rep, err = f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies)
}

// =============================================================================
// DUPLICATE COLLAPSE
// =============================================================================

func TestReconcile_DuplicateConfirmed_CollapsesLater(t *testing.T) {
	// GIVEN: Two confirmed entries for the same idempotency tuple
	// WHEN: A sweep runs
	// THEN: The later one is marked reversed; the earlier survives

	f := newFixture(t)
	ctx := context.Background()

	f.seedEntry(t, ledger.Entry{
		ID: "e-1", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 0, BalanceAfter: 50, Timestamp: at(0),
	})
	f.seedEntry(t, ledger.Entry{
		ID: "e-2", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 50, BalanceAfter: 100, Timestamp: at(1),
	})
	f.seedBalance(t, "alice", 50)

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []reconcile.AnomalyKind{reconcile.AnomalyDuplicate}, kinds(rep))

	entries, err := f.store.AllEntries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.StatusConfirmed, entries[0].Status)
	assert.Equal(t, ledger.StatusReversed, entries[1].Status)
	assert.NotNil(t, entries[1].ReversedAt)

	rep, err = f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies, "second sweep is clean")
}

// =============================================================================
// CHAIN REPAIR
// =============================================================================

func TestReconcile_BrokenChain_Rewritten(t *testing.T) {
	// GIVEN: An entry whose before/after disagrees with the running total
	// WHEN: A sweep runs
	// THEN: The balances are rewritten from the replay

	f := newFixture(t)
	ctx := context.Background()

	f.seedEntry(t, ledger.Entry{
		ID: "e-1", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 0, BalanceAfter: 50, Timestamp: at(0),
	})
	f.seedEntry(t, ledger.Entry{
		ID: "e-2", UserID: "alice", Source: ledger.SourceRatingGiven, SourceKey: "c-9",
		Amount: 15, BalanceBefore: 10, BalanceAfter: 25, Timestamp: at(1),
	})
	f.seedBalance(t, "alice", 65)

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []reconcile.AnomalyKind{reconcile.AnomalyChainRepaired}, kinds(rep))

	entries, err := f.store.AllEntries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), entries[1].BalanceBefore)
	assert.Equal(t, int64(65), entries[1].BalanceAfter)

	rep, err = f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies)
}

// =============================================================================
// BALANCE ROW
// =============================================================================

func TestReconcile_MissingBalanceRow_Raised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedEntry(t, ledger.Entry{
		ID: "e-1", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 0, BalanceAfter: 50, Timestamp: at(0),
	})

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []reconcile.AnomalyKind{reconcile.AnomalyBalanceRaised}, kinds(rep))

	bal, err := f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal.TotalXP)
	assert.Equal(t, 1, bal.Level)

	rep, err = f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies)
}

func TestReconcile_BalanceAboveLedger_FlaggedNeverLowered(t *testing.T) {
	// A row above the replayed total means entries were lost. The sweep
	// reports it and leaves the row alone - every time.

	f := newFixture(t)
	ctx := context.Background()

	f.seedEntry(t, ledger.Entry{
		ID: "e-1", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 0, BalanceAfter: 50, Timestamp: at(0),
	})
	f.seedBalance(t, "alice", 500)

	for sweep := 0; sweep < 2; sweep++ {
		rep, err := f.rec.ReconcileUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []reconcile.AnomalyKind{reconcile.AnomalyBalanceHigher}, kinds(rep), "sweep %d", sweep)

		bal, err := f.store.Balance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(500), bal.TotalXP)
	}
}

// =============================================================================
// UNLOCK / CREDIT PAIRS
// =============================================================================

func TestReconcile_UnlockWithoutCredit_CreditAppended(t *testing.T) {
	// GIVEN: An unlock record whose XP append was lost
	// WHEN: A sweep runs
	// THEN: The credit is restored at the rarity's rate

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateUnlock(ctx, achievements.Unlock{
		ID: "u-1", UserID: "alice", AchievementID: "first-coffee",
		Rarity: achievements.RarityCommon, XPAwarded: 25, UnlockedAt: at(0),
	}))

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []reconcile.AnomalyKind{reconcile.AnomalyMissingCredit}, kinds(rep))

	entries, err := f.store.AllEntries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.SourceAchievement, entries[0].Source)
	assert.Equal(t, "first-coffee", entries[0].SourceKey)
	assert.Equal(t, int64(25), entries[0].Amount)

	bal, err := f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(25), bal.TotalXP)

	rep, err = f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies)
}

func TestReconcile_CreditWithoutUnlock_UnlockCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceAchievement, SourceKey: "first-coffee", Amount: 25, Timestamp: at(0),
	})
	require.NoError(t, err)

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []reconcile.AnomalyKind{reconcile.AnomalyMissingUnlock}, kinds(rep))

	has, err := f.store.HasUnlock(ctx, "alice", "first-coffee")
	require.NoError(t, err)
	assert.True(t, has)

	unlocks, err := f.store.ListUnlocks(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, achievements.RarityCommon, unlocks[0].Rarity)
	assert.Equal(t, int64(25), unlocks[0].XPAwarded)

	rep, err = f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rep.Anomalies)
}

// =============================================================================
// SWEEP ATOMICITY
// =============================================================================

// countingTxStore records how many transactions the sweep opens.
type countingTxStore struct {
	*memory.Store
	calls int
}

func (s *countingTxStore) WithTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	s.calls++
	return s.Store.WithTx(ctx, fn)
}

func TestReconcileUser_AllRepairsInOneTransaction(t *testing.T) {
	// GIVEN: A user needing a duplicate collapse, a balance raise and a
	//        restored achievement credit
	// WHEN: The user is swept
	// THEN: Every fix commits through a single store transaction

	store := memory.New()
	counting := &countingTxStore{Store: store}
	f := wireFixture(t, store, counting)
	ctx := context.Background()

	f.seedEntry(t, ledger.Entry{
		ID: "e-1", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 0, BalanceAfter: 50, Timestamp: at(0),
	})
	f.seedEntry(t, ledger.Entry{
		ID: "e-2", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 50, BalanceAfter: 100, Timestamp: at(1),
	})
	require.NoError(t, f.store.CreateUnlock(ctx, achievements.Unlock{
		ID: "u-1", UserID: "alice", AchievementID: "first-coffee",
		Rarity: achievements.RarityCommon, XPAwarded: 25, UnlockedAt: at(2),
	}))

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls, "one transaction per user")
	assert.ElementsMatch(t, []reconcile.AnomalyKind{
		reconcile.AnomalyDuplicate,
		reconcile.AnomalyBalanceRaised,
		reconcile.AnomalyMissingCredit,
	}, kinds(rep))

	bal, err := f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(75), bal.TotalXP, "50 kept coffee + 25 restored credit")
}

// commitFailStore lets one transaction do its work and then fails it,
// standing in for a crash at commit time.
type commitFailStore struct {
	*memory.Store
	fail bool
}

func (s *commitFailStore) WithTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.Store.WithTx(ctx, func(tx ledger.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		if s.fail {
			s.fail = false
			return errors.New("simulated commit failure")
		}
		return nil
	})
}

func TestReconcileUser_FailedSweep_LeavesNothingHalfFixed(t *testing.T) {
	// GIVEN: A duplicate pair and a stale balance row, and a store whose
	//        first transaction fails at commit
	// WHEN: The user is swept twice
	// THEN: The failed sweep changes nothing; the retry fixes everything

	store := memory.New()
	failing := &commitFailStore{Store: store, fail: true}
	f := wireFixture(t, store, failing)
	ctx := context.Background()

	f.seedEntry(t, ledger.Entry{
		ID: "e-1", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 0, BalanceAfter: 50, Timestamp: at(0),
	})
	f.seedEntry(t, ledger.Entry{
		ID: "e-2", UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1",
		Amount: 50, BalanceBefore: 50, BalanceAfter: 100, Timestamp: at(1),
	})
	f.seedBalance(t, "alice", 10)

	_, err := f.rec.ReconcileUser(ctx, "alice")
	require.Error(t, err)

	entries, err := f.store.AllEntries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, entries[0].Status)
	assert.Equal(t, ledger.StatusConfirmed, entries[1].Status, "rolled back with the rest")
	bal, err := f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal.TotalXP, "rolled back with the rest")

	rep, err := f.rec.ReconcileUser(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []reconcile.AnomalyKind{
		reconcile.AnomalyDuplicate,
		reconcile.AnomalyBalanceRaised,
	}, kinds(rep))
	bal, err = f.store.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal.TotalXP)
}

// =============================================================================
// FULL SWEEP
// =============================================================================

func TestReconcileAll_VisitsEveryUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, user := range []ledger.UserID{"alice", "bob", "carol"} {
		_, err := f.ledger.Append(ctx, ledger.AppendRequest{
			UserID: user, Source: ledger.SourceCoffeeMade, SourceKey: "c-1", Amount: 50, Timestamp: at(0),
		})
		require.NoError(t, err)
	}

	rep, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Users)
	assert.Empty(t, rep.Anomalies)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

func TestReconcileAll_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.ledger.Append(ctx, ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1", Amount: 50, Timestamp: at(0),
	})
	require.NoError(t, err)
	cancel()

	_, err = f.rec.ReconcileAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestScheduler_SweepsOnInterval(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Append(context.Background(), ledger.AppendRequest{
		UserID: "alice", Source: ledger.SourceCoffeeMade, SourceKey: "c-1", Amount: 50, Timestamp: at(0),
	})
	require.NoError(t, err)

	s := reconcile.NewScheduler(f.rec, 10*time.Millisecond, nil)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for s.LastReport() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	last := s.LastReport()
	require.NotNil(t, last, "scheduler never swept")
	assert.Equal(t, 1, last.Users)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := reconcile.NewScheduler(f.rec, time.Hour, nil)
	s.Start()
	s.Stop()
	s.Stop()
	s.Start()
	s.Stop()
}
