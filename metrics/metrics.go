/*
Package metrics exposes the engine's Prometheus collectors.

Registered on a dedicated registry so tests can create isolated
instances without collector name collisions.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	EntriesAppended      *prometheus.CounterVec
	DuplicatesSuppressed *prometheus.CounterVec
	CapsHit              *prometheus.CounterVec
	Reversals            prometheus.Counter
	AchievementsUnlocked *prometheus.CounterVec
	ReconcileRuns        prometheus.Counter
	ReconcileAnomalies   *prometheus.CounterVec
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		EntriesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_ledger_entries_total",
			Help: "Ledger entries appended, by source.",
		}, []string{"source"}),
		DuplicatesSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_ledger_duplicates_total",
			Help: "Appends suppressed by the idempotency check, by source.",
		}, []string{"source"}),
		CapsHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_ledger_daily_cap_total",
			Help: "Appends blocked by a daily cap, by source.",
		}, []string{"source"}),
		Reversals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_ledger_reversals_total",
			Help: "Entries reversed.",
		}),
		AchievementsUnlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_achievements_unlocked_total",
			Help: "Achievements unlocked, by rarity.",
		}, []string{"rarity"}),
		ReconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_reconcile_runs_total",
			Help: "Reconciliation sweeps completed.",
		}),
		ReconcileAnomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_reconcile_anomalies_total",
			Help: "Anomalies found during reconciliation, by kind.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_balance_cache_hits_total",
			Help: "Balance reads served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_balance_cache_misses_total",
			Help: "Balance reads that fell through to the store.",
		}),
	}
	reg.MustRegister(
		m.EntriesAppended,
		m.DuplicatesSuppressed,
		m.CapsHit,
		m.Reversals,
		m.AchievementsUnlocked,
		m.ReconcileRuns,
		m.ReconcileAnomalies,
		m.CacheHits,
		m.CacheMisses,
		collectors.NewGoCollector(),
	)
	return m
}
