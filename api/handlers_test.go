package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/api"
	"github.com/officebrew/points-engine/cache"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/level"
	"github.com/officebrew/points-engine/points"
	"github.com/officebrew/points-engine/rates"
	"github.com/officebrew/points-engine/reconcile"
	"github.com/officebrew/points-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	levels := level.DefaultConfig()
	locks := ledger.NewUserLocks()
	led := ledger.New(ledger.Options{
		Store:  store,
		Levels: levels.LevelFunc(),
		Retry:  ledger.RetryPolicy{Attempts: 3, BaseWait: time.Millisecond},
		Locks:  locks,
	})
	catalog := achievements.MustDefaultCatalog()
	stats := points.NewStatsService(store)
	src := rates.NewSource(rates.Defaults())
	achieve := achievements.NewEngine(achievements.EngineOptions{
		Catalog: catalog,
		Stats:   stats,
		Unlocks: store,
		Credit:  led,
		Rarity:  rates.Defaults(),
	})
	engine := points.NewEngine(points.EngineOptions{
		Ledger:  led,
		Events:  store,
		Rates:   src,
		Achieve: achieve,
		Stats:   stats,
		Cache:   cache.NewMemory(time.Minute),
		Levels:  levels,
	})
	rec := reconcile.New(reconcile.Options{
		Store:   store,
		Catalog: catalog,
		Rarity:  rates.Defaults(),
		Levels:  levels,
		Locks:   locks,
	})

	h := api.NewHandler(engine, rec, src, catalog, nil)
	srv := httptest.NewServer(api.NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ingestCoffee posts a coffee-made event and returns the ledger entry ID.
func ingestCoffee(t *testing.T, srv *httptest.Server, eventID, actor, refID string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/events", map[string]any{
		"id": eventID, "kind": "coffee-made", "actor_id": actor, "ref_id": refID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[api.EventResultDTO](t, resp)
	require.NotEmpty(t, res.Entries)
	return res.Entries[0].ID
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

// =============================================================================
// EVENTS
// =============================================================================

func TestIngestEvent_Coffee(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/events", map[string]any{
		"id": "ev-1", "kind": "coffee-made", "actor_id": "alice", "ref_id": "c-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[api.EventResultDTO](t, resp)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, int64(50), res.Entries[0].Amount)
	assert.Equal(t, "coffee-made", res.Entries[0].Source)
	assert.Equal(t, 0, res.Duplicates)

	ids := make([]string, 0, len(res.Unlocks))
	for _, u := range res.Unlocks {
		ids = append(ids, u.AchievementID)
	}
	assert.Contains(t, ids, "first-coffee")
}

func TestIngestEvent_DuplicateReportedNotError(t *testing.T) {
	srv := newTestServer(t)
	ev := map[string]any{"id": "ev-1", "kind": "coffee-made", "actor_id": "alice", "ref_id": "c-1"}

	resp := postJSON(t, srv.URL+"/api/events", ev)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/events", ev)
	require.Equal(t, http.StatusOK, resp.StatusCode, "a redelivery is not an error")
	res := decode[api.EventResultDTO](t, resp)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 1, res.Duplicates)
}

func TestIngestEvent_UnknownKind(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/events", map[string]any{
		"id": "ev-1", "kind": "espresso-shot", "actor_id": "alice", "ref_id": "c-1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestEvent_MalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/events", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// USER READS
// =============================================================================

func TestGetBalance(t *testing.T) {
	srv := newTestServer(t)
	ingestCoffee(t, srv, "ev-1", "alice", "c-1")

	resp, err := http.Get(srv.URL + "/api/users/alice/balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[cache.View](t, resp)
	// 50 for the coffee plus 25 for first-coffee, possibly more if the
	// test happens to run on a weekend or early morning.
	assert.GreaterOrEqual(t, view.TotalXP, int64(75))
	assert.GreaterOrEqual(t, view.Level, 1)
}

func TestGetBalance_UnknownUser_ZeroView(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/users/ghost/balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[cache.View](t, resp)
	assert.Equal(t, int64(0), view.TotalXP)
	assert.Equal(t, 1, view.Level)
}

func TestGetLedger_SourceFilter(t *testing.T) {
	srv := newTestServer(t)
	ingestCoffee(t, srv, "ev-1", "alice", "c-1")
	ingestCoffee(t, srv, "ev-2", "alice", "c-2")

	resp, err := http.Get(srv.URL + "/api/users/alice/ledger?source=coffee-made")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]api.EntryDTO](t, resp)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "coffee-made", e.Source)
	}

	resp, err = http.Get(srv.URL + "/api/users/alice/ledger?source=achievement")
	require.NoError(t, err)
	achEntries := decode[[]api.EntryDTO](t, resp)
	assert.NotEmpty(t, achEntries)
}

func TestGetLedger_BadFromTimestamp(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/users/alice/ledger?from=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAchievements_HidesLockedSecrets(t *testing.T) {
	srv := newTestServer(t)
	ingestCoffee(t, srv, "ev-1", "alice", "c-1")

	resp, err := http.Get(srv.URL + "/api/users/alice/achievements")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	statuses := decode[[]api.AchievementStatusDTO](t, resp)
	require.NotEmpty(t, statuses)

	var sawFirstCoffee bool
	for _, st := range statuses {
		if st.Secret && !st.Unlocked {
			t.Errorf("locked secret %s leaked into the response", st.ID)
		}
		if st.ID == "first-coffee" {
			sawFirstCoffee = true
			assert.True(t, st.Unlocked)
			assert.NotNil(t, st.UnlockedAt)
			assert.Equal(t, int64(25), st.XPAwarded)
		}
	}
	assert.True(t, sawFirstCoffee)
}

func TestListCatalog_IncludesSecrets(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/achievements")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defs := decode[[]api.DefinitionDTO](t, resp)
	assert.Len(t, defs, 65)

	var secrets int
	for _, d := range defs {
		if d.Secret {
			secrets++
		}
	}
	assert.Greater(t, secrets, 0, "the admin catalog shows everything")
}

func TestGetAudit(t *testing.T) {
	srv := newTestServer(t)
	ingestCoffee(t, srv, "ev-1", "alice", "c-1")

	resp, err := http.Get(srv.URL + "/api/users/alice/audit")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rep := decode[api.AuditReportDTO](t, resp)
	assert.Equal(t, "alice", rep.UserID)
	assert.GreaterOrEqual(t, rep.Earned, int64(75))
	assert.Equal(t, rep.Earned-rep.Reversed, rep.Net)
	assert.Equal(t, int64(50), rep.BySource["coffee-made"])
}

// =============================================================================
// ADMIN
// =============================================================================

func TestCreateAdjustment(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/admin/adjustments", api.AdjustRequest{
		UserID: "alice", Amount: 500, Reason: "hackathon prize", Admin: "root",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	e := decode[api.EntryDTO](t, resp)
	assert.Equal(t, "manual", e.Source)
	assert.Equal(t, int64(500), e.Amount)
	assert.Equal(t, int64(500), e.BalanceAfter)
}

func TestCreateAdjustment_MissingReason(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/admin/adjustments", api.AdjustRequest{
		UserID: "alice", Amount: 500, Admin: "root",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAdjustment_ZeroAmount(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/admin/adjustments", api.AdjustRequest{
		UserID: "alice", Reason: "no-op", Admin: "root",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReverseEntry(t *testing.T) {
	srv := newTestServer(t)
	entryID := ingestCoffee(t, srv, "ev-1", "alice", "c-1")

	resp := postJSON(t, srv.URL+"/api/admin/entries/"+entryID+"/reverse", api.ReverseRequest{Reason: "machine was broken"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comp := decode[api.EntryDTO](t, resp)
	assert.Equal(t, "reversal", comp.Source)
	assert.Equal(t, int64(-50), comp.Amount)

	// Reversing again conflicts.
	resp = postJSON(t, srv.URL+"/api/admin/entries/"+entryID+"/reverse", api.ReverseRequest{Reason: "again"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReverseEntry_Unknown(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/admin/entries/nope/reverse", api.ReverseRequest{Reason: "x"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTriggerReconcile(t *testing.T) {
	srv := newTestServer(t)
	ingestCoffee(t, srv, "ev-1", "alice", "c-1")

	resp := postJSON(t, srv.URL+"/api/admin/reconcile", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decode[api.ReconcileReportDTO](t, resp)
	assert.Equal(t, 1, rep.Users)
	assert.Empty(t, rep.Anomalies)

	resp = postJSON(t, srv.URL+"/api/admin/reconcile/alice", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep = decode[api.ReconcileReportDTO](t, resp)
	assert.Equal(t, 1, rep.Users)
}

func TestRates_GetAndUpdate(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/admin/rates")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	table := decode[api.RateTableDTO](t, resp)
	assert.Equal(t, 1, table.Version)
	assert.Equal(t, int64(50), table.Actions["coffee-made"].Amount)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/admin/rates", bytes.NewReader(mustJSON(t, api.UpdateRatesRequest{
		Actions: map[string]rates.Rate{"coffee-made": {Amount: 60}},
	})))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	table = decode[api.RateTableDTO](t, resp)
	assert.Equal(t, 2, table.Version)
	assert.Equal(t, int64(60), table.Actions["coffee-made"].Amount)

	// The new table drives subsequent credits.
	resp = postJSON(t, srv.URL+"/api/events", map[string]any{
		"id": "ev-1", "kind": "coffee-made", "actor_id": "alice", "ref_id": "c-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[api.EventResultDTO](t, resp)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, int64(60), res.Entries[0].Amount)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// =============================================================================
// IDEMPOTENT INGESTION UNDER LOAD
// =============================================================================

func TestIngestEvent_ManyUsers(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 5; i++ {
		user := fmt.Sprintf("user-%d", i)
		resp := postJSON(t, srv.URL+"/api/events", map[string]any{
			"id": fmt.Sprintf("ev-%d", i), "kind": "coffee-made", "actor_id": user, "ref_id": "c-1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := postJSON(t, srv.URL+"/api/admin/reconcile", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decode[api.ReconcileReportDTO](t, resp)
	assert.Equal(t, 5, rep.Users)
	assert.Empty(t, rep.Anomalies)
}
