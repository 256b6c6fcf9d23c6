/*
handlers.go - HTTP API handlers for the points engine

PURPOSE:
  Exposes the points engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Events:
    POST   /api/events                     Ingest an action event

  Users:
    GET    /api/users/{id}/balance         Balance, level, streaks
    GET    /api/users/{id}/ledger          Entry history (filterable)
    GET    /api/users/{id}/achievements    Catalog with unlock state
    GET    /api/users/{id}/audit           Earned/reversed totals for a period

  Catalog:
    GET    /api/achievements               Full catalog (secrets included)

  Admin:
    POST   /api/admin/adjustments          Manual signed XP adjustment
    POST   /api/admin/entries/{id}/reverse Reverse one entry
    POST   /api/admin/reconcile            Sweep all users
    POST   /api/admin/reconcile/{id}       Sweep one user
    GET    /api/admin/rates                Current rate table
    PUT    /api/admin/rates                Install a new rate table version

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (already reversed)
  - 500: Internal errors
  Duplicate events and cap hits are NOT errors: the response reports them
  and the status stays 200.

SECURITY NOTE:
  No authentication middleware. The engine is deployed behind the office
  gateway which terminates auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/points"
	"github.com/officebrew/points-engine/rates"
	"github.com/officebrew/points-engine/reconcile"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *points.Engine
	Reconciler *reconcile.Reconciler
	Rates      *rates.Source
	Catalog    *achievements.Catalog
	Log        *zap.Logger
}

func NewHandler(engine *points.Engine, rec *reconcile.Reconciler, src *rates.Source, catalog *achievements.Catalog, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Engine: engine, Reconciler: rec, Rates: src, Catalog: catalog, Log: log}
}

// =============================================================================
// JSON HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorDTO{Error: err.Error()})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, points.ErrInvalidEvent),
		errors.Is(err, ledger.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ledger.ErrAlreadyReversed):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.Log.Error("internal error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.Engine.ProcessEvent(r.Context(), req.toEvent())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := EventResultDTO{
		Entries:    toEntryDTOs(res.Entries),
		Duplicates: res.Duplicates,
		CapsHit:    res.CapsHit,
		Unlocks:    make([]UnlockDTO, 0, len(res.Unlocks)),
	}
	for _, u := range res.Unlocks {
		dto.Unlocks = append(dto.Unlocks, toUnlockDTO(u))
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// USER READS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))
	view, err := h.Engine.QueryBalance(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var f ledger.Filter
	q := r.URL.Query()
	if v := q.Get("source"); v != "" {
		src := ledger.Source(v)
		f.Source = &src
	}
	if v := q.Get("status"); v != "" {
		st := ledger.Status(v)
		f.Status = &st
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		f.To = &t
	}

	entries, err := h.Engine.QueryLedger(r.Context(), userID, f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))
	statuses, err := h.Engine.QueryAchievements(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]AchievementStatusDTO, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, AchievementStatusDTO{
			ID:          st.Definition.ID,
			Name:        st.Definition.Name,
			Description: st.Definition.Description,
			Category:    st.Definition.Category,
			Rarity:      st.Definition.Rarity,
			Secret:      st.Definition.Secret,
			Unlocked:    st.Unlocked,
			UnlockedAt:  st.UnlockedAt,
			XPAwarded:   st.XPAwarded,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		to = t
	}

	rep, err := h.Engine.Audit(r.Context(), userID, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAuditReportDTO(rep))
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	defs := h.Catalog.All()
	out := make([]DefinitionDTO, 0, len(defs))
	for _, d := range defs {
		out = append(out, DefinitionDTO{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Metric:      d.Metric,
			Requirement: d.Requirement,
			Rarity:      d.Rarity,
			Secret:      d.Secret,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.Amount == 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("user_id and non-zero amount required"))
		return
	}

	entry, err := h.Engine.AdminAdjust(r.Context(), ledger.UserID(req.UserID), req.Amount, req.Reason, req.Admin, req.Key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	entryID := ledger.EntryID(chi.URLParam(r, "id"))
	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	comp, err := h.Engine.ReverseEntry(r.Context(), entryID, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntryDTO(comp))
}

func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reconciler.ReconcileAll(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toReconcileReportDTO(rep))
}

func (h *Handler) TriggerReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))
	rep, err := h.Reconciler.ReconcileUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toReconcileReportDTO(rep))
}

func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, toRateTableDTO(h.Rates.Current()))
}

func (h *Handler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	var req UpdateRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	var actions map[ledger.Source]rates.Rate
	if req.Actions != nil {
		actions = make(map[ledger.Source]rates.Rate, len(req.Actions))
		for k, v := range req.Actions {
			actions[ledger.Source(k)] = v
		}
	}
	next := h.Rates.Update(actions, req.Rarities)
	h.Log.Info("rate table updated", zap.Int("version", next.Version))
	h.writeJSON(w, http.StatusOK, toRateTableDTO(next))
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
