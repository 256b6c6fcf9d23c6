/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/cache"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/points"
	"github.com/officebrew/points-engine/rates"
	"github.com/officebrew/points-engine/reconcile"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventRequest is one incoming action event.
type EventRequest struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	ActorID   string     `json:"actor_id"`
	SubjectID string     `json:"subject_id,omitempty"`
	RefID     string     `json:"ref_id"`
	Emoji     string     `json:"emoji,omitempty"`
	Stars     int        `json:"stars,omitempty"`
	Announced bool       `json:"announced,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (r EventRequest) toEvent() points.Event {
	e := points.Event{
		ID:        r.ID,
		Kind:      points.EventKind(r.Kind),
		ActorID:   ledger.UserID(r.ActorID),
		SubjectID: ledger.UserID(r.SubjectID),
		RefID:     r.RefID,
		Emoji:     r.Emoji,
		Stars:     r.Stars,
		Announced: r.Announced,
	}
	if r.Timestamp != nil {
		e.Timestamp = *r.Timestamp
	}
	return e
}

// EventResultDTO reports what an event produced.
type EventResultDTO struct {
	Entries    []EntryDTO   `json:"entries"`
	Duplicates int          `json:"duplicates"`
	CapsHit    int          `json:"caps_hit"`
	Unlocks    []UnlockDTO  `json:"unlocks"`
	Balances   []cache.View `json:"balances,omitempty"`
}

// =============================================================================
// LEDGER
// =============================================================================

type EntryDTO struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Source        string            `json:"source"`
	SourceKey     string            `json:"source_key"`
	Amount        int64             `json:"amount"`
	Reason        string            `json:"reason,omitempty"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ReversedAt    *time.Time        `json:"reversed_at,omitempty"`
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:            string(e.ID),
		UserID:        string(e.UserID),
		Source:        string(e.Source),
		SourceKey:     e.SourceKey,
		Amount:        e.Amount,
		Reason:        e.Reason,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Status:        string(e.Status),
		Timestamp:     e.Timestamp,
		Metadata:      e.Metadata,
		ReversedAt:    e.ReversedAt,
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	out := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

type UnlockDTO struct {
	AchievementID string    `json:"achievement_id"`
	UserID        string    `json:"user_id"`
	Rarity        string    `json:"rarity"`
	XPAwarded     int64     `json:"xp_awarded"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

func toUnlockDTO(u achievements.Unlock) UnlockDTO {
	return UnlockDTO{
		AchievementID: u.AchievementID,
		UserID:        string(u.UserID),
		Rarity:        u.Rarity,
		XPAwarded:     u.XPAwarded,
		UnlockedAt:    u.UnlockedAt,
	}
}

type AchievementStatusDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Rarity      string     `json:"rarity"`
	Secret      bool       `json:"secret"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	XPAwarded   int64      `json:"xp_awarded,omitempty"`
}

type DefinitionDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Metric      string  `json:"metric"`
	Requirement float64 `json:"requirement"`
	Rarity      string  `json:"rarity"`
	Secret      bool    `json:"secret"`
}

// =============================================================================
// ADMIN
// =============================================================================

type AdjustRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Admin  string `json:"admin"`
	Key    string `json:"key,omitempty"`
}

type ReverseRequest struct {
	Reason string `json:"reason"`
}

type RateTableDTO struct {
	Version   int                   `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Actions   map[string]rates.Rate `json:"actions"`
	Rarities  map[string]int64      `json:"rarities"`
}

func toRateTableDTO(t rates.Table) RateTableDTO {
	actions := make(map[string]rates.Rate, len(t.Actions))
	for k, v := range t.Actions {
		actions[string(k)] = v
	}
	return RateTableDTO{
		Version:   t.Version,
		UpdatedAt: t.UpdatedAt,
		Actions:   actions,
		Rarities:  t.Rarities,
	}
}

type UpdateRatesRequest struct {
	Actions  map[string]rates.Rate `json:"actions"`
	Rarities map[string]int64      `json:"rarities"`
}

type ReconcileReportDTO struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Users      int          `json:"users"`
	Anomalies  []AnomalyDTO `json:"anomalies"`
}

type AnomalyDTO struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func toReconcileReportDTO(r reconcile.Report) ReconcileReportDTO {
	dto := ReconcileReportDTO{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Users:      r.Users,
		Anomalies:  make([]AnomalyDTO, 0, len(r.Anomalies)),
	}
	for _, a := range r.Anomalies {
		dto.Anomalies = append(dto.Anomalies, AnomalyDTO{
			UserID: string(a.UserID),
			Kind:   string(a.Kind),
			Detail: a.Detail,
		})
	}
	return dto
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditReportDTO struct {
	UserID     string           `json:"user_id"`
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Earned     int64            `json:"earned"`
	Reversed   int64            `json:"reversed"`
	Net        int64            `json:"net"`
	EntryCount int              `json:"entry_count"`
	BySource   map[string]int64 `json:"by_source"`
}

func toAuditReportDTO(r points.AuditReport) AuditReportDTO {
	by := make(map[string]int64, len(r.BySource))
	for k, v := range r.BySource {
		by[string(k)] = v
	}
	return AuditReportDTO{
		UserID:     string(r.UserID),
		From:       r.From,
		To:         r.To,
		Earned:     r.Earned,
		Reversed:   r.Reversed,
		Net:        r.Net,
		EntryCount: r.EntryCount,
		BySource:   by,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorDTO struct {
	Error string `json:"error"`
}
