/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  ledger.ReconcileStore:    entries + balance rows + replay surface
  achievements.UnlockStore: unlock records
  points.EventStore:        the action journal

APPEND-ONLY ENFORCEMENT:
  Entries are never updated except for the reversal status flip and the
  reconciler's chain rewrite; amounts never change after insert. The
  partial unique index on (user_id, source, source_key) WHERE
  status='confirmed' makes double-crediting impossible even across
  processes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/points"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; funneling through one connection
	// avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source TEXT NOT NULL,
		source_key TEXT NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT,
		balance_before INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		status TEXT NOT NULL,
		ts TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL,
		reversed_at TEXT,
		reversed_reason TEXT
	);

	-- Idempotency: at most one confirmed entry per (user, source, key)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_idempotency
		ON ledger_entries(user_id, source, source_key)
		WHERE status = 'confirmed';

	-- Chronological reads per user (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_user_ts
		ON ledger_entries(user_id, ts, created_at);

	CREATE INDEX IF NOT EXISTS idx_entries_source
		ON ledger_entries(source);

	-- Denormalized balance rows
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		total_xp INTEGER NOT NULL,
		level INTEGER NOT NULL,
		xp_within_level INTEGER NOT NULL,
		daily_json TEXT,
		streak_current INTEGER NOT NULL DEFAULT 0,
		streak_best INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Achievement unlocks
	CREATE TABLE IF NOT EXISTS achievement_unlocks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		rarity TEXT NOT NULL,
		xp_awarded INTEGER NOT NULL,
		unlocked_at TEXT NOT NULL,
		UNIQUE(user_id, achievement_id)
	);

	CREATE INDEX IF NOT EXISTS idx_unlocks_user
		ON achievement_unlocks(user_id);

	-- Action event journal
	CREATE TABLE IF NOT EXISTS action_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		subject_id TEXT,
		ref_id TEXT NOT NULL,
		emoji TEXT,
		stars INTEGER,
		announced INTEGER NOT NULL DEFAULT 0,
		ts TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_actor ON action_events(actor_id, ts);
	CREATE INDEX IF NOT EXISTS idx_events_subject ON action_events(subject_id, ts);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON action_events(kind, ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// dbtx abstracts *sql.DB and *sql.Tx so the same queries serve both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const entryColumns = `id, user_id, source, source_key, amount, reason,
	balance_before, balance_after, status, ts, metadata_json, created_at,
	reversed_at, reversed_reason`

func appendEntry(ctx context.Context, q dbtx, e ledger.Entry) error {
	var meta *string
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal entry metadata: %w", err)
		}
		m := string(raw)
		meta = &m
	}
	var reversedAt *string
	if e.ReversedAt != nil {
		t := e.ReversedAt.UTC().Format(time.RFC3339Nano)
		reversedAt = &t
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.UserID), string(e.Source), e.SourceKey,
		e.Amount, e.Reason, e.BalanceBefore, e.BalanceAfter, string(e.Status),
		e.Timestamp.UTC().Format(time.RFC3339Nano), meta,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), reversedAt, e.ReversedReason)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ledger.ErrDuplicateEntry
	}
	return err
}

func scanEntry(scan func(dest ...any) error) (ledger.Entry, error) {
	var (
		e                     ledger.Entry
		id, userID, source    string
		status, ts, createdAt string
		meta, reversedAt      sql.NullString
		reversedReason        sql.NullString
	)
	err := scan(&id, &userID, &source, &e.SourceKey, &e.Amount, &e.Reason,
		&e.BalanceBefore, &e.BalanceAfter, &status, &ts, &meta, &createdAt,
		&reversedAt, &reversedReason)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.ID = ledger.EntryID(id)
	e.UserID = ledger.UserID(userID)
	e.Source = ledger.Source(source)
	e.Status = ledger.Status(status)
	if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return ledger.Entry{}, fmt.Errorf("parse entry timestamp: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return ledger.Entry{}, fmt.Errorf("parse entry created_at: %w", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
			return ledger.Entry{}, fmt.Errorf("unmarshal entry metadata: %w", err)
		}
	}
	if reversedAt.Valid {
		t, perr := time.Parse(time.RFC3339Nano, reversedAt.String)
		if perr != nil {
			return ledger.Entry{}, fmt.Errorf("parse reversed_at: %w", perr)
		}
		e.ReversedAt = &t
	}
	e.ReversedReason = reversedReason.String
	return e, nil
}

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, s.db, e)
}

func findBySourceKey(ctx context.Context, q dbtx, userID ledger.UserID, source ledger.Source, sourceKey string) (ledger.Entry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = ? AND source = ? AND source_key = ?
		ORDER BY CASE status WHEN 'confirmed' THEN 0 ELSE 1 END, created_at DESC
		LIMIT 1`,
		string(userID), string(source), sourceKey)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) FindBySourceKey(ctx context.Context, userID ledger.UserID, source ledger.Source, sourceKey string) (ledger.Entry, error) {
	return findBySourceKey(ctx, s.db, userID, source, sourceKey)
}

func getEntry(ctx context.Context, q dbtx, id ledger.EntryID) (ledger.Entry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, string(id))
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	return getEntry(ctx, s.db, id)
}

func loadEntries(ctx context.Context, q dbtx, userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = ?`
	args := []any{string(userID)}
	if f.Source != nil {
		query += ` AND source = ?`
		args = append(args, string(*f.Source))
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*f.Status))
	}
	if f.From != nil {
		query += ` AND ts >= ?`
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if f.To != nil {
		query += ` AND ts <= ?`
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY ts, created_at`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, f.Offset)
		}
	} else if f.Offset > 0 {
		query += fmt.Sprintf(` LIMIT -1 OFFSET %d`, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, serr := scanEntry(rows.Scan)
		if serr != nil {
			return nil, serr
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) LoadEntries(ctx context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	return loadEntries(ctx, s.db, userID, f)
}

func lastEntry(ctx context.Context, q dbtx, userID ledger.UserID) (ledger.Entry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = ? AND status = 'confirmed'
		ORDER BY ts DESC, created_at DESC LIMIT 1`, string(userID))
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) LastEntry(ctx context.Context, userID ledger.UserID) (ledger.Entry, error) {
	return lastEntry(ctx, s.db, userID)
}

func markReversed(ctx context.Context, q dbtx, id ledger.EntryID, at int64, reason string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = 'reversed', reversed_at = ?, reversed_reason = ?
		WHERE id = ?`,
		time.Unix(0, at).UTC().Format(time.RFC3339Nano), reason, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) MarkReversed(ctx context.Context, id ledger.EntryID, at int64, reason string) error {
	return markReversed(ctx, s.db, id, at, reason)
}

func balance(ctx context.Context, q dbtx, userID ledger.UserID) (ledger.Balance, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_id, total_xp, level, xp_within_level, daily_json,
		       streak_current, streak_best, updated_at
		FROM balances WHERE user_id = ?`, string(userID))

	var (
		b         ledger.Balance
		id        string
		daily     sql.NullString
		updatedAt string
	)
	err := row.Scan(&id, &b.TotalXP, &b.Level, &b.XPWithinLevel, &daily,
		&b.StreakCurrent, &b.StreakBest, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Balance{}, ledger.ErrUserNotFound
	}
	if err != nil {
		return ledger.Balance{}, err
	}
	b.UserID = ledger.UserID(id)
	b.Daily = map[ledger.Source]ledger.DailyCounter{}
	if daily.Valid && daily.String != "" {
		if err := json.Unmarshal([]byte(daily.String), &b.Daily); err != nil {
			return ledger.Balance{}, fmt.Errorf("unmarshal daily counters: %w", err)
		}
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return ledger.Balance{}, fmt.Errorf("parse balance updated_at: %w", err)
	}
	return b, nil
}

func (s *Store) Balance(ctx context.Context, userID ledger.UserID) (ledger.Balance, error) {
	return balance(ctx, s.db, userID)
}

func putBalance(ctx context.Context, q dbtx, b ledger.Balance) error {
	raw, err := json.Marshal(b.Daily)
	if err != nil {
		return fmt.Errorf("marshal daily counters: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO balances (user_id, total_xp, level, xp_within_level,
			daily_json, streak_current, streak_best, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_xp = excluded.total_xp,
			level = excluded.level,
			xp_within_level = excluded.xp_within_level,
			daily_json = excluded.daily_json,
			streak_current = excluded.streak_current,
			streak_best = excluded.streak_best,
			updated_at = excluded.updated_at`,
		string(b.UserID), b.TotalXP, b.Level, b.XPWithinLevel, string(raw),
		b.StreakCurrent, b.StreakBest, b.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) PutBalance(ctx context.Context, b ledger.Balance) error {
	return putBalance(ctx, s.db, b)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	view := &txView{tx: tx}
	if err := fn(view); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type txView struct {
	tx *sql.Tx
}

func (v *txView) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, v.tx, e)
}

func (v *txView) FindBySourceKey(ctx context.Context, userID ledger.UserID, source ledger.Source, sourceKey string) (ledger.Entry, error) {
	return findBySourceKey(ctx, v.tx, userID, source, sourceKey)
}

func (v *txView) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.Entry, error) {
	return getEntry(ctx, v.tx, id)
}

func (v *txView) LoadEntries(ctx context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Entry, error) {
	return loadEntries(ctx, v.tx, userID, f)
}

func (v *txView) LastEntry(ctx context.Context, userID ledger.UserID) (ledger.Entry, error) {
	return lastEntry(ctx, v.tx, userID)
}

func (v *txView) MarkReversed(ctx context.Context, id ledger.EntryID, at int64, reason string) error {
	return markReversed(ctx, v.tx, id, at, reason)
}

func (v *txView) Balance(ctx context.Context, userID ledger.UserID) (ledger.Balance, error) {
	return balance(ctx, v.tx, userID)
}

func (v *txView) PutBalance(ctx context.Context, b ledger.Balance) error {
	return putBalance(ctx, v.tx, b)
}

// The repair surface the reconciler widens the view to.

func (v *txView) AllEntries(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	return loadEntries(ctx, v.tx, userID, ledger.Filter{})
}

func (v *txView) RewriteBalances(ctx context.Context, entries []ledger.Entry) error {
	return rewriteBalances(ctx, v.tx, entries)
}

func (v *txView) ListUnlocks(ctx context.Context, userID ledger.UserID) ([]achievements.Unlock, error) {
	return listUnlocks(ctx, v.tx, userID)
}

func (v *txView) CreateUnlock(ctx context.Context, u achievements.Unlock) error {
	return createUnlock(ctx, v.tx, u)
}

// =============================================================================
// RECONCILE STORE
// =============================================================================

func (s *Store) ListUsers(ctx context.Context) ([]ledger.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM ledger_entries
		UNION SELECT user_id FROM balances
		ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, ledger.UserID(id))
	}
	return out, rows.Err()
}

func (s *Store) AllEntries(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	return loadEntries(ctx, s.db, userID, ledger.Filter{})
}

func rewriteBalances(ctx context.Context, q dbtx, entries []ledger.Entry) error {
	for _, e := range entries {
		res, err := q.ExecContext(ctx, `
			UPDATE ledger_entries SET balance_before = ?, balance_after = ?
			WHERE id = ?`, e.BalanceBefore, e.BalanceAfter, string(e.ID))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.ErrEntryNotFound
		}
	}
	return nil
}

func (s *Store) RewriteBalances(ctx context.Context, entries []ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := rewriteBalances(ctx, tx, entries); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// UNLOCK STORE
// =============================================================================

func createUnlock(ctx context.Context, q dbtx, u achievements.Unlock) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO achievement_unlocks (id, user_id, achievement_id, rarity, xp_awarded, unlocked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, string(u.UserID), u.AchievementID, u.Rarity, u.XPAwarded,
		u.UnlockedAt.UTC().Format(time.RFC3339Nano))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return achievements.ErrAlreadyUnlocked
	}
	return err
}

func (s *Store) CreateUnlock(ctx context.Context, u achievements.Unlock) error {
	return createUnlock(ctx, s.db, u)
}

func listUnlocks(ctx context.Context, q dbtx, userID ledger.UserID) ([]achievements.Unlock, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, achievement_id, rarity, xp_awarded, unlocked_at
		FROM achievement_unlocks WHERE user_id = ? ORDER BY unlocked_at`,
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []achievements.Unlock
	for rows.Next() {
		var (
			u          achievements.Unlock
			id         string
			unlockedAt string
		)
		if err := rows.Scan(&u.ID, &id, &u.AchievementID, &u.Rarity, &u.XPAwarded, &unlockedAt); err != nil {
			return nil, err
		}
		u.UserID = ledger.UserID(id)
		if u.UnlockedAt, err = time.Parse(time.RFC3339Nano, unlockedAt); err != nil {
			return nil, fmt.Errorf("parse unlocked_at: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListUnlocks(ctx context.Context, userID ledger.UserID) ([]achievements.Unlock, error) {
	return listUnlocks(ctx, s.db, userID)
}

func (s *Store) HasUnlock(ctx context.Context, userID ledger.UserID, achievementID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM achievement_unlocks
		WHERE user_id = ? AND achievement_id = ?`,
		string(userID), achievementID).Scan(&n)
	return n > 0, err
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, e points.Event) error {
	announced := 0
	if e.Announced {
		announced = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_events (id, kind, actor_id, subject_id, ref_id, emoji, stars, announced, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), string(e.ActorID), string(e.SubjectID), e.RefID,
		e.Emoji, e.Stars, announced, e.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return points.ErrDuplicateEvent
	}
	return err
}

const eventColumns = `id, kind, actor_id, subject_id, ref_id, emoji, stars, announced, ts`

func (s *Store) queryEvents(ctx context.Context, where string, args ...any) ([]points.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM action_events WHERE `+where+` ORDER BY ts`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []points.Event
	for rows.Next() {
		var (
			e                 points.Event
			kind, actor, subj string
			announced         int
			ts                string
		)
		if err := rows.Scan(&e.ID, &kind, &actor, &subj, &e.RefID, &e.Emoji, &e.Stars, &announced, &ts); err != nil {
			return nil, err
		}
		e.Kind = points.EventKind(kind)
		e.ActorID = ledger.UserID(actor)
		e.SubjectID = ledger.UserID(subj)
		e.Announced = announced != 0
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) EventsByActor(ctx context.Context, userID ledger.UserID) ([]points.Event, error) {
	return s.queryEvents(ctx, `actor_id = ?`, string(userID))
}

func (s *Store) EventsBySubject(ctx context.Context, userID ledger.UserID) ([]points.Event, error) {
	return s.queryEvents(ctx, `subject_id = ?`, string(userID))
}

func (s *Store) EventsOfKind(ctx context.Context, kind points.EventKind) ([]points.Event, error) {
	return s.queryEvents(ctx, `kind = ?`, string(kind))
}
