package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session has no persisted state.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS escalation_state (
	session_id    TEXT PRIMARY KEY,
	level         INTEGER NOT NULL CHECK (level BETWEEN 0 AND 3),
	last_nudge_at TEXT,
	updated_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS batches (
	batch_id        TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	sealed_at       TEXT NOT NULL,
	entry_count     INTEGER NOT NULL,
	timespan_ms     INTEGER NOT NULL,
	seal_reason     TEXT,
	structured_text TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS nudges (
	nudge_id      TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	batch_id      TEXT,
	level         INTEGER NOT NULL,
	text          TEXT NOT NULL,
	analysis_json TEXT NOT NULL,
	manual        INTEGER NOT NULL DEFAULT 0,
	forced        INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	batch_id      TEXT,
	trigger_type  TEXT NOT NULL,
	signals_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	level_before  INTEGER NOT NULL,
	level_after   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE INDEX IF NOT EXISTS idx_nudges_session ON nudges(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_batches_session ON batches(session_id, sealed_at);
`
// #endregion schema

// #region store-struct
// Store persists session escalation state, sealed batches, nudges and
// decision provenance in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. ":memory:" gives a
// private in-process database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region sessions
// CreateSession registers a new session with a level-0 escalation state.
func (s *Store) CreateSession() (string, error) {
	id := uuid.New().String()
	now := formatTime(time.Now().UTC())

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sessions (session_id, created_at) VALUES (?, ?)`, id, now); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO escalation_state (session_id, level, last_nudge_at, updated_at) VALUES (?, 0, NULL, ?)`,
		id, now,
	); err != nil {
		return "", fmt.Errorf("insert escalation state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// EnsureSession registers sessionID if it is not known yet.
func (s *Store) EnsureSession(sessionID string) error {
	now := formatTime(time.Now().UTC())
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (session_id, created_at) VALUES (?, ?) ON CONFLICT(session_id) DO NOTHING`,
		sessionID, now,
	); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO escalation_state (session_id, level, last_nudge_at, updated_at) VALUES (?, 0, NULL, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, now,
	); err != nil {
		return fmt.Errorf("ensure escalation state: %w", err)
	}
	return tx.Commit()
}

// ListSessions returns session ids, newest first.
func (s *Store) ListSessions(limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT session_id FROM sessions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
// #endregion sessions

// #region escalation
// SaveEscalation upserts the level and last nudge time for a session.
// History is persisted through SaveNudge.
func (s *Store) SaveEscalation(sessionID string, st EscalationState) error {
	var last interface{}
	if !st.LastNudgeAt.IsZero() {
		last = formatTime(st.LastNudgeAt)
	}
	_, err := s.db.Exec(
		`INSERT INTO escalation_state (session_id, level, last_nudge_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET level = excluded.level,
		   last_nudge_at = excluded.last_nudge_at, updated_at = excluded.updated_at`,
		sessionID, st.Level, last, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("save escalation: %w", err)
	}
	return nil
}

// LoadEscalation reads a session's level, last nudge time and the most
// recent MaxNudgeHistory nudges.
func (s *Store) LoadEscalation(sessionID string) (EscalationState, error) {
	var (
		st   EscalationState
		last sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT level, last_nudge_at FROM escalation_state WHERE session_id = ?`, sessionID,
	).Scan(&st.Level, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return EscalationState{}, fmt.Errorf("load escalation %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return EscalationState{}, fmt.Errorf("load escalation: %w", err)
	}
	if last.Valid {
		st.LastNudgeAt = parseTime(last.String)
	}

	hist, err := s.ListNudges(sessionID, MaxNudgeHistory)
	if err != nil {
		return EscalationState{}, err
	}
	st.History = hist
	return st, nil
}
// #endregion escalation

// #region nudges
// SaveNudge appends a nudge to the session's persisted history.
func (s *Store) SaveNudge(sessionID string, n Nudge) error {
	analysisJSON, err := json.Marshal(n.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO nudges (nudge_id, session_id, batch_id, level, text, analysis_json, manual, forced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, sessionID, nullIfEmpty(n.BatchID), n.Level, n.Text, string(analysisJSON),
		boolInt(n.ManualTrigger), boolInt(n.Forced), formatTime(n.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert nudge: %w", err)
	}
	return nil
}

// ListNudges returns up to limit of the session's most recent nudges, oldest first.
func (s *Store) ListNudges(sessionID string, limit int) ([]Nudge, error) {
	rows, err := s.db.Query(
		`SELECT nudge_id, batch_id, level, text, analysis_json, manual, forced, created_at
		 FROM nudges WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list nudges: %w", err)
	}
	defer rows.Close()

	var out []Nudge
	for rows.Next() {
		var (
			n              Nudge
			batchID        sql.NullString
			analysisJSON   string
			manual, forced int
			created        string
		)
		if err := rows.Scan(&n.ID, &batchID, &n.Level, &n.Text, &analysisJSON, &manual, &forced, &created); err != nil {
			return nil, fmt.Errorf("scan nudge: %w", err)
		}
		if err := json.Unmarshal([]byte(analysisJSON), &n.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis for %s: %w", n.ID, err)
		}
		n.BatchID = batchID.String
		n.ManualTrigger = manual != 0
		n.Forced = forced != 0
		n.Timestamp = parseTime(created)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}
// #endregion nudges

// #region batches
// SaveBatch records a sealed batch.
func (s *Store) SaveBatch(rec BatchRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO batches (batch_id, session_id, sealed_at, entry_count, timespan_ms, seal_reason, structured_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.SessionID, formatTime(rec.SealedAt), rec.EntryCount,
		rec.Timespan.Milliseconds(), nullIfEmpty(rec.SealReason), rec.StructuredText,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// ListBatches returns up to limit of the session's most recent batches, oldest first.
func (s *Store) ListBatches(sessionID string, limit int) ([]BatchRecord, error) {
	rows, err := s.db.Query(
		`SELECT batch_id, sealed_at, entry_count, timespan_ms, seal_reason, structured_text
		 FROM batches WHERE session_id = ? ORDER BY sealed_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var (
			rec    BatchRecord
			sealed string
			spanMs int64
			reason sql.NullString
		)
		if err := rows.Scan(&rec.BatchID, &sealed, &rec.EntryCount, &spanMs, &reason, &rec.StructuredText); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		rec.SessionID = sessionID
		rec.SealedAt = parseTime(sealed)
		rec.Timespan = time.Duration(spanMs) * time.Millisecond
		rec.SealReason = reason.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}
// #endregion batches

// #region provenance
// ListProvenance returns up to limit of the session's most recent decision
// rows, oldest first.
func (s *Store) ListProvenance(sessionID string, limit int) ([]ProvenanceRow, error) {
	rows, err := s.db.Query(
		`SELECT id, batch_id, trigger_type, signals_json, decision, reason, level_before, level_after, created_at
		 FROM provenance_log WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceRow
	for rows.Next() {
		var (
			r                     ProvenanceRow
			batchID, sigs, reason sql.NullString
			created               string
		)
		if err := rows.Scan(&r.ID, &batchID, &r.TriggerType, &sigs, &r.Decision, &reason, &r.LevelBefore, &r.LevelAfter, &created); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		r.SessionID = sessionID
		r.BatchID = batchID.String
		r.SignalsJSON = sigs.String
		r.Reason = reason.String
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}
// #endregion provenance

// #region helpers
// fixed-width so lexical ORDER BY matches chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
// #endregion helpers
