package logging

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE provenance_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL,
		batch_id     TEXT,
		trigger_type TEXT NOT NULL,
		signals_json TEXT,
		decision     TEXT NOT NULL,
		reason       TEXT,
		level_before INTEGER NOT NULL,
		level_after  INTEGER NOT NULL,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		SessionID:   "s1",
		BatchID:     "b1",
		TriggerType: TriggerBatch,
		SignalsJSON: `{"analysis":{"concerningSignals":3}}`,
		Decision:    "nudge",
		Reason:      "cooldown elapsed",
		LevelBefore: 0,
		LevelAfter:  1,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var (
		count      int
		levelAfter int
	)
	db.QueryRow("SELECT COUNT(*), MAX(level_after) FROM provenance_log").Scan(&count, &levelAfter)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
	if levelAfter != 1 {
		t.Errorf("expected level_after 1, got %d", levelAfter)
	}
}

func TestLogDecision_EmptyOptionalFieldsAreNull(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogDecision(db, ProvenanceEntry{SessionID: "s1", TriggerType: TriggerManual, Decision: "failed"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var batchID, reason sql.NullString
	var created string
	db.QueryRow("SELECT batch_id, reason, created_at FROM provenance_log").Scan(&batchID, &reason, &created)
	if batchID.Valid || reason.Valid {
		t.Errorf("expected NULL batch_id and reason, got %v %v", batchID, reason)
	}
	if created == "" {
		t.Error("expected created_at defaulted")
	}
}

func TestLogDecision_ClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()
	if err := LogDecision(db, ProvenanceEntry{SessionID: "s1", TriggerType: TriggerBatch, Decision: "hold"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestLogRecord_SerializesAnalysis(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	rec := DecisionRecord{
		BatchID:     "b7",
		Analysis:    signals.Analysis{ConcerningSignals: 5, Urgency: signals.UrgencyMedium},
		LevelBefore: 1,
		LevelAfter:  2,
		Transition:  "escalate",
		GateAction:  "nudge",
	}
	if err := LogRecord(db, "s1", TriggerBatch, rec, "nudge", "passed", time.Time{}); err != nil {
		t.Fatalf("LogRecord: %v", err)
	}

	var raw, batchID string
	db.QueryRow("SELECT signals_json, batch_id FROM provenance_log").Scan(&raw, &batchID)
	if batchID != "b7" {
		t.Fatalf("expected batch b7, got %q", batchID)
	}
	var got DecisionRecord
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Analysis.ConcerningSignals != 5 || got.LevelAfter != 2 {
		t.Fatalf("unexpected record %+v", got)
	}
}

// #endregion log-decision-tests

func TestNewLoggerVerbose(t *testing.T) {
	l, err := NewLogger("development", true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatal("expected debug level enabled")
	}
}
