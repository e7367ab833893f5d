package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (session_id, batch_id, trigger_type, signals_json, decision, reason, level_before, level_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		nullIfEmpty(entry.BatchID),
		entry.TriggerType,
		nullIfEmpty(entry.SignalsJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.LevelBefore,
		entry.LevelAfter,
		entry.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// LogRecord serializes rec and logs it with the given trigger and decision.
func LogRecord(db *sql.DB, sessionID, trigger string, rec DecisionRecord, decision, reason string, at time.Time) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}
	return LogDecision(db, ProvenanceEntry{
		SessionID:   sessionID,
		BatchID:     rec.BatchID,
		TriggerType: trigger,
		SignalsJSON: string(raw),
		Decision:    decision,
		Reason:      reason,
		LevelBefore: rec.LevelBefore,
		LevelAfter:  rec.LevelAfter,
		CreatedAt:   at,
	})
}
// #endregion log-decision

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
