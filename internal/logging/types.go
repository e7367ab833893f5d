package logging

import (
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
)

// Trigger types recorded in provenance_log.
const (
	TriggerBatch  = "batch"
	TriggerManual = "manual"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	SessionID   string
	BatchID     string
	TriggerType string
	SignalsJSON string
	Decision    string // "nudge" | "hold" | "silent" | "failed"
	Reason      string
	LevelBefore int
	LevelAfter  int
	CreatedAt   time.Time
}
// #endregion provenance-entry

// #region decision-record
// DecisionRecord captures the complete inputs of one escalation decision.
// Serialized as JSON into provenance_log.signals_json so a batch can be replayed.
type DecisionRecord struct {
	BatchID  string           `json:"batch_id"`
	Analysis signals.Analysis `json:"analysis"`

	// Escalation transition
	LevelBefore int    `json:"level_before"`
	LevelAfter  int    `json:"level_after"`
	Transition  string `json:"transition"`

	// Cooldown gate
	ElapsedMs  int64  `json:"elapsed_ms"`
	CooldownMs int64  `json:"cooldown_ms"`
	GateAction string `json:"gate_action"`
	GateReason string `json:"gate_reason"`

	// Dispatch outcome, empty when the gate held
	Outcome string `json:"outcome,omitempty"`
}
// #endregion decision-record
