package state

import (
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
)

// MaxNudgeHistory caps the nudges retained in EscalationState.
const MaxNudgeHistory = 20

// Interference level bounds.
const (
	MinLevel = 0
	MaxLevel = 3
)

// #region nudge
// Nudge is one emitted advisory. Immutable once created.
type Nudge struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	Level         int              `json:"level"`
	Text          string           `json:"text"`
	Analysis      signals.Analysis `json:"analysis"`
	BatchID       string           `json:"batchId,omitempty"`
	ManualTrigger bool             `json:"manualTrigger,omitempty"`
	Forced        bool             `json:"forced,omitempty"`
}
// #endregion nudge

// #region escalation-state
// EscalationState is the per-session interference state.
type EscalationState struct {
	Level       int
	LastNudgeAt time.Time // zero until the first nudge
	History     []Nudge   // oldest first, at most MaxNudgeHistory
}

// WithNudge returns a copy with n appended to history and recorded as the
// last nudge, even if an earlier-stamped nudge lands late. The oldest entries
// are dropped past MaxNudgeHistory.
func (s EscalationState) WithNudge(n Nudge) EscalationState {
	hist := make([]Nudge, 0, len(s.History)+1)
	hist = append(hist, s.History...)
	hist = append(hist, n)
	if over := len(hist) - MaxNudgeHistory; over > 0 {
		hist = hist[over:]
	}
	s.History = hist
	s.LastNudgeAt = n.Timestamp
	return s
}
// #endregion escalation-state

// #region batch-record
// BatchRecord is a sealed batch as persisted.
type BatchRecord struct {
	BatchID        string
	SessionID      string
	SealedAt       time.Time
	EntryCount     int
	Timespan       time.Duration
	SealReason     string
	StructuredText string
}
// #endregion batch-record

// #region provenance-row
// ProvenanceRow is a decision log row read back for inspection and replay.
type ProvenanceRow struct {
	ID          int64
	SessionID   string
	BatchID     string
	TriggerType string
	SignalsJSON string
	Decision    string
	Reason      string
	LevelBefore int
	LevelAfter  int
	CreatedAt   time.Time
}
// #endregion provenance-row
