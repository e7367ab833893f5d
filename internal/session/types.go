package session

import (
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/batch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/gate"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// Decision values recorded for each analyzed batch.
const (
	DecisionNudge  = "nudge"
	DecisionHold   = "hold"
	DecisionSilent = "silent"
	DecisionFailed = "failed"
)

// #region report
// Report describes how one batch moved through analysis, escalation, the
// cooldown gate and dispatch.
type Report struct {
	BatchID     string
	Trigger     string
	SealedAt    time.Time
	Analysis    signals.Analysis
	LevelBefore int
	LevelAfter  int
	Transition  string
	Gate        gate.GateDecision
	Decision    string
	Reason      string
	Nudge       *state.Nudge
}

// #endregion report

// #region seal
// Seal describes a batch the scheduler closed.
type Seal struct {
	Batch  batch.Batch
	Reason batch.SealReason
}

// #endregion seal

// #region snapshot
// Snapshot is a read-only view of a session.
type Snapshot struct {
	SessionID      string        `json:"sessionId"`
	Level          int           `json:"level"`
	LastNudgeAt    *time.Time    `json:"lastNudgeAt,omitempty"`
	PendingEntries int           `json:"pendingEntries"`
	BufferedTotal  int           `json:"bufferedTotal"`
	Batches        int           `json:"batches"`
	Nudges         int           `json:"nudges"`
	InFlight       bool          `json:"inFlight"`
	LastSealAt     time.Time     `json:"lastSealAt"`
	SinceLastNudge time.Duration `json:"sinceLastNudgeNs,omitempty"`
}

// #endregion snapshot
