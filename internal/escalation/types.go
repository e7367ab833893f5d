package escalation

import (
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region config
// Config holds the level thresholds and decay policy.
type Config struct {
	ToLevel1      int           // score at or above this raises level to at least 1
	ToLevel2      int           // ... at least 2
	ToLevel3      int           // ... 3
	DecayAfter    time.Duration // decay needs more than this since the last nudge
	DecayMaxScore int           // decay needs a score below this
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ToLevel1:      2,
		ToLevel2:      4,
		ToLevel3:      6,
		DecayAfter:    5 * time.Minute,
		DecayMaxScore: 2,
	}
}

// #endregion config

// #region decision
// Transition names one rule that changed the level.
type Transition string

const (
	TransitionEscalate Transition = "escalate"
	TransitionSuccess  Transition = "success_deescalate"
	TransitionDecay    Transition = "decay"
	TransitionManual   Transition = "manual_floor"
)

// Decision records what the update decided.
type Decision struct {
	Action string // "raise" | "lower" | "hold"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one update.
type Metrics struct {
	LevelBefore    int
	LevelAfter     int
	SinceLastNudge time.Duration // zero when there has been no nudge
	Transitions    []Transition
}

// #endregion metrics

// #region result
// Result bundles everything returned by Update.
type Result struct {
	NewState state.EscalationState
	Decision Decision
	Metrics  Metrics
}

// #endregion result
