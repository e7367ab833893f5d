package gate

import "time"

// #region hold-type
// HoldType enumerates why the gate withheld a nudge.
type HoldType string

const (
	HoldNoSignal HoldType = "no_signal"
	HoldCooldown HoldType = "cooldown"
)

// #endregion hold-type

// #region gate-config
// GateConfig holds the cooldown policy.
type GateConfig struct {
	LevelCooldowns  [4]time.Duration // indexed by interference level
	SuccessCooldown time.Duration    // flat cooldown for success without problems
	MathProblemCap  time.Duration    // ceiling when math content co-occurs with problems
}

// DefaultGateConfig returns the fast cooldown table.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		LevelCooldowns:  [4]time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second, 30 * time.Second},
		SuccessCooldown: 5 * time.Second,
		MathProblemCap:  8 * time.Second,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action   string // "nudge" | "hold"
	Reason   string
	Hold     HoldType      // empty when Action is "nudge"
	Cooldown time.Duration // applicable cooldown, zero when bypassed
	Elapsed  time.Duration // since last nudge, zero if never nudged
	Bypassed bool          // forced request skipped the cooldown
}

// #endregion gate-decision
