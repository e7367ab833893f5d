package gate

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region gate
// Gate decides whether enough has happened, and enough time has passed,
// to interrupt the user.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks the signal requirement first, then the cooldown for the
// level the escalation engine just settled on. Forced requests bypass both.
func (g *Gate) Evaluate(st state.EscalationState, a signals.Analysis, now time.Time, forced bool) GateDecision {
	var elapsed time.Duration
	if !st.LastNudgeAt.IsZero() {
		elapsed = now.Sub(st.LastNudgeAt)
	}

	if forced {
		return GateDecision{
			Action:   "nudge",
			Reason:   "forced request bypasses cooldown",
			Elapsed:  elapsed,
			Bypassed: true,
		}
	}

	// --- Signal requirement ---
	if !a.HasProblems() && !a.Patterns.SuccessIndicators {
		return GateDecision{
			Action:  "hold",
			Reason:  "no concerning signals and no success",
			Hold:    HoldNoSignal,
			Elapsed: elapsed,
		}
	}

	// --- Cooldown ---
	cooldown := g.Cooldown(st.Level, a)
	if !st.LastNudgeAt.IsZero() && elapsed <= cooldown {
		return GateDecision{
			Action:   "hold",
			Reason:   fmt.Sprintf("cooldown: %s elapsed of %s", elapsed.Round(time.Millisecond), cooldown),
			Hold:     HoldCooldown,
			Cooldown: cooldown,
			Elapsed:  elapsed,
		}
	}

	return GateDecision{
		Action:   "nudge",
		Reason:   fmt.Sprintf("passed gate: score=%d level=%d cooldown=%s", a.ConcerningSignals, st.Level, cooldown),
		Cooldown: cooldown,
		Elapsed:  elapsed,
	}
}

// Cooldown returns the wait applicable to level given the analysis.
func (g *Gate) Cooldown(level int, a signals.Analysis) time.Duration {
	if a.SuccessOnly() {
		return g.config.SuccessCooldown
	}
	if level < 0 {
		level = 0
	}
	if level >= len(g.config.LevelCooldowns) {
		level = len(g.config.LevelCooldowns) - 1
	}
	cooldown := g.config.LevelCooldowns[level]
	if a.Patterns.MathematicalContent && a.HasProblems() && cooldown > g.config.MathProblemCap {
		cooldown = g.config.MathProblemCap
	}
	return cooldown
}

// #endregion gate
