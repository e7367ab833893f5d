package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region update-function
// Update is a pure function computing the next escalation state from the
// current state and a fresh analysis. History and last nudge time pass
// through untouched; only the level moves.
func Update(old state.EscalationState, a signals.Analysis, now time.Time, config Config) Result {
	level := old.Level
	var transitions []Transition

	if a.Patterns.SuccessIndicators && a.ConcerningSignals == 0 {
		if level > state.MinLevel {
			level--
			transitions = append(transitions, TransitionSuccess)
		}
	} else if target := targetLevel(a.ConcerningSignals, config); target > level {
		level = target
		transitions = append(transitions, TransitionEscalate)
	}

	var since time.Duration
	if !old.LastNudgeAt.IsZero() {
		since = now.Sub(old.LastNudgeAt)
	}
	if decayDue(old.LastNudgeAt, now, config) && a.ConcerningSignals < config.DecayMaxScore && level > state.MinLevel {
		level--
		transitions = append(transitions, TransitionDecay)
	}

	return finish(old, clamp(level), since, transitions)
}

// ForceManual applies the manual trigger floor: a level-0 session moves to 1.
func ForceManual(old state.EscalationState, now time.Time) Result {
	var since time.Duration
	if !old.LastNudgeAt.IsZero() {
		since = now.Sub(old.LastNudgeAt)
	}
	level := old.Level
	var transitions []Transition
	if level < 1 {
		level = 1
		transitions = append(transitions, TransitionManual)
	}
	return finish(old, clamp(level), since, transitions)
}

// #endregion update-function

// #region helpers
func targetLevel(score int, config Config) int {
	switch {
	case score >= config.ToLevel3:
		return 3
	case score >= config.ToLevel2:
		return 2
	case score >= config.ToLevel1:
		return 1
	default:
		return state.MinLevel
	}
}

// decayDue treats a session that has never been nudged as long past due.
func decayDue(last, now time.Time, config Config) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > config.DecayAfter
}

func clamp(level int) int {
	if level < state.MinLevel {
		return state.MinLevel
	}
	if level > state.MaxLevel {
		return state.MaxLevel
	}
	return level
}

func finish(old state.EscalationState, level int, since time.Duration, transitions []Transition) Result {
	next := old
	next.Level = level

	d := Decision{Action: "hold", Reason: "level unchanged"}
	switch {
	case level > old.Level:
		d.Action = "raise"
	case level < old.Level:
		d.Action = "lower"
	}
	if len(transitions) > 0 {
		names := make([]string, len(transitions))
		for i, t := range transitions {
			names[i] = string(t)
		}
		d.Reason = fmt.Sprintf("%s: %d -> %d", strings.Join(names, "+"), old.Level, level)
	}

	return Result{
		NewState: next,
		Decision: d,
		Metrics: Metrics{
			LevelBefore:    old.Level,
			LevelAfter:     level,
			SinceLastNudge: since,
			Transitions:    transitions,
		},
	}
}

// #endregion helpers
