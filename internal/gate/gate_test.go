package gate

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func concern(score int) signals.Analysis {
	return signals.Analysis{ConcerningSignals: score, Patterns: signals.Patterns{Errors: score > 0}}
}

func success() signals.Analysis {
	return signals.Analysis{Patterns: signals.Patterns{CompletionSignals: true, SuccessIndicators: true}}
}

func lastNudge(level int, ago time.Duration) state.EscalationState {
	return state.EscalationState{Level: level, LastNudgeAt: now.Add(-ago)}
}

func TestGateHoldsWithoutSignals(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Evaluate(state.EscalationState{}, signals.Analysis{}, now, false)
	if d.Action != "hold" || d.Hold != HoldNoSignal {
		t.Fatalf("expected no_signal hold, got %+v", d)
	}
}

func TestGateFirstNudgePasses(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Evaluate(state.EscalationState{Level: 1}, concern(3), now, false)
	if d.Action != "nudge" {
		t.Fatalf("expected nudge on first trigger, got %+v", d)
	}
}

func TestGateLevelCooldowns(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	tests := []struct {
		level int
		want  time.Duration
	}{
		{0, 10 * time.Second}, {1, 15 * time.Second}, {2, 20 * time.Second}, {3, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := g.Cooldown(tt.level, concern(2)); got != tt.want {
			t.Errorf("level %d: expected %v, got %v", tt.level, tt.want, got)
		}
		held := g.Evaluate(lastNudge(tt.level, tt.want-time.Second), concern(2), now, false)
		if held.Action != "hold" || held.Hold != HoldCooldown {
			t.Errorf("level %d: expected cooldown hold, got %+v", tt.level, held)
		}
		passed := g.Evaluate(lastNudge(tt.level, tt.want+time.Second), concern(2), now, false)
		if passed.Action != "nudge" {
			t.Errorf("level %d: expected nudge after cooldown, got %+v", tt.level, passed)
		}
	}
}

func TestGateElapsedMustExceedCooldown(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Evaluate(lastNudge(0, 10*time.Second), concern(2), now, false)
	if d.Action != "hold" {
		t.Fatalf("elapsed equal to cooldown must hold, got %+v", d)
	}
}

func TestGateSuccessCooldown(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	if got := g.Cooldown(3, success()); got != 5*time.Second {
		t.Fatalf("expected 5s success cooldown, got %v", got)
	}
	d := g.Evaluate(lastNudge(3, 6*time.Second), success(), now, false)
	if d.Action != "nudge" {
		t.Fatalf("expected success nudge after 6s, got %+v", d)
	}
}

func TestGateMathProblemCap(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	a := concern(4)
	a.Patterns.MathematicalContent = true
	if got := g.Cooldown(2, a); got != 8*time.Second {
		t.Fatalf("expected 8s cap, got %v", got)
	}
	if got := g.Cooldown(0, a); got != 8*time.Second {
		t.Fatalf("expected 8s cap at level 0, got %v", got)
	}
	noProblems := signals.Analysis{Patterns: signals.Patterns{MathematicalContent: true, SuccessIndicators: true}}
	if got := g.Cooldown(2, noProblems); got != 5*time.Second {
		t.Fatalf("expected success cooldown without problems, got %v", got)
	}
}

func TestGateForcedBypasses(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Evaluate(lastNudge(3, time.Second), signals.Analysis{}, now, true)
	if d.Action != "nudge" || !d.Bypassed {
		t.Fatalf("expected forced bypass, got %+v", d)
	}
}

func TestGateCooldownRespectProperty(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	for level := 0; level <= 3; level++ {
		for score := 1; score <= 8; score++ {
			a := concern(score)
			cd := g.Cooldown(level, a)
			for ago := time.Duration(0); ago < cd; ago += 500 * time.Millisecond {
				if d := g.Evaluate(lastNudge(level, ago), a, now, false); d.Action != "hold" {
					t.Fatalf("level=%d score=%d ago=%v: expected hold, got %+v", level, score, ago, d)
				}
			}
		}
	}
}
