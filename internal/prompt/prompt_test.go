package prompt

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
)

const batchText = `<batch timestamp="2026-03-01T10:00:00.000Z" entries="1">
<change timestamp="2026-03-01T10:00:00.000Z"><error_signal>stuck</error_signal></change>
</batch>`

func problem() signals.Analysis {
	return signals.Analysis{
		ConcerningSignals: 4,
		SignalTypes:       []signals.Signal{signals.SignalError, signals.SignalFrequentErrors},
		Urgency:           signals.UrgencyMedium,
	}
}

func TestBuildGuideEmbedsBatchAndSignals(t *testing.T) {
	p, mode := Build(Request{Level: 2, Analysis: problem(), BatchText: batchText})
	if mode != ModeGuide {
		t.Fatalf("expected guide mode, got %s", mode)
	}
	for _, want := range []string{batchText, "error, frequent_errors", "URGENCY: medium", "LEVEL 2", Silent} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildLevelBlocks(t *testing.T) {
	for level, marker := range map[int]string{1: "LEVEL 1", 2: "LEVEL 2", 3: "LEVEL 3", 0: "LEVEL 1"} {
		p, _ := Build(Request{Level: level, Analysis: problem(), BatchText: batchText})
		if !strings.Contains(p, marker) {
			t.Errorf("level %d: expected %q block", level, marker)
		}
	}
}

func TestBuildCongratulateOnCleanSuccess(t *testing.T) {
	a := signals.Analysis{Patterns: signals.Patterns{CompletionSignals: true, SuccessIndicators: true}}
	p, mode := Build(Request{Level: 2, Analysis: a, BatchText: batchText})
	if mode != ModeCongratulate {
		t.Fatalf("expected congratulate, got %s", mode)
	}
	if strings.Contains(p, "LEVEL") {
		t.Fatal("congratulatory prompt must not include an escalation block")
	}
}

func TestBuildForcedForbidsSilent(t *testing.T) {
	p, mode := Build(Request{Level: 0, Analysis: signals.Analysis{}, BatchText: batchText, Forced: true})
	if mode != ModeForced {
		t.Fatalf("expected forced, got %s", mode)
	}
	if !strings.Contains(p, "Never reply with "+Silent) {
		t.Fatal("forced prompt must forbid the silent sentinel")
	}
	if strings.Contains(p, "reply with exactly "+Silent) {
		t.Fatal("forced prompt must not offer the silent sentinel")
	}
	if !strings.Contains(p, "LEVEL 1") {
		t.Fatal("forced prompt at level 0 should use the level 1 block")
	}
}
