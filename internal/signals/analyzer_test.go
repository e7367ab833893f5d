package signals

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/batch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func compose(t *testing.T, diffs ...string) batch.Batch {
	t.Helper()
	entries := make([]capture.Entry, 0, len(diffs))
	for i, d := range diffs {
		at := base.Add(time.Duration(i) * time.Second)
		entries = append(entries, capture.Entry{SequenceID: i + 1, Diff: d, CapturedAt: at, ReceivedAt: at})
	}
	b, ok := batch.NewComposer(batch.DefaultComposerConfig()).Compose(entries, base.Add(time.Minute))
	if !ok {
		t.Fatal("compose returned no batch")
	}
	return b
}

func change(text string, tags ...batch.Tag) batch.Segment {
	return batch.Segment{Kind: batch.KindChange, Timestamp: base, Text: text, Markup: text, Tags: tags}
}

// #region scenario-tests

func TestAnalyzeConfusionWithLongDelay(t *testing.T) {
	entries := []capture.Entry{
		{SequenceID: 1, Diff: "I'm confused by this", CapturedAt: base},
		{SequenceID: 2, Diff: "reading again", CapturedAt: base.Add(40 * time.Second)},
	}
	b, _ := batch.NewComposer(batch.DefaultComposerConfig()).Compose(entries, base.Add(time.Minute))

	a := NewAnalyzer(DefaultAnalyzerConfig(), nil).Analyze(b)
	if a.ConcerningSignals != 3 {
		t.Fatalf("expected score 3, got %d (%v)", a.ConcerningSignals, a.SignalTypes)
	}
	if a.Urgency != UrgencyMedium {
		t.Fatalf("expected medium urgency, got %s", a.Urgency)
	}
	if !a.Patterns.Confusion || !a.Patterns.LongDelays {
		t.Fatalf("expected confusion and long delay patterns, got %+v", a.Patterns)
	}
}

func TestAnalyzeIncorrectAnswerWithFrequentErrors(t *testing.T) {
	b := batch.Batch{Segments: []batch.Segment{
		change("the answer is 0", batch.TagIncorrect),
		{Kind: batch.KindBehavior, Behavior: batch.BehaviorFrequentErrors, Count: 3},
	}}

	a := NewAnalyzer(DefaultAnalyzerConfig(), nil).Analyze(b)
	if a.ConcerningSignals != 5 {
		t.Fatalf("expected score 5, got %d (%v)", a.ConcerningSignals, a.SignalTypes)
	}
	if a.Urgency != UrgencyMedium {
		t.Fatalf("expected medium, got %s", a.Urgency)
	}
	want := []Signal{SignalFrequentErrors, SignalIncorrectAnswer}
	if len(a.SignalTypes) != 2 || a.SignalTypes[0] != want[0] || a.SignalTypes[1] != want[1] {
		t.Fatalf("expected %v in detection order, got %v", want, a.SignalTypes)
	}
}

func TestAnalyzeCorrectAnswerIsSuccess(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig(), nil).Analyze(compose(t, "so the answer is 15/36"))

	if a.ConcerningSignals != 0 {
		t.Fatalf("expected no concern, got %d (%v)", a.ConcerningSignals, a.SignalTypes)
	}
	if !a.Patterns.MathematicalContent || !a.Patterns.CompletionSignals {
		t.Fatalf("expected math and completion, got %+v", a.Patterns)
	}
	if !a.Patterns.SuccessIndicators || !a.SuccessOnly() {
		t.Fatal("expected corroborated success")
	}
}

// #endregion scenario-tests

// #region success-tests

func TestCompletionWordAloneIsNotMathSuccess(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig(), nil).Analyze(compose(t, "done, it is 7/36"))
	if !a.Patterns.CompletionSignals {
		t.Fatal("expected completion signal")
	}
	if a.Patterns.SuccessIndicators {
		t.Fatal("unverified math answer must not count as success")
	}
}

func TestCompletionWithoutMathIsSuccess(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig(), nil).Analyze(compose(t, "finished the essay draft"))
	if !a.Patterns.SuccessIndicators {
		t.Fatalf("expected success, got %+v", a.Patterns)
	}
}

type alwaysVerifier struct{}

func (alwaysVerifier) Verify(string) bool { return true }

func TestPluggableVerifier(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig(), alwaysVerifier{}).Analyze(compose(t, "done, it is 7/36"))
	if !a.Patterns.SuccessIndicators {
		t.Fatal("custom verifier should accept the answer")
	}
}

func TestLiteralVerifierBoundaries(t *testing.T) {
	v := NewLiteralVerifier(DefaultAnswers)
	tests := map[string]bool{
		"answer is 15/36":      true,
		"p = 5/12.":            true,
		"answer is 115/36":     false,
		"answer is 15/365":     false,
		"roughly 41.67% odds":  true,
		"nothing numeric here": false,
	}
	for text, want := range tests {
		if got := v.Verify(text); got != want {
			t.Errorf("Verify(%q) = %v, want %v", text, got, want)
		}
	}
}

// #endregion success-tests

// #region scoring-tests

func TestProlongedFocusNeedsFiveMinutes(t *testing.T) {
	short := batch.Batch{Segments: []batch.Segment{{Kind: batch.KindBehavior, Behavior: batch.BehaviorProlongedFocus, Duration: 90 * time.Second}}}
	long := batch.Batch{Segments: []batch.Segment{{Kind: batch.KindBehavior, Behavior: batch.BehaviorProlongedFocus, Duration: 301 * time.Second}}}

	an := NewAnalyzer(DefaultAnalyzerConfig(), nil)
	if s := an.Analyze(short).ConcerningSignals; s != 0 {
		t.Fatalf("expected 0 for 90s focus, got %d", s)
	}
	if s := an.Analyze(long).ConcerningSignals; s != 1 {
		t.Fatalf("expected 1 for 301s focus, got %d", s)
	}
}

func TestMathIncorrectStacksWithTag(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig(), nil).Analyze(compose(t, "I got 1/89"))
	// math+incorrect literal (+2) and incorrect tag (+3)
	if a.ConcerningSignals != 5 {
		t.Fatalf("expected 5, got %d (%v)", a.ConcerningSignals, a.SignalTypes)
	}
	if !a.Patterns.PotentialIncorrectAnswer {
		t.Fatal("expected potential incorrect answer")
	}
}

func TestUrgencyTiers(t *testing.T) {
	an := NewAnalyzer(DefaultAnalyzerConfig(), nil)
	tests := []struct {
		score int
		want  Urgency
	}{
		{0, UrgencyLow}, {2, UrgencyLow}, {3, UrgencyMedium}, {5, UrgencyMedium}, {6, UrgencyHigh}, {12, UrgencyHigh},
	}
	for _, tt := range tests {
		if got := an.urgency(tt.score); got != tt.want {
			t.Errorf("urgency(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScoreMonotonicity(t *testing.T) {
	an := NewAnalyzer(DefaultAnalyzerConfig(), nil)
	extras := []batch.Segment{
		change("x", batch.TagError),
		change("x", batch.TagConfusion),
		change("x", batch.TagRepetitive),
		change("x", batch.TagIncorrect),
		change("1/89", batch.TagMath),
		{Kind: batch.KindDelay, Delay: 45 * time.Second},
		{Kind: batch.KindBehavior, Behavior: batch.BehaviorContextSwitching, Count: 4},
		{Kind: batch.KindBehavior, Behavior: batch.BehaviorFrequentErrors, Count: 3},
		{Kind: batch.KindBehavior, Behavior: batch.BehaviorProlongedFocus, Duration: 400 * time.Second},
	}

	var segs []batch.Segment
	prev := an.Analyze(batch.Batch{}).ConcerningSignals
	for i, extra := range extras {
		segs = append(segs, extra)
		got := an.Analyze(batch.Batch{Segments: segs}).ConcerningSignals
		if got < prev {
			t.Fatalf("step %d: score dropped from %d to %d", i, prev, got)
		}
		prev = got
	}
}

func TestAnalyzeTextMatchesAnalyze(t *testing.T) {
	b := compose(t, "help I'm stuck", "error again")
	an := NewAnalyzer(DefaultAnalyzerConfig(), nil)

	fromText, err := an.AnalyzeText(b.StructuredText)
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	direct := an.Analyze(b)
	if fromText.ConcerningSignals != direct.ConcerningSignals || fromText.Urgency != direct.Urgency {
		t.Fatalf("text analysis %+v differs from direct %+v", fromText, direct)
	}
}

// #endregion scoring-tests
