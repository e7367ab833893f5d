package signals

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/batch"
)

// #region rules
// Rule is one row of the scoring table.
type Rule struct {
	Signal Signal
	Weight int
	Match  func(v view) bool
}

// view is the batch summary rules are evaluated against.
type view struct {
	tags      map[batch.Tag]bool
	behaviors map[batch.BehaviorType]batch.Segment
	maxDelay  time.Duration
	text      string
}

// DefaultRules returns the scoring table in detection order.
func DefaultRules(config AnalyzerConfig) []Rule {
	return []Rule{
		{Signal: SignalError, Weight: 1, Match: func(v view) bool { return v.tags[batch.TagError] }},
		{Signal: SignalConfusion, Weight: 2, Match: func(v view) bool { return v.tags[batch.TagConfusion] }},
		{Signal: SignalRepetition, Weight: 1, Match: func(v view) bool { return v.tags[batch.TagRepetitive] }},
		{Signal: SignalLongDelay, Weight: 1, Match: func(v view) bool { return v.maxDelay > config.LongDelay }},
		{Signal: SignalContextSwitching, Weight: 1, Match: func(v view) bool {
			_, ok := v.behaviors[batch.BehaviorContextSwitching]
			return ok
		}},
		{Signal: SignalFrequentErrors, Weight: 2, Match: func(v view) bool {
			_, ok := v.behaviors[batch.BehaviorFrequentErrors]
			return ok
		}},
		{Signal: SignalProlongedFocus, Weight: 1, Match: func(v view) bool {
			seg, ok := v.behaviors[batch.BehaviorProlongedFocus]
			return ok && seg.Duration > config.ProlongedFocusMin
		}},
		{Signal: SignalMathIncorrect, Weight: 2, Match: func(v view) bool {
			return v.tags[batch.TagMath] && batch.IncorrectAnswerPattern.MatchString(v.text)
		}},
		{Signal: SignalIncorrectAnswer, Weight: 3, Match: func(v view) bool { return v.tags[batch.TagIncorrect] }},
	}
}

// #endregion rules

// #region analyzer
// Analyzer scores batches against a rule table.
type Analyzer struct {
	config   AnalyzerConfig
	rules    []Rule
	verifier AnswerVerifier
}

// NewAnalyzer creates an analyzer. verifier may be nil, in which case the
// literal dice-probability answers are used.
func NewAnalyzer(config AnalyzerConfig, verifier AnswerVerifier) *Analyzer {
	if verifier == nil {
		verifier = NewLiteralVerifier(DefaultAnswers)
	}
	return &Analyzer{config: config, rules: DefaultRules(config), verifier: verifier}
}

// Config returns the active thresholds.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.config
}

// Analyze scores a composed batch. Pure: the same batch always yields the
// same analysis.
func (a *Analyzer) Analyze(b batch.Batch) Analysis {
	v := summarize(b)

	var out Analysis
	out.SignalTypes = []Signal{}
	for _, r := range a.rules {
		if r.Match(v) {
			out.ConcerningSignals += r.Weight
			out.SignalTypes = append(out.SignalTypes, r.Signal)
		}
	}

	p := &out.Patterns
	p.Errors = v.tags[batch.TagError]
	p.Confusion = v.tags[batch.TagConfusion]
	p.Repetition = v.tags[batch.TagRepetitive]
	p.LongDelays = v.maxDelay > a.config.LongDelay
	_, p.ContextSwitching = v.behaviors[batch.BehaviorContextSwitching]
	_, p.FrequentErrors = v.behaviors[batch.BehaviorFrequentErrors]
	if seg, ok := v.behaviors[batch.BehaviorProlongedFocus]; ok {
		p.ProlongedFocus = seg.Duration > a.config.ProlongedFocusMin
	}
	p.MathematicalContent = v.tags[batch.TagMath]
	p.PotentialIncorrectAnswer = v.tags[batch.TagIncorrect] ||
		(p.MathematicalContent && batch.IncorrectAnswerPattern.MatchString(v.text))
	p.CompletionSignals = batch.CompletionPattern.MatchString(v.text)
	p.SuccessIndicators = p.CompletionSignals &&
		(!p.MathematicalContent || a.verifier.Verify(v.text))

	out.Urgency = a.urgency(out.ConcerningSignals)
	return out
}

// AnalyzeText parses stored batch text and scores it.
func (a *Analyzer) AnalyzeText(text string) (Analysis, error) {
	b, err := batch.Parse(text)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze text: %w", err)
	}
	return a.Analyze(b), nil
}

func (a *Analyzer) urgency(score int) Urgency {
	switch {
	case score >= a.config.HighThreshold:
		return UrgencyHigh
	case score >= a.config.MediumThreshold:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// #endregion analyzer

// #region helpers
func summarize(b batch.Batch) view {
	v := view{
		tags:      make(map[batch.Tag]bool),
		behaviors: make(map[batch.BehaviorType]batch.Segment),
	}
	var texts []string
	for _, seg := range b.Segments {
		switch seg.Kind {
		case batch.KindChange:
			for _, t := range seg.Tags {
				v.tags[t] = true
			}
			texts = append(texts, seg.Text)
		case batch.KindDelay:
			if seg.Delay > v.maxDelay {
				v.maxDelay = seg.Delay
			}
		case batch.KindBehavior:
			v.behaviors[seg.Behavior] = seg
		}
	}
	v.text = strings.Join(texts, "\n")
	return v
}

// #endregion helpers
