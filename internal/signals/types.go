package signals

import "time"

// #region signal
// Signal is one concerning pattern the analyzer can detect.
type Signal string

const (
	SignalError            Signal = "error"
	SignalConfusion        Signal = "confusion"
	SignalRepetition       Signal = "repetition"
	SignalLongDelay        Signal = "long_delay"
	SignalContextSwitching Signal = "context_switching"
	SignalFrequentErrors   Signal = "frequent_errors"
	SignalProlongedFocus   Signal = "prolonged_focus"
	SignalMathIncorrect    Signal = "math_incorrect_answer"
	SignalIncorrectAnswer  Signal = "incorrect_answer"
)

// Urgency tiers derived from the concern score.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// #endregion signal

// #region patterns
// Patterns are the named booleans detected in a batch.
type Patterns struct {
	Errors                   bool `json:"errors"`
	Confusion                bool `json:"confusion"`
	Repetition               bool `json:"repetition"`
	LongDelays               bool `json:"longDelays"`
	ContextSwitching         bool `json:"contextSwitching"`
	FrequentErrors           bool `json:"frequentErrors"`
	ProlongedFocus           bool `json:"prolongedFocus"`
	MathematicalContent      bool `json:"mathematicalContent"`
	PotentialIncorrectAnswer bool `json:"potentialIncorrectAnswer"`
	CompletionSignals        bool `json:"completionSignals"`
	SuccessIndicators        bool `json:"successIndicators"`
}

// #endregion patterns

// #region analysis
// Analysis is the result of scoring one batch. Never mutated after Analyze returns.
type Analysis struct {
	ConcerningSignals int      `json:"concerningSignals"`
	SignalTypes       []Signal `json:"signalTypes"`
	Urgency           Urgency  `json:"urgency"`
	Patterns          Patterns `json:"patterns"`
}

// HasProblems reports whether any concerning signal fired.
func (a Analysis) HasProblems() bool {
	return a.ConcerningSignals > 0
}

// SuccessOnly reports success with nothing concerning alongside it.
func (a Analysis) SuccessOnly() bool {
	return a.Patterns.SuccessIndicators && a.ConcerningSignals == 0
}

// #endregion analysis

// #region config
// AnalyzerConfig holds the scoring thresholds.
type AnalyzerConfig struct {
	HighThreshold     int           // score at or above this is high urgency
	MediumThreshold   int           // score at or above this is medium urgency
	LongDelay         time.Duration // delay markers above this count
	ProlongedFocusMin time.Duration // prolonged focus only counts above this
}

// DefaultAnalyzerConfig returns the standard thresholds.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		HighThreshold:     6,
		MediumThreshold:   3,
		LongDelay:         30 * time.Second,
		ProlongedFocusMin: 300 * time.Second,
	}
}

// #endregion config
