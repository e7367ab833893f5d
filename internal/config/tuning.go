package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/batch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/escalation"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/gate"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
)

// #region tuning
// Tuning gathers every pipeline threshold in one value.
type Tuning struct {
	Buffer      capture.BufferConfig
	Scheduler   batch.SchedulerConfig
	Composer    batch.ComposerConfig
	Analyzer    signals.AnalyzerConfig
	Escalation  escalation.Config
	Gate        gate.GateConfig
	HistorySize int
	// AnalysisInterval is how often the analysis task looks for unanalyzed batches.
	AnalysisInterval time.Duration
}

// DefaultTuning returns the built-in thresholds of every component.
func DefaultTuning() Tuning {
	return Tuning{
		Buffer:           capture.DefaultBufferConfig(),
		Scheduler:        batch.DefaultSchedulerConfig(),
		Composer:         batch.DefaultComposerConfig(),
		Analyzer:         signals.DefaultAnalyzerConfig(),
		Escalation:       escalation.DefaultConfig(),
		Gate:             gate.DefaultGateConfig(),
		HistorySize:      batch.DefaultHistorySize,
		AnalysisInterval: 3 * time.Second,
	}
}

// #endregion tuning

// #region file-format
// tuningFile is the YAML shape. Keys left out keep their default value.
type tuningFile struct {
	Buffer struct {
		MaxAge time.Duration `yaml:"max_age"`
	} `yaml:"buffer"`
	Scheduler struct {
		PollInterval    time.Duration `yaml:"poll_interval"`
		MinWait         time.Duration `yaml:"min_wait"`
		MaxWait         time.Duration `yaml:"max_wait"`
		ThoughtComplete time.Duration `yaml:"thought_complete"`
		RecentWindow    int           `yaml:"recent_window"`
		UrgentMin       int           `yaml:"urgent_min"`
	} `yaml:"scheduler"`
	Composer struct {
		DelayThreshold       time.Duration `yaml:"delay_threshold"`
		RepetitionRatio      float64       `yaml:"repetition_ratio"`
		RepetitionMinLen     int           `yaml:"repetition_min_len"`
		RecentURLWindow      int           `yaml:"recent_url_window"`
		ContextSwitchURLs    int           `yaml:"context_switch_urls"`
		RapidChangeMaxLen    int           `yaml:"rapid_change_max_len"`
		RapidChangeCount     int           `yaml:"rapid_change_count"`
		ProlongedFocusSpan   time.Duration `yaml:"prolonged_focus_span"`
		FrequentErrorEntries int           `yaml:"frequent_error_entries"`
	} `yaml:"composer"`
	Analyzer struct {
		HighThreshold     int           `yaml:"high_threshold"`
		MediumThreshold   int           `yaml:"medium_threshold"`
		LongDelay         time.Duration `yaml:"long_delay"`
		ProlongedFocusMin time.Duration `yaml:"prolonged_focus_min"`
	} `yaml:"analyzer"`
	Escalation struct {
		ToLevel1      int           `yaml:"to_level_1"`
		ToLevel2      int           `yaml:"to_level_2"`
		ToLevel3      int           `yaml:"to_level_3"`
		DecayAfter    time.Duration `yaml:"decay_after"`
		DecayMaxScore int           `yaml:"decay_max_score"`
	} `yaml:"escalation"`
	Gate struct {
		LevelCooldowns  []time.Duration `yaml:"level_cooldowns"`
		SuccessCooldown time.Duration   `yaml:"success_cooldown"`
		MathProblemCap  time.Duration   `yaml:"math_problem_cap"`
	} `yaml:"gate"`
	HistorySize      int           `yaml:"history_size"`
	AnalysisInterval time.Duration `yaml:"analysis_interval"`
}

func fileFromTuning(t Tuning) tuningFile {
	var f tuningFile
	f.Buffer.MaxAge = t.Buffer.MaxAge
	f.Scheduler.PollInterval = t.Scheduler.PollInterval
	f.Scheduler.MinWait = t.Scheduler.MinWait
	f.Scheduler.MaxWait = t.Scheduler.MaxWait
	f.Scheduler.ThoughtComplete = t.Scheduler.ThoughtComplete
	f.Scheduler.RecentWindow = t.Scheduler.RecentWindow
	f.Scheduler.UrgentMin = t.Scheduler.UrgentMin
	f.Composer.DelayThreshold = t.Composer.DelayThreshold
	f.Composer.RepetitionRatio = t.Composer.RepetitionRatio
	f.Composer.RepetitionMinLen = t.Composer.RepetitionMinLen
	f.Composer.RecentURLWindow = t.Composer.RecentURLWindow
	f.Composer.ContextSwitchURLs = t.Composer.ContextSwitchURLs
	f.Composer.RapidChangeMaxLen = t.Composer.RapidChangeMaxLen
	f.Composer.RapidChangeCount = t.Composer.RapidChangeCount
	f.Composer.ProlongedFocusSpan = t.Composer.ProlongedFocusSpan
	f.Composer.FrequentErrorEntries = t.Composer.FrequentErrorEntries
	f.Analyzer.HighThreshold = t.Analyzer.HighThreshold
	f.Analyzer.MediumThreshold = t.Analyzer.MediumThreshold
	f.Analyzer.LongDelay = t.Analyzer.LongDelay
	f.Analyzer.ProlongedFocusMin = t.Analyzer.ProlongedFocusMin
	f.Escalation.ToLevel1 = t.Escalation.ToLevel1
	f.Escalation.ToLevel2 = t.Escalation.ToLevel2
	f.Escalation.ToLevel3 = t.Escalation.ToLevel3
	f.Escalation.DecayAfter = t.Escalation.DecayAfter
	f.Escalation.DecayMaxScore = t.Escalation.DecayMaxScore
	f.Gate.LevelCooldowns = append([]time.Duration(nil), t.Gate.LevelCooldowns[:]...)
	f.Gate.SuccessCooldown = t.Gate.SuccessCooldown
	f.Gate.MathProblemCap = t.Gate.MathProblemCap
	f.HistorySize = t.HistorySize
	f.AnalysisInterval = t.AnalysisInterval
	return f
}

func (f tuningFile) toTuning() (Tuning, error) {
	if len(f.Gate.LevelCooldowns) != 4 {
		return Tuning{}, fmt.Errorf("gate.level_cooldowns needs 4 entries, got %d", len(f.Gate.LevelCooldowns))
	}
	t := Tuning{
		Buffer: capture.BufferConfig{MaxAge: f.Buffer.MaxAge},
		Scheduler: batch.SchedulerConfig{
			PollInterval:    f.Scheduler.PollInterval,
			MinWait:         f.Scheduler.MinWait,
			MaxWait:         f.Scheduler.MaxWait,
			ThoughtComplete: f.Scheduler.ThoughtComplete,
			RecentWindow:    f.Scheduler.RecentWindow,
			UrgentMin:       f.Scheduler.UrgentMin,
		},
		Composer: batch.ComposerConfig{
			DelayThreshold:       f.Composer.DelayThreshold,
			RepetitionRatio:      f.Composer.RepetitionRatio,
			RepetitionMinLen:     f.Composer.RepetitionMinLen,
			RecentURLWindow:      f.Composer.RecentURLWindow,
			ContextSwitchURLs:    f.Composer.ContextSwitchURLs,
			RapidChangeMaxLen:    f.Composer.RapidChangeMaxLen,
			RapidChangeCount:     f.Composer.RapidChangeCount,
			ProlongedFocusSpan:   f.Composer.ProlongedFocusSpan,
			FrequentErrorEntries: f.Composer.FrequentErrorEntries,
		},
		Analyzer: signals.AnalyzerConfig{
			HighThreshold:     f.Analyzer.HighThreshold,
			MediumThreshold:   f.Analyzer.MediumThreshold,
			LongDelay:         f.Analyzer.LongDelay,
			ProlongedFocusMin: f.Analyzer.ProlongedFocusMin,
		},
		Escalation: escalation.Config{
			ToLevel1:      f.Escalation.ToLevel1,
			ToLevel2:      f.Escalation.ToLevel2,
			ToLevel3:      f.Escalation.ToLevel3,
			DecayAfter:    f.Escalation.DecayAfter,
			DecayMaxScore: f.Escalation.DecayMaxScore,
		},
		Gate: gate.GateConfig{
			SuccessCooldown: f.Gate.SuccessCooldown,
			MathProblemCap:  f.Gate.MathProblemCap,
		},
		HistorySize:      f.HistorySize,
		AnalysisInterval: f.AnalysisInterval,
	}
	copy(t.Gate.LevelCooldowns[:], f.Gate.LevelCooldowns)
	return t, t.Validate()
}

// #endregion file-format

// #region load-tuning
// LoadTuning reads a YAML tuning file over the defaults. An empty path
// returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes YAML tuning data over the defaults.
func ParseTuning(data []byte) (Tuning, error) {
	f := fileFromTuning(DefaultTuning())
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file: %w", err)
	}
	return f.toTuning()
}

// Validate rejects thresholds the pipeline cannot run with.
func (t Tuning) Validate() error {
	switch {
	case t.Buffer.MaxAge <= 0:
		return fmt.Errorf("buffer.max_age must be positive")
	case t.Scheduler.PollInterval <= 0:
		return fmt.Errorf("scheduler.poll_interval must be positive")
	case t.Scheduler.MaxWait < t.Scheduler.MinWait:
		return fmt.Errorf("scheduler.max_wait must not be below min_wait")
	case t.Analyzer.MediumThreshold > t.Analyzer.HighThreshold:
		return fmt.Errorf("analyzer.medium_threshold must not exceed high_threshold")
	case !(t.Escalation.ToLevel1 <= t.Escalation.ToLevel2 && t.Escalation.ToLevel2 <= t.Escalation.ToLevel3):
		return fmt.Errorf("escalation thresholds must be non-decreasing")
	case t.HistorySize < 1:
		return fmt.Errorf("history_size must be at least 1")
	case t.AnalysisInterval <= 0:
		return fmt.Errorf("analysis_interval must be positive")
	}
	return nil
}

// #endregion load-tuning
