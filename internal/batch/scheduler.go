package batch

import (
	"time"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
)

// #region config
// SchedulerConfig holds the timing knobs for sealing batches.
type SchedulerConfig struct {
	PollInterval    time.Duration
	MinWait         time.Duration // minimum time between seals
	MaxWait         time.Duration // inactivity ceiling; always seals
	ThoughtComplete time.Duration // inactivity treated as a finished thought
	RecentWindow    int           // trailing entries checked for breaks and urgency
	UrgentMin       int           // urgent entries in the window needed to seal
}

// DefaultSchedulerConfig returns the standard timings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval:    5 * time.Second,
		MinWait:         15 * time.Second,
		MaxWait:         45 * time.Second,
		ThoughtComplete: 10 * time.Second,
		RecentWindow:    3,
		UrgentMin:       2,
	}
}

// #endregion config

// #region seal-decision
// SealReason explains why a batch was sealed.
type SealReason string

const (
	SealNone          SealReason = ""
	SealMaxWait       SealReason = "max_wait"
	SealThought       SealReason = "thought_complete"
	SealNaturalBreak  SealReason = "natural_break"
	SealContextSwitch SealReason = "context_switch"
	SealUrgent        SealReason = "urgent_signals"
	SealManual        SealReason = "manual"
)

// SealDecision is the outcome of one scheduler poll.
type SealDecision struct {
	Seal              bool
	Reason            SealReason
	SinceLastActivity time.Duration
	SinceLastSeal     time.Duration
}

// #endregion seal-decision

// #region scheduler
// Scheduler decides on each poll whether the pending entries form a batch.
// It holds only the last seal time; callers own the entries.
type Scheduler struct {
	config   SchedulerConfig
	lastSeal time.Time
}

// NewScheduler creates a scheduler whose seal clock starts at start.
func NewScheduler(config SchedulerConfig, start time.Time) *Scheduler {
	return &Scheduler{config: config, lastSeal: start}
}

// LastSeal returns the time of the most recent seal.
func (s *Scheduler) LastSeal() time.Time {
	return s.lastSeal
}

// MarkSealed records a seal at t.
func (s *Scheduler) MarkSealed(t time.Time) {
	s.lastSeal = t
}

// SetConfig replaces the timing knobs.
func (s *Scheduler) SetConfig(config SchedulerConfig) {
	s.config = config
}

// Config returns the current timing knobs.
func (s *Scheduler) Config() SchedulerConfig {
	return s.config
}

// Evaluate inspects the entries received since the last seal. The maxWait
// ceiling is checked before minWait gating.
func (s *Scheduler) Evaluate(pending []capture.Entry, now time.Time) SealDecision {
	if len(pending) == 0 {
		return SealDecision{}
	}

	latest := pending[len(pending)-1].ReceivedAt
	for _, e := range pending {
		if e.ReceivedAt.After(latest) {
			latest = e.ReceivedAt
		}
	}
	d := SealDecision{
		SinceLastActivity: now.Sub(latest),
		SinceLastSeal:     now.Sub(s.lastSeal),
	}

	if d.SinceLastActivity >= s.config.MaxWait {
		d.Seal, d.Reason = true, SealMaxWait
		return d
	}
	if d.SinceLastSeal < s.config.MinWait {
		return d
	}

	recent := pending
	if len(recent) > s.config.RecentWindow {
		recent = recent[len(recent)-s.config.RecentWindow:]
	}

	switch {
	case d.SinceLastActivity >= s.config.ThoughtComplete:
		d.Seal, d.Reason = true, SealThought
	case naturalBreakPattern.MatchString(recent[len(recent)-1].Diff):
		d.Seal, d.Reason = true, SealNaturalBreak
	case distinctURLs(recent) > 1:
		d.Seal, d.Reason = true, SealContextSwitch
	case urgentCount(recent) >= s.config.UrgentMin:
		d.Seal, d.Reason = true, SealUrgent
	}
	return d
}

// #endregion scheduler

// #region helpers
func distinctURLs(entries []capture.Entry) int {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.URL != "" {
			seen[SanitizeURL(e.URL)] = struct{}{}
		}
	}
	return len(seen)
}

func urgentCount(entries []capture.Entry) int {
	n := 0
	for _, e := range entries {
		if IsUrgent(e.Diff) {
			n++
		}
	}
	return n
}

// #endregion helpers
