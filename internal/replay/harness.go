package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/config"
	nerrors "github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/errors"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/prompt"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/session"
)

// Epoch is the virtual start time of every replay.
var Epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// #region types

// Step is one analysis (automatic or manual) observed during a replay.
type Step struct {
	AtMs        int64
	Trigger     string
	BatchID     string
	Score       int
	Urgency     string
	Signals     []string
	LevelBefore int
	LevelAfter  int
	Decision    string
	Reason      string
	Text        string
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Seals      int
	Analyses   int
	Nudges     int
	Holds      int
	Silent     int
	Failed     int
	FinalLevel int
}

// Result bundles the steps and summary of a replay.
type Result struct {
	Steps   []Step
	Summary Summary
}

// #endregion types

// #region generator

// cannedGenerator returns replies in order, then the silence sentinel.
type cannedGenerator struct {
	mu      sync.Mutex
	replies []string
	next    int
}

func (g *cannedGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.replies) {
		return prompt.Silent, nil
	}
	r := g.replies[g.next]
	g.next++
	return r, nil
}

// #endregion generator

// #region replay

type tickKind int

// Same-instant ticks run in this order: capture, poll, analysis, manual.
const (
	tickRecord tickKind = iota
	tickPoll
	tickAnalysis
	tickManual
)

type tick struct {
	at    time.Duration
	kind  tickKind
	event int
}

// Replay drives a session over the fixture with a virtual clock. Poll and
// analysis ticks fire at the tuned intervals, exactly as the live loops would.
func Replay(ctx context.Context, f *Fixture, logger *zap.Logger) (Result, error) {
	tuning, err := f.ToTuning()
	if err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	now := Epoch
	clock := func() time.Time { return now }
	sess, err := session.New(session.Options{
		ID:        "replay",
		Tuning:    tuning,
		Generator: &cannedGenerator{replies: f.Replies},
		Logger:    logger,
		Clock:     clock,
		Notifier:  discardNotifier{},
	})
	if err != nil {
		return Result{}, err
	}

	ticks := schedule(f, tuning)
	var res Result
	for _, tk := range ticks {
		now = Epoch.Add(tk.at)
		switch tk.kind {
		case tickRecord:
			sess.Ingest(*f.Events[tk.event].Record)
		case tickPoll:
			if _, ok := sess.Poll(); ok {
				res.Summary.Seals++
			}
		case tickAnalysis:
			if rep, ok := sess.CheckAnalysis(ctx); ok {
				res.Steps = append(res.Steps, stepFromReport(tk.at, rep))
			}
		case tickManual:
			res.Steps = append(res.Steps, manualStep(ctx, tk.at, sess))
		}
	}

	for _, s := range res.Steps {
		res.Summary.Analyses++
		switch s.Decision {
		case session.DecisionNudge:
			res.Summary.Nudges++
		case session.DecisionHold:
			res.Summary.Holds++
		case session.DecisionSilent:
			res.Summary.Silent++
		case session.DecisionFailed:
			res.Summary.Failed++
		}
	}
	res.Summary.FinalLevel = sess.Escalation().Level
	return res, nil
}

func schedule(f *Fixture, tuning config.Tuning) []tick {
	end := f.Duration()
	var ticks []tick
	for i, ev := range f.Events {
		kind := tickRecord
		if ev.Manual {
			kind = tickManual
		}
		ticks = append(ticks, tick{at: time.Duration(ev.AtMs) * time.Millisecond, kind: kind, event: i})
	}
	for t := tuning.Scheduler.PollInterval; t <= end; t += tuning.Scheduler.PollInterval {
		ticks = append(ticks, tick{at: t, kind: tickPoll})
	}
	for t := tuning.AnalysisInterval; t <= end; t += tuning.AnalysisInterval {
		ticks = append(ticks, tick{at: t, kind: tickAnalysis})
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		if ticks[i].at != ticks[j].at {
			return ticks[i].at < ticks[j].at
		}
		return ticks[i].kind < ticks[j].kind
	})
	return ticks
}

func stepFromReport(at time.Duration, rep session.Report) Step {
	s := Step{
		AtMs:        at.Milliseconds(),
		Trigger:     rep.Trigger,
		BatchID:     rep.BatchID,
		Score:       rep.Analysis.ConcerningSignals,
		Urgency:     string(rep.Analysis.Urgency),
		LevelBefore: rep.LevelBefore,
		LevelAfter:  rep.LevelAfter,
		Decision:    rep.Decision,
		Reason:      rep.Reason,
	}
	for _, sig := range rep.Analysis.SignalTypes {
		s.Signals = append(s.Signals, string(sig))
	}
	if rep.Nudge != nil {
		s.Text = rep.Nudge.Text
	}
	return s
}

func manualStep(ctx context.Context, at time.Duration, sess *session.Session) Step {
	before := sess.Escalation().Level
	n, err := sess.TriggerManual(ctx)
	s := Step{
		AtMs:        at.Milliseconds(),
		Trigger:     logging.TriggerManual,
		LevelBefore: before,
		LevelAfter:  sess.Escalation().Level,
	}
	if err != nil {
		s.Decision = session.DecisionFailed
		s.Reason = err.Error()
		if nerrors.Is(err, nerrors.ErrNoData) {
			s.Reason = "no data to analyze"
		}
		return s
	}
	s.BatchID = n.BatchID
	s.Score = n.Analysis.ConcerningSignals
	s.Urgency = string(n.Analysis.Urgency)
	for _, sig := range n.Analysis.SignalTypes {
		s.Signals = append(s.Signals, string(sig))
	}
	s.Decision = session.DecisionNudge
	s.Text = n.Text
	return s
}

// #endregion replay

// #region compare

// Mismatch describes an expected outcome the replay did not reproduce.
type Mismatch struct {
	Index    int
	Expected FixtureOutcome
	Got      *Step
}

func (m Mismatch) String() string {
	if m.Got == nil {
		return fmt.Sprintf("#%d: expected %s@%d, got nothing", m.Index+1, m.Expected.Decision, m.Expected.Level)
	}
	return fmt.Sprintf("#%d: expected %s@%d, got %s@%d", m.Index+1,
		m.Expected.Decision, m.Expected.Level, m.Got.Decision, m.Got.LevelAfter)
}

// Compare matches steps against expected outcomes in order. Extra steps
// beyond the expectations are not reported.
func Compare(steps []Step, expected []FixtureOutcome) []Mismatch {
	var out []Mismatch
	for i, exp := range expected {
		if i >= len(steps) {
			out = append(out, Mismatch{Index: i, Expected: exp})
			continue
		}
		s := steps[i]
		if s.Decision != exp.Decision || s.LevelAfter != exp.Level {
			out = append(out, Mismatch{Index: i, Expected: exp, Got: &s})
		}
	}
	return out
}

// #endregion compare
