package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/batch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/config"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/dispatch"
	nerrors "github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/errors"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/escalation"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/gate"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region options
// Options wires a session to its collaborators. Generator is required;
// everything else has a usable zero value.
type Options struct {
	ID        string
	Tuning    config.Tuning
	Generator dispatch.Generator
	Store     *state.Store // nil keeps state in memory only
	Notifier  dispatch.Notifier
	Verifier  signals.AnswerVerifier
	Logger    *zap.Logger
	Clock     func() time.Time
}

// #endregion options

// #region session
// Session owns the pipeline state of one user: buffered activity, sealed
// batches and the escalation state. Safe for concurrent use.
type Session struct {
	id         string
	logger     *zap.Logger
	clock      func() time.Time
	store      *state.Store
	notifier   dispatch.Notifier
	dispatcher *dispatch.Dispatcher
	buffer     *capture.Buffer
	history    *batch.History

	mu             sync.Mutex
	tuning         config.Tuning
	scheduler      *batch.Scheduler
	composer       *batch.Composer
	analyzer       *signals.Analyzer
	verifier       signals.AnswerVerifier
	gate           *gate.Gate
	esc            state.EscalationState
	sealedSeq      int // last capture sequence id covered by a seal
	inFlight       int
	manualInFlight bool
}

// New creates a session. With a store, the escalation state of an existing
// session id is restored.
func New(opts Options) (*Session, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("session: generator is required")
	}
	if opts.Tuning.HistorySize == 0 {
		opts.Tuning = config.DefaultTuning()
	}
	if err := opts.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = dispatch.NewLogNotifier(opts.Logger)
	}

	s := &Session{
		id:         opts.ID,
		clock:      opts.Clock,
		store:      opts.Store,
		notifier:   opts.Notifier,
		buffer:     capture.NewBuffer(opts.Tuning.Buffer),
		history:    batch.NewHistory(opts.Tuning.HistorySize),
		tuning:     opts.Tuning,
		scheduler:  batch.NewScheduler(opts.Tuning.Scheduler, opts.Clock()),
		composer:   batch.NewComposer(opts.Tuning.Composer),
		analyzer:   signals.NewAnalyzer(opts.Tuning.Analyzer, opts.Verifier),
		verifier:   opts.Verifier,
		gate:       gate.NewGate(opts.Tuning.Gate),
	}

	if s.store != nil {
		if s.id == "" {
			id, err := s.store.CreateSession()
			if err != nil {
				return nil, fmt.Errorf("session: %w", err)
			}
			s.id = id
		} else if err := s.store.EnsureSession(s.id); err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		esc, err := s.store.LoadEscalation(s.id)
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("session: %w", err)
		}
		s.esc = esc
	}
	if s.id == "" {
		s.id = "local"
	}

	s.logger = logging.ForSession(opts.Logger, s.id)
	s.dispatcher = dispatch.NewDispatcher(opts.Generator, s.logger)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// #endregion session

// #region ingest
// Ingest buffers one capture record, stamped with the session clock.
func (s *Session) Ingest(rec capture.Record) capture.Entry {
	e := s.buffer.Add(rec, s.clock())
	s.logger.Debug("capture buffered",
		zap.String("entry", e.Label()),
		zap.Int("diff_chars", len(e.Diff)),
	)
	return e
}

// #endregion ingest

// #region poll
// Poll runs one scheduler evaluation and seals a batch when warranted.
func (s *Session) Poll() (Seal, bool) {
	now := s.clock()

	s.mu.Lock()
	pending := s.buffer.EntriesAfter(s.sealedSeq)
	d := s.scheduler.Evaluate(pending, now)
	if !d.Seal {
		s.mu.Unlock()
		return Seal{}, false
	}
	b, ok := s.sealLocked(pending, now)
	s.mu.Unlock()
	if !ok {
		return Seal{}, false
	}

	s.logger.Info("batch sealed",
		zap.String("batch_id", b.ID),
		zap.String("reason", string(d.Reason)),
		zap.Int("entries", b.RawEntryCount),
		zap.Duration("timespan", b.Timespan),
		zap.Duration("since_activity", d.SinceLastActivity),
	)
	s.persistBatch(b, d.Reason)
	return Seal{Batch: b, Reason: d.Reason}, true
}

// sealLocked composes pending into a batch and advances the seal clock and
// the sequence cursor. Callers hold s.mu.
func (s *Session) sealLocked(pending []capture.Entry, now time.Time) (batch.Batch, bool) {
	b, ok := s.composer.Compose(pending, now)
	s.scheduler.MarkSealed(now)
	if n := len(pending); n > 0 {
		s.sealedSeq = pending[n-1].SequenceID
	}
	if !ok {
		return batch.Batch{}, false
	}
	s.history.Append(b)
	return b, true
}

// #endregion poll

// #region analyze
// CheckAnalysis analyzes the newest unanalyzed batch, updates the escalation
// state and, when the gate opens, dispatches a nudge. It skips while a
// generation for this session is already in flight.
func (s *Session) CheckAnalysis(ctx context.Context) (Report, bool) {
	s.mu.Lock()
	if s.inFlight > 0 {
		s.mu.Unlock()
		return Report{}, false
	}
	b, ok := s.history.NextUnanalyzed()
	if !ok {
		s.mu.Unlock()
		return Report{}, false
	}
	s.history.MarkAnalyzed(b.ID)

	now := s.clock()
	a := s.analyzer.Analyze(b)
	res := escalation.Update(s.esc, a, now, s.tuning.Escalation)
	s.esc.Level = res.NewState.Level
	gd := s.gate.Evaluate(s.esc, a, now, false)

	rep := Report{
		BatchID:     b.ID,
		Trigger:     logging.TriggerBatch,
		SealedAt:    b.Timestamp,
		Analysis:    a,
		LevelBefore: res.Metrics.LevelBefore,
		LevelAfter:  res.Metrics.LevelAfter,
		Transition:  res.Decision.Reason,
		Gate:        gd,
	}

	if gd.Action != "nudge" {
		rep.Decision, rep.Reason = DecisionHold, gd.Reason
		esc := s.esc
		s.mu.Unlock()
		s.logger.Debug("gate held",
			zap.String("batch_id", b.ID),
			zap.Int("score", a.ConcerningSignals),
			zap.Int("level", esc.Level),
			zap.String("reason", gd.Reason),
		)
		s.persistEscalation(esc)
		s.logProvenance(rep, now)
		return rep, true
	}

	s.inFlight++
	level := s.esc.Level
	s.mu.Unlock()

	out, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Level:     level,
		Analysis:  a,
		BatchID:   b.ID,
		BatchText: b.StructuredText,
		Now:       now,
	})
	s.finishDispatch(ctx, &rep, out, err, now, false)
	return rep, true
}

// #endregion analyze

// #region manual
// TriggerManual produces a nudge on request. Pending entries are sealed
// first; otherwise the newest batch is reused. A batch is scored at most
// once. Unlike automatic analysis, failures are returned to the caller.
func (s *Session) TriggerManual(ctx context.Context) (state.Nudge, error) {
	now := s.clock()

	s.mu.Lock()
	if s.manualInFlight {
		s.mu.Unlock()
		return state.Nudge{}, nerrors.NewBusy()
	}

	var (
		b      batch.Batch
		ok     bool
		sealed bool
	)
	if pending := s.buffer.EntriesAfter(s.sealedSeq); len(pending) > 0 {
		b, ok = s.sealLocked(pending, now)
		sealed = ok
	}
	if !ok {
		b, ok = s.history.Latest()
	}
	if !ok {
		s.mu.Unlock()
		return state.Nudge{}, nerrors.NewNoData()
	}
	scored := s.history.Analyzed(b.ID)
	s.history.MarkAnalyzed(b.ID)

	a := s.analyzer.Analyze(b)
	before := s.esc.Level
	// a batch already scored by automatic analysis only gets the manual floor
	after := s.esc
	transition := ""
	if !scored {
		res := escalation.Update(s.esc, a, now, s.tuning.Escalation)
		after, transition = res.NewState, res.Decision.Reason
	}
	floor := escalation.ForceManual(after, now)
	if len(floor.Metrics.Transitions) > 0 || transition == "" {
		transition = floor.Decision.Reason
	}
	s.esc.Level = floor.NewState.Level
	gd := s.gate.Evaluate(s.esc, a, now, true)

	rep := Report{
		BatchID:     b.ID,
		Trigger:     logging.TriggerManual,
		SealedAt:    b.Timestamp,
		Analysis:    a,
		LevelBefore: before,
		LevelAfter:  s.esc.Level,
		Transition:  transition,
		Gate:        gd,
	}
	s.inFlight++
	s.manualInFlight = true
	level := s.esc.Level
	s.mu.Unlock()

	if sealed {
		s.logger.Info("batch sealed",
			zap.String("batch_id", b.ID),
			zap.String("reason", string(batch.SealManual)),
			zap.Int("entries", b.RawEntryCount),
		)
		s.persistBatch(b, batch.SealManual)
	}

	out, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Level:     level,
		Analysis:  a,
		BatchID:   b.ID,
		BatchText: b.StructuredText,
		Forced:    true,
		Manual:    true,
		Now:       now,
	})
	s.finishDispatch(ctx, &rep, out, err, now, true)

	if err != nil {
		return state.Nudge{}, err
	}
	if rep.Nudge == nil {
		return state.Nudge{}, nerrors.NewInvalidOutput("no visible reply for manual request")
	}
	return *rep.Nudge, nil
}

// #endregion manual

// #region finish
// finishDispatch applies a dispatch outcome. The reply is applied even if
// other decisions happened while it was generating: the most recent reply
// sets the last nudge time.
func (s *Session) finishDispatch(ctx context.Context, rep *Report, out dispatch.Outcome, err error, at time.Time, manual bool) {
	s.mu.Lock()
	s.inFlight--
	if manual {
		s.manualInFlight = false
	}
	switch {
	case err != nil:
		rep.Decision, rep.Reason = DecisionFailed, err.Error()
	case out.Suppressed:
		rep.Decision, rep.Reason = DecisionSilent, out.Reason
	default:
		n := *out.Nudge
		s.esc = s.esc.WithNudge(n)
		rep.Nudge = &n
		rep.Decision, rep.Reason = DecisionNudge, rep.Gate.Reason
		if out.Reason != "" {
			rep.Reason = out.Reason
		}
	}
	esc := s.esc
	s.mu.Unlock()

	switch rep.Decision {
	case DecisionFailed:
		s.logger.Warn("no nudge produced", zap.String("batch_id", rep.BatchID), zap.Error(err))
	case DecisionSilent:
		s.logger.Info("nudge suppressed", zap.String("batch_id", rep.BatchID), zap.String("reason", rep.Reason))
	case DecisionNudge:
		s.logger.Info("nudge emitted",
			zap.String("nudge_id", rep.Nudge.ID),
			zap.String("batch_id", rep.BatchID),
			zap.Int("level", rep.Nudge.Level),
			zap.Bool("manual", rep.Nudge.ManualTrigger),
		)
		if s.store != nil {
			if err := s.store.SaveNudge(s.id, *rep.Nudge); err != nil {
				s.logger.Error("persist nudge", zap.Error(err))
			}
		}
		if err := s.notifier.Notify(ctx, dispatch.EventFromNudge(s.id, *rep.Nudge)); err != nil {
			s.logger.Warn("notify failed", zap.String("nudge_id", rep.Nudge.ID), zap.Error(err))
		}
	}
	s.persistEscalation(esc)
	s.logProvenance(*rep, at)
}

// #endregion finish

// #region persistence
func (s *Session) persistBatch(b batch.Batch, reason batch.SealReason) {
	if s.store == nil {
		return
	}
	err := s.store.SaveBatch(state.BatchRecord{
		BatchID:        b.ID,
		SessionID:      s.id,
		SealedAt:       b.Timestamp,
		EntryCount:     b.RawEntryCount,
		Timespan:       b.Timespan,
		SealReason:     string(reason),
		StructuredText: b.StructuredText,
	})
	if err != nil {
		s.logger.Error("persist batch", zap.String("batch_id", b.ID), zap.Error(err))
	}
}

func (s *Session) persistEscalation(esc state.EscalationState) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveEscalation(s.id, esc); err != nil {
		s.logger.Error("persist escalation", zap.Error(err))
	}
}

func (s *Session) logProvenance(rep Report, at time.Time) {
	if s.store == nil {
		return
	}
	rec := logging.DecisionRecord{
		BatchID:     rep.BatchID,
		Analysis:    rep.Analysis,
		LevelBefore: rep.LevelBefore,
		LevelAfter:  rep.LevelAfter,
		Transition:  rep.Transition,
		ElapsedMs:   rep.Gate.Elapsed.Milliseconds(),
		CooldownMs:  rep.Gate.Cooldown.Milliseconds(),
		GateAction:  rep.Gate.Action,
		GateReason:  rep.Gate.Reason,
	}
	if rep.Decision != DecisionHold {
		rec.Outcome = rep.Decision
	}
	if err := logging.LogRecord(s.store.DB(), s.id, rep.Trigger, rec, rep.Decision, rep.Reason, at); err != nil {
		s.logger.Error("log provenance", zap.Error(err))
	}
}

// #endregion persistence

// #region views
// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:      s.id,
		Level:          s.esc.Level,
		PendingEntries: len(s.buffer.EntriesAfter(s.sealedSeq)),
		BufferedTotal:  s.buffer.Len(),
		Batches:        s.history.Len(),
		Nudges:         len(s.esc.History),
		InFlight:       s.inFlight > 0,
		LastSealAt:     s.scheduler.LastSeal(),
	}
	if !s.esc.LastNudgeAt.IsZero() {
		last := s.esc.LastNudgeAt
		snap.LastNudgeAt = &last
		snap.SinceLastNudge = now.Sub(last)
	}
	return snap
}

// Nudges returns the retained nudge history, oldest first.
func (s *Session) Nudges() []state.Nudge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]state.Nudge, len(s.esc.History))
	copy(out, s.esc.History)
	return out
}

// Batches returns the retained batches, oldest first.
func (s *Session) Batches() []batch.Batch {
	return s.history.All()
}

// Escalation returns a copy of the escalation state.
func (s *Session) Escalation() state.EscalationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	esc := s.esc
	esc.History = append([]state.Nudge(nil), s.esc.History...)
	return esc
}

// #endregion views

// #region tuning
// ApplyTuning swaps thresholds for subsequent polls and analyses. The
// history size and tick intervals only take effect on restart.
func (s *Session) ApplyTuning(t config.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tuning = t
	s.buffer.SetConfig(t.Buffer)
	s.scheduler.SetConfig(t.Scheduler)
	s.composer.SetConfig(t.Composer)
	s.analyzer = signals.NewAnalyzer(t.Analyzer, s.verifier)
	s.gate = gate.NewGate(t.Gate)
	return nil
}

// #endregion tuning

// #region run
// Run drives the scheduler poll and the analysis check on independent
// tickers until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	pollEvery := s.tuning.Scheduler.PollInterval
	analyzeEvery := s.tuning.AnalysisInterval
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.NewTicker(pollEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				s.Poll()
			}
		}
	})
	g.Go(func() error {
		t := time.NewTicker(analyzeEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				s.CheckAnalysis(ctx)
			}
		}
	})
	s.logger.Info("session loop started",
		zap.Duration("poll_every", pollEvery),
		zap.Duration("analyze_every", analyzeEvery),
	)
	return g.Wait()
}

// #endregion run
