package dispatch

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	nerrors "github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/errors"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/prompt"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region generator
// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// #endregion generator

// #region request
// Request is one attempt to produce a nudge.
type Request struct {
	Level     int
	Analysis  signals.Analysis
	BatchID   string
	BatchText string
	Forced    bool
	Manual    bool
	Now       time.Time
}

// Outcome describes what a dispatch produced. Nudge is nil when suppressed.
type Outcome struct {
	Nudge      *state.Nudge
	Suppressed bool
	Reason     string
	Mode       prompt.Mode
	Prompt     string
	Raw        string
}

// #endregion request

// #region dispatcher
// Dispatcher turns a request into a prompt, calls the generator and cleans
// the reply.
type Dispatcher struct {
	gen    Generator
	logger *zap.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewDispatcher creates a dispatcher around gen.
func NewDispatcher(gen Generator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{gen: gen, logger: logger, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Dispatch runs one generate round trip. Errors are *errors.NudgeError values;
// a suppressed reply is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	text, mode := prompt.Build(prompt.Request{
		Level:     req.Level,
		Analysis:  req.Analysis,
		BatchText: req.BatchText,
		Forced:    req.Forced,
	})
	out := Outcome{Mode: mode, Prompt: text}

	start := time.Now()
	raw, err := d.gen.Generate(ctx, text)
	if err != nil {
		d.logger.Warn("generate failed",
			zap.String("batch_id", req.BatchID),
			zap.Bool("forced", req.Forced),
			zap.Error(err))
		return out, nerrors.NewGenerateFailed(err)
	}
	out.Raw = raw
	d.logger.Debug("generate returned",
		zap.String("batch_id", req.BatchID),
		zap.String("mode", string(mode)),
		zap.Int("chars", len(raw)),
		zap.Duration("took", time.Since(start)))

	if echoesMarkup(raw) {
		if !req.Forced {
			return out, nerrors.NewInvalidOutput("reply echoed structured batch markup")
		}
		raw = ""
	}

	cleaned := Clean(raw, CleanInput{
		Level:      req.Level,
		Forced:     req.Forced,
		HasConcern: req.Analysis.HasProblems(),
	})
	out.Reason = cleaned.Reason
	if cleaned.Suppressed {
		out.Suppressed = true
		return out, nil
	}

	id, err := d.newID(req.Now)
	if err != nil {
		return out, nerrors.NewInternal(err)
	}
	out.Nudge = &state.Nudge{
		ID:            id,
		Timestamp:     req.Now,
		Level:         req.Level,
		Text:          cleaned.Text,
		Analysis:      req.Analysis,
		BatchID:       req.BatchID,
		ManualTrigger: req.Manual,
		Forced:        req.Forced,
	}
	return out, nil
}

func (d *Dispatcher) newID(at time.Time) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), d.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// #endregion dispatcher

func echoesMarkup(raw string) bool {
	return strings.Contains(raw, "<batch") || strings.Contains(raw, "<change ")
}
