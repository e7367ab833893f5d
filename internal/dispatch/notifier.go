package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region event
// Event is the push payload delivered to the UI.
type Event struct {
	ID            string           `json:"id"`
	SessionID     string           `json:"sessionId"`
	Message       string           `json:"message"`
	Level         int              `json:"level"`
	Timestamp     time.Time        `json:"timestamp"`
	Analysis      signals.Analysis `json:"analysis"`
	ManualTrigger bool             `json:"manualTrigger,omitempty"`
}

// EventFromNudge builds the push payload for n.
func EventFromNudge(sessionID string, n state.Nudge) Event {
	return Event{
		ID:            n.ID,
		SessionID:     sessionID,
		Message:       n.Text,
		Level:         n.Level,
		Timestamp:     n.Timestamp,
		Analysis:      n.Analysis,
		ManualTrigger: n.ManualTrigger,
	}
}

// #endregion event

// #region notifier
// Notifier delivers nudge events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.logger.Info("nudge",
		zap.String("id", ev.ID),
		zap.String("session_id", ev.SessionID),
		zap.Int("level", ev.Level),
		zap.String("urgency", string(ev.Analysis.Urgency)),
		zap.Bool("manual", ev.ManualTrigger),
		zap.String("message", ev.Message))
	return nil
}

// RedisNotifier appends events to a Redis stream for the UI to consume.
type RedisNotifier struct {
	client *redis.Client
	stream string
}

// NewRedisNotifier creates a stream producer.
func NewRedisNotifier(client *redis.Client, stream string) *RedisNotifier {
	return &RedisNotifier{client: client, stream: stream}
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal nudge event: %w", err)
	}
	if err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"session_id": ev.SessionID,
			"nudge_id":   ev.ID,
			"event":      string(payload),
		},
	}).Err(); err != nil {
		return fmt.Errorf("publish nudge event: %w", err)
	}
	return nil
}

// ChanNotifier sends events on a channel without blocking; events are
// dropped when the channel is full.
type ChanNotifier struct {
	C chan Event
}

// NewChanNotifier creates a notifier with a buffered channel.
func NewChanNotifier(size int) *ChanNotifier {
	return &ChanNotifier{C: make(chan Event, size)}
}

// Notify implements Notifier.
func (n *ChanNotifier) Notify(_ context.Context, ev Event) error {
	select {
	case n.C <- ev:
		return nil
	default:
		return fmt.Errorf("notify channel full, dropped %s", ev.ID)
	}
}

// Multi fans an event out to every notifier and returns the first error.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// #endregion notifier
