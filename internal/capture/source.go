package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// #region source
// Sink receives decoded capture records.
type Sink func(ctx context.Context, rec Record)

// Source delivers capture records until ctx is done or the input ends.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// #endregion source

// #region jsonl
// JSONLSource reads one JSON capture record per line.
type JSONLSource struct {
	r      io.Reader
	logger *zap.Logger
}

// NewJSONLSource wraps a reader such as os.Stdin.
func NewJSONLSource(r io.Reader, logger *zap.Logger) *JSONLSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONLSource{r: r, logger: logger}
}

// Run scans lines until EOF. Malformed lines are logged and skipped.
func (s *JSONLSource) Run(ctx context.Context, sink Sink) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		rec, err := ParseRecord([]byte(text))
		if err != nil {
			s.logger.Warn("skipping malformed capture line", zap.Int("line", line), zap.Error(err))
			continue
		}
		sink(ctx, rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan captures: %w", err)
	}
	return nil
}

// #endregion jsonl

// #region redis
// RedisSourceConfig names the stream and consumer group captures arrive on.
type RedisSourceConfig struct {
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int64
	Block        time.Duration
	RetryBackoff time.Duration // first wait after a failed read, doubled per failure
	MaxBackoff   time.Duration
}

// DefaultRedisSourceConfig returns defaults for a single-consumer deployment.
func DefaultRedisSourceConfig() RedisSourceConfig {
	return RedisSourceConfig{
		Stream:    "nudge_captures",
		Group:     "nudge_controller",
		Consumer:  "controller-1",
		BatchSize:    50,
		Block:        2 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
		MaxBackoff:   30 * time.Second,
	}
}

// RedisSource consumes capture records from a Redis stream. Each message
// carries the JSON record in its "record" field.
type RedisSource struct {
	client *redis.Client
	config RedisSourceConfig
	logger *zap.Logger
}

// NewRedisSource creates the consumer group if needed.
func NewRedisSource(ctx context.Context, client *redis.Client, config RedisSourceConfig, logger *zap.Logger) (*RedisSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	err := client.XGroupCreateMkStream(ctx, config.Stream, config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &RedisSource{client: client, config: config, logger: logger}, nil
}

// Run reads and acknowledges messages until ctx is cancelled. Read errors
// are logged and retried with backoff; they never end the loop.
func (s *RedisSource) Run(ctx context.Context, sink Sink) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.config.Group,
			Consumer: s.config.Consumer,
			Streams:  []string{s.config.Stream, ">"},
			Count:    s.config.BatchSize,
			Block:    s.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			failures++
			wait := s.backoff(failures)
			s.logger.Warn("read capture stream",
				zap.String("stream", s.config.Stream),
				zap.Int("failures", failures),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		failures = 0

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.handle(ctx, msg, sink)
			}
		}
	}
}

// backoff doubles RetryBackoff per consecutive failure, capped at MaxBackoff.
func (s *RedisSource) backoff(failures int) time.Duration {
	wait := s.config.RetryBackoff
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	for i := 1; i < failures; i++ {
		wait *= 2
		if s.config.MaxBackoff > 0 && wait >= s.config.MaxBackoff {
			return s.config.MaxBackoff
		}
	}
	if s.config.MaxBackoff > 0 && wait > s.config.MaxBackoff {
		return s.config.MaxBackoff
	}
	return wait
}

func (s *RedisSource) handle(ctx context.Context, msg redis.XMessage, sink Sink) {
	defer func() {
		if err := s.client.XAck(ctx, s.config.Stream, s.config.Group, msg.ID).Err(); err != nil {
			s.logger.Warn("ack capture message", zap.String("id", msg.ID), zap.Error(err))
		}
	}()

	raw, ok := msg.Values["record"].(string)
	if !ok {
		s.logger.Warn("capture message missing record field", zap.String("id", msg.ID))
		return
	}
	rec, err := ParseRecord([]byte(raw))
	if err != nil {
		s.logger.Warn("skipping malformed capture message", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	sink(ctx, rec)
}

// #endregion redis
