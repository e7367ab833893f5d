package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/codec"
)

type scriptedGenerator struct {
	errs  []error
	text  string
	calls int
}

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return "", s.errs[s.calls-1]
	}
	return s.text, nil
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{"rate limited", &AdapterError{Status: 429}, true},
		{"server error", &AdapterError{Status: 503}, true},
		{"bad request", &AdapterError{Status: 400}, false},
		{"temporary flag", &AdapterError{Temporary: true}, true},
		{"grpc unavailable", fmt.Errorf("generate rpc: %w", status.Error(codes.Unavailable, "down")), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestRetryingRecoversFromTransient(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{&AdapterError{Status: 503}}, text: "ok"}
	r := NewRetrying(inner, RetryConfig{Attempts: 3, Backoff: time.Millisecond}, nil)

	text, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingStopsOnPermanent(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{&AdapterError{Status: 401}}, text: "ok"}
	r := NewRetrying(inner, RetryConfig{Attempts: 3, Backoff: time.Millisecond}, nil)

	_, err := r.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingExhaustsBudget(t *testing.T) {
	transient := &AdapterError{Status: 500}
	inner := &scriptedGenerator{errs: []error{transient, transient, transient}}
	r := NewRetrying(inner, RetryConfig{Attempts: 2, Backoff: time.Millisecond}, nil)

	_, err := r.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingHonorsCancel(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{&AdapterError{Status: 500}, &AdapterError{Status: 500}}}
	r := NewRetrying(inner, RetryConfig{Attempts: 3, Backoff: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "mystery"})
	assert.Error(t, err)
}

func TestNewRequiresAPIKey(t *testing.T) {
	for _, p := range []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGoogle} {
		_, err := New(context.Background(), Config{Provider: p})
		assert.Error(t, err, "provider %s", p)
	}
}

func TestNewCodecDefault(t *testing.T) {
	g, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	c, ok := g.(*codec.CodecClient)
	require.True(t, ok)
	assert.NoError(t, c.Close())
}

func TestAnthropicAdapterGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Recheck "},{"type":"text","text":"the total."}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	a, err := NewAnthropicAdapter(Config{APIKey: "k", BaseURL: srv.URL, Model: "claude-3-5-haiku-latest", MaxTokens: 50})
	require.NoError(t, err)
	text, err := a.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Recheck the total.", text)
}

func TestOpenAIAdapterStatusIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	a, err := NewOpenAIAdapter(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 50})
	require.NoError(t, err)
	_, err = a.Generate(context.Background(), "prompt")
	require.Error(t, err)

	var ae *AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusServiceUnavailable, ae.Status)
	assert.True(t, IsTransient(err))
}

func TestOpenAIAdapterGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"SILENT"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	a, err := NewOpenAIAdapter(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 50})
	require.NoError(t, err)
	text, err := a.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "SILENT", text)
}
