package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/codec"
)

// #region types
// Provider names a text-generation backend.
type Provider string

const (
	ProviderCodec     Provider = "codec"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Generator turns a prompt into completion text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures one backend.
type Config struct {
	Provider  Provider
	Model     string
	APIKey    string
	BaseURL   string // optional override for hosted providers
	CodecAddr string
	MaxTokens int
	// MaxRetries is handed to the SDK's own retry loop; the Retrying
	// wrapper adds a second layer above it.
	MaxRetries int
}

// DefaultConfig returns the local codec backend.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderCodec,
		CodecAddr: "localhost:50051",
		MaxTokens: 120,
	}
}

var defaultModels = map[Provider]string{
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderGoogle:    "gemini-2.0-flash",
}

// #endregion types

// #region factory
// New builds the generator for cfg.Provider.
func New(ctx context.Context, cfg Config) (Generator, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	switch cfg.Provider {
	case ProviderCodec, "":
		cc := codec.DefaultClientConfig()
		cc.Options.Model = cfg.Model
		cc.Options.MaxTokens = cfg.MaxTokens
		return codec.NewCodecClient(cfg.CodecAddr, cc)
	case ProviderAnthropic:
		return NewAnthropicAdapter(cfg)
	case ProviderOpenAI:
		return NewOpenAIAdapter(cfg)
	case ProviderGoogle:
		return NewGoogleAdapter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// #endregion factory

// #region anthropic
// AnthropicAdapter generates with Claude models.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(cfg Config) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicAdapter{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate sends a prompt to Claude and concatenates the text blocks.
func (a *AnthropicAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", wrapProviderError(ProviderAnthropic, err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}

// #endregion anthropic

// #region openai
// OpenAIAdapter generates with OpenAI chat models.
type OpenAIAdapter struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(cfg Config) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	opts := []openaiopt.RequestOption{
		openaiopt.WithAPIKey(cfg.APIKey),
		openaiopt.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIAdapter{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate sends a prompt to OpenAI and returns the first choice.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(a.maxTokens)),
	})
	if err != nil {
		return "", wrapProviderError(ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", &AdapterError{Provider: ProviderOpenAI, Err: fmt.Errorf("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

// #endregion openai

// #region google
// GoogleAdapter generates with Gemini models.
type GoogleAdapter struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGoogleAdapter creates a new Gemini adapter.
func NewGoogleAdapter(ctx context.Context, cfg Config) (*GoogleAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}
	return &GoogleAdapter{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

// Generate sends a prompt to Gemini and joins the first candidate's parts.
func (a *GoogleAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(a.maxTokens),
	})
	if err != nil {
		return "", wrapProviderError(ProviderGoogle, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &AdapterError{Provider: ProviderGoogle, Err: fmt.Errorf("no candidates returned")}
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}
	return content.String(), nil
}

// #endregion google
