package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/llm"
)

// #region types
// Config is the process-level configuration read from the environment.
type Config struct {
	Env        string
	DBPath     string // empty keeps state in memory
	HTTPAddr   string
	TuningFile string
	NodeID     int64
	LLM        llm.Config
	Redis      RedisConfig
}

// RedisConfig locates the capture and nudge streams. An empty URL disables Redis.
type RedisConfig struct {
	URL           string
	CaptureStream string
	EventStream   string
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// IsDevelopment reports whether the controller runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// #endregion types

// #region load
// Load reads configuration from environment variables. In development a
// .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	if getEnv("NUDGE_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	provider := llm.Provider(getEnv("NUDGE_PROVIDER", string(llm.ProviderCodec)))
	cfg := Config{
		Env:        getEnv("NUDGE_ENV", "development"),
		DBPath:     getEnv("NUDGE_DB", "nudge_state.db"),
		HTTPAddr:   getEnv("NUDGE_HTTP_ADDR", ":8080"),
		TuningFile: getEnv("NUDGE_TUNING_FILE", ""),
		NodeID:     getEnvInt64("NUDGE_NODE_ID", 1),
		LLM: llm.Config{
			Provider:   provider,
			Model:      getEnv("NUDGE_MODEL", ""),
			APIKey:     apiKeyFor(provider),
			BaseURL:    getEnv("NUDGE_LLM_BASE_URL", ""),
			CodecAddr:  getEnv("CODEC_ADDR", "localhost:50051"),
			MaxTokens:  int(getEnvInt64("NUDGE_MAX_TOKENS", 120)),
			MaxRetries: int(getEnvInt64("NUDGE_SDK_RETRIES", 0)),
		},
		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", ""),
			CaptureStream: getEnv("NUDGE_CAPTURE_STREAM", "nudge_captures"),
			EventStream:   getEnv("NUDGE_EVENT_STREAM", "nudge_events"),
		},
	}

	switch provider {
	case llm.ProviderCodec:
	case llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderGoogle:
		if cfg.LLM.APIKey == "" {
			return Config{}, fmt.Errorf("an API key is required for provider %q", provider)
		}
	default:
		return Config{}, fmt.Errorf("unknown NUDGE_PROVIDER %q", provider)
	}
	if cfg.NodeID < 0 || cfg.NodeID > 1023 {
		return Config{}, fmt.Errorf("NUDGE_NODE_ID must be in [0, 1023], got %d", cfg.NodeID)
	}

	return cfg, nil
}

func apiKeyFor(p llm.Provider) string {
	switch p {
	case llm.ProviderAnthropic:
		return getEnv("ANTHROPIC_API_KEY", "")
	case llm.ProviderOpenAI:
		return getEnv("OPENAI_API_KEY", "")
	case llm.ProviderGoogle:
		return getEnv("GOOGLE_API_KEY", "")
	}
	return ""
}

// #endregion load

// #region helpers
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// #endregion helpers
