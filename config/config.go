package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultProvider       = "openai"
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultModel          = "openai/gpt-oss-20b:free"
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultIndexPath      = "data/pdpl_index.db"
	DefaultServerAddr     = ":8080"
	DefaultTopK           = 5
	DefaultQueryTimeout   = 90 * time.Second
)

// Config is the process configuration: JSON file first, then environment overrides.
type Config struct {
	LLM         LLMConfig       `json:"llm"`
	Embedding   EmbeddingConfig `json:"embedding"`
	IndexPath   string          `json:"index_path,omitempty"`
	PromptsPath string          `json:"prompts_path,omitempty"`
	TopK        int             `json:"top_k,omitempty"`
	Server      ServerConfig    `json:"server"`
	LogLevel    string          `json:"log_level,omitempty"`
	LogFormat   string          `json:"log_format,omitempty"`

	// QueryTimeoutSeconds bounds one whole query in every front end.
	QueryTimeoutSeconds int `json:"query_timeout_seconds,omitempty"`
}

// LLMConfig selects and tunes the structured generation backend.
type LLMConfig struct {
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`

	TimeoutSeconds    int     `json:"timeout_seconds,omitempty"`
	MaxAttempts       int     `json:"max_attempts,omitempty"`
	BackoffMillis     int     `json:"backoff_ms,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty"`
}

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
// Empty BaseURL/APIKey inherit the LLM values.
type EmbeddingConfig struct {
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
}

type ServerConfig struct {
	Addr           string  `json:"addr,omitempty"`
	AllowOrigin    string  `json:"allow_origin,omitempty"`
	RateLimitRPS   float64 `json:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `json:"rate_limit_burst,omitempty"`

	// TrustForwardedFor keys rate limits on X-Forwarded-For. Enable only behind a
	// proxy that appends the client address.
	TrustForwardedFor bool `json:"trust_forwarded_for,omitempty"`

	SessionTTLMinutes int `json:"session_ttl_minutes,omitempty"`
	MaxSessions       int `json:"max_sessions,omitempty"`
	MaxHistoryTurns   int `json:"max_history_turns,omitempty"`
}

// Load reads path (optional), applies defaults and environment overrides, and validates.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	cfg.resolveCredentials(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider != "gemini" && c.LLM.Provider != "deepseek" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "PDPL_API_KEY"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = 3
	}
	if c.LLM.BackoffMillis <= 0 {
		c.LLM.BackoffMillis = 500
	}
	if c.LLM.RequestsPerSecond <= 0 {
		c.LLM.RequestsPerSecond = 2
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 4
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultEmbeddingModel
	}
	if c.IndexPath == "" {
		c.IndexPath = DefaultIndexPath
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.AllowOrigin == "" {
		c.Server.AllowOrigin = "*"
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = 5
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 10
	}
	if c.Server.SessionTTLMinutes <= 0 {
		c.Server.SessionTTLMinutes = 30
	}
	if c.Server.MaxSessions <= 0 {
		c.Server.MaxSessions = 1000
	}
	if c.Server.MaxHistoryTurns <= 0 {
		c.Server.MaxHistoryTurns = 100
	}
	if c.QueryTimeoutSeconds <= 0 {
		c.QueryTimeoutSeconds = int(DefaultQueryTimeout / time.Second)
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.LLM.Provider, "PDPL_LLM_PROVIDER")
	set(&c.LLM.Model, "PDPL_LLM_MODEL")
	set(&c.LLM.BaseURL, "PDPL_LLM_BASE_URL")
	set(&c.Embedding.Model, "PDPL_EMBEDDING_MODEL")
	set(&c.Embedding.BaseURL, "PDPL_EMBEDDING_BASE_URL")
	set(&c.IndexPath, "PDPL_INDEX_PATH")
	set(&c.PromptsPath, "PDPL_PROMPTS_PATH")
	set(&c.Server.Addr, "PDPL_LISTEN_ADDR")
	set(&c.LogLevel, "PDPL_LOG_LEVEL")
	if v := getenv("PDPL_TRUST_FORWARDED_FOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.TrustForwardedFor = b
		}
	}
	if v := getenv("PDPL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TopK = n
		}
	}
}

func (c *Config) resolveCredentials(getenv func(string) string) {
	// Key lookup order: inline config, configured env var, OpenRouter's conventional name.
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(getenv(c.LLM.APIKeyEnv))
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(getenv("OPENROUTER_API_KEY"))
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = c.LLM.BaseURL
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.LLM.APIKey
	}
}

// Validate reports missing credentials or storage paths so the process fails at startup.
func (c Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm api key missing; set %s or llm.api_key", c.LLM.APIKeyEnv))
	}
	if c.IndexPath == "" {
		errs = append(errs, errors.New("index path missing; set PDPL_INDEX_PATH or index_path"))
	}
	switch c.LLM.Provider {
	case "openai", "openrouter", "gemini":
	case "deepseek":
		// DeepSeek speaks the OpenAI protocol but has no default gateway here.
		if c.LLM.BaseURL == "" {
			errs = append(errs, errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm provider %s not supported", c.LLM.Provider))
	}
	return errors.Join(errs...)
}

func (l LLMConfig) CallTimeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (l LLMConfig) Backoff() time.Duration {
	return time.Duration(l.BackoffMillis) * time.Millisecond
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}
