package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "COOPLEO"

type Config struct {
	Port     string
	LogLevel string

	LLM          LLMConfig
	Retry        RetryConfig
	Conversation ConversationConfig
	Suggestions  SuggestionsConfig
	Session      SessionConfig
	Storage      StorageConfig
	HTTP         HTTPConfig
}

type LLMConfig struct {
	Provider    string // anthropic, openai, vertex or mock
	Model       string
	APIKey      string
	BaseURL     string
	GCPProject  string
	GCPLocation string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // per attempt
}

type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

type ConversationConfig struct {
	Locale           string
	ClosingThreshold int
	NameCapture      bool
	SingleParagraph  bool
	RequireQuestion  bool
	HistoryWindow    int // 0 = whole history
	PersistTimeout   time.Duration
}

type SuggestionsConfig struct {
	Enabled  bool
	MinWords int
	MaxWords int
}

type SessionConfig struct {
	TTL           time.Duration
	MaxSessions   int
	SweepInterval time.Duration
}

type StorageConfig struct {
	Backend    string // memory, firestore, postgres or sqlite
	DSN        string
	GCPProject string
}

type HTTPConfig struct {
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
	AllowedOrigins []string
}

// SetDefaults registers every key with its default so env overrides are picked up.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.gcp_project", "")
	v.SetDefault("llm.gcp_location", "us-central1")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", 2*time.Second)
	v.SetDefault("retry.max_interval", 8*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("conversation.locale", "fr")
	v.SetDefault("conversation.closing_threshold", 8)
	v.SetDefault("conversation.name_capture", true)
	v.SetDefault("conversation.single_paragraph", false)
	v.SetDefault("conversation.require_question", true)
	v.SetDefault("conversation.history_window", 0)
	v.SetDefault("conversation.persist_timeout", 10*time.Second)

	v.SetDefault("suggestions.enabled", true)
	v.SetDefault("suggestions.min_words", 1)
	v.SetDefault("suggestions.max_words", 10)

	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.sweep_interval", 5*time.Minute)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.gcp_project", "")

	v.SetDefault("http.rate_limit", 0.0)
	v.SetDefault("http.rate_burst", 20)
	v.SetDefault("http.allowed_origins", []string{"*"})
}

// NewViper returns a viper instance reading COOPLEO_* env vars.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the optional config file and builds a validated Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile)
		}
	}

	cfg := &Config{
		Port:     v.GetString("port"),
		LogLevel: v.GetString("log.level"),

		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			GCPProject:  v.GetString("llm.gcp_project"),
			GCPLocation: v.GetString("llm.gcp_location"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Temperature: v.GetFloat64("llm.temperature"),
			Timeout:     v.GetDuration("llm.timeout"),
		},

		Retry: RetryConfig{
			MaxAttempts:     v.GetInt("retry.max_attempts"),
			InitialInterval: v.GetDuration("retry.initial_interval"),
			MaxInterval:     v.GetDuration("retry.max_interval"),
			Multiplier:      v.GetFloat64("retry.multiplier"),
		},

		Conversation: ConversationConfig{
			Locale:           strings.ToLower(v.GetString("conversation.locale")),
			ClosingThreshold: v.GetInt("conversation.closing_threshold"),
			NameCapture:      v.GetBool("conversation.name_capture"),
			SingleParagraph:  v.GetBool("conversation.single_paragraph"),
			RequireQuestion:  v.GetBool("conversation.require_question"),
			HistoryWindow:    v.GetInt("conversation.history_window"),
			PersistTimeout:   v.GetDuration("conversation.persist_timeout"),
		},

		Suggestions: SuggestionsConfig{
			Enabled:  v.GetBool("suggestions.enabled"),
			MinWords: v.GetInt("suggestions.min_words"),
			MaxWords: v.GetInt("suggestions.max_words"),
		},

		Session: SessionConfig{
			TTL:           v.GetDuration("session.ttl"),
			MaxSessions:   v.GetInt("session.max_sessions"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},

		Storage: StorageConfig{
			Backend:    strings.ToLower(v.GetString("storage.backend")),
			DSN:        v.GetString("storage.dsn"),
			GCPProject: v.GetString("storage.gcp_project"),
		},

		HTTP: HTTPConfig{
			RateLimit:      v.GetFloat64("http.rate_limit"),
			RateBurst:      v.GetInt("http.rate_burst"),
			AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
		},
	}

	// Provider SDK conventions for credentials
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
	if cfg.Storage.GCPProject == "" {
		cfg.Storage.GCPProject = cfg.LLM.GCPProject
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "vertex":
		return "gemini-2.5-flash"
	case "mock":
		return "mock"
	default:
		return "claude-3-5-sonnet-latest"
	}
}

// Validate checks that everything needed at startup is present.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
		if c.LLM.APIKey == "" {
			return errors.Errorf("an API key is required for the %s provider (set %s_LLM_API_KEY)", c.LLM.Provider, EnvPrefix)
		}
	case "vertex":
		if c.LLM.GCPProject == "" || c.LLM.GCPLocation == "" {
			return errors.Errorf("%s_LLM_GCP_PROJECT and %s_LLM_GCP_LOCATION must be set for the vertex provider", EnvPrefix, EnvPrefix)
		}
	case "mock":
	default:
		return errors.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	switch c.Storage.Backend {
	case "memory":
	case "firestore":
		if c.Storage.GCPProject == "" {
			return errors.Errorf("%s_STORAGE_GCP_PROJECT is required for the firestore backend", EnvPrefix)
		}
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			return errors.Errorf("%s_STORAGE_DSN is required for the %s backend", EnvPrefix, c.Storage.Backend)
		}
	default:
		return errors.Errorf("unsupported storage backend: %q", c.Storage.Backend)
	}

	switch c.Conversation.Locale {
	case "fr", "en":
	default:
		return errors.Errorf("unsupported locale: %q", c.Conversation.Locale)
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Conversation.ClosingThreshold < 1 {
		return errors.New("conversation.closing_threshold must be at least 1")
	}
	if c.Suggestions.MaxWords < c.Suggestions.MinWords {
		return errors.New("suggestions.max_words must not be lower than suggestions.min_words")
	}
	return nil
}
