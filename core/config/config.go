package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel          OTelConfig
	Auth          AuthConfig
	Twilio        TwilioConfig
	OpenAI        OpenAIConfig
	Reply         ReplyConfig
	Dedupe        DedupeConfig
	Env           string
	Port          string
	PublicBaseURL string
	ShutdownAfter time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// AuthConfig holds the basic auth credentials for gated routes.
type AuthConfig struct {
	Username string
	Password string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	SystemPrompt   string
	MaxTokens      int
	RequestTimeout time.Duration
}

type ReplyMode string

const (
	ReplyModeLLM  ReplyMode = "llm"
	ReplyModeEcho ReplyMode = "echo"
)

type ReplyConfig struct {
	Mode ReplyMode
	// Timeout is how long a webhook waits for the completion before
	// answering with a placeholder and delivering the reply later.
	Timeout    time.Duration
	WorkerPool int
}

type DedupeConfig struct {
	RedisURL string
	TTL      time.Duration
}

// Load loads configuration from environment variables.
// In development, values from a local .env file are loaded first; real
// environment variables always win.
func Load() (Config, error) {
	if getEnv("RELAY_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:           getEnv("RELAY_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		ShutdownAfter: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "textrelay"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Auth: AuthConfig{
			Username: getEnv("WEBHOOK_USER", ""),
			Password: getEnv("WEBHOOK_PASS", ""),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			SystemPrompt:   getEnv("LLM_SYSTEM_PROMPT", ""),
			MaxTokens:      getEnvInt("LLM_MAX_TOKENS", 500),
			RequestTimeout: getEnvDuration("LLM_REQUEST_TIMEOUT", 60*time.Second),
		},
		Reply: ReplyConfig{
			Mode:       ReplyMode(getEnv("REPLY_MODE", string(ReplyModeLLM))),
			Timeout:    getEnvSeconds("LLM_TIMEOUT", 10*time.Second),
			WorkerPool: getEnvInt("WORKER_POOL_SIZE", 4),
		},
		Dedupe: DedupeConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvDuration("DEDUPE_TTL", 10*time.Minute),
		},
	}

	switch cfg.Reply.Mode {
	case ReplyModeLLM:
		if !cfg.OpenAI.Enabled() {
			return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
		}
	case ReplyModeEcho:
	default:
		return Config{}, fmt.Errorf("unsupported REPLY_MODE: %q", cfg.Reply.Mode)
	}

	if cfg.Reply.WorkerPool <= 0 {
		return Config{}, fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", cfg.Reply.WorkerPool)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c AuthConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// SignatureEnabled reports whether inbound webhooks can be verified.
func (c TwilioConfig) SignatureEnabled() bool {
	return c.AuthToken != ""
}

// DeliveryEnabled reports whether out-of-band replies can be sent.
func (c TwilioConfig) DeliveryEnabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c DedupeConfig) Enabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvSeconds reads a plain number of seconds ("10", "2.5").
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}
