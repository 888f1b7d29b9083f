package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no Gemini credential is present in the environment.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY (or GEMINI_API_KEY) is not set")

// ErrMissingAnthropicKey is returned when the anthropic backend is selected without a key.
var ErrMissingAnthropicKey = errors.New("ANTHROPIC_API_KEY is not set")

const (
	BackendGenAI      = "genai"
	BackendLangchain  = "langchaingo"
	BackendAnthropic  = "anthropic"
	DefaultModel      = "gemini-2.5-flash"
	DefaultPort       = "8081"
	fallbackKeyGemini = "GEMINI_API_KEY"
	fallbackKeyPlain  = "API_KEY"
)

type Config struct {
	GoogleApiKey    string `env:"GOOGLE_API_KEY"`
	AnthropicApiKey string `env:"ANTHROPIC_API_KEY"`
	ReportModel   string   `env:"REPORT_MODEL" envDefault:"gemini-2.5-flash"`
	ChatModel     string   `env:"CHAT_MODEL" envDefault:"gemini-2.5-flash"`
	ReportBackend string   `env:"REPORT_BACKEND" envDefault:"genai"`
	Port          string   `env:"PORT" envDefault:"8081"`
	DatabaseURL   string   `env:"DATABASE_URL"`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowOrigins  []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	return Parse()
}

// Parse builds the config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.GoogleApiKey == "" {
		cfg.GoogleApiKey = firstEnv(fallbackKeyGemini, fallbackKeyPlain)
	}

	// The anthropic backend only needs a Google key for follow-up chat.
	switch cfg.ReportBackend {
	case BackendGenAI, BackendLangchain:
		if cfg.GoogleApiKey == "" {
			return nil, ErrMissingAPIKey
		}
	case BackendAnthropic:
		if cfg.AnthropicApiKey == "" {
			return nil, ErrMissingAnthropicKey
		}
	default:
		return nil, fmt.Errorf("invalid REPORT_BACKEND %q: want %s, %s or %s",
			cfg.ReportBackend, BackendGenAI, BackendLangchain, BackendAnthropic)
	}

	return cfg, nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
