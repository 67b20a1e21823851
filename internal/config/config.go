package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultInstructions = "Você é o Farol (PT-BR). Ajude pessoas com deficiência visual com respostas claras, objetivas e acolhedoras. " +
	"Use linguagem simples, descreva informações essenciais de forma auditiva acessível e confirme entendimento quando necessário. " +
	"Evite jargões. Quando útil, liste passos curtos e numerados."

// Config contains all runtime settings for the Farol relay backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string

	Model        string
	Voice        string
	SilenceMS    int
	Instructions string

	// SecretFilePath is consulted before the OPENAI_API_KEY environment
	// variable. The credential itself is never stored here; it is resolved
	// fresh on every session request.
	SecretFilePath string

	UpstreamURL     string
	UpstreamTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "farol"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		Model:            envOrDefault("MODEL", "gpt-realtime-2025-08-28"),
		Voice:            envOrDefault("VOICE", "marin"),
		SilenceMS:        600,
		Instructions:     envOrDefault("INSTRUCTIONS", defaultInstructions),
		SecretFilePath:   envOrDefault("OPENAI_SECRET_FILE", "/run/secrets/openai_api_key"),
		UpstreamURL:      envOrDefault("OPENAI_REALTIME_URL", "https://api.openai.com/v1/realtime/sessions"),
		UpstreamTimeout:  30 * time.Second,
		ShutdownTimeout:  15 * time.Second,
	}

	var err error
	cfg.SilenceMS, err = intFromEnv("SILENCE_MS", cfg.SilenceMS)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("OPENAI_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.SilenceMS <= 0 {
		return Config{}, fmt.Errorf("SILENCE_MS must be positive")
	}
	if cfg.UpstreamTimeout <= 0 {
		return Config{}, fmt.Errorf("OPENAI_TIMEOUT must be positive")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return Config{}, fmt.Errorf("MODEL must not be blank")
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		return Config{}, fmt.Errorf("VOICE must not be blank")
	}
	if strings.TrimSpace(cfg.Instructions) == "" {
		return Config{}, fmt.Errorf("INSTRUCTIONS must not be blank")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
