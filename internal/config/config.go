// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// minMockDelay keeps the offline recognizer from answering faster than a
// real model would.
const minMockDelay = 500 * time.Millisecond

type Config struct {
	Host   string
	Port   int
	DBPath string

	PhotoDir       string
	PhotoRetention time.Duration

	ClassifierURL     string
	ClassifierTimeout time.Duration
	MockDelay         time.Duration

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	LogLevel  string
	LogFormat string

	RateLimitRPS float64
	RateBurst    int
}

// Load reads settings from the environment. Values in envFile are loaded
// first without overriding variables that are already set; a missing file
// is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Host:       envOr("CHEW_CHECK_HOST", "localhost"),
		DBPath:     envOr("CHEW_CHECK_DB_PATH", "./chew-check.db"),
		PhotoDir:   envOr("CHEW_CHECK_PHOTO_DIR", "./photos"),
		LLMBaseURL: envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   envOr("LLM_MODEL", "gpt-4o-mini"),
		LogLevel:   envOr("LOG_LEVEL", "info"),
		LogFormat:  envOr("LOG_FORMAT", "text"),
		// Empty disables the remote recognizer.
		ClassifierURL: os.Getenv("CLASSIFIER_URL"),
	}

	var err error
	if cfg.Port, err = intEnv("CHEW_CHECK_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = intEnv("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = floatEnv("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.PhotoRetention, err = durationEnv("PHOTO_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ClassifierTimeout, err = durationEnv("CLASSIFIER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MockDelay, err = durationEnv("MOCK_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.MockDelay < minMockDelay {
		cfg.MockDelay = minMockDelay
	}
	if cfg.LLMTimeout, err = durationEnv("LLM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid CHEW_CHECK_PORT %d", cfg.Port)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
