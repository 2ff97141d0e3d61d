package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	errInvalidPort         = errors.New("config: invalid PORT number")
	errMergeCapOutOfRange  = errors.New("config: MERGE_SECTION_CAP must be 2 or 3")
	errRatioOutOfRange     = errors.New("config: MERGE_RATIO_THRESHOLD must be in (0, 1]")
	errMaxLinksOutOfRange  = errors.New("config: MAX_LINKS_CHECKED must be 1-100")
	errAITimeoutOutOfRange = errors.New("config: AI_TIMEOUT_SECONDS must be 1-600")
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port     string
	LogLevel string

	// Generative-text endpoint (OpenAI-compatible chat completions).
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	// Pipeline policy knobs. MergeSectionCap is the maximum number of
	// sections a single merge suggestion may name (2 = strict policy).
	// MergeRatioThreshold is the aggressiveness guardrail: the fraction of
	// the document that merge suggestions may touch before all structure
	// proposals are abandoned for the run.
	MergeSectionCap     int
	MergeRatioThreshold float64
	MaxLinksChecked     int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "ERROR"),
		AIBaseURL:           getEnv("AI_API_URL", "https://api.openai.com/v1"),
		AIAPIKey:            os.Getenv("AI_API_KEY"),
		AIModel:             getEnv("AI_MODEL", "gpt-4o-mini"),
		AITimeout:           time.Duration(getEnvAsInt("AI_TIMEOUT_SECONDS", 60)) * time.Second,
		MergeSectionCap:     getEnvAsInt("MERGE_SECTION_CAP", 2),
		MergeRatioThreshold: getEnvAsFloat("MERGE_RATIO_THRESHOLD", 0.6),
		MaxLinksChecked:     getEnvAsInt("MAX_LINKS_CHECKED", 20),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q", errInvalidPort, c.Port)
	}

	if c.MergeSectionCap < 2 || c.MergeSectionCap > 3 {
		return fmt.Errorf("%w: got %d", errMergeCapOutOfRange, c.MergeSectionCap)
	}

	if c.MergeRatioThreshold <= 0 || c.MergeRatioThreshold > 1 {
		return fmt.Errorf("%w: got %g", errRatioOutOfRange, c.MergeRatioThreshold)
	}

	if c.MaxLinksChecked < 1 || c.MaxLinksChecked > 100 {
		return fmt.Errorf("%w: got %d", errMaxLinksOutOfRange, c.MaxLinksChecked)
	}

	if c.AITimeout < time.Second || c.AITimeout > 600*time.Second {
		return fmt.Errorf("%w: got %s", errAITimeoutOutOfRange, c.AITimeout)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsFloat(key string, fallback float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
