package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grantseeker/subsidy-bot/internal/domain"
)

var (
	ErrMissingAPIKey      = errors.New("OPENAI_API_KEY is required")
	ErrMissingAssistantID = errors.New("OPENAI_ASSISTANT_ID is required")
	ErrMissingDB          = errors.New("DATABASE_URL is required")
	ErrMissingDataset     = errors.New("DATASET_PATH is required")
)

type Config struct {
	OpenAI     OpenAIConfig
	Grader     GraderConfig
	Database   DatabaseConfig
	Dataset    DatasetConfig
	Validation domain.ValidationConfig
	Log        LogConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
}

type OpenAIConfig struct {
	APIKey      string
	AssistantID string
	BaseURL     string
	RunTimeout  time.Duration
}

type GraderConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
}

type DatabaseConfig struct {
	URL string
}

type DatasetConfig struct {
	Paths []string
}

type LogConfig struct {
	Level string
}

type CacheConfig struct {
	TTL time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

func Load() (*Config, error) {
	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			AssistantID: os.Getenv("OPENAI_ASSISTANT_ID"),
			BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			RunTimeout:  time.Duration(getEnvIntOrDefault("OPENAI_RUN_TIMEOUT_SEC", 120)) * time.Second,
		},
		Grader: GraderConfig{
			APIKey:  getEnvOrDefault("GRADER_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:   getEnvOrDefault("GRADER_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("GRADER_BASE_URL"),
			Timeout: time.Duration(getEnvIntOrDefault("GRADER_TIMEOUT_SEC", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Dataset: DatasetConfig{
			Paths: splitPaths(os.Getenv("DATASET_PATH")),
		},
		Validation: domain.ValidationConfig{
			MaxLoops:                  getEnvIntOrDefault("VALIDATION_MAX_LOOPS", domain.DefaultMaxLoops),
			ScoreImprovementThreshold: getEnvIntOrDefault("SCORE_IMPROVEMENT_THRESHOLD", domain.DefaultScoreImprovementThreshold),
			PassThreshold:             getEnvIntOrDefault("PASS_THRESHOLD", domain.DefaultPassThreshold),
			EnableProgressiveHints:    getEnvBoolOrDefault("ENABLE_PROGRESSIVE_HINTS", true),
			EnableFailureAnalysis:     getEnvBoolOrDefault("ENABLE_FAILURE_ANALYSIS", true),
			EnableLogging:             getEnvBoolOrDefault("ENABLE_LOGGING", true),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Cache: CacheConfig{
			TTL: time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 600)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.OpenAI.AssistantID == "" {
		return ErrMissingAssistantID
	}
	if c.Database.URL == "" {
		return ErrMissingDB
	}
	if len(c.Dataset.Paths) == 0 {
		return ErrMissingDataset
	}
	return c.Validation.Validate()
}

func splitPaths(value string) []string {
	var paths []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
