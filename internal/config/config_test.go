package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"OPENAI_API_KEY", "OPENAI_ASSISTANT_ID", "OPENAI_BASE_URL", "OPENAI_RUN_TIMEOUT_SEC",
	"GRADER_API_KEY", "GRADER_MODEL", "GRADER_BASE_URL", "GRADER_TIMEOUT_SEC",
	"DATABASE_URL", "DATASET_PATH",
	"VALIDATION_MAX_LOOPS", "SCORE_IMPROVEMENT_THRESHOLD", "PASS_THRESHOLD",
	"ENABLE_PROGRESSIVE_HINTS", "ENABLE_FAILURE_ANALYSIS", "ENABLE_LOGGING",
	"LOG_LEVEL", "CACHE_TTL_SEC", "RATE_LIMIT_PER_MINUTE",
}

func clearEnvVars() {
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
}

func validEnv() map[string]string {
	return map[string]string{
		"OPENAI_API_KEY":      "sk-test",
		"OPENAI_ASSISTANT_ID": "asst_test",
		"DATABASE_URL":        "postgres://localhost:5432/test",
		"DATASET_PATH":        "/data/subsidies.json",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		drop    string
		wantErr error
	}{
		{name: "valid config"},
		{name: "missing api key", drop: "OPENAI_API_KEY", wantErr: ErrMissingAPIKey},
		{name: "missing assistant id", drop: "OPENAI_ASSISTANT_ID", wantErr: ErrMissingAssistantID},
		{name: "missing database url", drop: "DATABASE_URL", wantErr: ErrMissingDB},
		{name: "missing dataset path", drop: "DATASET_PATH", wantErr: ErrMissingDataset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			defer clearEnvVars()

			for k, v := range validEnv() {
				if k != tt.drop {
					os.Setenv(k, v)
				}
			}

			cfg, err := Load()

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error = %v", err)
			}
			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	for k, v := range validEnv() {
		os.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Validation.MaxLoops != 2 {
		t.Errorf("MaxLoops = %d, want 2", cfg.Validation.MaxLoops)
	}
	if cfg.Validation.ScoreImprovementThreshold != 15 {
		t.Errorf("ScoreImprovementThreshold = %d, want 15", cfg.Validation.ScoreImprovementThreshold)
	}
	if cfg.Validation.PassThreshold != 85 {
		t.Errorf("PassThreshold = %d, want 85", cfg.Validation.PassThreshold)
	}
	if !cfg.Validation.EnableProgressiveHints || !cfg.Validation.EnableFailureAnalysis || !cfg.Validation.EnableLogging {
		t.Error("feature flags should default to true")
	}
	if cfg.Grader.Model != "gpt-4o-mini" {
		t.Errorf("Grader.Model = %s, want gpt-4o-mini", cfg.Grader.Model)
	}
	if cfg.Grader.APIKey != "sk-test" {
		t.Error("grader api key should fall back to OPENAI_API_KEY")
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	for k, v := range validEnv() {
		os.Setenv(k, v)
	}
	os.Setenv("VALIDATION_MAX_LOOPS", "3")
	os.Setenv("PASS_THRESHOLD", "90")
	os.Setenv("ENABLE_PROGRESSIVE_HINTS", "false")
	os.Setenv("DATASET_PATH", "/data/a.json, /data/b.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Validation.MaxLoops != 3 {
		t.Errorf("MaxLoops = %d, want 3", cfg.Validation.MaxLoops)
	}
	if cfg.Validation.PassThreshold != 90 {
		t.Errorf("PassThreshold = %d, want 90", cfg.Validation.PassThreshold)
	}
	if cfg.Validation.EnableProgressiveHints {
		t.Error("EnableProgressiveHints should be false")
	}
	if len(cfg.Dataset.Paths) != 2 {
		t.Errorf("Dataset.Paths = %v, want 2 entries", cfg.Dataset.Paths)
	}
}

func TestLoad_InvalidValidationConfig(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	for k, v := range validEnv() {
		os.Setenv(k, v)
	}
	os.Setenv("VALIDATION_MAX_LOOPS", "0")

	if _, err := Load(); err == nil {
		t.Error("Load() should reject MaxLoops = 0")
	}
}
