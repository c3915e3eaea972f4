package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "guild-1")
	t.Setenv("DISCORD_VC_ID", "vc-1")
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "project")
	t.Setenv("GOOGLE_CLOUD_CREDENTIALS_JSON", `{"type":"service_account"}`)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("AWS_BUCKET_NAME", "bucket")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DecisionCooldownSec != 30 || cfg.DecisionWindowSize != 25 {
		t.Fatalf("unexpected detector defaults: cooldown=%d window=%d", cfg.DecisionCooldownSec, cfg.DecisionWindowSize)
	}
	if cfg.SnapshotIntervalSec != 300 {
		t.Fatalf("unexpected snapshot interval: %d", cfg.SnapshotIntervalSec)
	}
	if cfg.RecapPollAttempts != 10 || cfg.RecapPollDelaySec != 30 {
		t.Fatalf("unexpected recap poll defaults: %d/%d", cfg.RecapPollAttempts, cfg.RecapPollDelaySec)
	}
	if cfg.AudioSourceSampleRate != 48000 || cfg.AudioTargetSampleRate != 16000 {
		t.Fatalf("unexpected audio rates: %d -> %d", cfg.AudioSourceSampleRate, cfg.AudioTargetSampleRate)
	}
	if cfg.Generator.Provider != "gemini" || cfg.Generator.GeminiModel != "gemini-2.0-flash" {
		t.Fatalf("unexpected generator config: %+v", cfg.Generator)
	}
	if !cfg.SummarizeEnabled {
		t.Fatal("expected summarization to be enabled by default")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when required variables are missing")
	}
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	setRequiredEnv(t)
	file := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(file, []byte("DECISION_COOLDOWN_SEC=45\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("ENV_FILE", file)
	t.Setenv("DECISION_COOLDOWN_SEC", "")
	os.Unsetenv("DECISION_COOLDOWN_SEC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DecisionCooldownSec != 45 {
		t.Fatalf("expected cooldown from env file, got %d", cfg.DecisionCooldownSec)
	}
}

func TestLoadSummarizer(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OBJECT_STORE", "local")

	cfg, err := LoadSummarizer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.LocalObjectDir != "./objects" {
		t.Fatalf("unexpected local object dir: %q", cfg.Storage.LocalObjectDir)
	}
}
