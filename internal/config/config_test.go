package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.Provider)
	}

	if cfg.Run.MaxRounds != 3 {
		t.Errorf("expected default max_rounds 3, got %d", cfg.Run.MaxRounds)
	}

	if cfg.Run.TaskTimeout != 2*time.Minute {
		t.Errorf("expected default task_timeout 2m, got %v", cfg.Run.TaskTimeout)
	}

	if cfg.Run.FailFast {
		t.Error("expected fail_fast to default to false")
	}

	if !cfg.Run.PropagateFailures {
		t.Error("expected propagate_failures to default to true")
	}

	if !cfg.Tools.Builtins {
		t.Error("expected tools.builtins to default to true")
	}

	if !cfg.History.Enabled {
		t.Error("expected history.enabled to default to true")
	}

	if cfg.TUI.RefreshRate != 100*time.Millisecond {
		t.Errorf("expected refresh rate 100ms, got %v", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
provider: openai
anthropic:
  api_key: test-key
  model: claude-sonnet-4-20250514
openai:
  api_key: other-key
  model: gpt-4o
  base_url: http://localhost:8080/v1
run:
  max_rounds: 5
  workers: 8
  task_timeout: 30s
  fail_fast: true
tools:
  manifest: ./tools.yaml
history:
  enabled: false
tui:
  refresh_rate: 200ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Provider)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.OpenAI.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("expected base_url override, got %q", cfg.OpenAI.BaseURL)
	}

	if cfg.Run.MaxRounds != 5 {
		t.Errorf("expected max_rounds 5, got %d", cfg.Run.MaxRounds)
	}

	if cfg.Run.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Run.Workers)
	}

	if cfg.Run.TaskTimeout != 30*time.Second {
		t.Errorf("expected task_timeout 30s, got %v", cfg.Run.TaskTimeout)
	}

	if !cfg.Run.FailFast {
		t.Error("expected fail_fast to be true")
	}

	if cfg.Tools.Manifest != "./tools.yaml" {
		t.Errorf("expected manifest './tools.yaml', got %q", cfg.Tools.Manifest)
	}

	if cfg.History.Enabled {
		t.Error("expected history.enabled to be false")
	}

	if cfg.TUI.RefreshRate != 200*time.Millisecond {
		t.Errorf("expected refresh rate 200ms, got %v", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPathDefaultsApply(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("provider: anthropic\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Run.MaxRounds != 3 {
		t.Errorf("expected defaulted max_rounds 3, got %d", cfg.Run.MaxRounds)
	}
	if !cfg.Run.PropagateFailures {
		t.Error("expected defaulted propagate_failures true")
	}
	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("expected defaulted max_tokens 4096, got %d", cfg.Anthropic.MaxTokens)
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/skein"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
