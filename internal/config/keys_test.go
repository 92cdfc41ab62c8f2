package config

import (
	"errors"
	"os"
	"testing"
)

func TestGetAnthropicKeyFromEnv(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	key, err := GetAnthropicKey(nil)
	if err != nil {
		t.Fatalf("GetAnthropicKey failed: %v", err)
	}
	if key != "sk-ant-from-env" {
		t.Errorf("expected env key, got %q", key)
	}

	if src := GetAnthropicKeySource(nil); src != KeySourceEnv {
		t.Errorf("expected source %s, got %s", KeySourceEnv, src)
	}
}

func TestGetAnthropicKeyFromConfig(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")

	cfg := &Config{}
	cfg.Anthropic.APIKey = "sk-ant-from-config"

	key, err := GetAnthropicKey(cfg)
	if err != nil {
		t.Fatalf("GetAnthropicKey failed: %v", err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("expected config key, got %q", key)
	}

	if src := GetAnthropicKeySource(cfg); src != KeySourceConfig {
		t.Errorf("expected source %s, got %s", KeySourceConfig, src)
	}
}

func TestGetAnthropicKeyMissing(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := GetAnthropicKey(&Config{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	if src := GetAnthropicKeySource(&Config{}); src != KeySourceNone {
		t.Errorf("expected source %s, got %s", KeySourceNone, src)
	}
}

func TestGetOpenAIKey(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "sk-openai-env")
	defer os.Unsetenv("OPENAI_API_KEY")

	key, err := GetOpenAIKey(nil)
	if err != nil {
		t.Fatalf("GetOpenAIKey failed: %v", err)
	}
	if key != "sk-openai-env" {
		t.Errorf("expected env key, got %q", key)
	}
}

func TestValidateAnthropicKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"", false},
		{"sk-ant-short", false},
		{"wrong-prefix-aaaaaaaaaaaaaaaa", false},
		{"sk-ant-REDACTED", true},
	}

	for _, tc := range cases {
		err := ValidateAnthropicKey(tc.key)
		if tc.ok && err != nil {
			t.Errorf("ValidateAnthropicKey(%q) failed: %v", tc.key, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateAnthropicKey(%q) should have failed", tc.key)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("expected '(not set)', got %q", got)
	}
	if got := MaskAPIKey("short"); got != "***" {
		t.Errorf("expected '***', got %q", got)
	}
	masked := MaskAPIKey("sk-ant-REDACTED")
	if masked != "sk-ant-...1234" {
		t.Errorf("unexpected mask %q", masked)
	}
}
