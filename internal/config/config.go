// Package config handles configuration loading and management for skein.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for skein.
type Config struct {
	Provider  string          `mapstructure:"provider"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Run       RunConfig       `mapstructure:"run"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	History   HistoryConfig   `mapstructure:"history"`
	TUI       TUIConfig       `mapstructure:"tui"`
	Signals   SignalsConfig   `mapstructure:"signals"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI-compatible API settings. BaseURL allows pointing
// at any compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// RunConfig holds default run-loop settings.
type RunConfig struct {
	MaxRounds         int           `mapstructure:"max_rounds"`
	Workers           int           `mapstructure:"workers"`
	TaskTimeout       time.Duration `mapstructure:"task_timeout"`
	FailFast          bool          `mapstructure:"fail_fast"`
	PropagateFailures bool          `mapstructure:"propagate_failures"`
}

// ToolsConfig holds tool registration settings.
type ToolsConfig struct {
	// Manifest is the path to a YAML file of external command tools.
	Manifest string `mapstructure:"manifest"`
	// Builtins toggles registration of the built-in tool set.
	Builtins bool `mapstructure:"builtins"`
}

// HistoryConfig holds run history persistence settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// SignalsConfig holds the kill/pause signal directory setting.
type SignalsConfig struct {
	Dir string `mapstructure:"dir"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// Log is the debug log file path; empty disables debug logging.
	Log string `mapstructure:"log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. Project config (.skein.yaml in current directory or parent)
// 3. User config (~/.config/skein/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in secrets.
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("provider", cfg.Provider)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("openai.api_key", cfg.OpenAI.APIKey)
	v.Set("openai.model", cfg.OpenAI.Model)
	v.Set("openai.base_url", cfg.OpenAI.BaseURL)
	v.Set("run.max_rounds", cfg.Run.MaxRounds)
	v.Set("run.workers", cfg.Run.Workers)
	v.Set("run.task_timeout", cfg.Run.TaskTimeout.String())
	v.Set("run.fail_fast", cfg.Run.FailFast)
	v.Set("run.propagate_failures", cfg.Run.PropagateFailures)
	v.Set("tools.manifest", cfg.Tools.Manifest)
	v.Set("tools.builtins", cfg.Tools.Builtins)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("signals.dir", cfg.Signals.Dir)
	v.Set("debug.log", cfg.Debug.Log)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultHistoryPath returns the default location of the run history database.
func DefaultHistoryPath() string {
	return filepath.Join(getUserDataDir(), "history.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "anthropic")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("run.max_rounds", 3)
	v.SetDefault("run.workers", 0) // 0 = number of CPUs
	v.SetDefault("run.task_timeout", "2m")
	v.SetDefault("run.fail_fast", false)
	v.SetDefault("run.propagate_failures", true)

	v.SetDefault("tools.manifest", "")
	v.SetDefault("tools.builtins", true)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())

	v.SetDefault("tui.refresh_rate", "100ms")

	v.SetDefault("signals.dir", "")

	v.SetDefault("debug.log", "")
}

// getUserConfigDir returns the XDG config directory for skein.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "skein")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "skein")
	}
	return filepath.Join(home, ".config", "skein")
}

// getUserDataDir returns the XDG data directory for skein.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "skein")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "skein")
	}
	return filepath.Join(home, ".local", "share", "skein")
}

// findProjectConfig searches for .skein.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".skein.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: "anthropic",
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Run: RunConfig{
			MaxRounds:         3,
			Workers:           0,
			TaskTimeout:       2 * time.Minute,
			FailFast:          false,
			PropagateFailures: true,
		},
		Tools: ToolsConfig{
			Builtins: true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath(),
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
