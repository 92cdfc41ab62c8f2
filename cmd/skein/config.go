package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skein/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify skein configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/skein/config.yaml
Project-specific overrides can be placed in .skein.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("provider: %s\n", cfg.Provider)
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("openai.api_key: %s\n", config.MaskAPIKey(cfg.OpenAI.APIKey))
	fmt.Printf("openai.model: %s\n", cfg.OpenAI.Model)
	fmt.Printf("openai.base_url: %s\n", cfg.OpenAI.BaseURL)
	fmt.Printf("run.max_rounds: %d\n", cfg.Run.MaxRounds)
	fmt.Printf("run.workers: %d\n", cfg.Run.Workers)
	fmt.Printf("run.task_timeout: %s\n", cfg.Run.TaskTimeout)
	fmt.Printf("run.fail_fast: %t\n", cfg.Run.FailFast)
	fmt.Printf("run.propagate_failures: %t\n", cfg.Run.PropagateFailures)
	fmt.Printf("tools.manifest: %s\n", cfg.Tools.Manifest)
	fmt.Printf("tools.builtins: %t\n", cfg.Tools.Builtins)
	fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("history.path: %s\n", cfg.History.Path)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
	fmt.Printf("signals.dir: %s\n", cfg.Signals.Dir)
	fmt.Printf("debug.log: %s\n", cfg.Debug.Log)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "provider":
		return cfg.Provider, nil
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.Itoa(cfg.Anthropic.MaxTokens), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "openai.api_key":
		return config.MaskAPIKey(cfg.OpenAI.APIKey), nil
	case "openai.model":
		return cfg.OpenAI.Model, nil
	case "openai.base_url":
		return cfg.OpenAI.BaseURL, nil
	case "run.max_rounds":
		return strconv.Itoa(cfg.Run.MaxRounds), nil
	case "run.workers":
		return strconv.Itoa(cfg.Run.Workers), nil
	case "run.task_timeout":
		return cfg.Run.TaskTimeout.String(), nil
	case "run.fail_fast":
		return strconv.FormatBool(cfg.Run.FailFast), nil
	case "run.propagate_failures":
		return strconv.FormatBool(cfg.Run.PropagateFailures), nil
	case "tools.manifest":
		return cfg.Tools.Manifest, nil
	case "tools.builtins":
		return strconv.FormatBool(cfg.Tools.Builtins), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return cfg.History.Path, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	case "signals.dir":
		return cfg.Signals.Dir, nil
	case "debug.log":
		return cfg.Debug.Log, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "provider":
		if value != "anthropic" && value != "openai" {
			return fmt.Errorf("invalid provider %q: must be anthropic or openai", value)
		}
		cfg.Provider = value
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "openai.api_key":
		cfg.OpenAI.APIKey = value
	case "openai.model":
		cfg.OpenAI.Model = value
	case "openai.base_url":
		cfg.OpenAI.BaseURL = value
	case "run.max_rounds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_rounds: %w", err)
		}
		cfg.Run.MaxRounds = n
	case "run.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for workers: %w", err)
		}
		cfg.Run.Workers = n
	case "run.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Run.TaskTimeout = d
	case "run.fail_fast":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for fail_fast: %w", err)
		}
		cfg.Run.FailFast = b
	case "run.propagate_failures":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for propagate_failures: %w", err)
		}
		cfg.Run.PropagateFailures = b
	case "tools.manifest":
		cfg.Tools.Manifest = value
	case "tools.builtins":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for builtins: %w", err)
		}
		cfg.Tools.Builtins = b
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	case "history.path":
		cfg.History.Path = value
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for refresh_rate: %w", err)
		}
		cfg.TUI.RefreshRate = d
	case "signals.dir":
		cfg.Signals.Dir = value
	case "debug.log":
		cfg.Debug.Log = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
