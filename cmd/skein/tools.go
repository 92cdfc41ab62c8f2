package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skein/internal/config"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the planner",
	Long: `List every registered tool with the description the planner sees.

The set is the builtins (unless disabled in config) plus any tools from
the configured YAML manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if toolsManifest != "" {
			cfg.Tools.Manifest = toolsManifest
		}

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		for _, name := range registry.Names() {
			t, err := registry.Get(name)
			if err != nil {
				continue
			}
			bold.Printf("%s", name)
			fmt.Printf("  %s\n", t.Description())
		}
		return nil
	},
}

var toolsManifest string

func init() {
	toolsCmd.Flags().StringVar(&toolsManifest, "manifest", "", "Path to a YAML manifest of external command tools")
}
