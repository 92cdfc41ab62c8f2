package tool

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Manifest describes exec-backed tools loaded from a YAML file, letting a
// project extend the capability set without recompiling.
//
//	tools:
//	  - name: search
//	    description: "search(term): look up a term with the local search CLI"
//	    command: websearch
//	    argv: ["--query", "{1}"]
//	    workdir: ""
type Manifest struct {
	Tools []ManifestEntry `yaml:"tools"`
}

// ManifestEntry is one tool definition in the manifest.
type ManifestEntry struct {
	// Name is the capability name used in plans.
	Name string `yaml:"name"`
	// Description is shown to the planner.
	Description string `yaml:"description"`
	// Command is the executable to run.
	Command string `yaml:"command"`
	// Argv is the argument template; {1}, {2}, ... expand to task arguments.
	Argv []string `yaml:"argv"`
	// WorkDir is the optional working directory.
	WorkDir string `yaml:"workdir"`
}

// LoadManifest reads a manifest file and registers its tools.
func LoadManifest(path string, r *Registry, runner CommandRunner) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	return RegisterManifest(data, r, runner)
}

// RegisterManifest parses manifest YAML and registers its tools.
func RegisterManifest(data []byte, r *Registry, runner CommandRunner) error {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	if runner == nil {
		runner = NewExecRunner()
	}

	for i, entry := range m.Tools {
		if entry.Name == "" {
			return fmt.Errorf("manifest tool at index %d has empty name", i)
		}
		if entry.Command == "" {
			return fmt.Errorf("manifest tool %q has empty command", entry.Name)
		}
		desc := entry.Description
		if desc == "" {
			desc = fmt.Sprintf("%s: run the %s command", entry.Name, entry.Command)
		}
		t := &ExecTool{
			name:        entry.Name,
			description: desc,
			command:     entry.Command,
			argv:        entry.Argv,
			workDir:     entry.WorkDir,
			runner:      runner,
		}
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
