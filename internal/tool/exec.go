package tool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs external commands on behalf of exec-backed tools.
// The abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)

// ExecTool is a capability backed by an external command. Occurrences of
// "{1}", "{2}", ... in the argv template are replaced by the corresponding
// resolved task arguments; remaining task arguments are appended.
type ExecTool struct {
	name        string
	description string
	command     string
	argv        []string
	workDir     string
	runner      CommandRunner
}

// Name returns the capability name.
func (e *ExecTool) Name() string { return e.name }

// Description returns the planner-facing description.
func (e *ExecTool) Description() string { return e.description }

// Invoke substitutes arguments into the argv template and runs the command.
func (e *ExecTool) Invoke(ctx context.Context, args []string) (string, error) {
	argv := make([]string, 0, len(e.argv)+len(args))
	used := make(map[int]bool)

	for _, tmpl := range e.argv {
		expanded := tmpl
		for i, arg := range args {
			placeholder := fmt.Sprintf("{%d}", i+1)
			if strings.Contains(expanded, placeholder) {
				expanded = strings.ReplaceAll(expanded, placeholder, arg)
				used[i] = true
			}
		}
		argv = append(argv, expanded)
	}

	// Append any arguments the template did not place.
	for i, arg := range args {
		if !used[i] {
			argv = append(argv, arg)
		}
	}

	out, err := e.runner.Run(ctx, e.workDir, e.command, argv...)
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return "", fmt.Errorf("%s: %s", err, output)
		}
		return "", err
	}
	return output, nil
}

// Verify ExecTool implements Tool at compile time.
var _ Tool = (*ExecTool)(nil)
