// Package llm provides the text-generation collaborators used by the
// planner and the joiner. The rest of the system only sees the Runner
// interface; providers are selected by configuration.
package llm

import "context"

// Runner generates text from a prompt. Implementations must be safe for
// concurrent use; the planner and joiner may share one runner.
type Runner interface {
	// Generate sends the prompt and returns the model's full text response.
	Generate(ctx context.Context, prompt string) (string, error)
}
