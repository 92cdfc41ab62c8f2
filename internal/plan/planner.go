package plan

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/skein/internal/llm"
	"github.com/ShayCichocki/skein/pkg/models"
)

// Planner produces task lists by prompting a text-generation runner and
// parsing its output.
type Planner struct {
	runner  llm.Runner
	catalog string
}

// NewPlanner creates a planner over the given runner. catalog is the tool
// listing rendered into every planning prompt.
func NewPlanner(runner llm.Runner, catalog string) *Planner {
	return &Planner{runner: runner, catalog: catalog}
}

// Plan asks the runner for a plan and parses it. roundContext carries the
// joiner's replan guidance, empty on the first round. The raw plan text is
// returned alongside the tasks for logging and persistence.
func (p *Planner) Plan(ctx context.Context, request, roundContext string) ([]*models.Task, string, error) {
	prompt := BuildPrompt(p.catalog, request, roundContext)

	text, err := p.runner.Generate(ctx, prompt)
	if err != nil {
		return nil, "", fmt.Errorf("plan generation: %w", err)
	}

	tasks, err := Parse(text)
	if err != nil {
		return nil, text, err
	}
	return tasks, text, nil
}
