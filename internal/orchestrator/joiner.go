package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/skein/internal/llm"
)

// DecisionAction is the joiner's verdict for a round.
type DecisionAction string

const (
	// ActionFinish ends the loop with a final answer.
	ActionFinish DecisionAction = "finish"
	// ActionReplan feeds updated context into another planning round.
	ActionReplan DecisionAction = "replan"
)

// Decision is the parsed outcome of one join step.
type Decision struct {
	// Action is finish or replan.
	Action DecisionAction `json:"action"`
	// Answer is the final answer, set when Action is finish.
	Answer string `json:"answer,omitempty"`
	// Context is guidance for the next planning round, set when Action is
	// replan.
	Context string `json:"context,omitempty"`
	// Forced is true when the decision was synthesized locally (round
	// limit reached or the collaborator's response was unusable) instead
	// of parsed from the collaborator.
	Forced bool `json:"-"`
}

// joinerPrompt asks the decision collaborator whether the gathered results
// answer the request.
const joinerPrompt = `You are reviewing the results of an executed task plan.

Original request:
%s

Task results (task. tool -> result):
%s
Decide whether the results are sufficient to answer the request.

Respond with a single JSON object, no other text:
- If sufficient: {"action": "finish", "answer": "<the final answer, written for the user>"}
- If more work is needed: {"action": "replan", "context": "<what is missing and what to do next>"}

Failed results are marked with "error:". If a failure makes the request
unanswerable, finish with the best explanation you can give.
`

// Joiner decides after each round whether to finish or replan.
type Joiner struct {
	runner llm.Runner
}

// NewJoiner creates a joiner over the given runner.
func NewJoiner(runner llm.Runner) *Joiner {
	return &Joiner{runner: runner}
}

// Decide invokes the decision collaborator with the round's observations.
// It never fails: an unusable response falls back to a forced finish built
// from the available observations, with the anomaly logged.
func (j *Joiner) Decide(ctx context.Context, request string, store *ObservationStore) Decision {
	prompt := fmt.Sprintf(joinerPrompt, request, store.Serialize())

	response, err := j.runner.Generate(ctx, prompt)
	if err != nil {
		debugLog("[joiner] decision call failed, forcing finish: %v", err)
		return j.ForceFinish(store)
	}

	decision, err := parseDecision(response)
	if err != nil {
		debugLog("[joiner] unparseable decision, forcing finish: %v", err)
		return j.ForceFinish(store)
	}
	return decision
}

// ForceFinish builds a finish decision from the observations alone. Used
// when the round limit is reached or the collaborator's response was
// unusable.
func (j *Joiner) ForceFinish(store *ObservationStore) Decision {
	var sb strings.Builder
	sb.WriteString("Results gathered:\n")
	sb.WriteString(store.Serialize())
	return Decision{
		Action: ActionFinish,
		Answer: strings.TrimSpace(sb.String()),
		Forced: true,
	}
}

// parseDecision extracts a Decision from the collaborator's response,
// tolerating markdown fences and surrounding prose around the JSON object.
func parseDecision(response string) (Decision, error) {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if idx := strings.Index(response, "\n"); idx != -1 {
			response = response[idx+1:]
		}
		if idx := strings.LastIndex(response, "```"); idx != -1 {
			response = response[:idx]
		}
		response = strings.TrimSpace(response)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return Decision{}, fmt.Errorf("no JSON object found in response")
	}
	response = response[start : end+1]

	var d Decision
	if err := json.Unmarshal([]byte(response), &d); err != nil {
		return Decision{}, fmt.Errorf("unmarshal decision: %w", err)
	}

	switch d.Action {
	case ActionFinish:
		if strings.TrimSpace(d.Answer) == "" {
			return Decision{}, fmt.Errorf("finish decision has empty answer")
		}
	case ActionReplan:
		if strings.TrimSpace(d.Context) == "" {
			return Decision{}, fmt.Errorf("replan decision has empty context")
		}
	default:
		return Decision{}, fmt.Errorf("unknown action %q", d.Action)
	}
	return d, nil
}
