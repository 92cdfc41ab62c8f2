package plan

import (
	"fmt"
	"strings"
)

// plannerPrompt is the template used to elicit a parseable plan.
const plannerPrompt = `You are a planning engine. Break the user's request into a numbered list of tool calls that can be executed as a dependency graph.

Available tools:
%s
Rules:
- One tool call per line, in the form: N. tool(arg1, arg2, ...)
- Number tasks consecutively starting from 1.
- Use $K as an argument to pass task K's result into a later task. $K may only reference an earlier task.
- Tasks that do not reference each other run in parallel; prefer independent tasks where possible.
- String arguments go in double quotes.
- End the plan with a final statement: N. join()
- Output only the plan. No prose before or after it.

Request:
%s
`

// replanSection is appended when a prior round decided more work is needed.
const replanSection = `
Results gathered so far (task: result):
%s
The results above are already known. Plan only the remaining work needed to answer the request; renumber tasks from 1.
`

// BuildPrompt renders the planning prompt for a request. catalog is the
// registry's tool listing; context carries the joiner's replan guidance and
// prior observations, empty on the first round.
func BuildPrompt(catalog, request, context string) string {
	prompt := fmt.Sprintf(plannerPrompt, catalog, request)
	if strings.TrimSpace(context) != "" {
		prompt += fmt.Sprintf(replanSection, context)
	}
	return prompt
}
