// Package plan turns planner output into an ordered task list.
//
// A plan is a numbered list of tool calls, one per line, where $K refers to
// the result of task K and a trailing join() marks the end of the plan:
//
//	1. search("ACME revenue 2024")
//	2. search("ACME employee count")
//	3. divide($1, $2)
//	4. join()
//
// A $K may also appear inside a quoted literal, e.g. echo("got $1"). Such an
// embedded reference to an earlier task is a dependency and is substituted
// with that task's result at execution time; a $N that does not name an
// earlier task (a dollar amount, say) stays plain text.
package plan

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ShayCichocki/skein/pkg/models"
)

// ErrMalformedPlan indicates plan text that could not be parsed into tasks.
var ErrMalformedPlan = errors.New("malformed plan")

// statementRe matches one numbered tool call: `3. divide($1, $2)`.
var statementRe = regexp.MustCompile(`^(\d+)\.\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\((.*)\)\s*$`)

// refRe matches a whole-argument back-reference: `$3`.
var refRe = regexp.MustCompile(`^\$(\d+)$`)

// Parse converts raw plan text into an ordered task list. It is a pure
// function of its input: identical text yields a structurally identical
// task set.
//
// Statement ids must count up from 1 in plan order. A back-reference must
// name a task that appears earlier in the same plan; forward and unknown
// references are rejected. A join() statement ends the plan and is not
// itself a task.
func Parse(text string) ([]*models.Task, error) {
	var tasks []*models.Task
	next := 1

	for lineNo, line := range strings.Split(stripFences(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Planner output interleaves commentary ("Thought: ...") with
		// numbered statements; only numbered lines are tasks.
		if !startsNumbered(line) {
			continue
		}

		m := statementRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse statement %q: %w", lineNo+1, line, ErrMalformedPlan)
		}

		id, err := strconv.Atoi(m[1])
		if err != nil || id != next {
			return nil, fmt.Errorf("line %d: expected task %d, got %q: %w", lineNo+1, next, m[1], ErrMalformedPlan)
		}

		toolName := m[2]
		if strings.EqualFold(toolName, "join") {
			break
		}

		args, err := parseArgs(m[3], id)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}

		tasks = append(tasks, models.NewTask(id, toolName, args))
		next++
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("plan contains no tasks: %w", ErrMalformedPlan)
	}
	return tasks, nil
}

// parseArgs splits an argument list on top-level commas and classifies each
// slot as a literal or a back-reference. id is the owning task's id; a ref
// must name a strictly earlier task.
func parseArgs(list string, id int) ([]models.Arg, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	var args []models.Arg
	for _, raw := range splitArgs(list) {
		raw = strings.TrimSpace(raw)
		unquoted := unquote(raw)

		if m := refRe.FindStringSubmatch(unquoted); m != nil {
			ref, _ := strconv.Atoi(m[1])
			if ref >= id {
				return nil, fmt.Errorf("task %d references task %d before it exists: %w", id, ref, ErrMalformedPlan)
			}
			if ref < 1 {
				return nil, fmt.Errorf("task %d references invalid task id %d: %w", id, ref, ErrMalformedPlan)
			}
			args = append(args, models.Arg{Ref: ref})
			continue
		}

		args = append(args, models.Arg{Literal: unquoted})
	}
	return args, nil
}

// splitArgs splits on commas outside quotes and parentheses.
func splitArgs(list string) []string {
	var parts []string
	var sb strings.Builder
	depth := 0
	inQuote := false

	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case c == '"' && (i == 0 || list[i-1] != '\\'):
			inQuote = !inQuote
			sb.WriteByte(c)
		case inQuote:
			sb.WriteByte(c)
		case c == '(' || c == '[':
			depth++
			sb.WriteByte(c)
		case c == ')' || c == ']':
			depth--
			sb.WriteByte(c)
		case c == ',' && depth == 0:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	parts = append(parts, sb.String())
	return parts
}

// unquote strips one layer of matching quotes and unescapes \" and \\.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			inner := s[1 : len(s)-1]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			return inner
		}
	}
	return s
}

// startsNumbered reports whether the line begins with `N.`.
func startsNumbered(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i < len(line) && line[i] == '.'
}

// stripFences removes markdown code fences the way planner models tend to
// wrap their output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
