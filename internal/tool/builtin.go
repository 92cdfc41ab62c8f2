package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RegisterBuiltins adds the built-in tool set to the registry.
func RegisterBuiltins(r *Registry) error {
	builtins := []Tool{
		Func{
			ToolName: "add",
			Desc:     "add(a, b): return the sum of two numbers",
			Fn:       arith(func(a, b float64) (float64, error) { return a + b, nil }),
		},
		Func{
			ToolName: "subtract",
			Desc:     "subtract(a, b): return a minus b",
			Fn:       arith(func(a, b float64) (float64, error) { return a - b, nil }),
		},
		Func{
			ToolName: "multiply",
			Desc:     "multiply(a, b): return the product of two numbers",
			Fn:       arith(func(a, b float64) (float64, error) { return a * b, nil }),
		},
		Func{
			ToolName: "divide",
			Desc:     "divide(a, b): return a divided by b",
			Fn: arith(func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				return a / b, nil
			}),
		},
		Func{
			ToolName: "now",
			Desc:     "now(format?): return the current date and time; format defaults to RFC3339",
			Fn:       nowTool,
		},
		Func{
			ToolName: "echo",
			Desc:     "echo(text...): return the arguments joined by spaces",
			Fn: func(ctx context.Context, args []string) (string, error) {
				return strings.Join(args, " "), nil
			},
		},
	}

	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// arith wraps a binary float operation as a tool function.
func arith(op func(a, b float64) (float64, error)) func(context.Context, []string) (string, error) {
	return func(ctx context.Context, args []string) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		a, err := parseNumber(args[0])
		if err != nil {
			return "", err
		}
		b, err := parseNumber(args[1])
		if err != nil {
			return "", err
		}
		result, err := op(a, b)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(result, 'f', -1, 64), nil
	}
}

// parseNumber parses a numeric argument, tolerating surrounding whitespace.
// Tool outputs fed back through back-references sometimes carry a label like
// "result: 42", so the last whitespace-separated field is tried as a fallback.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, nil
	}
	fields := strings.Fields(s)
	if len(fields) > 1 {
		if n, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("not a number: %q", s)
}

func nowTool(ctx context.Context, args []string) (string, error) {
	format := time.RFC3339
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		format = args[0]
	}
	return time.Now().Format(format), nil
}
