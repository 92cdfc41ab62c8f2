package tool

import (
	"context"
	"strings"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Func{ToolName: "upper", Desc: "uppercase text", Fn: func(ctx context.Context, args []string) (string, error) {
		return strings.ToUpper(strings.Join(args, " ")), nil
	}})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	tl, err := r.Get("upper")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	out, err := tl.Invoke(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "HELLO" {
		t.Errorf("expected HELLO, got %q", out)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()
	f := Func{ToolName: "dup", Desc: "d", Fn: func(ctx context.Context, args []string) (string, error) { return "", nil }}

	if err := r.Register(f); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := r.Register(f); err == nil {
		t.Error("expected error registering duplicate name")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	catalog := r.Catalog()
	for _, name := range []string{"add", "divide", "now", "echo"} {
		if !strings.Contains(catalog, name+":") {
			t.Errorf("catalog missing %q:\n%s", name, catalog)
		}
	}
}

func TestBuiltinDivide(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	divide, err := r.Get("divide")
	if err != nil {
		t.Fatalf("get divide: %v", err)
	}

	out, err := divide.Invoke(context.Background(), []string{"10", "4"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "2.5" {
		t.Errorf("expected 2.5, got %q", out)
	}

	if _, err := divide.Invoke(context.Background(), []string{"1", "0"}); err == nil {
		t.Error("expected division by zero error")
	}
}

func TestBuiltinArityAndParsing(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	add, _ := r.Get("add")
	if _, err := add.Invoke(context.Background(), []string{"1"}); err == nil {
		t.Error("expected arity error")
	}
	if _, err := add.Invoke(context.Background(), []string{"x", "2"}); err == nil {
		t.Error("expected parse error")
	}

	// Labelled numbers from upstream tool output still parse.
	out, err := add.Invoke(context.Background(), []string{"total: 3", "2"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "5" {
		t.Errorf("expected 5, got %q", out)
	}
}

// fakeRunner records the command it was asked to run.
type fakeRunner struct {
	workDir string
	name    string
	args    []string
	output  string
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	f.workDir = workDir
	f.name = name
	f.args = args
	return []byte(f.output), f.err
}

func TestExecToolTemplateSubstitution(t *testing.T) {
	runner := &fakeRunner{output: "ok\n"}
	tl := &ExecTool{
		name:    "grep",
		command: "grep",
		argv:    []string{"-r", "{1}", "."},
		runner:  runner,
	}

	out, err := tl.Invoke(context.Background(), []string{"needle"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected trimmed output 'ok', got %q", out)
	}
	if len(runner.args) != 3 || runner.args[1] != "needle" {
		t.Errorf("unexpected argv: %v", runner.args)
	}
}

func TestExecToolAppendsUnplacedArgs(t *testing.T) {
	runner := &fakeRunner{}
	tl := &ExecTool{name: "ls", command: "ls", runner: runner}

	if _, err := tl.Invoke(context.Background(), []string{"-la", "/tmp"}); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if len(runner.args) != 2 || runner.args[0] != "-la" || runner.args[1] != "/tmp" {
		t.Errorf("unexpected argv: %v", runner.args)
	}
}

func TestRegisterManifest(t *testing.T) {
	manifest := []byte(`
tools:
  - name: search
    description: "search(term): look things up"
    command: websearch
    argv: ["--query", "{1}"]
`)
	r := NewRegistry()
	runner := &fakeRunner{output: "result"}

	if err := RegisterManifest(manifest, r, runner); err != nil {
		t.Fatalf("register manifest: %v", err)
	}

	tl, err := r.Get("search")
	if err != nil {
		t.Fatalf("get search: %v", err)
	}
	out, err := tl.Invoke(context.Background(), []string{"golang"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "result" {
		t.Errorf("expected 'result', got %q", out)
	}
	if runner.name != "websearch" {
		t.Errorf("expected command websearch, got %q", runner.name)
	}
}

func TestRegisterManifestValidation(t *testing.T) {
	r := NewRegistry()

	if err := RegisterManifest([]byte("tools:\n  - command: ls\n"), r, nil); err == nil {
		t.Error("expected error for empty tool name")
	}
	if err := RegisterManifest([]byte("tools:\n  - name: x\n"), r, nil); err == nil {
		t.Error("expected error for empty command")
	}
	if err := RegisterManifest([]byte(":bad yaml"), r, nil); err == nil {
		t.Error("expected error for invalid yaml")
	}
}
