package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skein/internal/config"
	"github.com/ShayCichocki/skein/internal/llm"
	"github.com/ShayCichocki/skein/internal/orchestrator"
	"github.com/ShayCichocki/skein/internal/state"
	"github.com/ShayCichocki/skein/internal/tool"
	"github.com/ShayCichocki/skein/internal/tui"
)

var (
	runProvider    string
	runModel       string
	runMaxRounds   int
	runWorkers     int
	runTaskTimeout time.Duration
	runFailFast    bool
	runHeadless    bool
	runNoHistory   bool
	runManifest    string
	runSignalsDir  string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Answer a request by planning and executing tool calls",
	Long: `Run one request through the plan -> execute -> join loop.

The request is handed to the planner, which emits a numbered list of
tool calls. Independent calls execute in parallel; calls that reference
earlier results ($1, $2, ...) wait for exactly those results. After each
round the joiner either finishes with an answer or requests another
planning round with the results gathered so far. The round limit
(--max-rounds) guarantees the loop always terminates.

Tools come from the built-in set plus any YAML manifest of external
commands (--tools or tools.manifest in the config).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider: anthropic or openai (default from config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model name override")
	runCmd.Flags().IntVar(&runMaxRounds, "max-rounds", 0, "Maximum planning rounds (default from config)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Maximum concurrent tool calls (default: number of CPUs)")
	runCmd.Flags().DurationVar(&runTaskTimeout, "task-timeout", 0, "Per tool-call timeout (default from config)")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Abort a round on the first tool failure")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without TUI, printing progress to stdout")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Skip recording this run in the history database")
	runCmd.Flags().StringVar(&runManifest, "tools", "", "Path to a YAML manifest of external command tools")
	runCmd.Flags().StringVar(&runSignalsDir, "signals-dir", "", "Directory watched for kill/pause signal files")
}

func runRequest(cmd *cobra.Command, args []string) error {
	request := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	runner, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithMaxRounds(cfg.Run.MaxRounds),
		orchestrator.WithWorkers(cfg.Run.Workers),
		orchestrator.WithTaskTimeout(cfg.Run.TaskTimeout),
		orchestrator.WithFailFast(cfg.Run.FailFast),
		orchestrator.WithPropagateFailures(cfg.Run.PropagateFailures),
	}

	if cfg.Debug.Log != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Debug.Log)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer logger.Close()
		opts = append(opts, orchestrator.WithLogger(logger))
	}

	if cfg.Signals.Dir != "" {
		watcher, err := orchestrator.NewSignalWatcher(cfg.Signals.Dir)
		if err != nil {
			return fmt.Errorf("watch signals directory: %w", err)
		}
		defer watcher.Close()
		opts = append(opts, orchestrator.WithSignals(watcher))
	}

	if cfg.History.Enabled && !runNoHistory {
		store, err := state.NewStore(cfg.History.Path)
		if err != nil {
			// History is optional - log warning and continue
			fmt.Fprintf(os.Stderr, "Warning: run history unavailable: %v\n", err)
		} else {
			defer store.Close()
			opts = append(opts, orchestrator.WithRecorder(store))
		}
	}

	orch := orchestrator.New(orchestrator.RequiredConfig{
		Registry: registry,
		Runner:   runner,
	}, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, shutting down...")
		cancel()
	}()

	if runHeadless {
		return runHeadlessMode(ctx, orch, request)
	}
	return runTUIMode(ctx, cancel, orch, request)
}

// applyRunFlags overlays explicit command-line flags onto the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runProvider != "" {
		cfg.Provider = runProvider
	}
	if runModel != "" {
		cfg.Anthropic.Model = runModel
		cfg.OpenAI.Model = runModel
	}
	if cmd.Flags().Changed("max-rounds") {
		cfg.Run.MaxRounds = runMaxRounds
	}
	if cmd.Flags().Changed("workers") {
		cfg.Run.Workers = runWorkers
	}
	if cmd.Flags().Changed("task-timeout") {
		cfg.Run.TaskTimeout = runTaskTimeout
	}
	if cmd.Flags().Changed("fail-fast") {
		cfg.Run.FailFast = runFailFast
	}
	if runManifest != "" {
		cfg.Tools.Manifest = runManifest
	}
	if runSignalsDir != "" {
		cfg.Signals.Dir = runSignalsDir
	}
}

// buildRegistry assembles the tool registry from builtins and the manifest.
func buildRegistry(cfg *config.Config) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	if cfg.Tools.Builtins {
		if err := tool.RegisterBuiltins(registry); err != nil {
			return nil, fmt.Errorf("register builtin tools: %w", err)
		}
	}

	if cfg.Tools.Manifest != "" {
		if err := tool.LoadManifest(cfg.Tools.Manifest, registry, tool.NewExecRunner()); err != nil {
			return nil, fmt.Errorf("load tool manifest: %w", err)
		}
	}

	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("no tools registered: enable builtins or provide a manifest")
	}
	return registry, nil
}

// buildRunner creates the text-generation runner for the configured provider.
func buildRunner(cfg *config.Config) (llm.Runner, error) {
	switch cfg.Provider {
	case "", "anthropic":
		key, _ := config.GetAnthropicKey(cfg)
		return llm.NewAnthropicRunner(llm.AnthropicConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        key,
			MaxTokens:     int64(cfg.Anthropic.MaxTokens),
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	case "openai":
		key, _ := config.GetOpenAIKey(cfg)
		return llm.NewOpenAIRunner(llm.OpenAIConfig{
			APIKey:  key,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q: must be anthropic or openai", cfg.Provider)
	}
}

// runHeadlessMode prints progress lines to stdout and the answer at the end.
func runHeadlessMode(ctx context.Context, orch *orchestrator.Orchestrator, request string) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeEventsHeadless(orch.Events())
	}()

	result, err := orch.Run(ctx, request)
	<-done
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Println()
	color.New(color.Bold).Println(result.Answer)
	if result.Forced {
		color.New(color.FgYellow).Printf("(synthesized after %d rounds)\n", result.Rounds)
	}
	return nil
}

// consumeEventsHeadless renders orchestrator events as log lines.
func consumeEventsHeadless(events <-chan orchestrator.Event) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	for ev := range events {
		switch ev.Type {
		case orchestrator.EventPlanReady:
			fmt.Printf("round %d: %s\n", ev.Round, ev.Message)
		case orchestrator.EventTaskStarted:
			dim.Printf("  → %d. %s\n", ev.TaskID, ev.TaskCall)
		case orchestrator.EventTaskCompleted:
			green.Printf("  ✓ %d. %s (%s)\n", ev.TaskID, ev.TaskCall, ev.Elapsed.Round(time.Millisecond))
		case orchestrator.EventTaskFailed:
			red.Printf("  ✗ %d. %s: %v\n", ev.TaskID, ev.TaskCall, ev.Error)
		case orchestrator.EventTaskSkipped:
			yellow.Printf("  - %d. %s (%s)\n", ev.TaskID, ev.TaskCall, ev.Message)
		case orchestrator.EventDecision:
			dim.Printf("  decision: %s\n", ev.Message)
		}
	}
}

// runTUIMode runs the orchestrator under the interactive TUI. Quitting the
// TUI cancels the run.
func runTUIMode(ctx context.Context, cancel context.CancelFunc, orch *orchestrator.Orchestrator, request string) error {
	errCh := make(chan error, 1)
	go func() {
		_, err := orch.Run(ctx, request)
		errCh <- err
	}()

	tuiErr := tui.Run(request, orch.Events())
	cancel()
	runErr := <-errCh

	if tuiErr != nil {
		return fmt.Errorf("tui: %w", tuiErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}
