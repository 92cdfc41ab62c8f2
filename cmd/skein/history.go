package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skein/internal/config"
	"github.com/ShayCichocki/skein/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Inspect past runs",
	Long: `List recent runs, or show the full round-by-round record of one run.

Without arguments, lists the most recent runs. With a run id, shows that
run's plans and task outcomes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := state.NewStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()

		if len(args) == 1 {
			return showRun(store, args[0])
		}
		return listRuns(store)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
}

// listRuns prints a one-line summary per run, newest first.
func listRuns(store *state.Store) error {
	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		marker := statusMarker(run.Status)
		fmt.Printf("%s %s  %s  %s\n",
			marker, run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"), truncate(run.Request, 60))
	}
	return nil
}

// showRun prints one run's full record.
func showRun(store *state.Store, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", runID)
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	bold.Printf("Run %s", run.ID)
	fmt.Printf("  %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("Request: %s\n", run.Request)
	fmt.Printf("Status: %s %s\n", statusMarker(run.Status), run.Status)
	if run.Answer != "" {
		fmt.Printf("Answer: %s\n", run.Answer)
	}
	if run.Error != "" {
		color.New(color.FgRed).Printf("Error: %s\n", run.Error)
	}

	rounds, err := store.GetRounds(runID)
	if err != nil {
		return err
	}
	tasks, err := store.GetTasks(runID)
	if err != nil {
		return err
	}

	for _, round := range rounds {
		fmt.Println()
		bold.Printf("Round %d\n", round.Round)
		dim.Println(round.PlanText)
		for _, task := range tasks {
			if task.Round != round.Round {
				continue
			}
			line := fmt.Sprintf("  %d. %s [%s]", task.TaskID, task.Call, task.State)
			if task.Elapsed > 0 {
				line += fmt.Sprintf(" %s", task.Elapsed.Round(time.Millisecond))
			}
			fmt.Println(line)
			if task.Output != "" {
				dim.Printf("     -> %s\n", truncate(task.Output, 120))
			}
			if task.Error != "" {
				color.New(color.FgRed).Printf("     error: %s\n", task.Error)
			}
		}
	}
	return nil
}

// statusMarker returns a colored glyph for a run status.
func statusMarker(status state.RunStatus) string {
	switch status {
	case state.RunFinished:
		return color.GreenString("✓")
	case state.RunFailed:
		return color.RedString("✗")
	default:
		return color.YellowString("…")
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
