package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/db"
	"github.com/jonathan/venture-planner/internal/pipeline/steps"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded pipeline runs, or show the steps of one run (postgres store only)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

var (
	runsPlanID string
	runsStatus string
	runsLimit  int
)

func init() {
	runsCmd.Flags().StringVar(&runsPlanID, "plan", "", "Only list runs of this plan ID")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Only list runs with this status (running|completed|failed|cancelled)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

// runHistory is the read side of the run recorder.
type runHistory interface {
	ListRuns(ctx context.Context, filters db.RunFilters) ([]db.Run, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
	steps.StepLister
}

func runRuns(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	history, ok := a.store.(runHistory)
	if !ok {
		return fmt.Errorf("run history is only recorded by the postgres store (current: %s)", a.cfg.Store)
	}

	if len(args) == 1 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		return showRun(cmd.Context(), history, a.out, id)
	}

	filters := db.RunFilters{Status: runsStatus, Limit: runsLimit}
	if runsPlanID != "" {
		planID, err := parsePlanID(runsPlanID)
		if err != nil {
			return err
		}
		filters.PlanID = planID
	}
	return listRuns(cmd.Context(), history, a.out, filters)
}

func listRuns(ctx context.Context, h runHistory, out io.Writer, filters db.RunFilters) error {
	runs, err := h.ListRuns(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	_, _ = fmt.Fprintf(out, "%-36s  %-9s  %-11s  %-16s  %s\n", "RUN", "STATUS", "BUILD MODE", "STARTED", "OPPORTUNITY")
	for _, r := range runs {
		mode := r.BuildMode
		if mode == "" {
			mode = "-"
		}
		_, _ = fmt.Fprintf(out, "%-36s  %-9s  %-11s  %-16s  %s\n",
			r.ID, r.Status, mode, r.CreatedAt.Format("2006-01-02 15:04"), r.OpportunityName)
	}
	return nil
}

// showRun prints a run with its recorded steps in pipeline order, then what could run next.
func showRun(ctx context.Context, h runHistory, out io.Writer, runID uuid.UUID) error {
	run, err := h.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	recorded, err := h.ListRunSteps(ctx, runID, nil)
	if err != nil {
		return fmt.Errorf("failed to list steps: %w", err)
	}
	statuses, err := steps.LoadStatuses(ctx, h, runID)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
	_, _ = fmt.Fprintf(out, "Plan: %s  %s\n", run.PlanID, run.OpportunityName)
	if run.ErrorMessage != nil {
		_, _ = fmt.Fprintf(out, "Error: %s\n", *run.ErrorMessage)
	}
	_, _ = fmt.Fprintln(out)
	for _, s := range recorded {
		line := fmt.Sprintf("  %-20s %-10s %-11s attempts=%d", s.Step, s.Category, s.Status, s.Attempts)
		if s.DurationMs != nil {
			line += fmt.Sprintf(" %dms", *s.DurationMs)
		}
		if s.ErrorMessage != nil {
			line += "  " + *s.ErrorMessage
		}
		_, _ = fmt.Fprintln(out, line)
	}

	if run.Status == db.RunStatusRunning {
		if next := steps.Available(statuses); len(next) > 0 {
			_, _ = fmt.Fprintf(out, "\nAvailable: %s\n", strings.Join(next, ", "))
		}
		if blocked := steps.Blocked(statuses); len(blocked) > 0 {
			_, _ = fmt.Fprintf(out, "Blocked: %s\n", strings.Join(blocked, ", "))
		}
	}
	return nil
}
