package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/observability"
	"github.com/jonathan/venture-planner/internal/store"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks <plan-id>",
	Short: "List the tasks of a plan in execution order, or mark tasks done",
	Long: `Lists the action plan of a stored plan in dependency order with completion marks.

--done and --undo take task IDs (repeatable) and update the stored plan before
listing it.`,
	Args: cobra.ExactArgs(1),
	RunE: runTasks,
}

var (
	tasksDone []string
	tasksUndo []string
)

func init() {
	tasksCmd.Flags().StringSliceVar(&tasksDone, "done", nil, "Task IDs to mark completed")
	tasksCmd.Flags().StringSliceVar(&tasksUndo, "undo", nil, "Task IDs to mark open again")
	rootCmd.AddCommand(tasksCmd)
}

// updateTasks applies the completion changes, then prints the action plan.
func updateTasks(ctx context.Context, s store.PlanStore, out io.Writer, id uuid.UUID, done, undo []string) error {
	for _, change := range []struct {
		ids       []string
		completed bool
	}{{done, true}, {undo, false}} {
		for _, taskID := range change.ids {
			if _, err := store.SetTaskCompleted(ctx, s, id, taskID, change.completed); err != nil {
				return fmt.Errorf("failed to update task %s: %w", taskID, err)
			}
		}
	}

	rec, err := s.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("plan %s: %w", id, store.ErrNotFound)
	}
	if rec.Plan.ActionPlan == nil {
		_, _ = fmt.Fprintf(out, "Plan %s has no action plan yet.\n", id)
		return nil
	}
	observability.NewPrinter(out).PrintTasks(rec.Plan.ActionPlan)
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	id, err := parsePlanID(args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	return updateTasks(cmd.Context(), a.store, a.out, id, tasksDone, tasksUndo)
}
