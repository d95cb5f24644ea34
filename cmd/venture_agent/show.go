package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/observability"
	"github.com/jonathan/venture-planner/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show [plan-id]",
	Short: "Show a stored plan, or list plans when no ID is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a stored plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	showJSON  bool
	showLimit int
)

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the plan record as JSON")
	showCmd.Flags().IntVar(&showLimit, "limit", store.DefaultListLimit, "Maximum plans to list")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
}

func parsePlanID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid plan id %q: %w", arg, err)
	}
	return id, nil
}

// listPlans prints one line per stored plan, most recently updated first.
func listPlans(ctx context.Context, s store.PlanStore, out io.Writer, limit int) error {
	plans, err := s.ListPlans(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list plans: %w", err)
	}
	if len(plans) == 0 {
		_, _ = fmt.Fprintln(out, "No plans stored.")
		return nil
	}
	_, _ = fmt.Fprintf(out, "%-36s  %-10s  %-11s  %4s  %s\n", "ID", "STATUS", "BUILD MODE", "DONE", "OPPORTUNITY")
	for _, p := range plans {
		mode := string(p.BuildMode)
		if mode == "" {
			mode = "-"
		}
		_, _ = fmt.Fprintf(out, "%-36s  %-10s  %-11s  %3d%%  %s\n", p.ID, p.Status, mode, p.Progress, p.OpportunityName)
	}
	return nil
}

// showPlan prints one plan, as boxes or as JSON.
func showPlan(ctx context.Context, s store.PlanStore, out io.Writer, id uuid.UUID, asJSON bool) error {
	rec, err := s.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("plan %s: %w", id, store.ErrNotFound)
	}

	if asJSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}

	p := observability.NewPrinter(out)
	p.PrintPlan(rec)
	if rec.Plan.BuildMode == "" {
		p.PrintAdvice(rec.Plan.BuildModeAdvice)
	}
	p.PrintBrief(rec.Plan.ExecutiveBrief)
	if rec.Plan.Complete() {
		p.PrintFindings(rec.Plan.Findings)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		return listPlans(cmd.Context(), a.store, a.out, showLimit)
	}
	id, err := parsePlanID(args[0])
	if err != nil {
		return err
	}
	return showPlan(cmd.Context(), a.store, a.out, id, showJSON)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parsePlanID(args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeletePlan(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	_, _ = fmt.Fprintf(a.out, "Deleted plan %s\n", id)
	return nil
}
