package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/types"
)

var refinalizeCmd = &cobra.Command{
	Use:   "refinalize <plan-id>",
	Short: "Re-run finalizing of a stored plan under another build mode",
	Long: `Regenerates the action plan and executive brief of a stored plan for a new
build mode, overwrites the plan and prints a diff against the previous version.
The contract versions the plan was built with are reused.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefinalize,
}

var (
	refinalizeBuildMode string
	refinalizeQuiet     bool
)

func init() {
	refinalizeCmd.Flags().StringVarP(&refinalizeBuildMode, "build-mode", "b", "", "Build mode: in-house or out-sourced (required)")
	refinalizeCmd.Flags().BoolVarP(&refinalizeQuiet, "quiet", "q", false, "Do not print the diff")
	if err := refinalizeCmd.MarkFlagRequired("build-mode"); err != nil {
		panic(fmt.Sprintf("failed to mark build-mode flag as required: %v", err))
	}
	rootCmd.AddCommand(refinalizeCmd)
}

func runRefinalize(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid plan id: %w", err)
	}
	mode, err := types.ParseBuildMode(refinalizeBuildMode)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	_, _ = fmt.Fprintf(a.out, "Re-finalizing %s as %s...\n", id, mode)
	res, err := a.orch.Refinalize(cmd.Context(), id, mode)
	if err != nil {
		return fmt.Errorf("refinalize failed: %w", err)
	}

	a.printer.PrintBrief(res.Record.Plan.ExecutiveBrief)
	a.printer.PrintFindings(res.Record.Plan.Findings)
	if !refinalizeQuiet {
		if res.Diff == "" {
			_, _ = fmt.Fprintln(a.out, "No changes.")
		} else {
			_, _ = fmt.Fprint(a.out, res.Diff)
		}
	}
	_, _ = fmt.Fprintf(a.out, "Plan %s now at v%d\n", res.Record.ID, res.Record.Version)
	return nil
}
