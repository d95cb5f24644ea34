package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/types"
)

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "Prioritize candidate ventures against skills and risk tolerance",
	RunE:  runPrioritize,
}

var prioritizeInput types.VentureInput

func init() {
	prioritizeCmd.Flags().StringVarP(&prioritizeInput.MarketData, "market-data", "m", "", "Market data and candidate ventures (required)")
	prioritizeCmd.Flags().StringVarP(&prioritizeInput.UserSkills, "skills", "s", "", "Your skills (required)")
	prioritizeCmd.Flags().StringVarP(&prioritizeInput.RiskTolerance, "risk", "r", "", "Risk tolerance, e.g. low, medium, high (required)")
	rootCmd.AddCommand(prioritizeCmd)
}

func runPrioritize(cmd *cobra.Command, _ []string) error {
	if err := types.Validate(&prioritizeInput); err != nil {
		return fmt.Errorf("--market-data, --skills and --risk are required")
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.orch.Runner.PrioritizeVentures(cmd.Context(), prioritizeInput)
	if err != nil {
		return fmt.Errorf("prioritization failed: %w", err)
	}
	_, _ = fmt.Fprintln(a.out, out.PrioritizedVentures)
	return nil
}
