package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run the full plan pipeline for one opportunity",
	Long: `Builds a complete plan for one opportunity: market analysis and business structure,
strategy, build-mode advice, then the action plan and executive brief for the
chosen build mode.

The opportunity comes from a stored discovery (--discovery with --pick or
--opportunity-id) or from a JSON file (--opportunity-file). Without --build-mode
the advice is printed and the build mode is read from standard input.`,
	RunE: runPlan,
}

var (
	planDiscoveryID     string
	planPick            int
	planOpportunityID   string
	planOpportunityFile string
	planBuildMode       string
)

func init() {
	planCmd.Flags().StringVarP(&planDiscoveryID, "discovery", "d", "", "Discovery ID to pick the opportunity from")
	planCmd.Flags().IntVarP(&planPick, "pick", "p", 0, "Rank of the opportunity to plan (1 = best)")
	planCmd.Flags().StringVar(&planOpportunityID, "opportunity-id", "", "ID of the opportunity within the discovery")
	planCmd.Flags().StringVar(&planOpportunityFile, "opportunity-file", "", "Path to an opportunity JSON file")
	planCmd.Flags().StringVarP(&planBuildMode, "build-mode", "b", "", "Build mode: in-house or out-sourced")
	rootCmd.AddCommand(planCmd)
}

// resolveOpportunity returns the opportunity named by the plan flags.
func resolveOpportunity(ctx context.Context, s store.PlanStore) (types.Opportunity, error) {
	if planOpportunityFile != "" {
		if planDiscoveryID != "" {
			return types.Opportunity{}, fmt.Errorf("--opportunity-file and --discovery are mutually exclusive; provide only one")
		}
		return readOpportunity(planOpportunityFile)
	}
	if planDiscoveryID == "" {
		return types.Opportunity{}, fmt.Errorf("either --discovery or --opportunity-file must be provided")
	}

	id, err := uuid.Parse(planDiscoveryID)
	if err != nil {
		return types.Opportunity{}, fmt.Errorf("invalid discovery id: %w", err)
	}
	d, err := s.GetDiscovery(ctx, id)
	if err != nil {
		return types.Opportunity{}, err
	}
	if d == nil {
		return types.Opportunity{}, fmt.Errorf("discovery %s: %w", id, store.ErrNotFound)
	}
	return pickOpportunity(d, planPick, planOpportunityID)
}

// pickOpportunity selects by ID when given, otherwise by 1-based rank.
func pickOpportunity(d *types.Discovery, pick int, oppID string) (types.Opportunity, error) {
	if oppID != "" {
		id, err := uuid.Parse(oppID)
		if err != nil {
			return types.Opportunity{}, fmt.Errorf("invalid opportunity id: %w", err)
		}
		ranked, ok := d.Find(id)
		if !ok {
			return types.Opportunity{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownOpportunity, id)
		}
		return ranked.Opportunity, nil
	}
	if pick < 1 || pick > len(d.Opportunities) {
		return types.Opportunity{}, fmt.Errorf("--pick must be between 1 and %d", len(d.Opportunities))
	}
	for _, o := range d.Opportunities {
		if o.Rank == pick {
			return o.Opportunity, nil
		}
	}
	return d.Opportunities[pick-1].Opportunity, nil
}

func readOpportunity(path string) (types.Opportunity, error) {
	var opp types.Opportunity
	content, err := os.ReadFile(path)
	if err != nil {
		return opp, fmt.Errorf("failed to read opportunity file: %w", err)
	}
	if err := json.Unmarshal(content, &opp); err != nil {
		return opp, fmt.Errorf("failed to unmarshal opportunity JSON: %w", err)
	}
	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	if err := types.Validate(&opp); err != nil {
		return opp, fmt.Errorf("invalid opportunity: %w", err)
	}
	return opp, nil
}

// promptBuildMode asks on in until a valid build mode is entered.
// Lines are read on a separate goroutine so a cancelled context ends the wait.
func promptBuildMode(in io.Reader, out io.Writer) func(ctx context.Context, st pipeline.Status) (types.BuildMode, error) {
	var (
		once    sync.Once
		lines   = make(chan string)
		readErr error
	)
	read := func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr = scanner.Err()
	}
	return func(ctx context.Context, _ pipeline.Status) (types.BuildMode, error) {
		once.Do(func() { go read() })
		for {
			_, _ = fmt.Fprintf(out, "Build mode [%s/%s]: ", types.BuildModeInHouse, types.BuildModeOutSourced)
			var (
				line string
				ok   bool
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case line, ok = <-lines:
			}
			if !ok {
				if readErr != nil {
					return "", readErr
				}
				return "", errors.New("no build mode selected")
			}
			mode, err := types.ParseBuildMode(strings.TrimSpace(line))
			if err == nil {
				return mode, nil
			}
			_, _ = fmt.Fprintln(out, err)
		}
	}
}

func runPlan(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	opp, err := resolveOpportunity(ctx, a.store)
	if err != nil {
		return err
	}

	req := pipeline.ExecuteRequest{Opportunity: opp, OnProgress: a.progressPrinter()}
	if planBuildMode != "" {
		mode, err := types.ParseBuildMode(planBuildMode)
		if err != nil {
			return err
		}
		req.BuildMode = mode
	} else {
		ask := promptBuildMode(cmd.InOrStdin(), a.out)
		req.SelectBuildMode = func(ctx context.Context, st pipeline.Status) (types.BuildMode, error) {
			a.printer.PrintAdvice(st.Advice)
			return ask(ctx, st)
		}
	}

	_, _ = fmt.Fprintf(a.out, "Planning %q (%s)\n", opp.Name, opp.ID)
	rec, err := a.orch.Execute(ctx, req)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			return fmt.Errorf("plan failed at %s (%s): %w", se.Stage, se.Kind, se.Cause)
		}
		return fmt.Errorf("plan failed: %w", err)
	}

	a.printer.PrintPlan(rec)
	a.printer.PrintBrief(rec.Plan.ExecutiveBrief)
	a.printer.PrintFindings(rec.Plan.Findings)
	_, _ = fmt.Fprintf(a.out, "\nPlan ID: %s (v%d)\n", rec.ID, rec.Version)
	return nil
}
