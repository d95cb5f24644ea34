package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/ingestion"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/types"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover and rank business opportunities",
	Long: `Frames three to five business opportunities from interests, market trends and
source material, ranks them and stores the result as a discovery.

Source material can come from --context, a text file (--input-file) or fetched
web pages (--url, repeatable).`,
	RunE: runDiscover,
}

var (
	discoverInterests    string
	discoverTrends       string
	discoverContext      string
	discoverInputFile    string
	discoverURLs         []string
	discoverFocus        string
	discoverRankFallback bool
	discoverJSON         bool
)

func init() {
	discoverCmd.Flags().StringVarP(&discoverInterests, "interests", "i", "", "User interests and skills")
	discoverCmd.Flags().StringVarP(&discoverTrends, "trends", "t", "", "Market trends to consider")
	discoverCmd.Flags().StringVar(&discoverContext, "context", "", "Free-form context")
	discoverCmd.Flags().StringVar(&discoverInputFile, "input-file", "", "Text file appended to the context")
	discoverCmd.Flags().StringSliceVar(&discoverURLs, "url", nil, "Source page to fetch into the context (repeatable)")
	discoverCmd.Flags().StringVar(&discoverFocus, "focus", "", "Ranking focus (default: "+types.DefaultRankingFocus+")")
	discoverCmd.Flags().BoolVar(&discoverRankFallback, "rank-fallback", false, "Keep discovery order when ranking fails")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "Print the discovery as JSON")
	rootCmd.AddCommand(discoverCmd)
}

// discoveryRequest assembles the request from flags. Flags win over the config focus.
func discoveryRequest(configFocus string) (pipeline.DiscoveryRequest, error) {
	req := pipeline.DiscoveryRequest{
		Input: types.DiscoveryInput{
			UserInterests: discoverInterests,
			MarketTrends:  discoverTrends,
			Context:       discoverContext,
		},
		URLs:         discoverURLs,
		Focus:        configFocus,
		RankFallback: discoverRankFallback,
	}
	if discoverFocus != "" {
		req.Focus = discoverFocus
	}
	if discoverInputFile != "" {
		text, _, err := ingestion.FromFile(discoverInputFile)
		if err != nil {
			return req, fmt.Errorf("failed to read input file: %w", err)
		}
		req.Input.Context = joinNonEmpty(req.Input.Context, text)
	}
	if len(req.URLs) == 0 {
		if err := types.Validate(&req.Input); err != nil {
			return req, fmt.Errorf("one of --interests, --trends, --context, --input-file or --url is required")
		}
	}
	return req, nil
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := discoveryRequest(a.cfg.Focus)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(a.out, "Step 1/2: Discovering opportunities...")
	if len(req.URLs) > 0 {
		_, _ = fmt.Fprintf(a.out, "  Fetching %d source page(s)\n", len(req.URLs))
	}
	d, err := a.orch.Discover(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	_, _ = fmt.Fprintln(a.out, "Step 2/2: Ranked and saved.")

	if discoverJSON {
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, string(data))
		return nil
	}
	a.printer.PrintDiscovery(d)
	_, _ = fmt.Fprintf(a.out, "\nDiscovery ID: %s\nPlan one with: venture_agent plan --discovery %s --pick 1\n", d.ID, d.ID)
	return nil
}
