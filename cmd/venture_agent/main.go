// Package main provides the venture_agent CLI: discovery, planning and the HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "venture_agent",
	Short: "Venture planner: discover, rank and plan business opportunities",
	Long: `venture_agent discovers business opportunities, ranks them, and turns one into a
complete plan: market analysis, business structure, strategy, build-mode advice,
an action plan and an executive brief.

Configuration can be loaded from a JSON or YAML file using --config. Command-line
flags override config file values.`,
	SilenceUsage: true,
}

func init() {
	global.register(rootCmd.PersistentFlags())
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
