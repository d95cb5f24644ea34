package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes discovery, plan runs and stored plans.

Authentication is enabled when JWT_SECRET is set; rate limits come from the
RATE_LIMIT_* environment variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("addr") {
		a.cfg.Addr = serveAddr
	}
	a.orch.Logger = log.New(os.Stderr, "", log.LstdFlags)

	auth, err := config.LoadAuth()
	switch {
	case errors.Is(err, config.ErrAuthDisabled):
		auth = nil
		log.Println("JWT_SECRET not set, authentication disabled")
	case err != nil:
		return err
	}

	srv, err := server.New(server.Config{
		Addr:         a.cfg.Addr,
		Orchestrator: a.orch,
		Auth:         auth,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}
