package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/db"
	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/ingestion"
	"github.com/jonathan/venture-planner/internal/llm"
	"github.com/jonathan/venture-planner/internal/observability"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/stages"
	"github.com/jonathan/venture-planner/internal/store"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	apiKey     string
	model      string
	tier       string
	store      string
	storePath  string
	dbURL      string
	useBrowser bool
	verbose    bool
}

var global globalFlags

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "Path to a JSON or YAML config file (values can be overridden by other flags)")
	fs.StringVar(&g.apiKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	fs.StringVar(&g.model, "model", "", "Force one model for every stage")
	fs.StringVar(&g.tier, "tier", "", "Force one model tier for every stage (lite|standard|advanced)")
	fs.StringVar(&g.store, "store", "", "Plan store backend: memory, file, sqlite or postgres (default file)")
	fs.StringVar(&g.storePath, "store-path", "", "Directory (file) or database file (sqlite) of the plan store")
	fs.StringVar(&g.dbURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	fs.BoolVar(&g.useBrowser, "use-browser", false, "Use headless browser for JS-rendered source pages (requires Chrome)")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Print detailed debug information")
}

// resolve loads the config file, applies the flags that were set explicitly,
// then fills defaults and environment fallbacks.
func (g *globalFlags) resolve(fs *pflag.FlagSet) (config.Config, error) {
	var cfg config.Config
	if g.configPath != "" {
		loaded, err := config.LoadConfig(g.configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	if fs.Changed("api-key") {
		cfg.APIKey = g.apiKey
	}
	if fs.Changed("model") {
		cfg.Model = g.model
	}
	if fs.Changed("tier") {
		cfg.Tier = g.tier
	}
	if fs.Changed("store") {
		cfg.Store = g.store
	}
	if fs.Changed("store-path") {
		cfg.StorePath = g.storePath
	}
	if fs.Changed("db-url") {
		cfg.DatabaseURL = g.dbURL
	}
	if fs.Changed("use-browser") {
		cfg.UseBrowser = g.useBrowser
	}
	if fs.Changed("verbose") {
		cfg.Verbose = g.verbose
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	})
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app is the wiring shared by the commands: store, optional run recorder and orchestrator.
type app struct {
	cfg     config.Config
	out     io.Writer
	printer *observability.Printer
	store   store.PlanStore
	orch    *pipeline.Orchestrator

	client llm.Client
	closer func() error
}

// openStore opens the configured plan store. The postgres store doubles as the run recorder.
func openStore(ctx context.Context, cfg config.Config) (store.PlanStore, pipeline.RunRecorder, error) {
	if cfg.Store != store.BackendPostgres {
		s, err := store.Open(cfg.Store, cfg.ResolvedStorePath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
		}
		return s, nil, nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	return database, database, nil
}

// newApp resolves the configuration and opens the store. With withModel set it
// also creates the generation client and the orchestrator.
func newApp(cmd *cobra.Command, withModel bool) (*app, error) {
	cfg, err := global.resolve(cmd.Flags())
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	planStore, recorder, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		out:     cmd.OutOrStdout(),
		printer: observability.NewPrinter(cmd.OutOrStdout()),
		store:   planStore,
		closer:  planStore.Close,
	}
	if cfg.Verbose {
		_, _ = fmt.Fprintf(a.out, "Using %s store\n", cfg.Store)
	}
	if !withModel {
		return a, nil
	}

	if cfg.APIKey == "" {
		_ = a.Close()
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	llmCfg, err := modelConfig(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.client = client
	a.orch = buildOrchestrator(cfg, client, planStore, recorder)
	return a, nil
}

// modelConfig applies the tier override to the default model table.
func modelConfig(cfg config.Config) (*llm.Config, error) {
	llmCfg := llm.DefaultConfig()
	if cfg.Tier == "" {
		return llmCfg, nil
	}
	tier, err := llm.ParseTier(cfg.Tier)
	if err != nil {
		return nil, err
	}
	model := llmCfg.GetModel(tier)
	for _, t := range []llm.ModelTier{llm.TierLite, llm.TierStandard, llm.TierAdvanced} {
		llmCfg = llmCfg.WithModel(t, model)
	}
	return llmCfg, nil
}

func buildOrchestrator(cfg config.Config, client llm.Client, planStore store.PlanStore, recorder pipeline.RunRecorder) *pipeline.Orchestrator {
	runner := stages.NewRunner(generation.New(client)).WithPins(cfg.ContractPins())
	runner.Model = cfg.Model

	ingester := ingestion.NewIngester(client)
	ingester.UseBrowser = cfg.UseBrowser
	ingester.Verbose = cfg.Verbose

	orch := pipeline.New(runner, planStore)
	if recorder != nil {
		orch.Recorder = recorder
	}
	orch.Fetch = ingester.Text
	orch.BuildModeTimeout = cfg.BuildModeTimeout.Std()
	orch.Checkpoint = cfg.Checkpoint
	orch.Logger = log.New(io.Discard, "", 0)
	if cfg.Verbose {
		orch.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	retry := pipeline.DefaultRetryPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.Retry.InitialBackoff.Std()
	}
	if cfg.Retry.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.Retry.MaxBackoff.Std()
	}
	if cfg.Retry.Multiplier > 0 {
		retry.Multiplier = cfg.Retry.Multiplier
	}
	orch.Retry = retry
	return orch
}

// Close releases the generation client and the store.
func (a *app) Close() error {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.closer != nil {
		return a.closer()
	}
	return nil
}

// progressPrinter prints state changes of a run, and stage events when verbose.
func (a *app) progressPrinter() pipeline.ProgressCallback {
	return func(ev pipeline.ProgressEvent) {
		switch {
		case ev.Stage == "":
			_, _ = fmt.Fprintf(a.out, "→ %s: %s\n", ev.State, ev.Message)
		case a.cfg.Verbose:
			_, _ = fmt.Fprintf(a.out, "   [%s] %s\n", ev.Stage, ev.Message)
		}
	}
}
