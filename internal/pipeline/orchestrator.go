// Package pipeline runs the plan pipeline: discovery, parallel analysis, strategy,
// advice, the build-mode decision and finalizing, persisting exactly one complete plan per run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/db"
	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/pipeline/steps"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/stages"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

// stageGroups is the execution order of the pipeline. Stages in one group run in parallel.
var stageGroups = [][]string{
	{string(schemas.StageDiscover)},
	{string(schemas.StageRank)},
	{string(schemas.StageAnalyzeMarket), string(schemas.StageGenerateStructure)},
	{string(schemas.StageBuildStrategy)},
	{string(schemas.StageBuildModeAdvice), string(schemas.StageChartData)},
	{steps.SelectBuildMode},
	{string(schemas.StageExtractTasks)},
	{string(schemas.StageExecutiveBrief)},
}

func init() {
	if err := steps.CheckOrder(stageGroups); err != nil {
		panic(fmt.Sprintf("pipeline stage order: %v", err))
	}
}

// RunRecorder persists run history. The postgres database implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, runID, planID uuid.UUID, opportunityName string) error
	RecordStep(ctx context.Context, runID uuid.UUID, step, category, status string, attempts int, startedAt time.Time, errorMsg *string) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status, buildMode string, errorMsg *string) error
}

// SourceFetcher turns a URL into plain text used as discovery material.
type SourceFetcher func(ctx context.Context, url string) (string, error)

// Orchestrator owns the active runs and the shared plan store.
type Orchestrator struct {
	Runner   *stages.Runner
	Store    store.PlanStore
	Recorder RunRecorder
	Fetch    SourceFetcher
	Logger   *log.Logger
	Retry    RetryPolicy
	// BuildModeTimeout bounds the wait for a build mode. Zero waits until the run is cancelled.
	BuildModeTimeout time.Duration
	// Checkpoint saves the foundational plan before waiting for the build mode.
	Checkpoint bool
	// RunRetention is how long a finished run stays reachable through Get. Zero keeps it until Forget.
	RunRetention time.Duration

	locks keyedLock
	mu    sync.Mutex
	runs  map[uuid.UUID]*Run
}

// New creates an Orchestrator with the default retry policy.
func New(runner *stages.Runner, planStore store.PlanStore) *Orchestrator {
	return &Orchestrator{
		Runner: runner,
		Store:  planStore,
		Retry:        DefaultRetryPolicy(),
		RunRetention: DefaultRunRetention,
		runs:         make(map[uuid.UUID]*Run),
	}
}

// DefaultRunRetention is the RunRetention set by New.
const DefaultRunRetention = time.Hour

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// DiscoveryRequest is the input of the discovery phase.
type DiscoveryRequest struct {
	Input types.DiscoveryInput `json:"input"`
	// URLs are fetched and appended to the discovery context.
	URLs  []string `json:"urls,omitempty"`
	Focus string   `json:"focus,omitempty"`
	// RankFallback keeps discovery order when ranking fails instead of failing the discovery.
	RankFallback bool `json:"rank_fallback,omitempty"`
}

// Discover frames and ranks opportunities, then saves the result as a Discovery.
func (o *Orchestrator) Discover(ctx context.Context, req DiscoveryRequest) (*types.Discovery, error) {
	run := func(ctx context.Context, name string, fn func(ctx context.Context) error) error {
		if _, err := o.Retry.Do(ctx, fn); err != nil {
			return stageError(name, StateDiscovering, err)
		}
		return nil
	}
	return o.discover(ctx, req, run)
}

func (o *Orchestrator) discover(ctx context.Context, req DiscoveryRequest, run stepRunner) (*types.Discovery, error) {
	input := req.Input
	if len(req.URLs) > 0 {
		material, err := o.fetchSources(ctx, req.URLs)
		if err != nil {
			return nil, &StageError{Stage: string(schemas.StageDiscover), State: StateDiscovering, Kind: generation.KindInput, Cause: err}
		}
		input.Context = strings.TrimSpace(input.Context + "\n\n" + material)
	}

	var opps []types.Opportunity
	err := run(ctx, string(schemas.StageDiscover), func(ctx context.Context) (err error) {
		opps, err = o.Runner.Discover(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	var ranked []types.RankedOpportunity
	err = run(ctx, string(schemas.StageRank), func(ctx context.Context) (err error) {
		ranked, err = o.Runner.Rank(ctx, stages.RankInput{Opportunities: opps, Focus: req.Focus})
		return err
	})
	if err != nil {
		if !req.RankFallback || errors.Is(err, context.Canceled) {
			return nil, err
		}
		o.logger().Printf("[discover] ranking failed, keeping discovery order: %v", err)
		ranked = types.UnrankedFallback(opps)
	}

	focus := req.Focus
	if focus == "" {
		focus = types.DefaultRankingFocus
	}
	d := &types.Discovery{
		ID:            uuid.New(),
		Input:         input,
		Focus:         focus,
		Opportunities: ranked,
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.Store.SaveDiscovery(ctx, d); err != nil {
		return nil, &StageError{Stage: "save-discovery", State: StateDiscovering, Kind: KindPersist, Cause: err}
	}
	return d, nil
}

func (o *Orchestrator) fetchSources(ctx context.Context, urls []string) (string, error) {
	if o.Fetch == nil {
		return "", fmt.Errorf("no source fetcher configured for %d URLs", len(urls))
	}
	var sb strings.Builder
	for _, u := range urls {
		text, err := o.Fetch(ctx, u)
		if err != nil {
			return "", fmt.Errorf("failed to fetch %s: %w", u, err)
		}
		sb.WriteString("Source: " + u + "\n" + text + "\n\n")
	}
	return sb.String(), nil
}

// StartRequest starts a run. Exactly one of Opportunity, DiscoveryID or Discovery must be set.
type StartRequest struct {
	Opportunity *types.Opportunity
	// DiscoveryID reuses a stored discovery; OpportunityID optionally selects from it up front.
	DiscoveryID   uuid.UUID
	OpportunityID uuid.UUID
	Discovery     *DiscoveryRequest
	// BuildMode preselects the build mode so the run does not suspend.
	BuildMode  types.BuildMode
	OnProgress ProgressCallback
}

// Start begins a run in its own goroutine. The run lives until it reaches done or error;
// ctx cancellation aborts it.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*Run, error) {
	sources := 0
	for _, set := range []bool{req.Opportunity != nil, req.DiscoveryID != uuid.Nil, req.Discovery != nil} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, ErrInvalidStart
	}
	if req.BuildMode != "" {
		mode, err := types.ParseBuildMode(string(req.BuildMode))
		if err != nil {
			return nil, err
		}
		req.BuildMode = mode
	}

	r := newRun(o, ctx, req.OnProgress)

	switch {
	case req.Opportunity != nil:
		opp := *req.Opportunity
		if opp.ID == uuid.Nil {
			opp.ID = uuid.New()
		}
		if err := types.Validate(&opp); err != nil {
			r.cancel()
			return nil, fmt.Errorf("invalid opportunity: %w", err)
		}
		if !o.locks.tryAcquire(opp.ID, r.ID) {
			r.cancel()
			return nil, ErrRunInProgress
		}
		r.opportunity = &opp
		r.locked = true
	case req.DiscoveryID != uuid.Nil:
		d, err := o.Store.GetDiscovery(ctx, req.DiscoveryID)
		if err == nil && d == nil {
			err = fmt.Errorf("discovery %s: %w", req.DiscoveryID, store.ErrNotFound)
		}
		if err != nil {
			r.cancel()
			return nil, err
		}
		r.discovery = d
		r.preselected = req.OpportunityID
	default:
		if err := types.Validate(&req.Discovery.Input); err != nil && len(req.Discovery.URLs) == 0 {
			r.cancel()
			return nil, fmt.Errorf("invalid discovery input: %w", err)
		}
		r.discoveryReq = req.Discovery
		r.preselected = req.OpportunityID
	}

	if req.BuildMode != "" {
		if err := r.SelectBuildMode(req.BuildMode); err != nil {
			r.unlock()
			r.cancel()
			return nil, err
		}
	}

	o.mu.Lock()
	if o.runs == nil {
		o.runs = make(map[uuid.UUID]*Run)
	}
	o.runs[r.ID] = r
	o.mu.Unlock()

	r.logf("started")
	go r.execute()
	return r, nil
}

// Get returns an active or finished run by ID.
func (o *Orchestrator) Get(id uuid.UUID) (*Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r, nil
}

// Forget drops a finished run from the registry.
func (o *Orchestrator) Forget(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.runs[id]; ok && r.currentState().Terminal() {
		delete(o.runs, id)
	}
}

// retire schedules the removal of a finished run from the registry.
func (o *Orchestrator) retire(id uuid.UUID) {
	if o.RunRetention <= 0 {
		return
	}
	time.AfterFunc(o.RunRetention, func() { o.Forget(id) })
}

// ExecuteRequest runs the whole pipeline synchronously for one opportunity.
type ExecuteRequest struct {
	Opportunity types.Opportunity
	BuildMode   types.BuildMode
	// SelectBuildMode is asked for the build mode when none is given up front.
	SelectBuildMode func(ctx context.Context, st Status) (types.BuildMode, error)
	OnProgress      ProgressCallback
}

// Execute starts a run and blocks until it ends, answering the build-mode decision through the request.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*types.PlanRecord, error) {
	if req.BuildMode == "" && req.SelectBuildMode == nil {
		return nil, fmt.Errorf("a build mode or a build mode selector is required")
	}

	var (
		once sync.Once
		wake = make(chan struct{})
	)
	onProgress := func(ev ProgressEvent) {
		if req.OnProgress != nil {
			req.OnProgress(ev)
		}
		if ev.State == StateAwaitingBuildMode {
			once.Do(func() { close(wake) })
		}
	}

	opp := req.Opportunity
	r, err := o.Start(ctx, StartRequest{Opportunity: &opp, BuildMode: req.BuildMode, OnProgress: onProgress})
	if err != nil {
		return nil, err
	}
	defer o.Forget(r.ID)

	if req.BuildMode == "" {
		select {
		case <-wake:
			mode, err := req.SelectBuildMode(ctx, r.Status())
			if err != nil {
				r.Cancel()
				<-r.Done()
				return nil, err
			}
			if err := r.SelectBuildMode(mode); err != nil {
				r.Cancel()
				<-r.Done()
				return nil, err
			}
		case <-r.Done():
		}
	}
	return r.Wait(ctx)
}

// finalizePlan runs extract-tasks then executive-brief on a foundational plan and
// returns the complete plan with consistency findings and contract versions attached.
// Nothing is committed unless both stages succeed.
func (o *Orchestrator) finalizePlan(ctx context.Context, runner *stages.Runner, plan types.Plan, mode types.BuildMode, run stepRunner) (*types.Plan, error) {
	if !plan.Foundational() {
		return nil, &StageError{Stage: string(schemas.StageExtractTasks), State: StateFinalizing, Kind: KindDependency,
			Cause: fmt.Errorf("plan %s is missing foundational sections", plan.Opportunity.ID)}
	}

	var actionPlan *types.ActionPlan
	err := run(ctx, string(schemas.StageExtractTasks), func(ctx context.Context) (err error) {
		actionPlan, err = runner.ExtractTasks(ctx, stages.TasksInput{Strategy: *plan.Strategy, BuildMode: mode})
		return err
	})
	if err != nil {
		return nil, err
	}

	var brief *types.ExecutiveBrief
	err = run(ctx, string(schemas.StageExecutiveBrief), func(ctx context.Context) (err error) {
		brief, err = runner.ExecutiveBrief(ctx, stages.BriefInput{
			OpportunityName:        plan.Opportunity.Name,
			OpportunityDescription: plan.Opportunity.Description,
			Analysis:               *plan.Analysis,
			Strategy:               *plan.Strategy,
			ActionPlan:             actionPlan,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	plan.BuildMode = mode
	plan.ActionPlan = actionPlan
	plan.ExecutiveBrief = brief
	plan.Findings = types.CheckActionPlan(actionPlan, mode)
	plan.ContractVersions = runner.Pins.Record()
	return &plan, nil
}

// RefinalizeResult is a re-finalized plan and the diff against the previous version.
type RefinalizeResult struct {
	Record *types.PlanRecord `json:"record"`
	Diff   string            `json:"diff"`
}

// Refinalize re-runs finalizing on a stored plan under a new build mode and overwrites it
// if nobody wrote it in between. The stored contract versions are reused.
func (o *Orchestrator) Refinalize(ctx context.Context, planID uuid.UUID, mode types.BuildMode) (*RefinalizeResult, error) {
	mode, err := types.ParseBuildMode(string(mode))
	if err != nil {
		return nil, err
	}

	owner := uuid.New()
	if !o.locks.tryAcquire(planID, owner) {
		return nil, ErrRunInProgress
	}
	defer o.locks.release(planID, owner)

	prev, err := o.Store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}

	runner := o.Runner
	if len(prev.Plan.ContractVersions) > 0 {
		runner = runner.WithPins(schemas.PinsFromRecord(prev.Plan.ContractVersions))
	}

	statuses := steps.Statuses{}
	for _, s := range []schemas.Stage{schemas.StageAnalyzeMarket, schemas.StageGenerateStructure,
		schemas.StageBuildStrategy, schemas.StageBuildModeAdvice, schemas.StageChartData} {
		statuses[string(s)] = db.StepStatusCompleted
	}
	statuses[steps.SelectBuildMode] = db.StepStatusCompleted

	run := func(ctx context.Context, name string, fn func(ctx context.Context) error) error {
		if err := steps.ValidateDependencies(statuses, name); err != nil {
			return &StageError{Stage: name, State: StateFinalizing, Kind: KindDependency, Cause: err}
		}
		if _, err := o.Retry.Do(ctx, fn); err != nil {
			return stageError(name, StateFinalizing, err)
		}
		statuses[name] = db.StepStatusCompleted
		return nil
	}

	finished, err := o.finalizePlan(ctx, runner, prev.Plan, mode, run)
	if err != nil {
		return nil, err
	}

	next := &types.PlanRecord{ID: planID, Status: types.PlanStatusComplete, Plan: *finished}
	if _, err := o.Store.PutPlan(ctx, next, prev.Version); err != nil {
		return nil, err
	}

	diff, err := PlanDiff(prev, next)
	if err != nil {
		return nil, err
	}
	o.logger().Printf("[refinalize %s] %s -> %s, now v%d", planID.String()[:8], prev.Plan.BuildMode, mode, next.Version)
	return &RefinalizeResult{Record: next, Diff: diff}, nil
}

func (o *Orchestrator) startRun(r *Run) {
	if o.Recorder == nil {
		return
	}
	if err := o.Recorder.CreateRun(r.ctx, r.ID, r.opportunity.ID, r.opportunity.Name); err != nil {
		r.logf("warning: failed to record run: %v", err)
		return
	}
	r.mu.Lock()
	r.recorded = true
	r.mu.Unlock()
}

func (o *Orchestrator) recordStep(r *Run, name, status string, attempts int, started time.Time, errMsg *string) {
	r.mu.Lock()
	recorded := r.recorded
	r.mu.Unlock()
	if o.Recorder == nil || !recorded {
		return
	}
	category := steps.StepRegistry[name].Category
	// the run context may already be cancelled; history is still worth keeping
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 5*time.Second)
	defer cancel()
	if err := o.Recorder.RecordStep(ctx, r.ID, name, category, status, attempts, started, errMsg); err != nil {
		r.logf("warning: failed to record step %s: %v", name, err)
	}
}

func (o *Orchestrator) completeRun(r *Run, status string, se *StageError) {
	r.mu.Lock()
	recorded := r.recorded
	mode := string(r.buildMode)
	r.mu.Unlock()
	if o.Recorder == nil || !recorded {
		return
	}
	var errMsg *string
	if se != nil {
		msg := se.Error()
		errMsg = &msg
		if se.Kind == KindCancelled {
			status = db.RunStatusCancelled
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), 5*time.Second)
	defer cancel()
	if err := o.Recorder.CompleteRun(ctx, r.ID, status, mode, errMsg); err != nil {
		r.logf("warning: failed to complete run record: %v", err)
	}
}
