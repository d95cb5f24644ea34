package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/venture-planner/internal/db"
	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/pipeline/steps"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/stages"
	"github.com/jonathan/venture-planner/internal/types"
)

// Rollback is where a failed run returns the user to.
type Rollback struct {
	Opportunities []types.RankedOpportunity `json:"opportunities,omitempty"`
	Opportunity   *types.Opportunity        `json:"opportunity,omitempty"`
}

// Status is a snapshot of a run.
type Status struct {
	RunID       uuid.UUID              `json:"run_id"`
	State       State                  `json:"state"`
	Opportunity *types.Opportunity     `json:"opportunity,omitempty"`
	BuildMode   types.BuildMode        `json:"build_mode,omitempty"`
	Discovery   *types.Discovery       `json:"discovery,omitempty"`
	Advice      *types.BuildModeAdvice `json:"advice,omitempty"`
	FailedStage string                 `json:"failed_stage,omitempty"`
	ErrorKind   string                 `json:"error_kind,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Rollback    *Rollback              `json:"rollback,omitempty"`
	Plan        *types.PlanRecord      `json:"plan,omitempty"`
	Steps       steps.Statuses         `json:"steps"`
	Available   []string               `json:"available,omitempty"`
	Blocked     []string               `json:"blocked,omitempty"`
}

// Run is one execution of the plan pipeline for one opportunity.
// A goroutine drives the state machine; the exported methods are safe for concurrent use.
type Run struct {
	ID uuid.UUID

	o          *Orchestrator
	runner     *stages.Runner
	ctx        context.Context
	cancel     context.CancelFunc
	onProgress ProgressCallback
	events     broadcaster
	done       chan struct{}

	discoveryReq *DiscoveryRequest
	preselected  uuid.UUID

	oppCh  chan uuid.UUID
	modeCh chan types.BuildMode

	mu                  sync.Mutex
	state               State
	opportunity         *types.Opportunity
	discovery           *types.Discovery
	awaitingOpportunity bool
	opportunityChosen   bool
	buildMode           types.BuildMode
	modeChosen          bool
	plan                types.Plan
	version             int
	record              *types.PlanRecord
	stageErr            *StageError
	statuses            steps.Statuses
	locked              bool
	recorded            bool
}

func newRun(o *Orchestrator, parent context.Context, onProgress ProgressCallback) *Run {
	ctx, cancel := context.WithCancel(parent)
	return &Run{
		ID:         uuid.New(),
		o:          o,
		runner:     o.Runner,
		ctx:        ctx,
		cancel:     cancel,
		onProgress: onProgress,
		done:       make(chan struct{}),
		oppCh:      make(chan uuid.UUID, 1),
		modeCh:     make(chan types.BuildMode, 1),
		state:      StateIdle,
		statuses:   make(steps.Statuses),
	}
}

// Status returns a snapshot of the run.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		RunID:       r.ID,
		State:       r.state,
		Opportunity: r.opportunity,
		BuildMode:   r.buildMode,
		Discovery:   r.discovery,
		Steps:       make(steps.Statuses, len(r.statuses)),
	}
	for k, v := range r.statuses {
		st.Steps[k] = v
	}
	if !r.state.Terminal() {
		st.Available = steps.Available(st.Steps)
		st.Blocked = steps.Blocked(st.Steps)
	}
	if r.state == StateAwaitingBuildMode {
		st.Advice = r.plan.BuildModeAdvice
	}
	if r.state == StateDone {
		st.Plan = r.record
	}
	if r.stageErr != nil {
		st.FailedStage = r.stageErr.Stage
		st.ErrorKind = string(r.stageErr.Kind)
		st.Error = r.stageErr.Error()
		st.Rollback = r.rollback()
	}
	return st
}

// rollback must be called with r.mu held.
func (r *Run) rollback() *Rollback {
	if r.discovery != nil && len(r.discovery.Opportunities) > 0 {
		return &Rollback{Opportunities: r.discovery.Opportunities}
	}
	if r.opportunity != nil {
		return &Rollback{Opportunity: r.opportunity}
	}
	return &Rollback{}
}

// Done is closed when the run reaches done or error.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends and returns the stored plan record or the stage error.
func (r *Run) Wait(ctx context.Context) (*types.PlanRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stageErr != nil {
		return nil, r.stageErr
	}
	return r.record, nil
}

// Cancel aborts in-flight stage calls. The run ends in the error state.
func (r *Run) Cancel() {
	r.cancel()
}

// Subscribe replays the events published so far and streams new ones.
// The channel closes when the run ends; call the returned func to stop early.
func (r *Run) Subscribe() (<-chan ProgressEvent, func()) {
	return r.events.subscribe()
}

// SelectOpportunity picks the opportunity to plan from the run's discovery.
func (r *Run) SelectOpportunity(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opportunityChosen {
		return ErrOpportunityAlreadySelected
	}
	if !r.awaitingOpportunity || r.state != StateDiscovering {
		return ErrNotAwaitingSelection
	}
	ranked, ok := r.discovery.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s not in %s", ErrUnknownOpportunity, id, r.discovery.ID)
	}
	if !r.o.locks.tryAcquire(id, r.ID) {
		return ErrRunInProgress
	}
	opp := ranked.Opportunity
	r.opportunity = &opp
	r.locked = true
	r.opportunityChosen = true
	r.oppCh <- id
	return nil
}

// SelectBuildMode resumes a run suspended at the build-mode decision.
// A mode may be chosen ahead of time; only one selection is accepted per run.
func (r *Run) SelectBuildMode(mode types.BuildMode) error {
	mode, err := types.ParseBuildMode(string(mode))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.modeChosen {
		return ErrBuildModeAlreadySelected
	}
	if r.state.Terminal() || r.state == StateFinalizing {
		return ErrNotAwaitingSelection
	}
	r.buildMode = mode
	r.modeChosen = true
	r.modeCh <- mode
	return nil
}

func (r *Run) currentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) transition(to State, message string, content any) error {
	r.mu.Lock()
	from := r.state
	if err := checkTransition(from, to); err != nil {
		r.mu.Unlock()
		return err
	}
	r.state = to
	r.mu.Unlock()

	r.emit(ProgressEvent{State: to, Message: message, Content: content})
	return nil
}

func (r *Run) emit(ev ProgressEvent) {
	ev.RunID = r.ID
	if ev.State == "" {
		ev.State = r.currentState()
	}
	if r.onProgress != nil {
		r.onProgress(ev)
	}
	r.events.publish(ev)
}

func (r *Run) logf(format string, args ...any) {
	r.o.logger().Printf("[run %s] %s", r.ID.String()[:8], fmt.Sprintf(format, args...))
}

// execute drives the run to a terminal state.
func (r *Run) execute() {
	defer r.o.retire(r.ID)
	defer close(r.done)
	defer r.events.close()
	defer r.cancel()
	defer r.unlock()

	if err := r.drive(); err != nil {
		r.fail(err)
	}
}

func (r *Run) unlock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked && r.opportunity != nil {
		r.o.locks.release(r.opportunity.ID, r.ID)
		r.locked = false
	}
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	se := stageError("", r.state, err)
	if se.State == "" {
		se.State = r.state
	}
	r.stageErr = se
	r.state = StateError
	r.mu.Unlock()

	r.logf("failed: %v", se)
	r.o.completeRun(r, db.RunStatusFailed, se)
	r.emit(ProgressEvent{State: StateError, Stage: se.Stage, Message: se.Error()})
}

func (r *Run) drive() error {
	if r.opportunity == nil {
		if err := r.discover(); err != nil {
			return err
		}
	} else {
		r.setStep(string(schemas.StageDiscover), db.StepStatusSkipped)
		r.setStep(string(schemas.StageRank), db.StepStatusSkipped)
	}
	r.o.startRun(r)

	opp := *r.opportunity
	rec, err := r.o.Store.GetPlan(r.ctx, opp.ID)
	if err != nil {
		return &StageError{Stage: "load-plan", State: r.currentState(), Kind: KindPersist, Cause: err}
	}

	switch {
	case rec != nil && rec.Status == types.PlanStatusComplete:
		r.logf("plan %s already complete, nothing to generate", opp.ID)
		r.mu.Lock()
		r.plan = rec.Plan
		r.record = rec
		r.buildMode = rec.Plan.BuildMode
		r.mu.Unlock()
		if err := r.transition(StateDone, "Plan already complete", rec.Summarize()); err != nil {
			return err
		}
		r.o.completeRun(r, db.RunStatusCompleted, nil)
		return nil

	case rec != nil && rec.Status == types.PlanStatusCheckpoint && rec.Plan.Foundational():
		r.logf("resuming plan %s from checkpoint v%d", opp.ID, rec.Version)
		if len(rec.Plan.ContractVersions) > 0 {
			r.runner = r.runner.WithPins(schemas.PinsFromRecord(rec.Plan.ContractVersions))
		}
		r.mu.Lock()
		r.plan = rec.Plan
		r.version = rec.Version
		for _, s := range []schemas.Stage{schemas.StageAnalyzeMarket, schemas.StageGenerateStructure,
			schemas.StageBuildStrategy, schemas.StageBuildModeAdvice, schemas.StageChartData} {
			r.statuses[string(s)] = db.StepStatusCompleted
		}
		r.mu.Unlock()

	default:
		if rec != nil {
			// unusable checkpoint; the final write replaces it
			r.version = rec.Version
		}
		if err := r.foundation(opp); err != nil {
			return err
		}
	}

	mode, err := r.awaitBuildMode()
	if err != nil {
		return err
	}
	return r.finalize(mode)
}

// discover runs or loads the discovery and waits for an opportunity to be chosen.
func (r *Run) discover() error {
	if err := r.transition(StateDiscovering, "Discovering opportunities", nil); err != nil {
		return err
	}

	r.mu.Lock()
	d := r.discovery
	r.mu.Unlock()

	if d == nil {
		var err error
		d, err = r.o.discover(r.ctx, *r.discoveryReq, r.stepFunc(StateDiscovering))
		if err != nil {
			return err
		}
	} else {
		r.setStep(string(schemas.StageDiscover), db.StepStatusCompleted)
		r.setStep(string(schemas.StageRank), db.StepStatusCompleted)
	}

	r.mu.Lock()
	r.discovery = d
	r.awaitingOpportunity = true
	r.mu.Unlock()
	r.emit(ProgressEvent{Message: "Waiting for opportunity selection", Content: d})

	if r.preselected != uuid.Nil {
		if err := r.SelectOpportunity(r.preselected); err != nil {
			return &StageError{Stage: "select-opportunity", State: StateDiscovering, Kind: generation.KindInput, Cause: err}
		}
	}

	select {
	case <-r.ctx.Done():
		return &StageError{Stage: "select-opportunity", State: StateDiscovering, Kind: KindCancelled, Cause: r.ctx.Err()}
	case <-r.oppCh:
	}

	r.mu.Lock()
	r.awaitingOpportunity = false
	r.mu.Unlock()
	return nil
}

// foundation runs analyzing, strategizing and advising, committing each group after it fully succeeds.
func (r *Run) foundation(opp types.Opportunity) error {
	if err := r.transition(StateAnalyzing, "Analyzing market and structure", nil); err != nil {
		return err
	}
	var (
		analysis  *types.MarketAnalysis
		structure *types.BusinessStructure
	)
	g, gctx := errgroup.WithContext(r.ctx)
	g.Go(func() error {
		return r.step(gctx, StateAnalyzing, string(schemas.StageAnalyzeMarket), func(ctx context.Context) (err error) {
			analysis, err = r.runner.AnalyzeMarket(ctx, stages.MarketInput{OpportunityDescription: opp.Description})
			return err
		})
	})
	g.Go(func() error {
		return r.step(gctx, StateAnalyzing, string(schemas.StageGenerateStructure), func(ctx context.Context) (err error) {
			structure, err = r.runner.GenerateStructure(ctx, stages.StructureInput{
				OpportunityName:        opp.Name,
				OpportunityDescription: opp.Description,
			})
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}
	r.commit(func(p *types.Plan) {
		p.Opportunity = opp
		p.Analysis = analysis
		p.Structure = structure
	})

	if err := r.transition(StateStrategizing, "Building strategy", nil); err != nil {
		return err
	}
	r.mu.Lock()
	preselected := r.buildMode
	r.mu.Unlock()
	var strategy *types.BusinessStrategy
	err := r.step(r.ctx, StateStrategizing, string(schemas.StageBuildStrategy), func(ctx context.Context) (err error) {
		strategy, err = r.runner.BuildStrategy(ctx, stages.StrategyInput{MarketAnalysis: analysis.Summary(), BuildMode: preselected})
		return err
	})
	if err != nil {
		return err
	}
	r.commit(func(p *types.Plan) { p.Strategy = strategy })

	if err := r.transition(StateAdvising, "Preparing build mode advice and revenue chart", nil); err != nil {
		return err
	}
	var (
		advice *types.BuildModeAdvice
		chart  []types.ChartPoint
	)
	g, gctx = errgroup.WithContext(r.ctx)
	g.Go(func() error {
		return r.step(gctx, StateAdvising, string(schemas.StageBuildModeAdvice), func(ctx context.Context) (err error) {
			advice, err = r.runner.BuildModeAdvice(ctx, stages.AdviceInput{Strategy: *strategy})
			return err
		})
	})
	g.Go(func() error {
		return r.step(gctx, StateAdvising, string(schemas.StageChartData), func(ctx context.Context) (err error) {
			chart, err = r.runner.ChartData(ctx, stages.ChartInput{FinancialForecasts: strategy.FinancialForecasts})
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}
	r.commit(func(p *types.Plan) {
		p.BuildModeAdvice = advice
		p.ChartData = chart
	})

	if r.o.Checkpoint {
		r.writeCheckpoint()
	}
	return nil
}

func (r *Run) writeCheckpoint() {
	r.mu.Lock()
	plan := r.plan
	expected := r.version
	r.mu.Unlock()
	plan.ContractVersions = r.runner.Pins.Record()

	rec := &types.PlanRecord{ID: plan.Opportunity.ID, Status: types.PlanStatusCheckpoint, Plan: plan}
	v, err := r.o.Store.PutPlan(r.ctx, rec, expected)
	if err != nil {
		r.logf("warning: checkpoint write failed: %v", err)
		return
	}
	r.mu.Lock()
	r.version = v
	r.mu.Unlock()
	r.logf("checkpoint saved at v%d", v)
}

// awaitBuildMode suspends until a build mode is selected, the run is cancelled, or the wait times out.
func (r *Run) awaitBuildMode() (types.BuildMode, error) {
	r.mu.Lock()
	advice := r.plan.BuildModeAdvice
	r.mu.Unlock()
	if err := r.transition(StateAwaitingBuildMode, "Waiting for build mode selection", advice); err != nil {
		return "", err
	}

	var timeout <-chan time.Time
	if r.o.BuildModeTimeout > 0 {
		timer := time.NewTimer(r.o.BuildModeTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case mode := <-r.modeCh:
		r.setStep(steps.SelectBuildMode, db.StepStatusCompleted)
		r.commit(func(p *types.Plan) { p.BuildMode = mode })
		r.logf("build mode %s selected", mode)
		return mode, nil
	case <-timeout:
		return "", &StageError{Stage: steps.SelectBuildMode, State: StateAwaitingBuildMode, Kind: KindTimeout, Cause: ErrBuildModeTimeout}
	case <-r.ctx.Done():
		return "", &StageError{Stage: steps.SelectBuildMode, State: StateAwaitingBuildMode, Kind: KindCancelled, Cause: r.ctx.Err()}
	}
}

// finalize runs extract-tasks then executive-brief and writes the complete record once.
func (r *Run) finalize(mode types.BuildMode) error {
	if err := r.transition(StateFinalizing, "Finalizing action plan and executive brief", mode); err != nil {
		return err
	}
	r.mu.Lock()
	plan := r.plan
	expected := r.version
	r.mu.Unlock()

	finished, err := r.o.finalizePlan(r.ctx, r.runner, plan, mode, r.stepFunc(StateFinalizing))
	if err != nil {
		return err
	}

	rec := &types.PlanRecord{ID: finished.Opportunity.ID, Status: types.PlanStatusComplete, Plan: *finished}
	if _, err := r.o.Store.PutPlan(r.ctx, rec, expected); err != nil {
		return &StageError{Stage: "save-plan", State: StateFinalizing, Kind: KindPersist, Cause: err}
	}

	r.mu.Lock()
	r.plan = *finished
	r.record = rec
	r.version = rec.Version
	r.mu.Unlock()

	if len(finished.Findings) > 0 {
		r.logf("plan saved with %d consistency findings", len(finished.Findings))
	}
	if err := r.transition(StateDone, "Plan complete", rec.Summarize()); err != nil {
		return err
	}
	r.o.completeRun(r, db.RunStatusCompleted, nil)
	return nil
}

func (r *Run) commit(apply func(p *types.Plan)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apply(&r.plan)
}

func (r *Run) setStep(name, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[name] = status
}

func (r *Run) snapshotStatuses() steps.Statuses {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(steps.Statuses, len(r.statuses))
	for k, v := range r.statuses {
		out[k] = v
	}
	return out
}

// stepFunc adapts r.step for helpers shared with Refinalize and Discover.
func (r *Run) stepFunc(state State) stepRunner {
	return func(ctx context.Context, name string, fn func(ctx context.Context) error) error {
		return r.step(ctx, state, name, fn)
	}
}

// step runs one stage with retries after checking its dependencies, recording status and progress.
func (r *Run) step(ctx context.Context, state State, name string, fn func(ctx context.Context) error) error {
	if err := steps.ValidateDependencies(r.snapshotStatuses(), name); err != nil {
		return &StageError{Stage: name, State: state, Kind: KindDependency, Cause: err}
	}

	r.setStep(name, db.StepStatusInProgress)
	r.emit(ProgressEvent{State: state, Stage: name, Message: "Running " + name})

	started := time.Now()
	attempts, err := r.o.Retry.Do(ctx, fn)

	status := db.StepStatusCompleted
	var errMsg *string
	if err != nil {
		status = db.StepStatusFailed
		msg := err.Error()
		errMsg = &msg
	}
	r.setStep(name, status)
	r.o.recordStep(r, name, status, attempts, started, errMsg)

	if err != nil {
		if attempts > 1 {
			r.logf("%s failed after %d attempts: %v", name, attempts, err)
		}
		return stageError(name, state, err)
	}
	r.emit(ProgressEvent{State: state, Stage: name, Message: fmt.Sprintf("Completed %s in %s", name, time.Since(started).Round(time.Millisecond))})
	return nil
}

// stepRunner executes a named stage function.
type stepRunner func(ctx context.Context, name string, fn func(ctx context.Context) error) error
