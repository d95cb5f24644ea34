package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/venture-planner/internal/db"
	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/llm"
	"github.com/jonathan/venture-planner/internal/llm/llmtest"
	"github.com/jonathan/venture-planner/internal/pipeline/steps"
	"github.com/jonathan/venture-planner/internal/stages"
	"github.com/jonathan/venture-planner/internal/stages/stagestest"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

func newOrchestrator(mock *llmtest.MockClient) (*Orchestrator, *store.Memory) {
	runner := stages.NewRunner(generation.New(mock))
	runner.Now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }
	mem := store.NewMemory()
	o := New(runner, mem)
	o.Logger = log.New(io.Discard, "", 0)
	o.Retry = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
	return o, mem
}

func wallArt() types.Opportunity {
	return types.Opportunity{
		ID:          uuid.New(),
		Name:        "Digital Wall Art Shop",
		Description: "Sell AI-assisted printable wall art on Etsy and Shopify to home decor buyers.",
		Potential:   "High",
		Risk:        "Medium",
		QuickReturn: "Short",
		Priority:    "8",
	}
}

func waitRun(t *testing.T, r *Run) (*types.PlanRecord, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := r.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil, "run did not finish")
	return rec, err
}

func waitState(t *testing.T, r *Run, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Status().State == want }, 5*time.Second, 5*time.Millisecond,
		"run never reached %s", want)
}

func TestExecute_OutSourcedPlan(t *testing.T) {
	mock := stagestest.Client(nil)
	o, mem := newOrchestrator(mock)
	opp := wallArt()

	var states []State
	rec, err := o.Execute(context.Background(), ExecuteRequest{
		Opportunity: opp,
		BuildMode:   types.BuildModeOutSourced,
		OnProgress: func(ev ProgressEvent) {
			if ev.Stage == "" {
				states = append(states, ev.State)
			}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, opp.ID, rec.ID)
	assert.Equal(t, types.PlanStatusComplete, rec.Status)
	assert.Equal(t, 1, rec.Version)
	assert.True(t, rec.Plan.Complete())
	assert.Equal(t, types.BuildModeOutSourced, rec.Plan.BuildMode)
	assert.Empty(t, rec.Plan.Findings)
	assert.Equal(t, 5, rec.Plan.ContractVersions["extract-tasks"])
	assert.Equal(t, 7, mock.CallCount(""))

	assert.Equal(t, []State{StateAnalyzing, StateStrategizing, StateAdvising, StateAwaitingBuildMode, StateFinalizing, StateDone}, states)

	for _, c := range mock.Calls() {
		if c.Tag == "extract-tasks" {
			assert.Contains(t, c.Prompt, "Out-sourced focus")
		}
	}

	stored, err := mem.GetPlan(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Plan.ExecutiveBrief, stored.Plan.ExecutiveBrief)
}

func TestExecute_CompletedPlanMakesNoCalls(t *testing.T) {
	mock := stagestest.Client(nil)
	o, mem := newOrchestrator(mock)
	opp := wallArt()
	req := ExecuteRequest{Opportunity: opp, BuildMode: types.BuildModeOutSourced}

	_, err := o.Execute(context.Background(), req)
	require.NoError(t, err)

	mock.Reset()
	rec, err := o.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, mock.CallCount(""))
	assert.Equal(t, 1, rec.Version)

	require.NoError(t, mem.DeletePlan(context.Background(), opp.ID))
	rec, err = o.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 7, mock.CallCount(""))
	assert.Equal(t, 1, rec.Version)
}

func TestExecute_SelectorCallback(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))

	var sawAdvice bool
	rec, err := o.Execute(context.Background(), ExecuteRequest{
		Opportunity: wallArt(),
		SelectBuildMode: func(_ context.Context, st Status) (types.BuildMode, error) {
			sawAdvice = st.Advice != nil
			return types.BuildModeInHouse, nil
		},
	})
	require.NoError(t, err)
	assert.True(t, sawAdvice)
	assert.Equal(t, types.BuildModeInHouse, rec.Plan.BuildMode)
}

func TestRun_StructureFailureNamesStage(t *testing.T) {
	mock := stagestest.Client(map[string]any{"generate-structure": `{"nope": true}`})
	o, mem := newOrchestrator(mock)
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	_, err = waitRun(t, r)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "generate-structure", se.Stage)
	assert.Equal(t, StateAnalyzing, se.State)
	assert.Equal(t, generation.KindOutput, se.Kind)

	st := r.Status()
	assert.Equal(t, StateError, st.State)
	assert.Equal(t, "generate-structure", st.FailedStage)
	assert.Nil(t, st.Plan)
	require.NotNil(t, st.Rollback)
	assert.Equal(t, opp.ID, st.Rollback.Opportunity.ID)
	assert.Equal(t, 0, mock.CallCount("build-strategy"))

	rec, err := mem.GetPlan(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRun_StructureProviderFailureKeepsSiblingResult(t *testing.T) {
	var attempts atomic.Int32
	unavailable := func(llm.Request) (string, error) {
		if attempts.Add(1) == 1 {
			// let the parallel market analysis finish first
			time.Sleep(30 * time.Millisecond)
		}
		return "", errors.New("503 service unavailable")
	}
	mock := stagestest.Client(map[string]any{"generate-structure": unavailable})
	o, mem := newOrchestrator(mock)
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	_, err = waitRun(t, r)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "generate-structure", se.Stage)
	assert.Equal(t, generation.KindProvider, se.Kind)
	assert.Equal(t, 3, mock.CallCount("generate-structure"))

	st := r.Status()
	assert.Equal(t, StateError, st.State)
	assert.Equal(t, "generate-structure", st.FailedStage)
	assert.Equal(t, db.StepStatusCompleted, st.Steps["analyze-market"])
	assert.Nil(t, st.Plan)
	assert.Equal(t, 0, mock.CallCount("build-strategy"))

	rec, err := mem.GetPlan(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRun_ConfigErrorIsNotRetried(t *testing.T) {
	misconfigured := fmt.Errorf("%w: no model configured for tier standard", llm.ErrConfig)
	mock := stagestest.Client(map[string]any{"analyze-market": misconfigured})
	o, _ := newOrchestrator(mock)
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	_, err = waitRun(t, r)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "analyze-market", se.Stage)
	assert.Equal(t, generation.KindConfig, se.Kind)
	assert.Equal(t, 1, mock.CallCount("analyze-market"))
}

func TestRun_SuspendsForBuildMode(t *testing.T) {
	mock := stagestest.Client(nil)
	o, _ := newOrchestrator(mock)
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	waitState(t, r, StateAwaitingBuildMode)

	st := r.Status()
	require.NotNil(t, st.Advice)
	assert.Nil(t, st.Plan)
	assert.Equal(t, []string{steps.SelectBuildMode}, st.Available)
	assert.Equal(t, 0, mock.CallCount("extract-tasks"))

	require.Error(t, r.SelectBuildMode("hybrid"))
	require.NoError(t, r.SelectBuildMode(types.BuildModeOutSourced))
	assert.ErrorIs(t, r.SelectBuildMode(types.BuildModeInHouse), ErrBuildModeAlreadySelected)

	rec, err := waitRun(t, r)
	require.NoError(t, err)
	assert.Equal(t, types.BuildModeOutSourced, rec.Plan.BuildMode)
	assert.Equal(t, rec, r.Status().Plan)
}

func TestRun_BuildModeTimeout(t *testing.T) {
	o, mem := newOrchestrator(stagestest.Client(nil))
	o.BuildModeTimeout = 20 * time.Millisecond
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	_, err = waitRun(t, r)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, steps.SelectBuildMode, se.Stage)
	assert.Equal(t, KindTimeout, se.Kind)
	assert.ErrorIs(t, err, ErrBuildModeTimeout)

	rec, err := mem.GetPlan(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRun_CancelAbortsInFlightCall(t *testing.T) {
	mock := stagestest.Client(nil)
	canned := mock.GenerateStructuredFunc
	entered := make(chan struct{})
	mock.GenerateStructuredFunc = func(ctx context.Context, req llm.Request) (string, error) {
		if req.Tag == "build-strategy" {
			close(entered)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return canned(ctx, req)
	}
	o, _ := newOrchestrator(mock)
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	<-entered
	r.Cancel()

	_, err = waitRun(t, r)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "build-strategy", se.Stage)
	assert.Equal(t, KindCancelled, se.Kind)
	assert.Equal(t, 1, mock.CallCount("build-strategy"), "cancellation is never retried")
}

func TestRun_RetriesProviderErrors(t *testing.T) {
	var calls atomic.Int32
	flaky := func(llm.Request) (string, error) {
		if calls.Add(1) <= 2 {
			return "", errors.New("503 service unavailable")
		}
		return stagestest.MarketAnalysis, nil
	}
	mock := stagestest.Client(map[string]any{"analyze-market": flaky})
	o, _ := newOrchestrator(mock)

	rec, err := o.Execute(context.Background(), ExecuteRequest{Opportunity: wallArt(), BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	assert.NotNil(t, rec.Plan.Analysis)
	assert.Equal(t, 3, mock.CallCount("analyze-market"))
}

func TestRun_RetriesExhausted(t *testing.T) {
	mock := stagestest.Client(map[string]any{"analyze-market": errors.New("quota exceeded")})
	o, _ := newOrchestrator(mock)

	_, err := o.Execute(context.Background(), ExecuteRequest{Opportunity: wallArt(), BuildMode: types.BuildModeOutSourced})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "analyze-market", se.Stage)
	assert.Equal(t, generation.KindProvider, se.Kind)
	assert.Equal(t, 3, mock.CallCount("analyze-market"))
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	mock := stagestest.Client(nil)
	o, mem := newOrchestrator(mock)
	o.Checkpoint = true
	opp := wallArt()

	first, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	waitState(t, first, StateAwaitingBuildMode)

	cp, err := mem.GetPlan(context.Background(), opp.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, types.PlanStatusCheckpoint, cp.Status)
	assert.Equal(t, 1, cp.Version)
	assert.True(t, cp.Plan.Foundational())
	assert.Nil(t, cp.Plan.ActionPlan)

	first.Cancel()
	_, err = waitRun(t, first)
	require.Error(t, err)

	mock.Reset()
	second, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	rec, err := waitRun(t, second)
	require.NoError(t, err)

	assert.Equal(t, types.PlanStatusComplete, rec.Status)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, 0, mock.CallCount("analyze-market"))
	assert.Equal(t, 2, mock.CallCount(""))
}

func TestStart_OneRunPerOpportunity(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))
	opp := wallArt()

	first, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	waitState(t, first, StateAwaitingBuildMode)

	_, err = o.Start(context.Background(), StartRequest{Opportunity: &opp})
	assert.ErrorIs(t, err, ErrRunInProgress)

	first.Cancel()
	_, _ = waitRun(t, first)

	again, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	again.Cancel()
	_, _ = waitRun(t, again)
}

func TestStart_RequiresOneSource(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))
	opp := wallArt()

	_, err := o.Start(context.Background(), StartRequest{})
	assert.ErrorIs(t, err, ErrInvalidStart)

	_, err = o.Start(context.Background(), StartRequest{Opportunity: &opp, DiscoveryID: uuid.New()})
	assert.ErrorIs(t, err, ErrInvalidStart)

	_, err = o.Start(context.Background(), StartRequest{DiscoveryID: uuid.New()})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_DiscoveryThenSelection(t *testing.T) {
	mock := stagestest.Client(nil)
	o, mem := newOrchestrator(mock)

	r, err := o.Start(context.Background(), StartRequest{
		Discovery: &DiscoveryRequest{Input: types.DiscoveryInput{Context: "home decor trends"}},
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Status().Discovery != nil }, 5*time.Second, 5*time.Millisecond)

	st := r.Status()
	assert.Equal(t, StateDiscovering, st.State)
	top, ok := st.Discovery.Top()
	require.True(t, ok)
	assert.Equal(t, "Digital Wall Art Shop", top.Name)

	assert.Error(t, r.SelectOpportunity(uuid.New()))
	require.NoError(t, r.SelectOpportunity(top.ID))
	assert.ErrorIs(t, r.SelectOpportunity(top.ID), ErrOpportunityAlreadySelected)
	require.NoError(t, r.SelectBuildMode(types.BuildModeOutSourced))

	rec, err := waitRun(t, r)
	require.NoError(t, err)
	assert.Equal(t, top.ID, rec.ID)

	saved, err := mem.ListDiscoveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, st.Discovery.ID, saved[0].ID)
}

func TestRun_FailureRollsBackToDiscovery(t *testing.T) {
	mock := stagestest.Client(map[string]any{"build-mode-advice": `{}`})
	o, _ := newOrchestrator(mock)

	d, err := o.Discover(context.Background(), DiscoveryRequest{Input: types.DiscoveryInput{UserInterests: "art"}})
	require.NoError(t, err)
	top, _ := d.Top()

	r, err := o.Start(context.Background(), StartRequest{DiscoveryID: d.ID, OpportunityID: top.ID, BuildMode: types.BuildModeInHouse})
	require.NoError(t, err)
	_, err = waitRun(t, r)
	require.Error(t, err)

	st := r.Status()
	assert.Equal(t, "build-mode-advice", st.FailedStage)
	require.NotNil(t, st.Rollback)
	assert.Len(t, st.Rollback.Opportunities, 3)
}

func TestDiscover_RankFallback(t *testing.T) {
	mock := stagestest.Client(map[string]any{"rank": errors.New("quota exceeded")})
	o, _ := newOrchestrator(mock)
	req := DiscoveryRequest{Input: types.DiscoveryInput{MarketTrends: "printables"}}

	_, err := o.Discover(context.Background(), req)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "rank", se.Stage)

	req.RankFallback = true
	d, err := o.Discover(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, d.Opportunities, 3)
	assert.Equal(t, 1, d.Opportunities[0].Rank)
	assert.Equal(t, "N/A", d.Opportunities[0].Rationale)
	assert.Equal(t, types.DefaultRankingFocus, d.Focus)
}

func TestDiscover_FetchesURLs(t *testing.T) {
	mock := stagestest.Client(nil)
	o, _ := newOrchestrator(mock)
	o.Fetch = func(_ context.Context, url string) (string, error) {
		return "Printable art sales grew 40% last year.", nil
	}

	d, err := o.Discover(context.Background(), DiscoveryRequest{URLs: []string{"https://example.com/trends"}})
	require.NoError(t, err)
	assert.Contains(t, d.Input.Context, "Printable art sales grew")

	calls := mock.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Prompt, "https://example.com/trends")
}

func TestRefinalize_OverwritesWithDiff(t *testing.T) {
	mock := stagestest.Client(nil)
	o, mem := newOrchestrator(mock)
	opp := wallArt()

	_, err := o.Execute(context.Background(), ExecuteRequest{Opportunity: opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)

	mock.Reset()
	res, err := o.Refinalize(context.Background(), opp.ID, types.BuildModeInHouse)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Record.Version)
	assert.Equal(t, types.BuildModeInHouse, res.Record.Plan.BuildMode)
	assert.Equal(t, 2, mock.CallCount(""))
	assert.Contains(t, mock.Calls()[0].Prompt, "In-house focus")

	assert.Contains(t, res.Diff, "--- plan@v1")
	assert.Contains(t, res.Diff, "+++ plan@v2")
	assert.Contains(t, res.Diff, `-  "buildMode": "out-sourced",`)
	assert.Contains(t, res.Diff, `+  "buildMode": "in-house",`)

	stored, err := mem.GetPlan(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)

	_, err = o.Refinalize(context.Background(), uuid.New(), types.BuildModeInHouse)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrchestrator_GetAndForget(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	got, err := o.Get(r.ID)
	require.NoError(t, err)
	assert.Same(t, r, got)

	_, err = waitRun(t, r)
	require.NoError(t, err)
	o.Forget(r.ID)
	_, err = o.Get(r.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOrchestrator_EvictsFinishedRunsAfterRetention(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))
	o.RunRetention = 20 * time.Millisecond
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	_, err = waitRun(t, r)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := o.Get(r.ID)
		return errors.Is(err, ErrRunNotFound)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOrchestrator_KeepsWaitingRunsPastRetention(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))
	o.RunRetention = 10 * time.Millisecond
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp})
	require.NoError(t, err)
	waitState(t, r, StateAwaitingBuildMode)
	time.Sleep(50 * time.Millisecond)
	got, err := o.Get(r.ID)
	require.NoError(t, err)
	assert.Same(t, r, got)

	require.NoError(t, r.SelectBuildMode(types.BuildModeOutSourced))
	_, err = waitRun(t, r)
	require.NoError(t, err)
}

func TestRun_SubscribeReplaysHistory(t *testing.T) {
	o, _ := newOrchestrator(stagestest.Client(nil))
	opp := wallArt()

	r, err := o.Start(context.Background(), StartRequest{Opportunity: &opp, BuildMode: types.BuildModeOutSourced})
	require.NoError(t, err)
	_, err = waitRun(t, r)
	require.NoError(t, err)

	events, stop := r.Subscribe()
	defer stop()
	var last ProgressEvent
	n := 0
	for ev := range events {
		assert.Equal(t, r.ID, ev.RunID)
		last = ev
		n++
	}
	assert.Greater(t, n, 6)
	assert.Equal(t, StateDone, last.State)
}
