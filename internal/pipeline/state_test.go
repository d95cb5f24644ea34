package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/pipeline/steps"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateAnalyzing, true},
		{StateIdle, StateDone, true},
		{StateIdle, StateAwaitingBuildMode, true},
		{StateAnalyzing, StateStrategizing, true},
		{StateAnalyzing, StateAdvising, false},
		{StateAdvising, StateAwaitingBuildMode, true},
		{StateAwaitingBuildMode, StateFinalizing, true},
		{StateAwaitingBuildMode, StateDone, false},
		{StateFinalizing, StateDone, true},
		{StateStrategizing, StateError, true},
		{StateDone, StateError, false},
		{StateError, StateIdle, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestEveryNonTerminalStateCanFail(t *testing.T) {
	for from := range transitions {
		assert.True(t, CanTransition(from, StateError), from)
	}
}

func TestStageGroupsRespectDependencies(t *testing.T) {
	require.NoError(t, steps.CheckOrder(stageGroups))
	assert.Len(t, stageGroups, 8)
}

func TestStageError_Classification(t *testing.T) {
	se := stageError("rank", StateDiscovering, &generation.ProviderError{Stage: schemas.StageRank, Cause: context.Canceled})
	assert.Equal(t, KindCancelled, se.Kind)

	se = stageError("select-build-mode", StateAwaitingBuildMode, ErrBuildModeTimeout)
	assert.Equal(t, KindTimeout, se.Kind)

	inner := &StageError{Stage: "chart-data", State: StateAdvising, Kind: generation.KindOutput, Cause: errors.New("short")}
	assert.Same(t, inner, stageError("other", StateIdle, inner))
	assert.Contains(t, inner.Error(), "chart-data")
}

func TestBroadcaster(t *testing.T) {
	var b broadcaster
	b.publish(ProgressEvent{Message: "one"})

	ch, stop := b.subscribe()
	b.publish(ProgressEvent{Message: "two"})

	assert.Equal(t, "one", (<-ch).Message)
	assert.Equal(t, "two", (<-ch).Message)

	stop()
	stop()
	b.close()
	b.publish(ProgressEvent{Message: "late"})

	replay, _ := b.subscribe()
	var msgs []string
	for ev := range replay {
		msgs = append(msgs, ev.Message)
	}
	assert.Equal(t, []string{"one", "two"}, msgs)
}

func TestKeyedLock(t *testing.T) {
	var l keyedLock
	key, a, b := uuid.New(), uuid.New(), uuid.New()

	assert.True(t, l.tryAcquire(key, a))
	assert.False(t, l.tryAcquire(key, b))
	l.release(key, b)
	assert.False(t, l.tryAcquire(key, b), "only the owner releases")
	l.release(key, a)
	assert.True(t, l.tryAcquire(key, b))
}

func TestPlanDiff(t *testing.T) {
	rec := &types.PlanRecord{ID: uuid.New(), Version: 1, Plan: types.Plan{BuildMode: types.BuildModeInHouse}, UpdatedAt: time.Now()}
	same, err := PlanDiff(rec, rec)
	require.NoError(t, err)
	assert.Empty(t, same)

	next := *rec
	next.Version = 2
	next.Plan.BuildMode = types.BuildModeOutSourced
	diff, err := PlanDiff(rec, &next)
	require.NoError(t, err)
	assert.Contains(t, diff, `-  "buildMode": "in-house"`)
	assert.Contains(t, diff, `+  "buildMode": "out-sourced"`)
}
