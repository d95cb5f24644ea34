package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/venture-planner/internal/generation"
)

var (
	// ErrRunInProgress is returned when another run already owns the opportunity.
	ErrRunInProgress = errors.New("a run for this opportunity is already in progress")
	// ErrBuildModeAlreadySelected is returned by a second build-mode selection on the same run.
	ErrBuildModeAlreadySelected = errors.New("build mode already selected for this run")
	// ErrOpportunityAlreadySelected is returned by a second opportunity selection on the same run.
	ErrOpportunityAlreadySelected = errors.New("opportunity already selected for this run")
	// ErrNotAwaitingSelection is returned when a selection arrives in a state that does not accept it.
	ErrNotAwaitingSelection = errors.New("run is not awaiting this selection")
	// ErrBuildModeTimeout is the cause recorded when nobody selects a build mode in time.
	ErrBuildModeTimeout = errors.New("timed out waiting for build mode selection")
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrUnknownOpportunity is returned when a selected opportunity is not part of the run's discovery.
	ErrUnknownOpportunity = errors.New("opportunity is not part of the discovery")
	// ErrInvalidStart is returned when a start request names zero or several opportunity sources.
	ErrInvalidStart = errors.New("exactly one of opportunity, discovery id or discovery input is required")
)

// Kinds added by the orchestrator on top of the generation error kinds.
const (
	KindCancelled  generation.ErrorKind = "cancelled"
	KindTimeout    generation.ErrorKind = "timeout"
	KindDependency generation.ErrorKind = "dependency"
	KindPersist    generation.ErrorKind = "persist"
)

// StageError records which stage failed a run, in which state, and why.
type StageError struct {
	Stage string
	State State
	Kind  generation.ErrorKind
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed in state %s (%s): %v", e.Stage, e.State, e.Kind, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// stageError wraps err for stage, classifying it. Existing StageErrors pass through.
func stageError(stage string, state State, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	kind := generation.Classify(err)
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrBuildModeTimeout):
		kind = KindTimeout
	}
	return &StageError{Stage: stage, State: state, Kind: kind, Cause: err}
}
