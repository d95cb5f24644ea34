// Package stages implements the pipeline stages. Each stage renders one prompt,
// makes one contract-checked generation call and returns typed output. Stages keep
// no state between calls.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/llm"
	"github.com/jonathan/venture-planner/internal/prompts"
	"github.com/jonathan/venture-planner/internal/schemas"
)

// stageTiers picks the model tier per stage. Long-form planning gets the advanced tier.
var stageTiers = map[schemas.Stage]llm.ModelTier{
	schemas.StageDiscover:           llm.TierStandard,
	schemas.StageRank:               llm.TierStandard,
	schemas.StageAnalyzeMarket:      llm.TierStandard,
	schemas.StageGenerateStructure:  llm.TierAdvanced,
	schemas.StageBuildStrategy:      llm.TierAdvanced,
	schemas.StageBuildModeAdvice:    llm.TierStandard,
	schemas.StageChartData:          llm.TierLite,
	schemas.StageExtractTasks:       llm.TierAdvanced,
	schemas.StageExecutiveBrief:     llm.TierStandard,
	schemas.StagePrioritizeVentures: llm.TierStandard,
}

// Runner executes stages against a generator with a fixed set of contract pins.
type Runner struct {
	Gen  *generation.Generator
	Pins schemas.Pins
	// Model forces one model for every stage; empty uses the per-stage tier.
	Model  string
	Safety []llm.SafetySetting
	Now    func() time.Time
}

// NewRunner creates a Runner pinned to the latest contracts.
func NewRunner(gen *generation.Generator) *Runner {
	return &Runner{Gen: gen, Pins: schemas.LatestPins(), Now: time.Now}
}

// WithPins returns a copy of the runner using the given pins.
func (r *Runner) WithPins(pins schemas.Pins) *Runner {
	cp := *r
	cp.Pins = pins
	return &cp
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) contract(stage schemas.Stage) (*schemas.Contract, error) {
	pins := r.Pins
	if pins == nil {
		pins = schemas.LatestPins()
	}
	return pins.Contract(stage)
}

// run renders template with data plus the contract's output section and performs the call.
func (r *Runner) run(ctx context.Context, stage schemas.Stage, template string, data map[string]string, input, out any) error {
	contract, err := r.contract(stage)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]string{}
	}
	data["OutputFormat"] = prompts.OutputFormat(contract)

	prompt, err := prompts.Render(template, data)
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}

	return r.Gen.Call(ctx, generation.Call{
		Stage:    stage,
		Prompt:   prompt,
		Input:    input,
		Contract: contract,
		Tier:     stageTiers[stage],
		Model:    r.Model,
		Safety:   r.Safety,
	}, out)
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
