package stages

import (
	"context"
	"time"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/prompts"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

// TasksInput is the input of the action plan stage. The build mode is mandatory.
type TasksInput struct {
	Strategy  types.BusinessStrategy
	BuildMode types.BuildMode `validate:"required,oneof=in-house out-sourced"`
	// Today anchors task dates; zero means the runner's clock.
	Today time.Time
}

// ExtractTasks turns the strategy into an action plan for the chosen build mode.
func (r *Runner) ExtractTasks(ctx context.Context, in TasksInput) (*types.ActionPlan, error) {
	if in.Today.IsZero() {
		in.Today = r.now()
	}
	// the variant depends on the mode, so the mode is checked before the prompt is built
	if err := types.Validate(in); err != nil {
		return nil, &generation.InputValidationError{Stage: schemas.StageExtractTasks, Cause: err}
	}
	template, err := prompts.TasksTemplate.Build(prompts.VariantFor(in.BuildMode))
	if err != nil {
		return nil, err
	}

	data := strategyData(in.Strategy)
	data["BuildMode"] = string(in.BuildMode)
	data["Today"] = in.Today.Format("2006-01-02")

	var out types.ActionPlan
	if err := r.run(ctx, schemas.StageExtractTasks, template, data, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BriefInput is the input of the executive brief stage.
type BriefInput struct {
	OpportunityName        string `validate:"required"`
	OpportunityDescription string `validate:"required"`
	Analysis               types.MarketAnalysis
	Strategy               types.BusinessStrategy
	ActionPlan             *types.ActionPlan `validate:"required"`
}

// ExecutiveBrief condenses a complete plan into an investor-facing brief.
func (r *Runner) ExecutiveBrief(ctx context.Context, in BriefInput) (*types.ExecutiveBrief, error) {
	data := map[string]string{
		"OpportunityName":        in.OpportunityName,
		"OpportunityDescription": in.OpportunityDescription,
		"MarketAnalysis":         toJSON(in.Analysis),
		"BusinessStrategy":       toJSON(in.Strategy),
		"ActionPlan":             toJSON(in.ActionPlan),
	}
	var out types.ExecutiveBrief
	if err := r.run(ctx, schemas.StageExecutiveBrief, prompts.MustGet("brief.json", "executive-brief"), data, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrioritizeVentures ranks online venture types for a person's skills and risk tolerance.
func (r *Runner) PrioritizeVentures(ctx context.Context, in types.VentureInput) (*types.VenturePriorities, error) {
	data := map[string]string{
		"MarketData":    in.MarketData,
		"UserSkills":    in.UserSkills,
		"RiskTolerance": in.RiskTolerance,
	}
	var out types.VenturePriorities
	if err := r.run(ctx, schemas.StagePrioritizeVentures, prompts.MustGet("ventures.json", "prioritize-ventures"), data, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
