package stages

import (
	"context"

	"github.com/jonathan/venture-planner/internal/prompts"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

// MarketInput is the input of the market analysis stage.
type MarketInput struct {
	OpportunityDescription string `validate:"required"`
}

// AnalyzeMarket forecasts demand, competition and revenue for an opportunity.
func (r *Runner) AnalyzeMarket(ctx context.Context, in MarketInput) (*types.MarketAnalysis, error) {
	data := map[string]string{"OpportunityDescription": in.OpportunityDescription}
	var out types.MarketAnalysis
	if err := r.run(ctx, schemas.StageAnalyzeMarket, prompts.MustGet("market.json", "analyze-market"), data, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StructureInput is the input of the business structure stage.
type StructureInput struct {
	OpportunityName        string `validate:"required"`
	OpportunityDescription string `validate:"required"`
}

// GenerateStructure designs the organisation of the automated business.
func (r *Runner) GenerateStructure(ctx context.Context, in StructureInput) (*types.BusinessStructure, error) {
	data := map[string]string{
		"OpportunityName":        in.OpportunityName,
		"OpportunityDescription": in.OpportunityDescription,
	}
	var out types.BusinessStructure
	if err := r.run(ctx, schemas.StageGenerateStructure, prompts.MustGet("structure.json", "generate-structure"), data, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StrategyInput is the input of the strategy stage. MarketAnalysis is the
// flattened analysis produced by types.MarketAnalysis.Summary.
type StrategyInput struct {
	MarketAnalysis string          `validate:"required"`
	BuildMode      types.BuildMode `validate:"omitempty,oneof=in-house out-sourced"`
}

type strategyOutput struct {
	Strategy types.BusinessStrategy `json:"businessStrategy"`
}

// BuildStrategy writes the business strategy, tailored to a build mode when one is given.
func (r *Runner) BuildStrategy(ctx context.Context, in StrategyInput) (*types.BusinessStrategy, error) {
	template, err := prompts.StrategyTemplate.Build(prompts.VariantFor(in.BuildMode))
	if err != nil {
		return nil, err
	}
	data := map[string]string{"MarketAnalysis": in.MarketAnalysis}
	var out strategyOutput
	if err := r.run(ctx, schemas.StageBuildStrategy, template, data, in, &out); err != nil {
		return nil, err
	}
	return &out.Strategy, nil
}

// AdviceInput is the input of the build-mode advice stage.
type AdviceInput struct {
	Strategy types.BusinessStrategy
}

// BuildModeAdvice compares executing the strategy in-house and out-sourced.
func (r *Runner) BuildModeAdvice(ctx context.Context, in AdviceInput) (*types.BuildModeAdvice, error) {
	var out types.BuildModeAdvice
	if err := r.run(ctx, schemas.StageBuildModeAdvice, prompts.MustGet("advice.json", "build-mode-advice"), strategyData(in.Strategy), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChartInput is the input of the chart data stage.
type ChartInput struct {
	FinancialForecasts string `validate:"required"`
}

type chartOutput struct {
	ChartData []types.ChartPoint `json:"chartData" validate:"len=12,dive"`
}

// ChartData extracts twelve months of projected revenue from a financial forecast.
func (r *Runner) ChartData(ctx context.Context, in ChartInput) ([]types.ChartPoint, error) {
	data := map[string]string{"FinancialForecasts": in.FinancialForecasts}
	var out chartOutput
	if err := r.run(ctx, schemas.StageChartData, prompts.MustGet("chart.json", "chart-data"), data, in, &out); err != nil {
		return nil, err
	}
	return out.ChartData, nil
}

func strategyData(s types.BusinessStrategy) map[string]string {
	return map[string]string{
		"MarketingTactics":     s.MarketingTactics,
		"OperationalWorkflows": s.OperationalWorkflows,
		"FinancialForecasts":   s.FinancialForecasts,
	}
}
