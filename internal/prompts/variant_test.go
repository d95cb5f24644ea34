package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

func TestVariantFor(t *testing.T) {
	assert.Equal(t, VariantInHouse, VariantFor(types.BuildModeInHouse))
	assert.Equal(t, VariantOutSourced, VariantFor(types.BuildModeOutSourced))
	assert.Equal(t, VariantAgnostic, VariantFor(""))
}

func TestStrategyTemplate_Variants(t *testing.T) {
	agnostic, err := StrategyTemplate.Build(VariantAgnostic)
	require.NoError(t, err)
	inHouse, err := StrategyTemplate.Build(VariantInHouse)
	require.NoError(t, err)
	outSourced, err := StrategyTemplate.Build(VariantOutSourced)
	require.NoError(t, err)

	for _, p := range []string{agnostic, inHouse, outSourced} {
		assert.NotContains(t, p, "{{.ModeSection}}")
		assert.Contains(t, p, "{{.MarketAnalysis}}")
	}
	assert.Contains(t, agnostic, "No build mode has been chosen")
	assert.Contains(t, inHouse, "In-house build mode")
	assert.NotContains(t, inHouse, "Out-sourced build mode")
	assert.Contains(t, outSourced, "Out-sourced build mode")
	assert.Contains(t, outSourced, "supplier database")
	assert.NotContains(t, outSourced, "In-house build mode")
}

func TestTasksTemplate_Variants(t *testing.T) {
	variants, err := TasksTemplate.Variants()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Variant{VariantInHouse, VariantOutSourced}, variants)

	outSourced, err := TasksTemplate.Build(VariantOutSourced)
	require.NoError(t, err)
	assert.Contains(t, outSourced, "Out-sourced focus")
	assert.Contains(t, outSourced, "supplier discovery")

	inHouse, err := TasksTemplate.Build(VariantInHouse)
	require.NoError(t, err)
	assert.Contains(t, inHouse, "In-house focus")
	assert.NotContains(t, inHouse, "Out-sourced focus")

	_, err = TasksTemplate.Build(VariantAgnostic)
	require.Error(t, err, "the action plan always needs a build mode")
}

func TestOutputFormat(t *testing.T) {
	c, err := schemas.Lookup(schemas.StageExecutiveBrief, 1)
	require.NoError(t, err)

	out := OutputFormat(c)
	assert.Contains(t, out, "Respond with a single JSON object")
	assert.Contains(t, out, `"viabilityScore" (integer, between 1 and 10, required)`)
	assert.Contains(t, out, `"keyStrengths" (array of string, exactly 3 items, required)`)
	assert.Contains(t, out, "one of: High | Medium | Low")
}
