package schemas

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllContracts_CompileAndDescribe(t *testing.T) {
	for _, stage := range AllStages() {
		versions := Versions(stage)
		require.NotEmpty(t, versions, "stage %s has no contracts", stage)
		for _, v := range versions {
			c, err := Lookup(stage, v)
			require.NoError(t, err)
			t.Run(c.Name(), func(t *testing.T) {
				var doc map[string]any
				require.NoError(t, json.Unmarshal([]byte(c.Source), &doc))
				assert.Equal(t, "object", doc["type"])

				// an empty object must be rejected by every contract
				err := c.Validate(`{}`)
				require.Error(t, err)
				_, ok := err.(*ValidationError)
				assert.True(t, ok, "expected ValidationError, got %T: %v", err, err)

				assert.NotEmpty(t, c.Outline())
			})
		}
	}
}

func TestVersions_ExtractTasksEvolution(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Versions(StageExtractTasks))
	assert.Equal(t, []int{1, 2}, Versions(StageGenerateStructure))

	v3, err := Lookup(StageExtractTasks, 3)
	require.NoError(t, err)
	assert.NotContains(t, v3.Outline(), "criticalPath")
	assert.Contains(t, v3.Outline(), "dependencies")

	v5, err := Latest(StageExtractTasks)
	require.NoError(t, err)
	assert.Equal(t, 5, v5.Version)
	assert.Contains(t, v5.Outline(), "financials")
	assert.Contains(t, v5.Outline(), "one of: High | Medium | Low")
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("summon-unicorn", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")

	_, err = Lookup(StageRank, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no contract version 9")
}

const briefJSON = `{
	"viabilityScore": %s,
	"keyStrengths": [%s],
	"potentialRisks": ["a", "b", "c"],
	"timeToBreakeven": "6 months",
	"roiPotential": "%s",
	"strategicRecommendation": "Go."
}`

func brief(score, strengths, roi string) string {
	return fmt.Sprintf(briefJSON, score, strengths, roi)
}

func TestExecutiveBriefContract(t *testing.T) {
	c, err := Latest(StageExecutiveBrief)
	require.NoError(t, err)

	assert.NoError(t, c.Validate(brief("7", `"x", "y", "z"`, "High")))
	assert.Error(t, c.Validate(brief("7", `"x", "y", "z", "w"`, "High")), "four strengths must be rejected")
	assert.Error(t, c.Validate(brief("7", `"x", "y"`, "High")), "two strengths must be rejected")
	assert.Error(t, c.Validate(brief("11", `"x", "y", "z"`, "High")))
	assert.Error(t, c.Validate(brief("0", `"x", "y", "z"`, "High")))
	assert.Error(t, c.Validate(brief("7", `"x", "y", "z"`, "Stellar")))
}

func TestExtractTasksContract_CriticalPathPattern(t *testing.T) {
	c, err := Lookup(StageExtractTasks, 4)
	require.NoError(t, err)

	doc := func(estimate string) string {
		return `{
			"actionPlan": [{"categoryTitle": "Ops", "tasks": [{
				"id": "OPS-01", "title": "t", "description": "d", "category": "Operations", "completed": false,
				"humanContribution": "approve", "priority": "High", "startDate": "2025-01-01", "endDate": "2025-01-05",
				"dependencies": []
			}]}],
			"criticalPath": {"taskTitle": "t", "timeEstimate": "` + estimate + `"},
			"businessModelCanvas": {"keyPartners": [], "keyActivities": [], "keyResources": [], "valuePropositions": [],
				"customerRelationships": [], "channels": [], "customerSegments": [], "costStructure": [], "revenueStreams": []}
		}`
	}

	for _, ok := range []string{"3 weeks", "10-14 days", "1 day", "2week"} {
		assert.NoError(t, c.Validate(doc(ok)), ok)
	}
	for _, bad := range []string{"about a month", "3 months", "weeks"} {
		assert.Error(t, c.Validate(doc(bad)), bad)
	}
}

func TestContract_ValidateMalformedJSON(t *testing.T) {
	c, err := Latest(StageAnalyzeMarket)
	require.NoError(t, err)

	err = c.Validate(`{"demandForecast": `)
	require.Error(t, err)
	_, ok := err.(*ValidationError)
	assert.True(t, ok)
}

func TestPins(t *testing.T) {
	pins := LatestPins()
	assert.Equal(t, 5, pins[StageExtractTasks])
	assert.Equal(t, 2, pins[StageGenerateStructure])
	require.NoError(t, pins.Check())

	older := pins.With(map[Stage]int{StageExtractTasks: 3})
	assert.Equal(t, 3, older[StageExtractTasks])
	assert.Equal(t, 5, pins[StageExtractTasks], "With must not mutate the receiver")

	c, err := older.Contract(StageExtractTasks)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Version)

	restored := PinsFromRecord(older.Record())
	assert.Equal(t, older, restored)

	bad := pins.With(map[Stage]int{StageRank: 7})
	assert.Error(t, bad.Check())
}
