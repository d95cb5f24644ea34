package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *ActionPlan {
	return &ActionPlan{
		Categories: []TaskCategory{
			{
				CategoryTitle: "Operations",
				Tasks: []Task{
					{ID: "OPS-01", Title: "Identify and vet freelance designers on Upwork", Description: "Shortlist suppliers", Category: "Procurement"},
					{ID: "OPS-02", Title: "Quality check listings", Description: "Review before listing", Category: "Quality Assurance", Dependencies: []string{"OPS-01"}},
				},
			},
			{
				CategoryTitle: "Marketing",
				Tasks: []Task{
					{ID: "MKT-01", Title: "Launch Etsy shop", Description: "Multi-channel sales", Category: "Marketing", Dependencies: []string{"OPS-02"}},
				},
			},
		},
		CriticalPath: &CriticalPath{TaskTitle: "Launch Etsy shop", TimeEstimate: "2 weeks"},
	}
}

func TestCheckActionPlan_Clean(t *testing.T) {
	findings := CheckActionPlan(samplePlan(), BuildModeOutSourced)
	assert.Empty(t, findings)
}

func TestCheckActionPlan_DanglingDependency(t *testing.T) {
	plan := samplePlan()
	plan.Categories[1].Tasks[0].Dependencies = append(plan.Categories[1].Tasks[0].Dependencies, "FIN-09")

	findings := CheckActionPlan(plan, BuildModeOutSourced)
	require.Len(t, findings, 1)
	assert.Equal(t, FindingDanglingDependency, findings[0].Code)
	assert.Equal(t, "MKT-01", findings[0].TaskID)
	assert.Contains(t, findings[0].Message, "FIN-09")
}

func TestCheckActionPlan_DuplicateAndSelfDependency(t *testing.T) {
	plan := samplePlan()
	plan.Categories[1].Tasks = append(plan.Categories[1].Tasks, Task{
		ID: "OPS-01", Title: "Duplicate", Description: "d", Category: "Marketing", Dependencies: []string{"OPS-01"},
	})

	findings := CheckActionPlan(plan, BuildModeOutSourced)
	assert.True(t, HasFinding(findings, FindingDuplicateTaskID))
	assert.True(t, HasFinding(findings, FindingSelfDependency))
}

func TestCheckActionPlan_Cycle(t *testing.T) {
	plan := samplePlan()
	plan.Categories[0].Tasks[0].Dependencies = []string{"MKT-01"}

	findings := CheckActionPlan(plan, BuildModeOutSourced)
	require.True(t, HasFinding(findings, FindingDependencyCycle))
	for _, f := range findings {
		if f.Code == FindingDependencyCycle {
			assert.Contains(t, f.Message, "OPS-01")
			assert.Contains(t, f.Message, "MKT-01")
		}
	}
}

func TestCheckActionPlan_CriticalPathAndDates(t *testing.T) {
	plan := samplePlan()
	plan.CriticalPath.TaskTitle = "Hire a CTO"
	plan.Categories[0].Tasks[0].StartDate = "2025-03-10"
	plan.Categories[0].Tasks[0].EndDate = "2025-03-01"

	findings := CheckActionPlan(plan, BuildModeOutSourced)
	assert.True(t, HasFinding(findings, FindingUnknownCriticalPath))
	assert.True(t, HasFinding(findings, FindingDateOrder))
}

func TestCheckActionPlan_BuildModeEmphasis(t *testing.T) {
	plan := &ActionPlan{Categories: []TaskCategory{{
		CategoryTitle: "Marketing",
		Tasks:         []Task{{ID: "MKT-01", Title: "Write blog posts", Description: "SEO content", Category: "Marketing"}},
	}}}

	assert.True(t, HasFinding(CheckActionPlan(plan, BuildModeOutSourced), FindingMissingSupplierTask))
	assert.True(t, HasFinding(CheckActionPlan(plan, BuildModeInHouse), FindingMissingInternalTask))
	assert.Empty(t, CheckActionPlan(plan, ""))
}

func TestCheckActionPlan_Nil(t *testing.T) {
	assert.Nil(t, CheckActionPlan(nil, BuildModeInHouse))
}

func TestExecutionOrder(t *testing.T) {
	plan := &ActionPlan{Categories: []TaskCategory{{
		CategoryTitle: "All",
		Tasks: []Task{
			{ID: "C", Dependencies: []string{"B"}},
			{ID: "A"},
			{ID: "B", Dependencies: []string{"A", "MISSING"}},
		},
	}}}

	order := ExecutionOrder(plan)
	require.Len(t, order, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{order[0].ID, order[1].ID, order[2].ID})
}

func TestExecutionOrder_CycleKeepsAllTasks(t *testing.T) {
	plan := &ActionPlan{Categories: []TaskCategory{{
		CategoryTitle: "All",
		Tasks: []Task{
			{ID: "A", Dependencies: []string{"B"}},
			{ID: "B", Dependencies: []string{"A"}},
			{ID: "C"},
		},
	}}}

	order := ExecutionOrder(plan)
	require.Len(t, order, 3)
	assert.Equal(t, "C", order[0].ID)
}

func TestActionPlan_ProgressAndFindTask(t *testing.T) {
	plan := samplePlan()
	assert.Equal(t, 0, plan.Progress())

	task := plan.FindTask("OPS-02")
	require.NotNil(t, task)
	task.Completed = true
	assert.Equal(t, 33, plan.Progress())
	assert.Nil(t, plan.FindTask("NOPE"))
	assert.Equal(t, 0, (&ActionPlan{}).Progress())
}
