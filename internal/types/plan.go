package types

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the aggregate of every stage output for one opportunity.
// Sections are nil until the stage producing them has been committed.
type Plan struct {
	Opportunity      Opportunity        `json:"opportunity"`
	Analysis         *MarketAnalysis    `json:"analysis,omitempty"`
	Structure        *BusinessStructure `json:"structure,omitempty"`
	Strategy         *BusinessStrategy  `json:"strategy,omitempty"`
	BuildModeAdvice  *BuildModeAdvice   `json:"buildModeAdvice,omitempty"`
	ChartData        []ChartPoint       `json:"chartData,omitempty"`
	BuildMode        BuildMode          `json:"buildMode,omitempty"`
	ActionPlan       *ActionPlan        `json:"actionPlan,omitempty"`
	ExecutiveBrief   *ExecutiveBrief    `json:"executiveBrief,omitempty"`
	ContractVersions map[string]int     `json:"contractVersions,omitempty"`
	Findings         []Finding          `json:"findings,omitempty"`
}

// Foundational reports whether every stage before the build-mode decision has been committed.
func (p *Plan) Foundational() bool {
	return p.Analysis != nil && p.Structure != nil && p.Strategy != nil &&
		p.BuildModeAdvice != nil && p.ChartData != nil
}

// Complete reports whether every section of the plan is present.
func (p *Plan) Complete() bool {
	return p.Foundational() && p.BuildMode.Valid() && p.ActionPlan != nil && p.ExecutiveBrief != nil
}

// PlanStatus distinguishes a finished plan from an intermediate checkpoint.
type PlanStatus string

// Plan record statuses
const (
	PlanStatusCheckpoint PlanStatus = "checkpoint"
	PlanStatusComplete   PlanStatus = "complete"
)

// PlanRecord is the unit of persistence in the plan store.
// Version starts at 1 on first write and increases by one on every write.
type PlanRecord struct {
	ID        uuid.UUID  `json:"id"`
	Status    PlanStatus `json:"status"`
	Version   int        `json:"version"`
	Plan      Plan       `json:"plan"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// PlanSummary is a lightweight listing entry.
type PlanSummary struct {
	ID              uuid.UUID  `json:"id"`
	OpportunityName string     `json:"opportunityName"`
	Status          PlanStatus `json:"status"`
	BuildMode       BuildMode  `json:"buildMode,omitempty"`
	Progress        int        `json:"progress"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Summarize builds the listing entry for a record.
func (r *PlanRecord) Summarize() PlanSummary {
	s := PlanSummary{
		ID:              r.ID,
		OpportunityName: r.Plan.Opportunity.Name,
		Status:          r.Status,
		BuildMode:       r.Plan.BuildMode,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Plan.ActionPlan != nil {
		s.Progress = r.Plan.ActionPlan.Progress()
	}
	return s
}
