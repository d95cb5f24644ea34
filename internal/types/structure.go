package types

// MarketAnalysis is the output of the market analysis stage.
type MarketAnalysis struct {
	DemandForecast       string `json:"demandForecast" validate:"required"`
	CompetitiveLandscape string `json:"competitiveLandscape" validate:"required"`
	PotentialRevenue     string `json:"potentialRevenue" validate:"required"`
}

// Summary flattens the analysis into the single string the strategy stage consumes.
func (m MarketAnalysis) Summary() string {
	return "Demand: " + m.DemandForecast +
		", Competition: " + m.CompetitiveLandscape +
		", Revenue: " + m.PotentialRevenue
}

// Role is a named position with a short description of its responsibility.
type Role struct {
	Role        string `json:"role" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// StaffPersona is an AI persona working inside a department.
type StaffPersona struct {
	Role    string `json:"role" validate:"required"`
	Persona string `json:"persona" validate:"required"`
}

// Department is one AI-powered department of the organisation.
type Department struct {
	Name          string         `json:"name" validate:"required"`
	Function      string         `json:"function" validate:"required"`
	AIIntegration string         `json:"aiIntegration" validate:"required"`
	Staff         []StaffPersona `json:"staff" validate:"dive"`
	KPIs          []string       `json:"kpis,omitempty"`
}

// OKR is an objective with its measurable key results.
type OKR struct {
	Objective  string   `json:"objective" validate:"required"`
	KeyResults []string `json:"keyResults" validate:"min=1"`
}

// Phase is one ordered phase of the project management framework.
type Phase struct {
	PhaseName     string   `json:"phaseName" validate:"required"`
	Description   string   `json:"description" validate:"required"`
	KeyActivities []string `json:"keyActivities"`
}

// ProjectFramework describes the methodology and phases used to realise the plan.
type ProjectFramework struct {
	Methodology string  `json:"methodology" validate:"required"`
	Phases      []Phase `json:"phases" validate:"min=1,dive"`
}

// BusinessStructure is the organisational design produced by the structure stage.
// OKRs and department KPIs are only present from contract version 2.
type BusinessStructure struct {
	Commander                  string           `json:"commander" validate:"required"`
	OKRs                       []OKR            `json:"okrs,omitempty" validate:"dive"`
	CLevelBoard                []Role           `json:"cLevelBoard" validate:"min=1,dive"`
	AdvisoryCouncil            []Role           `json:"advisoryCouncil" validate:"dive"`
	AICore                     string           `json:"aiCore" validate:"required"`
	Departments                []Department     `json:"departments" validate:"min=1,dive"`
	ProjectManagementFramework ProjectFramework `json:"projectManagementFramework"`
}
