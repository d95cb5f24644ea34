package types

// Priority is an Eisenhower-style task priority.
type Priority string

// Priority values
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Task is one actionable item of the action plan.
// Dependencies reference other task IDs of the same plan; they are advisory and checked post-hoc.
type Task struct {
	ID                string   `json:"id" validate:"required"`
	Title             string   `json:"title" validate:"required"`
	Description       string   `json:"description" validate:"required"`
	Category          string   `json:"category" validate:"required"`
	Completed         bool     `json:"completed"`
	HumanContribution string   `json:"humanContribution,omitempty"`
	Priority          Priority `json:"priority,omitempty" validate:"omitempty,oneof=High Medium Low"`
	StartDate         string   `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string   `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Dependencies      []string `json:"dependencies,omitempty"`
}

// TaskCategory groups tasks under a heading (Marketing, Operations, ...).
type TaskCategory struct {
	CategoryTitle string `json:"categoryTitle" validate:"required"`
	Tasks         []Task `json:"tasks" validate:"dive"`
}

// CriticalPath names the most schedule-constraining task by title.
type CriticalPath struct {
	TaskTitle    string `json:"taskTitle" validate:"required"`
	TimeEstimate string `json:"timeEstimate" validate:"required"`
}

// BusinessModelCanvas holds the nine standard canvas sections.
type BusinessModelCanvas struct {
	KeyPartners           []string `json:"keyPartners"`
	KeyActivities         []string `json:"keyActivities"`
	KeyResources          []string `json:"keyResources"`
	ValuePropositions     []string `json:"valuePropositions"`
	CustomerRelationships []string `json:"customerRelationships"`
	Channels              []string `json:"channels"`
	CustomerSegments      []string `json:"customerSegments"`
	CostStructure         []string `json:"costStructure"`
	RevenueStreams        []string `json:"revenueStreams"`
}

// CostItem is a capital or operational expenditure line.
type CostItem struct {
	Item          string `json:"item" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Justification string `json:"justification"`
}

// InvestmentOption is a suggested funding route.
type InvestmentOption struct {
	Type        string `json:"type" validate:"required"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// Financials holds the cost estimate and investment options of a plan.
type Financials struct {
	Capex             []CostItem         `json:"capex" validate:"dive"`
	Opex              []CostItem         `json:"opex" validate:"dive"`
	InvestmentOptions []InvestmentOption `json:"investmentOptions" validate:"dive"`
}

// ActionPlan is the output of the task extraction stage.
// Which optional sections are populated depends on the pinned contract version.
type ActionPlan struct {
	Categories          []TaskCategory       `json:"actionPlan" validate:"min=1,dive"`
	CriticalPath        *CriticalPath        `json:"criticalPath,omitempty"`
	BusinessModelCanvas *BusinessModelCanvas `json:"businessModelCanvas,omitempty"`
	Financials          *Financials          `json:"financials,omitempty"`
}

// Tasks returns every task of the plan in category order.
func (p *ActionPlan) Tasks() []Task {
	var tasks []Task
	for _, c := range p.Categories {
		tasks = append(tasks, c.Tasks...)
	}
	return tasks
}

// FindTask returns a pointer to the task with the given ID so it can be updated in place.
func (p *ActionPlan) FindTask(id string) *Task {
	for ci := range p.Categories {
		for ti := range p.Categories[ci].Tasks {
			if p.Categories[ci].Tasks[ti].ID == id {
				return &p.Categories[ci].Tasks[ti]
			}
		}
	}
	return nil
}

// Progress returns the percentage of completed tasks, rounded down.
func (p *ActionPlan) Progress() int {
	tasks := p.Tasks()
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	return done * 100 / len(tasks)
}
