// Package steps declares the pipeline steps, their categories and dependencies,
// and answers which steps of a run are available or blocked.
package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	dbpkg "github.com/jonathan/venture-planner/internal/db"
	"github.com/jonathan/venture-planner/internal/schemas"
)

// Step categories
const (
	CategoryDiscovery = "discovery"
	CategoryAnalysis  = "analysis"
	CategoryStrategy  = "strategy"
	CategoryAdvice    = "advice"
	CategoryDecision  = "decision"
	CategoryFinalize  = "finalize"
)

// SelectBuildMode is the user decision step between advising and finalizing.
const SelectBuildMode = "select-build-mode"

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
	Optional     []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	string(schemas.StageDiscover): {
		Name:     string(schemas.StageDiscover),
		Category: CategoryDiscovery,
	},
	string(schemas.StageRank): {
		Name:         string(schemas.StageRank),
		Category:     CategoryDiscovery,
		Dependencies: []string{string(schemas.StageDiscover)},
	},
	string(schemas.StageAnalyzeMarket): {
		Name:     string(schemas.StageAnalyzeMarket),
		Category: CategoryAnalysis,
		Optional: []string{string(schemas.StageRank)},
	},
	string(schemas.StageGenerateStructure): {
		Name:     string(schemas.StageGenerateStructure),
		Category: CategoryAnalysis,
		Optional: []string{string(schemas.StageRank)},
	},
	string(schemas.StageBuildStrategy): {
		Name:         string(schemas.StageBuildStrategy),
		Category:     CategoryStrategy,
		Dependencies: []string{string(schemas.StageAnalyzeMarket)},
		Optional:     []string{string(schemas.StageGenerateStructure)},
	},
	string(schemas.StageBuildModeAdvice): {
		Name:         string(schemas.StageBuildModeAdvice),
		Category:     CategoryAdvice,
		Dependencies: []string{string(schemas.StageBuildStrategy)},
	},
	string(schemas.StageChartData): {
		Name:         string(schemas.StageChartData),
		Category:     CategoryAdvice,
		Dependencies: []string{string(schemas.StageBuildStrategy)},
	},
	SelectBuildMode: {
		Name:         SelectBuildMode,
		Category:     CategoryDecision,
		Dependencies: []string{string(schemas.StageBuildModeAdvice), string(schemas.StageChartData)},
	},
	string(schemas.StageExtractTasks): {
		Name:         string(schemas.StageExtractTasks),
		Category:     CategoryFinalize,
		Dependencies: []string{string(schemas.StageBuildStrategy), SelectBuildMode},
	},
	string(schemas.StageExecutiveBrief): {
		Name:         string(schemas.StageExecutiveBrief),
		Category:     CategoryFinalize,
		Dependencies: []string{string(schemas.StageAnalyzeMarket), string(schemas.StageBuildStrategy), string(schemas.StageExtractTasks)},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// Statuses maps step names to a db.StepStatus* value. Absent steps have not started.
type Statuses map[string]string

// ValidateDependencies checks if all required dependencies for a step are completed
func ValidateDependencies(statuses Statuses, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if statuses[dep] != dbpkg.StepStatusCompleted {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &DependencyError{Step: stepName, MissingDependencies: missing}
	}
	return nil
}

// Available returns the steps whose dependencies are met and that have not started, finished or been skipped, sorted.
func Available(statuses Statuses) []string {
	var available []string
	for name := range StepRegistry {
		if settled(statuses[name]) {
			continue
		}
		if ValidateDependencies(statuses, name) == nil {
			available = append(available, name)
		}
	}
	sort.Strings(available)
	return available
}

func settled(status string) bool {
	return status == dbpkg.StepStatusCompleted || status == dbpkg.StepStatusInProgress || status == dbpkg.StepStatusSkipped
}

// Blocked returns the unfinished steps whose dependencies are not met, sorted.
func Blocked(statuses Statuses) []string {
	var blocked []string
	for name := range StepRegistry {
		if settled(statuses[name]) {
			continue
		}
		if ValidateDependencies(statuses, name) != nil {
			blocked = append(blocked, name)
		}
	}
	sort.Strings(blocked)
	return blocked
}

// CheckOrder verifies that running groups in sequence satisfies every dependency:
// each step's dependencies must belong to an earlier group. Steps within a group run in parallel.
func CheckOrder(groups [][]string) error {
	done := make(Statuses)
	for _, group := range groups {
		for _, name := range group {
			if err := ValidateDependencies(done, name); err != nil {
				return err
			}
		}
		for _, name := range group {
			done[name] = dbpkg.StepStatusCompleted
		}
	}
	return nil
}

// StepLister is the part of the database needed to load recorded step statuses.
type StepLister interface {
	ListRunSteps(ctx context.Context, runID uuid.UUID, status *string) ([]dbpkg.RunStep, error)
}

// LoadStatuses reads the recorded statuses of a run.
func LoadStatuses(ctx context.Context, db StepLister, runID uuid.UUID) (Statuses, error) {
	recorded, err := db.ListRunSteps(ctx, runID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of run %s: %w", runID, err)
	}
	statuses := make(Statuses, len(recorded))
	for _, s := range recorded {
		statuses[s.Step] = s.Status
	}
	return statuses, nil
}
