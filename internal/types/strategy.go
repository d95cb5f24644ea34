package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBuildMode is wrapped by ParseBuildMode for unknown modes.
var ErrInvalidBuildMode = errors.New("invalid build mode")

// BuildMode selects how the business will be built.
type BuildMode string

const (
	// BuildModeInHouse builds capabilities with an internal team.
	BuildModeInHouse BuildMode = "in-house"
	// BuildModeOutSourced orchestrates external freelancers, agencies and services.
	BuildModeOutSourced BuildMode = "out-sourced"
)

// ParseBuildMode parses a user supplied build mode. Underscores and case are tolerated.
func ParseBuildMode(s string) (BuildMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", "-")))
	switch BuildMode(normalized) {
	case BuildModeInHouse, BuildModeOutSourced:
		return BuildMode(normalized), nil
	case "inhouse":
		return BuildModeInHouse, nil
	case "outsourced":
		return BuildModeOutSourced, nil
	}
	return "", fmt.Errorf("%w %q: must be %q or %q", ErrInvalidBuildMode, s, BuildModeInHouse, BuildModeOutSourced)
}

// Valid reports whether m is a known build mode.
func (m BuildMode) Valid() bool {
	return m == BuildModeInHouse || m == BuildModeOutSourced
}

// BusinessStrategy is the output of the strategy stage.
type BusinessStrategy struct {
	MarketingTactics     string `json:"marketingTactics" validate:"required"`
	OperationalWorkflows string `json:"operationalWorkflows" validate:"required"`
	FinancialForecasts   string `json:"financialForecasts" validate:"required"`
}

// ModeAdvice is the cost/resource/recommendation triple for one build mode.
type ModeAdvice struct {
	CostBenefitAnalysis     string `json:"costBenefitAnalysis" validate:"required"`
	ResourceMetrics         string `json:"resourceMetrics" validate:"required"`
	StrategicRecommendation string `json:"strategicRecommendation" validate:"required"`
}

// BuildModeAdvice compares both build modes independently of the one finally chosen.
type BuildModeAdvice struct {
	InHouse    ModeAdvice `json:"inHouse"`
	OutSourced ModeAdvice `json:"outSourced"`
}

// ChartPoint is one month of projected revenue.
type ChartPoint struct {
	Month   string `json:"month" validate:"required,len=3"`
	Revenue int    `json:"revenue" validate:"min=0"`
}

// TotalRevenue sums the projected revenue of all points.
func TotalRevenue(points []ChartPoint) int {
	total := 0
	for _, p := range points {
		total += p.Revenue
	}
	return total
}

// VenturePriorities is the free-text output of the venture prioritization flow.
type VenturePriorities struct {
	PrioritizedVentures string `json:"prioritizedVentures" validate:"required"`
}

// VentureInput is the input of the venture prioritization flow.
type VentureInput struct {
	MarketData    string `json:"marketData" validate:"required"`
	UserSkills    string `json:"userSkills" validate:"required"`
	RiskTolerance string `json:"riskTolerance" validate:"required"`
}
