package types

// ExecutiveBrief is the investor-facing summary of a complete plan.
type ExecutiveBrief struct {
	ViabilityScore          int      `json:"viabilityScore" validate:"min=1,max=10"`
	KeyStrengths            []string `json:"keyStrengths" validate:"len=3,dive,required"`
	PotentialRisks          []string `json:"potentialRisks" validate:"len=3,dive,required"`
	TimeToBreakeven         string   `json:"timeToBreakeven" validate:"required"`
	ROIPotential            Priority `json:"roiPotential" validate:"required,oneof=High Medium Low"`
	StrategicRecommendation string   `json:"strategicRecommendation" validate:"required"`
}
