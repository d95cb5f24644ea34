package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jonathan/venture-planner/internal/types"
)

// PlanDiff renders a unified diff between the plan sections of two records.
// An empty string means the plans are identical.
func PlanDiff(before, after *types.PlanRecord) (string, error) {
	a, err := snapshot(before)
	if err != nil {
		return "", err
	}
	b, err := snapshot(after)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fmt.Sprintf("plan@v%d", before.Version),
		ToFile:   fmt.Sprintf("plan@v%d", after.Version),
		Context:  3,
	})
}

func snapshot(rec *types.PlanRecord) (string, error) {
	data, err := json.MarshalIndent(rec.Plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to snapshot plan %s: %w", rec.ID, err)
	}
	return string(data) + "\n", nil
}
