package stages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/prompts"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

// opportunityWire is an opportunity as the model writes it, before an ID is assigned.
type opportunityWire struct {
	Name        string `json:"opportunityName" validate:"required"`
	Description string `json:"description" validate:"required"`
	Potential   string `json:"potential" validate:"required"`
	Risk        string `json:"risk" validate:"required"`
	QuickReturn string `json:"quickReturn" validate:"required"`
	Priority    string `json:"priority" validate:"required,score10"`
}

type discoverOutput struct {
	Opportunities []opportunityWire `json:"opportunities" validate:"min=1,dive"`
}

// Discover frames business opportunities from free-form material.
// Every returned opportunity gets a fresh ID.
func (r *Runner) Discover(ctx context.Context, in types.DiscoveryInput) ([]types.Opportunity, error) {
	data := map[string]string{
		"UserInterests": orNone(in.UserInterests),
		"MarketTrends":  orNone(in.MarketTrends),
		"Context":       orNone(in.Context),
	}
	var out discoverOutput
	if err := r.run(ctx, schemas.StageDiscover, prompts.MustGet("discovery.json", "discover-opportunities"), data, in, &out); err != nil {
		return nil, err
	}

	opps := make([]types.Opportunity, 0, len(out.Opportunities))
	for _, w := range out.Opportunities {
		opps = append(opps, types.Opportunity{
			ID:          uuid.New(),
			Name:        w.Name,
			Description: w.Description,
			Potential:   w.Potential,
			Risk:        w.Risk,
			QuickReturn: w.QuickReturn,
			Priority:    strings.TrimSpace(w.Priority),
		})
	}
	return opps, nil
}

// RankInput is the input of the ranking stage.
type RankInput struct {
	Opportunities []types.Opportunity `validate:"min=1,dive"`
	Focus         string
}

type rankedWire struct {
	opportunityWire
	Rank      int    `json:"rank" validate:"min=1"`
	Rationale string `json:"rationale" validate:"required"`
}

type rankOutput struct {
	Ranked []rankedWire `json:"rankedOpportunities" validate:"min=1,dive"`
}

// Rank orders opportunities against a strategic focus. The result holds every input
// opportunity exactly once, keeps their IDs, and is sorted by rank.
func (r *Runner) Rank(ctx context.Context, in RankInput) ([]types.RankedOpportunity, error) {
	if in.Focus == "" {
		in.Focus = types.DefaultRankingFocus
	}

	var list strings.Builder
	for _, o := range in.Opportunities {
		fmt.Fprintf(&list, "- **%s**: %s\n  - Potential: %s\n  - Risk: %s\n  - Quick return: %s\n  - Initial priority: %s\n",
			o.Name, o.Description, o.Potential, o.Risk, o.QuickReturn, o.Priority)
	}
	data := map[string]string{
		"Focus":         in.Focus,
		"Count":         strconv.Itoa(len(in.Opportunities)),
		"Opportunities": strings.TrimRight(list.String(), "\n"),
	}

	var out rankOutput
	if err := r.run(ctx, schemas.StageRank, prompts.MustGet("ranking.json", "rank-opportunities"), data, in, &out); err != nil {
		return nil, err
	}

	ranked, err := matchRanked(in.Opportunities, out.Ranked)
	if err == nil {
		err = types.CheckRankPermutation(ranked, len(in.Opportunities))
	}
	if err != nil {
		contract, _ := r.contract(schemas.StageRank)
		return nil, &generation.OutputValidationError{Stage: schemas.StageRank, Contract: contract.Name(), Cause: err}
	}
	types.SortByRank(ranked)
	return ranked, nil
}

// matchRanked pairs each ranked entry with an input opportunity of the same name.
// Names are compared case-insensitively; each input can be claimed once.
func matchRanked(inputs []types.Opportunity, ranked []rankedWire) ([]types.RankedOpportunity, error) {
	pending := make(map[string][]int)
	for i, o := range inputs {
		key := nameKey(o.Name)
		pending[key] = append(pending[key], i)
	}

	claimed := make([]bool, len(inputs))
	out := make([]types.RankedOpportunity, 0, len(ranked))
	for _, w := range ranked {
		key := nameKey(w.Name)
		idx := pending[key]
		if len(idx) == 0 {
			return nil, fmt.Errorf("ranked opportunity %q does not match any input opportunity", w.Name)
		}
		pending[key] = idx[1:]
		claimed[idx[0]] = true
		out = append(out, types.RankedOpportunity{
			Opportunity: inputs[idx[0]],
			Rank:        w.Rank,
			Rationale:   w.Rationale,
		})
	}
	for i, ok := range claimed {
		if !ok {
			return nil, fmt.Errorf("opportunity %q is missing from the ranking", inputs[i].Name)
		}
	}
	return out, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none provided)"
	}
	return s
}
