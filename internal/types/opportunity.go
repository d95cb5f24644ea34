// Package types provides type definitions for the structured plan data that flows between pipeline stages.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultRankingFocus is used when the caller does not provide a strategic focus.
const DefaultRankingFocus = "Maximum profit potential with minimal risk and fastest time-to-market."

// Opportunity is a business opportunity produced by the discovery stage.
// ID is assigned locally when the opportunity is discovered and is the plan storage key.
type Opportunity struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"opportunityName" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Potential   string    `json:"potential" validate:"required"`
	Risk        string    `json:"risk" validate:"required"`
	QuickReturn string    `json:"quickReturn" validate:"required"`
	Priority    string    `json:"priority" validate:"required,score10"`
}

// RankedOpportunity is an Opportunity placed in a ranking result.
type RankedOpportunity struct {
	Opportunity
	Rank      int    `json:"rank" validate:"min=1"`
	Rationale string `json:"rationale"`
}

// DiscoveryInput is the free-form material opportunities are discovered from.
// At least one field must be set.
type DiscoveryInput struct {
	UserInterests string `json:"userInterests,omitempty" validate:"required_without_all=MarketTrends Context"`
	MarketTrends  string `json:"marketTrends,omitempty" validate:"required_without_all=UserInterests Context"`
	Context       string `json:"context,omitempty" validate:"required_without_all=UserInterests MarketTrends"`
}

// Discovery is a persisted discovery + ranking result. It is the rollback target of a failed run.
type Discovery struct {
	ID            uuid.UUID           `json:"id"`
	Input         DiscoveryInput      `json:"input"`
	Focus         string              `json:"focus"`
	Opportunities []RankedOpportunity `json:"opportunities"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// Find returns the opportunity with the given ID.
func (d *Discovery) Find(id uuid.UUID) (*RankedOpportunity, bool) {
	for i := range d.Opportunities {
		if d.Opportunities[i].ID == id {
			return &d.Opportunities[i], true
		}
	}
	return nil, false
}

// Top returns the best ranked opportunity, or false if the discovery is empty.
func (d *Discovery) Top() (*RankedOpportunity, bool) {
	if len(d.Opportunities) == 0 {
		return nil, false
	}
	best := &d.Opportunities[0]
	for i := range d.Opportunities {
		if d.Opportunities[i].Rank < best.Rank {
			best = &d.Opportunities[i]
		}
	}
	return best, true
}

// SortByRank orders ranked opportunities by ascending rank.
func SortByRank(ranked []RankedOpportunity) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rank < ranked[j].Rank
	})
}

// CheckRankPermutation verifies that the ranks are exactly 1..n with no duplicates or gaps.
func CheckRankPermutation(ranked []RankedOpportunity, n int) error {
	if len(ranked) != n {
		return fmt.Errorf("expected %d ranked opportunities, got %d", n, len(ranked))
	}
	seen := make([]bool, n+1)
	for _, r := range ranked {
		if r.Rank < 1 || r.Rank > n {
			return fmt.Errorf("rank %d for %q is outside 1..%d", r.Rank, r.Name, n)
		}
		if seen[r.Rank] {
			return fmt.Errorf("rank %d is assigned more than once", r.Rank)
		}
		seen[r.Rank] = true
	}
	return nil
}

// UnrankedFallback keeps the input order and marks every rationale as unavailable.
func UnrankedFallback(opps []Opportunity) []RankedOpportunity {
	ranked := make([]RankedOpportunity, len(opps))
	for i, o := range opps {
		ranked[i] = RankedOpportunity{Opportunity: o, Rank: i + 1, Rationale: "N/A"}
	}
	return ranked
}
