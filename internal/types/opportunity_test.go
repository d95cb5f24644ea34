package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranked(ranks ...int) []RankedOpportunity {
	out := make([]RankedOpportunity, len(ranks))
	for i, r := range ranks {
		out[i] = RankedOpportunity{Opportunity: Opportunity{Name: string(rune('A' + i))}, Rank: r}
	}
	return out
}

func TestCheckRankPermutation(t *testing.T) {
	tests := []struct {
		name    string
		ranks   []int
		n       int
		wantErr string
	}{
		{name: "valid permutation", ranks: []int{2, 3, 1}, n: 3},
		{name: "duplicate rank", ranks: []int{1, 1, 2}, n: 3, wantErr: "more than once"},
		{name: "rank out of range", ranks: []int{1, 2, 4}, n: 3, wantErr: "outside 1..3"},
		{name: "zero rank", ranks: []int{0, 1}, n: 2, wantErr: "outside"},
		{name: "missing entry", ranks: []int{1, 2}, n: 3, wantErr: "expected 3"},
		{name: "empty", ranks: nil, n: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRankPermutation(ranked(tt.ranks...), tt.n)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSortByRankAndTop(t *testing.T) {
	list := ranked(3, 1, 2)
	d := &Discovery{Opportunities: list}

	top, ok := d.Top()
	require.True(t, ok)
	assert.Equal(t, 1, top.Rank)

	SortByRank(list)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].Rank, list[1].Rank, list[2].Rank})

	_, ok = (&Discovery{}).Top()
	assert.False(t, ok)
}

func TestDiscovery_Find(t *testing.T) {
	id := uuid.New()
	d := &Discovery{Opportunities: []RankedOpportunity{{Opportunity: Opportunity{ID: id, Name: "Digital Wall Art Shop"}, Rank: 1}}}

	found, ok := d.Find(id)
	require.True(t, ok)
	assert.Equal(t, "Digital Wall Art Shop", found.Name)

	_, ok = d.Find(uuid.New())
	assert.False(t, ok)
}

func TestUnrankedFallback(t *testing.T) {
	out := UnrankedFallback([]Opportunity{{Name: "A"}, {Name: "B"}})
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, 2, out[1].Rank)
	assert.Equal(t, "N/A", out[1].Rationale)
	assert.NoError(t, CheckRankPermutation(out, 2))
}

func TestParseBuildMode(t *testing.T) {
	for in, want := range map[string]BuildMode{
		"in-house":    BuildModeInHouse,
		"In_House":    BuildModeInHouse,
		"outsourced":  BuildModeOutSourced,
		"out-sourced": BuildModeOutSourced,
	} {
		got, err := ParseBuildMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseBuildMode("hybrid")
	assert.Error(t, err)
}

func TestMarketAnalysis_Summary(t *testing.T) {
	m := MarketAnalysis{DemandForecast: "growing", CompetitiveLandscape: "fragmented", PotentialRevenue: "$10k/mo"}
	assert.Equal(t, "Demand: growing, Competition: fragmented, Revenue: $10k/mo", m.Summary())
}
