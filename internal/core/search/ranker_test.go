package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdersByScoreDescending(t *testing.T) {
	query := []float32{1, 0}
	now := time.Now()

	candidates := []Candidate{
		{RecipeID: "orthogonal", Vector: []float32{0, 1}, CreatedAt: now},
		{RecipeID: "aligned", Vector: []float32{1, 0}, CreatedAt: now},
		{RecipeID: "diagonal", Vector: []float32{1, 1}, CreatedAt: now},
	}

	results := Rank(query, candidates, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "aligned", results[0].RecipeID)
	assert.Equal(t, "diagonal", results[1].RecipeID)
	assert.Equal(t, "orthogonal", results[2].RecipeID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRankBreaksTiesByRecency(t *testing.T) {
	query := []float32{1, 0}
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	candidates := []Candidate{
		{RecipeID: "old", Vector: []float32{1, 0}, CreatedAt: older},
		{RecipeID: "new", Vector: []float32{1, 0}, CreatedAt: newer},
	}

	results := Rank(query, candidates, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "new", results[0].RecipeID)
	assert.Equal(t, "old", results[1].RecipeID)
}

func TestRankAppliesLimit(t *testing.T) {
	query := []float32{1, 0}
	now := time.Now()

	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Candidate{
			RecipeID:  string(rune('a' + i)),
			Vector:    []float32{1, float32(i)},
			CreatedAt: now,
		})
	}

	results := Rank(query, candidates, 3)
	assert.Len(t, results, 3)
}

func TestRankEmptyCandidates(t *testing.T) {
	results := Rank([]float32{1, 0}, nil, 5)
	assert.Empty(t, results)
}

func TestRankMismatchedVectorScoresZero(t *testing.T) {
	query := []float32{1, 0}
	now := time.Now()

	candidates := []Candidate{
		{RecipeID: "good", Vector: []float32{1, 0}, CreatedAt: now},
		{RecipeID: "broken", Vector: []float32{1, 0, 0}, CreatedAt: now},
	}

	results := Rank(query, candidates, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "good", results[0].RecipeID)
	assert.Zero(t, results[1].Score)
}
