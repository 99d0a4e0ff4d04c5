package search

import (
	"sort"
	"time"

	"recipe-assistant/internal/core/embedding"
	"recipe-assistant/internal/core/recipe"
)

// Candidate 參與排序的候選：由持久層依授權範圍提供
// 呼叫端不得把無權讀取的向量交進來
type Candidate struct {
	RecipeID  string
	Vector    []float32
	CreatedAt time.Time
	Recipe    *recipe.Recipe
}

// Result 排序結果
type Result struct {
	RecipeID string         `json:"recipe_id"`
	Score    float64        `json:"score"`
	Recipe   *recipe.Recipe `json:"recipe,omitempty"`
}

// Rank 依餘弦相似度由高到低排序，同分以建立時間較新者優先，截斷到 limit
// 純函式，沒有副作用
func Rank(query []float32, candidates []Candidate, limit int) []Result {
	results := make([]Result, 0, len(candidates))
	created := make(map[string]time.Time, len(candidates))

	for _, c := range candidates {
		results = append(results, Result{
			RecipeID: c.RecipeID,
			Score:    embedding.Cosine(query, c.Vector),
			Recipe:   c.Recipe,
		})
		created[c.RecipeID] = c.CreatedAt
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return created[results[i].RecipeID].After(created[results[j].RecipeID])
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
