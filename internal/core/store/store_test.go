package store

import (
	"context"
	"testing"

	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeRecipe(title string) *recipe.Recipe {
	return &recipe.Recipe{
		Title:       title,
		Ingredients: []string{"a"},
		Steps:       []string{"b"},
		Embedding:   []float32{1, 0},
	}
}

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	r := completeRecipe("咖哩")

	require.NoError(t, s.Save(context.Background(), "", "alice", r))
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestPersonalSpaceIsIsolatedPerUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "", "alice", completeRecipe("咖哩")))

	mine, err := s.ListForSearch(ctx, "", "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := s.ListForSearch(ctx, "", "bob")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestGroupRequiresMembership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.AddMember("club", "alice")

	require.NoError(t, s.Save(ctx, "club", "alice", completeRecipe("咖哩")))

	// 非成員寫入與讀取都以同一個錯誤拒絕
	err := s.Save(ctx, "club", "mallory", completeRecipe("入侵"))
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.ErrCodeUnauthorized))

	_, err = s.ListForSearch(ctx, "club", "mallory")
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.ErrCodeUnauthorized))

	// 成員看得到群組內容
	got, err := s.ListForSearch(ctx, "club", "alice")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUnauthorizedMessageMatchesNotFound(t *testing.T) {
	// 未授權的使用者訊息與查無資料同語，不洩露群組存在性
	assert.Equal(t, "找不到符合的食譜", common.ErrUnauthorized.Message)
}

func TestListForSearchCarriesVectors(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := completeRecipe("咖哩")
	require.NoError(t, s.Save(ctx, "", "alice", r))

	got, err := s.ListForSearch(ctx, "", "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].RecipeID)
	assert.Equal(t, r.Embedding, got[0].Vector)
	assert.Equal(t, r.CreatedAt, got[0].CreatedAt)
}

func TestAppendHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "", "alice", "user", "hello"))
	require.NoError(t, s.Append(ctx, "", "alice", "assistant", "hi"))
	assert.Len(t, s.history, 2)
}
