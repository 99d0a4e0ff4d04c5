package recipe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel 固定回應的模型
type fakeModel struct {
	response string
	err      error
	calls    int
}

func (f *fakeModel) Generate(ctx context.Context, kind, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestParseStructuredText(t *testing.T) {
	model := &fakeModel{}
	p := NewParser(model)

	text := `Title: Quick Garlic Pasta
Ingredients:
- 200g spaghetti
- 4 cloves garlic
- 3 tbsp olive oil
Steps:
1. Boil the spaghetti until al dente.
2. Saute sliced garlic in olive oil.
3. Toss the pasta with the garlic oil.`

	r, err := p.Parse(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "Quick Garlic Pasta", r.Title)
	assert.Equal(t, []string{"200g spaghetti", "4 cloves garlic", "3 tbsp olive oil"}, r.Ingredients)
	require.Len(t, r.Steps, 3)
	assert.Equal(t, "Boil the spaghetti until al dente.", r.Steps[0])
	assert.Equal(t, "Toss the pasta with the garlic oil.", r.Steps[2])

	// 結構化文字不需要動用模型
	assert.Zero(t, model.calls)
}

func TestParseStructuredChineseHeaders(t *testing.T) {
	p := NewParser(&fakeModel{})

	text := `標題：蒜香義大利麵
食材：
1. 義大利麵 200 克
2. 蒜頭 4 瓣
做法：
1. 煮麵
2. 爆香蒜頭
標籤：義式、快速`

	r, err := p.Parse(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "蒜香義大利麵", r.Title)
	assert.Equal(t, []string{"義大利麵 200 克", "蒜頭 4 瓣"}, r.Ingredients)
	assert.Equal(t, []string{"煮麵", "爆香蒜頭"}, r.Steps)
	assert.Equal(t, []string{"義式", "快速"}, r.Tags)
}

func TestParseMissingStepsReturnsIncompleteWithDraft(t *testing.T) {
	p := NewParser(&fakeModel{})

	text := `標題：蒜香義大利麵
食材：
- 義大利麵`

	_, err := p.Parse(context.Background(), text)
	require.Error(t, err)

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"步驟"}, incomplete.Missing)
	require.NotNil(t, incomplete.Draft)
	assert.Equal(t, "蒜香義大利麵", incomplete.Draft.Title)
	assert.Equal(t, []string{"義大利麵"}, incomplete.Draft.Ingredients)
}

func TestParseUnstructuredFallsBackToModel(t *testing.T) {
	model := &fakeModel{
		response: `好的，以下是結果：{"title":"滷肉飯","ingredients":["五花肉","醬油"],"steps":["切肉","滷一小時"],"tags":[]}`,
	}
	p := NewParser(model)

	r, err := p.Parse(context.Background(), "昨天煮的滷肉飯 先把五花肉切塊 加醬油滷一小時 超下飯")
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, "滷肉飯", r.Title)
	assert.Equal(t, []string{"五花肉", "醬油"}, r.Ingredients)
	assert.Equal(t, []string{"切肉", "滷一小時"}, r.Steps)
}

func TestParseModelIncompleteResult(t *testing.T) {
	model := &fakeModel{
		response: `{"title":"","ingredients":["五花肉"],"steps":["滷一小時"],"tags":[]}`,
	}
	p := NewParser(model)

	_, err := p.Parse(context.Background(), "隨手記的做法 加醬油滷一小時")
	require.Error(t, err)

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"標題"}, incomplete.Missing)
}

func TestParseModelFailure(t *testing.T) {
	p := NewParser(&fakeModel{err: fmt.Errorf("upstream down")})

	_, err := p.Parse(context.Background(), "隨手記的做法 滷一小時")
	assert.Error(t, err)

	var incomplete *IncompleteError
	assert.False(t, errors.As(err, &incomplete))
}

func TestParseEmptyText(t *testing.T) {
	p := NewParser(&fakeModel{})

	_, err := p.Parse(context.Background(), "   ")
	require.Error(t, err)

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"標題", "食材", "步驟"}, incomplete.Missing)
}

func TestCompleteAndMissingFields(t *testing.T) {
	r := &Recipe{Title: "x", Ingredients: []string{"a"}, Steps: []string{"b"}}
	assert.True(t, r.Complete())
	assert.Empty(t, r.MissingFields())

	r = &Recipe{Ingredients: []string{"a"}}
	assert.False(t, r.Complete())
	assert.Equal(t, []string{"標題", "步驟"}, r.MissingFields())
}
