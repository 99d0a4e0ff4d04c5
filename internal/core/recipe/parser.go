package recipe

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// IncompleteError 解析結果缺必要欄位；草稿保留下來走確認回合，不寫入
type IncompleteError struct {
	Draft   *Recipe
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("recipe incomplete, missing: %s", strings.Join(e.Missing, ", "))
}

// Model 解析非結構化文字時使用的語言模型
type Model interface {
	Generate(ctx context.Context, kind, prompt string) (string, error)
}

// Parser 食譜解析器：結構化文字直接解析，其餘交給模型抽取
type Parser struct {
	model Model
}

// NewParser 創建食譜解析器
func NewParser(model Model) *Parser {
	return &Parser{model: model}
}

// Parse 將抽取出的文字轉成食譜
// 必要欄位（標題、食材、步驟）缺任何一項回傳 IncompleteError 並附上草稿
func (p *Parser) Parse(ctx context.Context, text string) (*Recipe, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &IncompleteError{Draft: &Recipe{}, Missing: []string{"標題", "食材", "步驟"}}
	}

	// 先走結構化解析；有明確段落標頭的文字不需要動用模型
	if r := parseStructured(text); r != nil {
		if !r.Complete() {
			return nil, &IncompleteError{Draft: r, Missing: r.MissingFields()}
		}
		return r, nil
	}

	// 非結構化文字：模型抽取
	return p.parseWithModel(ctx, text)
}

const parsePrompt = `從下面的文字抽出一份食譜。只回傳最緊湊的 JSON，不要任何其他文字：
{"title":"標題","ingredients":["食材，保持原文順序"],"steps":["步驟，保持原文順序"],"tags":["標籤，可為空"]}

規則：
1. 只使用文字中出現的內容，不要補充或猜測
2. 找不到的欄位回傳空字串或空陣列，不要編造
3. 食材與步驟各為一行一項，去掉編號與項目符號

文字：
%s`

// parseWithModel 用模型從非結構化文字抽取食譜
func (p *Parser) parseWithModel(ctx context.Context, text string) (*Recipe, error) {
	content, err := p.model.Generate(ctx, "parse", fmt.Sprintf(parsePrompt, text))
	if err != nil {
		common.LogWarn("食譜抽取模型呼叫失敗", zap.Error(err))
		return nil, common.ErrExtractionEmpty.WithReason("暫時無法解析這段內容，請稍後再試")
	}

	var result Recipe
	if err := common.ParseJSON(common.CarveJSON(content), &result); err != nil {
		common.LogWarn("食譜抽取回應解析失敗", zap.Error(err))
		return nil, common.ErrExtractionEmpty.WithReason("暫時無法解析這段內容，請稍後再試")
	}

	result.Title = strings.TrimSpace(result.Title)
	result.Ingredients = cleanItems(result.Ingredients)
	result.Steps = cleanItems(result.Steps)
	result.Tags = cleanItems(result.Tags)

	if !result.Complete() {
		return nil, &IncompleteError{Draft: &result, Missing: result.MissingFields()}
	}
	return &result, nil
}

type section int

const (
	sectionNone section = iota
	sectionIngredients
	sectionSteps
	sectionTags
)

var (
	titleHeader       = regexp.MustCompile(`(?i)^(title|標題|菜名)\s*[:：]\s*(.*)$`)
	ingredientsHeader = regexp.MustCompile(`(?i)^(ingredients?|食材|材料)\s*[:：]\s*(.*)$`)
	stepsHeader       = regexp.MustCompile(`(?i)^(steps?|directions?|instructions?|步驟|做法|作法)\s*[:：]\s*(.*)$`)
	tagsHeader        = regexp.MustCompile(`(?i)^(tags?|標籤|分類)\s*[:：]\s*(.*)$`)
	itemPrefix        = regexp.MustCompile(`^(\d+[.)、]\s*|[-*•]\s*)`)
)

// parseStructured 解析帶段落標頭的文字；找不到任何標頭時回傳 nil 交給模型
func parseStructured(text string) *Recipe {
	r := &Recipe{}
	current := sectionNone
	sawHeader := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := titleHeader.FindStringSubmatch(line); m != nil {
			r.Title = strings.TrimSpace(m[2])
			sawHeader = true
			current = sectionNone
			continue
		}
		if m := ingredientsHeader.FindStringSubmatch(line); m != nil {
			sawHeader = true
			current = sectionIngredients
			if rest := strings.TrimSpace(m[2]); rest != "" {
				r.Ingredients = append(r.Ingredients, stripItemPrefix(rest))
			}
			continue
		}
		if m := stepsHeader.FindStringSubmatch(line); m != nil {
			sawHeader = true
			current = sectionSteps
			if rest := strings.TrimSpace(m[2]); rest != "" {
				r.Steps = append(r.Steps, stripItemPrefix(rest))
			}
			continue
		}
		if m := tagsHeader.FindStringSubmatch(line); m != nil {
			sawHeader = true
			current = sectionTags
			if rest := strings.TrimSpace(m[2]); rest != "" {
				r.Tags = append(r.Tags, splitTags(rest)...)
			}
			continue
		}

		switch current {
		case sectionIngredients:
			r.Ingredients = append(r.Ingredients, stripItemPrefix(line))
		case sectionSteps:
			r.Steps = append(r.Steps, stripItemPrefix(line))
		case sectionTags:
			r.Tags = append(r.Tags, splitTags(line)...)
		case sectionNone:
			// 標頭之前的第一行視為標題
			if r.Title == "" && !sawHeader {
				r.Title = line
			}
		}
	}

	if !sawHeader {
		return nil
	}
	return r
}

// LooksStructured 檢查文字是否帶有食譜段落標頭
// 用於在調用任何模型之前判斷長訊息是否可能是貼上的食譜
func LooksStructured(text string) bool {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if titleHeader.MatchString(line) || ingredientsHeader.MatchString(line) ||
			stepsHeader.MatchString(line) || tagsHeader.MatchString(line) {
			return true
		}
	}
	return false
}

// stripItemPrefix 去掉項目編號與符號
func stripItemPrefix(line string) string {
	return strings.TrimSpace(itemPrefix.ReplaceAllString(line, ""))
}

// splitTags 標籤以逗號或頓號分隔
func splitTags(line string) []string {
	parts := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == '，' || r == '、'
	})
	return cleanItems(parts)
}

// cleanItems 去空白並移除空項
func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
