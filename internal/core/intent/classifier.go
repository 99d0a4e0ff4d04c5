package intent

import (
	"context"
	"fmt"
	"strings"

	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// Intent 使用者單則訊息的目的分類
type Intent string

const (
	IntentStoreRecipe    Intent = "store_recipe"
	IntentSearchRecipe   Intent = "search_recipe"
	IntentGenerateRecipe Intent = "generate_recipe"
	IntentGeneralChat    Intent = "general_chat"
)

// Valid 檢查是否為封閉集合內的分類
func (i Intent) Valid() bool {
	switch i {
	case IntentStoreRecipe, IntentSearchRecipe, IntentGenerateRecipe, IntentGeneralChat:
		return true
	}
	return false
}

// Turn 對話歷史中的一輪
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Result 分類結果，產生後不再變動
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Model 分類所依賴的語言模型；任何回傳四類分佈加最高機率的後端皆可替換
type Model interface {
	Generate(ctx context.Context, kind, prompt string) (string, error)
}

// Classifier 意圖分類器
type Classifier struct {
	model Model
}

// NewClassifier 創建意圖分類器
func NewClassifier(model Model) *Classifier {
	return &Classifier{model: model}
}

const classifyPrompt = `你是食譜助理的意圖分類器。判斷使用者這則訊息屬於下列哪一類：
- store_recipe：想儲存一份食譜（貼上食譜內容、給食譜網址或影片連結）
- search_recipe：想在自己已儲存的食譜中尋找
- generate_recipe：想請你發想或產生一份新食譜
- general_chat：一般聊天或烹飪問答

對話脈絡（僅供消歧，可能為空）：
%s

使用者訊息：
%s

只回傳最緊湊的 JSON，不要任何其他文字：
{"intent":"四類之一","confidence":0到1之間的數字,"rationale":"一句話理由"}`

// Classify 對單則訊息做意圖分類
// 模型呼叫失敗、回傳格式錯誤或信心值超出範圍時，一律回報「分類不可用」而不猜測
func (c *Classifier) Classify(ctx context.Context, message string, history []Turn) (*Result, error) {
	prompt := fmt.Sprintf(classifyPrompt, formatHistory(history), message)

	content, err := c.model.Generate(ctx, "classify", prompt)
	if err != nil {
		common.LogWarn("意圖分類模型呼叫失敗", zap.Error(err))
		return nil, common.NewError(common.ErrCodeClassificationUnavailable,
			common.ErrClassificationUnavailable.Message, common.ErrClassificationUnavailable.Status, err)
	}

	var result Result
	if err := common.ParseJSON(common.CarveJSON(content), &result); err != nil {
		common.LogWarn("意圖分類回應解析失敗",
			zap.Error(err),
			zap.Int("content_length", len(content)),
		)
		return nil, common.NewError(common.ErrCodeClassificationUnavailable,
			common.ErrClassificationUnavailable.Message, common.ErrClassificationUnavailable.Status, err)
	}

	// 分類必須落在封閉集合內，信心值必須在 [0,1]；超出範圍不做校正
	if !result.Intent.Valid() || result.Confidence < 0 || result.Confidence > 1 {
		common.LogWarn("意圖分類結果不合法",
			zap.String("intent", string(result.Intent)),
			zap.Float64("confidence", result.Confidence),
		)
		return nil, common.NewError(common.ErrCodeClassificationUnavailable,
			common.ErrClassificationUnavailable.Message, common.ErrClassificationUnavailable.Status,
			fmt.Errorf("invalid classification result"))
	}

	common.LogInfo("意圖分類完成",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
	)

	return &result, nil
}

// formatHistory 將對話歷史整理成提示中的脈絡段落
func formatHistory(history []Turn) string {
	if len(history) == 0 {
		return "（無）"
	}

	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString(turn.Role)
		sb.WriteString("：")
		sb.WriteString(common.Truncate(turn.Text, 200))
		sb.WriteString("\n")
	}
	return sb.String()
}
