package chat

import (
	"context"
	"fmt"
	"unicode/utf8"

	"recipe-assistant/internal/core/ingest"
	"recipe-assistant/internal/core/intent"
	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/core/search"
	"recipe-assistant/internal/core/store"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// Request 單一使用者回合；收到後不再變動
type Request struct {
	Message       string
	History       []intent.Turn
	ConfirmRecipe *recipe.Recipe
	GroupID       string
	UserID        string
}

// Response 單一回合的最終結果
type Response struct {
	Success            bool            `json:"success"`
	Message            string          `json:"message"`
	Intent             intent.Intent   `json:"intent,omitempty"`
	Confidence         float64         `json:"confidence,omitempty"`
	NeedsClarification bool            `json:"needs_clarification"`
	Recipe             *recipe.Recipe  `json:"recipe,omitempty"`
	Recipes            []search.Result `json:"recipes,omitempty"`
}

// state 路由狀態機；每則訊息恰好產生一個終態
type state string

const (
	stateReceived   state = "received"
	stateClassified state = "classified"
	stateDispatched state = "dispatched"
	stateClarifying state = "clarifying"
	stateResponded  state = "responded"
)

// Classifier 意圖分類邊界
type Classifier interface {
	Classify(ctx context.Context, message string, history []intent.Turn) (*intent.Result, error)
}

// Extractor 內容抽取邊界
type Extractor interface {
	Extract(ctx context.Context, input string) (*ingest.Extraction, error)
}

// Parser 食譜解析邊界
type Parser interface {
	Parse(ctx context.Context, text string) (*recipe.Recipe, error)
}

// Embedder 向量嵌入邊界
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Responder 一般聊天回覆邊界
type Responder interface {
	Respond(ctx context.Context, message string, history []intent.Turn) (string, error)
}

// Dispatcher 路由器：信心門檻把關，對每則訊息恰好調用一個處理器
// 不保存任何跨請求狀態；對話歷史由呼叫者逐請求帶入
type Dispatcher struct {
	config     *config.Config
	classifier Classifier
	extractor  Extractor
	parser     Parser
	embedder   Embedder
	responder  Responder
	recipes    store.RecipeStore
	history    store.ChatHistoryStore
}

// NewDispatcher 創建路由器
func NewDispatcher(
	cfg *config.Config,
	classifier Classifier,
	extractor Extractor,
	parser Parser,
	embedder Embedder,
	responder Responder,
	recipes store.RecipeStore,
	history store.ChatHistoryStore,
) *Dispatcher {
	return &Dispatcher{
		config:     cfg,
		classifier: classifier,
		extractor:  extractor,
		parser:     parser,
		embedder:   embedder,
		responder:  responder,
		recipes:    recipes,
		history:    history,
	}
}

// Handle 處理一則訊息：received → classified → {dispatched | clarifying} → responded
func (d *Dispatcher) Handle(ctx context.Context, req *Request) *Response {
	current := stateReceived
	common.LogDebug("路由狀態", zap.String("state", string(current)))

	// 確認回合直接提交，不經過分類
	if req.ConfirmRecipe != nil {
		resp := d.handleConfirm(ctx, req)
		d.appendHistory(ctx, req, resp)
		return resp
	}

	// 分類
	result, err := d.classifier.Classify(ctx, req.Message, d.boundedHistory(req.History))
	if err != nil {
		// 分類不可用：與低信心走同一條安全路徑
		common.LogWarn("分類不可用，改為追問澄清", zap.Error(err))
		current = stateClarifying
		resp := d.clarify(req, nil)
		d.appendHistory(ctx, req, resp)
		return resp
	}

	current = stateClassified
	common.LogDebug("路由狀態",
		zap.String("state", string(current)),
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
	)

	// 信心門檻：低於門檻不調用任何處理器
	if result.Confidence < d.config.Policy.ConfidenceThreshold {
		current = stateClarifying
		common.LogInfo("信心不足，追問澄清",
			zap.Float64("confidence", result.Confidence),
			zap.Float64("threshold", d.config.Policy.ConfidenceThreshold),
		)
		resp := d.clarify(req, result)
		d.appendHistory(ctx, req, resp)
		return resp
	}

	// 策略規則：generate_recipe 改送 search 處理器
	// 這是刻意的策略覆寫，不是分類錯誤，也不是共用程式碼的巧合
	target := result.Intent
	if target == intent.IntentGenerateRecipe && d.config.Policy.GenerateRedirectsToSearch {
		common.LogInfo("策略轉送",
			zap.String("from", string(intent.IntentGenerateRecipe)),
			zap.String("to", string(intent.IntentSearchRecipe)),
		)
		target = intent.IntentSearchRecipe
	}

	// 聊天與搜尋的長度上限比儲存嚴格；超長訊息只有儲存路徑收
	if target != intent.IntentStoreRecipe &&
		utf8.RuneCountInString(req.Message) > d.config.Limits.ChatMaxChars {
		current = stateClarifying
		common.LogInfo("訊息超過聊天長度上限",
			zap.Int("max", d.config.Limits.ChatMaxChars),
		)
		resp := &Response{
			Success:            true,
			Message:            "這則訊息太長了，請縮短一點，或告訴我你是想儲存這份食譜。",
			Intent:             result.Intent,
			Confidence:         result.Confidence,
			NeedsClarification: true,
		}
		d.appendHistory(ctx, req, resp)
		return resp
	}

	current = stateDispatched
	common.LogDebug("路由狀態",
		zap.String("state", string(current)),
		zap.String("handler", string(target)),
	)

	// 每則訊息恰好調用一次處理器
	var resp *Response
	switch target {
	case intent.IntentStoreRecipe:
		resp = d.handleStore(ctx, req)
	case intent.IntentSearchRecipe:
		resp = d.handleSearch(ctx, req)
	default:
		resp = d.handleChat(ctx, req)
	}

	resp.Intent = result.Intent
	resp.Confidence = result.Confidence

	current = stateResponded
	common.LogDebug("路由狀態", zap.String("state", string(current)))

	d.appendHistory(ctx, req, resp)
	return resp
}

// clarify 產生澄清回應；回顯訊息中的關鍵詞，讓使用者不必整句重打
func (d *Dispatcher) clarify(req *Request, result *intent.Result) *Response {
	echo := common.Truncate(common.NormalizeWhitespace(req.Message), 80)

	msg := fmt.Sprintf(
		"我不太確定你的意思。你是想在已儲存的食譜中「尋找」跟「%s」有關的食譜，還是想「儲存」這份內容，或請我「想一份新的」？請再說明一下。",
		echo,
	)

	resp := &Response{
		Success:            true,
		Message:            msg,
		NeedsClarification: true,
	}
	if result != nil {
		resp.Intent = result.Intent
		resp.Confidence = result.Confidence
	}
	return resp
}

// boundedHistory 對話歷史長度有上限，超出時保留最近的回合
func (d *Dispatcher) boundedHistory(history []intent.Turn) []intent.Turn {
	max := d.config.Policy.MaxHistoryTurns
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

// appendHistory 對話記錄為盡力而為；失敗只記日誌，不影響回應
func (d *Dispatcher) appendHistory(ctx context.Context, req *Request, resp *Response) {
	if d.history == nil {
		return
	}
	if req.Message != "" {
		if err := d.history.Append(ctx, req.GroupID, req.UserID, "user", req.Message); err != nil {
			common.LogWarn("對話記錄寫入失敗", zap.Error(err))
			return
		}
	}
	if err := d.history.Append(ctx, req.GroupID, req.UserID, "assistant", resp.Message); err != nil {
		common.LogWarn("對話記錄寫入失敗", zap.Error(err))
	}
}
