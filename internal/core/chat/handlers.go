package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipe-assistant/internal/core/embedding"
	"recipe-assistant/internal/core/ingest"
	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/core/search"
	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// handleStore 儲存意圖：抽取 → 解析 → 出草稿
// 解析成功也不直接寫入；一律先給草稿等使用者確認（未受控的自動儲存是髒資料的主要來源）
func (d *Dispatcher) handleStore(ctx context.Context, req *Request) *Response {
	extraction, err := d.extractor.Extract(ctx, req.Message)
	if err != nil {
		return storeFailureResponse(err)
	}

	parsed, err := d.parser.Parse(ctx, extraction.Text)
	if err != nil {
		var incomplete *recipe.IncompleteError
		if errors.As(err, &incomplete) {
			// 缺必要欄位：保留草稿，請使用者補齊
			draft := incomplete.Draft
			attachProvenance(draft, extraction)
			// 來源中繼資料（如影片標題）可能剛補上了缺口
			missing := draft.MissingFields()
			if len(missing) == 0 {
				return draftResponse(draft)
			}
			return &Response{
				Success:            true,
				NeedsClarification: true,
				Recipe:             draft,
				Message: fmt.Sprintf(
					"這份食譜還缺少：%s。請補上缺少的部分，或直接修改草稿後再確認。",
					strings.Join(missing, "、"),
				),
			}
		}
		return storeFailureResponse(err)
	}

	attachProvenance(parsed, extraction)

	// 確認回合：草稿回給使用者，收到 confirm_recipe 才寫入
	return draftResponse(parsed)
}

// draftResponse 解析完成的草稿，等使用者確認後才寫入
func draftResponse(r *recipe.Recipe) *Response {
	return &Response{
		Success:            true,
		NeedsClarification: true,
		Recipe:             r,
		Message:            fmt.Sprintf("我整理出了「%s」這份食譜，共 %d 項食材、%d 個步驟。確認無誤後送出確認，我就會幫你儲存。", r.Title, len(r.Ingredients), len(r.Steps)),
	}
}

// handleConfirm 確認回合：使用者核可的食譜直接提交
func (d *Dispatcher) handleConfirm(ctx context.Context, req *Request) *Response {
	r := req.ConfirmRecipe

	// 不完整的食譜即使在確認回合也不得寫入
	if !r.Complete() {
		return &Response{
			Success:            true,
			NeedsClarification: true,
			Recipe:             r,
			Message: fmt.Sprintf(
				"這份食譜還缺少：%s，還不能儲存。請補齊後再確認一次。",
				strings.Join(r.MissingFields(), "、"),
			),
		}
	}

	// 向量在第一次寫入前產生；使用者若改過內容，這裡算的就是新內容的向量
	vector, err := d.embedder.Embed(ctx, embedding.NormalizeRecipe(r))
	if err != nil {
		common.LogError("嵌入產生失敗", zap.Error(err))
		return &Response{
			Success: false,
			Message: "儲存時發生問題，請稍後再試。",
		}
	}
	r.Embedding = vector

	if err := d.recipes.Save(ctx, req.GroupID, req.UserID, r); err != nil {
		// 未授權與不存在同語，不洩露群組存在性
		if common.IsCode(err, common.ErrCodeUnauthorized) {
			return &Response{
				Success: false,
				Message: "無法儲存到這個位置。",
			}
		}
		common.LogError("食譜寫入失敗", zap.Error(err))
		return &Response{
			Success: false,
			Message: "儲存時發生問題，請稍後再試。",
		}
	}

	return &Response{
		Success: true,
		Recipe:  r,
		Message: fmt.Sprintf("已儲存「%s」。之後可以直接問我找這份食譜。", r.Title),
	}
}

// handleSearch 搜尋意圖：查詢向量 → 授權範圍內的候選 → 餘弦排序
func (d *Dispatcher) handleSearch(ctx context.Context, req *Request) *Response {
	vector, err := d.embedder.Embed(ctx, embedding.NormalizeText(req.Message))
	if err != nil {
		common.LogError("查詢向量產生失敗", zap.Error(err))
		return &Response{
			Success: false,
			Message: "搜尋暫時無法使用，請稍後再試。",
		}
	}

	candidates, err := d.recipes.ListForSearch(ctx, req.GroupID, req.UserID)
	if err != nil {
		// 未授權與查無資料同語
		if common.IsCode(err, common.ErrCodeUnauthorized) {
			return &Response{
				Success: true,
				Message: "找不到符合的食譜。",
			}
		}
		common.LogError("候選讀取失敗", zap.Error(err))
		return &Response{
			Success: false,
			Message: "搜尋暫時無法使用，請稍後再試。",
		}
	}

	results := searchRank(vector, candidates, d.config.Policy.SearchLimit)
	if len(results) == 0 {
		return &Response{
			Success: true,
			Message: "找不到符合的食譜。",
		}
	}

	return &Response{
		Success: true,
		Recipes: results,
		Message: fmt.Sprintf("找到 %d 份相關的食譜。", len(results)),
	}
}

// handleChat 一般聊天：無狀態的建議回覆
func (d *Dispatcher) handleChat(ctx context.Context, req *Request) *Response {
	reply, err := d.responder.Respond(ctx, req.Message, d.boundedHistory(req.History))
	if err != nil {
		common.LogError("聊天回覆產生失敗", zap.Error(err))
		return &Response{
			Success: false,
			Message: "暫時無法回覆，請稍後再試。",
		}
	}

	return &Response{
		Success: true,
		Message: reply,
	}
}

// attachProvenance 把來源資訊帶進食譜（含草稿）
func attachProvenance(r *recipe.Recipe, extraction *ingest.Extraction) {
	if r == nil || extraction == nil {
		return
	}
	if extraction.SourceURL != "" {
		r.SourceURL = extraction.SourceURL
	}
	if extraction.Platform != "" {
		r.VideoPlatform = extraction.Platform
		r.VideoID = extraction.VideoID
	}
	// 影片標題可補空標題
	if r.Title == "" && extraction.Meta != nil {
		r.Title = extraction.Meta.Title
	}
}

// searchRank 薄封裝，讓處理器不直接依賴排序實作細節
func searchRank(query []float32, candidates []search.Candidate, limit int) []search.Result {
	return search.Rank(query, candidates, limit)
}

// storeFailureResponse 把抽取層的軟失敗翻成使用者可讀的回應
func storeFailureResponse(err error) *Response {
	var ce *common.CustomError
	if errors.As(err, &ce) {
		switch ce.Code {
		case common.ErrCodeUnsafeSource:
			// 安全拒絕：不是澄清，而是明確告知來源不可用
			return &Response{
				Success: false,
				Message: ce.Message,
			}
		case common.ErrCodeExtractionEmpty:
			return &Response{
				Success:            true,
				NeedsClarification: true,
				Message:            ce.Message,
			}
		}
	}

	common.LogError("儲存流程失敗", zap.Error(err))
	return &Response{
		Success: false,
		Message: "處理這份內容時發生問題，請稍後再試。",
	}
}
