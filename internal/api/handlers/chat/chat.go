package chat

import (
	"net/http"
	"unicode/utf8"

	chatService "recipe-assistant/internal/core/chat"
	"recipe-assistant/internal/core/intent"
	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatRequest 單一使用者回合
type ChatRequest struct {
	Message             string         `json:"message" binding:"required"`
	ConversationHistory []HistoryTurn  `json:"conversation_history,omitempty"` // 由呼叫端逐請求帶入
	ConfirmRecipe       *recipe.Recipe `json:"confirm_recipe,omitempty"`       // 確認回合才帶，直接提交草稿
	GroupID             string         `json:"group_id,omitempty"`
}

// HistoryTurn 對話歷史中的一則訊息
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Handler 對話處理程序
type Handler struct {
	config     *config.Config
	dispatcher *chatService.Dispatcher
}

// NewHandler 創建新的對話處理程序
func NewHandler(cfg *config.Config, dispatcher *chatService.Dispatcher) *Handler {
	return &Handler{
		config:     cfg,
		dispatcher: dispatcher,
	}
}

// HandleChat 處理一則訊息並回傳單一回合結果
func (h *Handler) HandleChat(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		c.Header("X-Request-ID", requestID)
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogError("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
			"code":  common.ErrCodeInvalidRequest,
		})
		return
	}

	// 長度檢查在任何模型調用之前。確認回合與帶段落標頭的食譜貼文
	// 放寬到儲存上限，其餘訊息一律套用聊天上限。
	limit := h.config.Limits.ChatMaxChars
	if req.ConfirmRecipe != nil || recipe.LooksStructured(req.Message) {
		limit = h.config.Limits.StoreMaxChars
	}
	length := utf8.RuneCountInString(req.Message)
	if length == 0 || length > limit {
		common.LogInfo("訊息長度超出限制",
			zap.Int("length", length),
			zap.Int("max", limit),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Message length out of range",
			"code":  common.ErrCodeInvalidRequest,
			"max":   limit,
		})
		return
	}

	common.LogInfo("開始處理對話請求",
		zap.String("request_id", requestID),
		zap.String("client_ip", c.ClientIP()),
		zap.Int("message_chars", length),
		zap.Int("history_turns", len(req.ConversationHistory)),
		zap.Bool("confirm", req.ConfirmRecipe != nil),
	)

	history := make([]intent.Turn, 0, len(req.ConversationHistory))
	for _, t := range req.ConversationHistory {
		history = append(history, intent.Turn{Role: t.Role, Text: t.Text})
	}

	resp := h.dispatcher.Handle(c.Request.Context(), &chatService.Request{
		Message:       req.Message,
		History:       history,
		ConfirmRecipe: req.ConfirmRecipe,
		GroupID:       req.GroupID,
		UserID:        c.GetHeader("X-User-ID"),
	})

	common.LogInfo("對話請求完成",
		zap.String("request_id", requestID),
		zap.String("intent", string(resp.Intent)),
		zap.Bool("success", resp.Success),
		zap.Bool("needs_clarification", resp.NeedsClarification),
	)

	c.JSON(http.StatusOK, resp)
}
