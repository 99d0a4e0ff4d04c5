package chat

import (
	"context"
	"fmt"
	"strings"

	"recipe-assistant/internal/core/intent"
	"recipe-assistant/internal/pkg/common"
)

// Model 聊天回覆所依賴的語言模型
type Model interface {
	Generate(ctx context.Context, kind, prompt string) (string, error)
}

// ChatResponder 一般聊天與烹飪問答的無狀態回覆器
type ChatResponder struct {
	model Model
}

// NewChatResponder 創建聊天回覆器
func NewChatResponder(model Model) *ChatResponder {
	return &ChatResponder{model: model}
}

const chatPrompt = `你是親切的食譜助理，擅長烹飪知識與日常對話。用繁體中文、口語、簡短地回覆。
不要輸出 JSON 或列表標記，直接回覆文字即可。

對話脈絡（可能為空）：
%s

使用者訊息：
%s`

// Respond 產生一則聊天回覆
func (r *ChatResponder) Respond(ctx context.Context, message string, history []intent.Turn) (string, error) {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString(turn.Role)
		sb.WriteString("：")
		sb.WriteString(common.Truncate(turn.Text, 200))
		sb.WriteString("\n")
	}
	convo := sb.String()
	if convo == "" {
		convo = "（無）"
	}

	reply, err := r.model.Generate(ctx, "chat", fmt.Sprintf(chatPrompt, convo, message))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
