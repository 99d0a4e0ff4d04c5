package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Service 向量嵌入服務：呼叫外部嵌入模型，本地不重新實作
type Service struct {
	config *config.EmbeddingConfig
	client *resty.Client
}

// NewService 創建嵌入服務
func NewService(cfg *config.EmbeddingConfig) *Service {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))

	return &Service{
		config: cfg,
		client: client,
	}
}

// NormalizeRecipe 將食譜正規化為嵌入輸入：標題＋食材＋步驟＋標籤
// 儲存與查詢都走同一條正規化，相同內容才會得到可視為相同的向量
func NormalizeRecipe(r *recipe.Recipe) string {
	parts := []string{r.Title}
	parts = append(parts, r.Ingredients...)
	parts = append(parts, r.Steps...)
	parts = append(parts, r.Tags...)
	return NormalizeText(strings.Join(parts, " "))
}

// NormalizeText 查詢文字的正規化
func NormalizeText(text string) string {
	return common.NormalizeWhitespace(strings.ToLower(text))
}

// Embed 取得固定長度向量
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty embedding input")
	}

	req := map[string]interface{}{
		"model": s.config.Model,
		"input": []string{text},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/embeddings")

	if err != nil {
		return nil, fmt.Errorf("failed to send embedding request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		common.LogError("嵌入服務回應異常",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", s.config.Model),
		)
		return nil, fmt.Errorf("embedding API returned status %d", resp.StatusCode())
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	vector := result.Data[0].Embedding
	if s.config.Dimensions > 0 && len(vector) != s.config.Dimensions {
		return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(vector), s.config.Dimensions)
	}

	return vector, nil
}

// Cosine 餘弦相似度；長度不符或零向量回傳 0
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
