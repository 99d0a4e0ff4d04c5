package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recipe-assistant/internal/core/ai/cache"
	"recipe-assistant/internal/core/ai/openrouter"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"golang.org/x/time/rate"
)

// Service AI 服務：統一出口，負責快取、對外呼叫預算與實際請求
type Service struct {
	config       *config.Config
	openRouter   *openrouter.Client
	cacheManager *cache.CacheManager
	limiter      *rate.Limiter
}

// NewService 創建 AI 服務
func NewService(cfg *config.Config, cacheManager *cache.CacheManager) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	rps := cfg.OpenRouter.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.OpenRouter.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Service{
		config:       cfg,
		openRouter:   openrouter.NewClient(cfg),
		cacheManager: cacheManager,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Generate 產生模型回覆；kind 區分用途並決定快取命名空間
func (s *Service) Generate(ctx context.Context, kind, prompt string) (string, error) {
	// 統一 prompt 空白，確保快取 key 一致
	normalized := common.NormalizeWhitespace(prompt)

	// 檢查緩存
	if s.config.Cache.Enabled && s.cacheManager != nil {
		if val, err := s.cacheManager.Get(ctx, kind, normalized); err == nil && val != "" {
			return val, nil
		}
	}

	// 對外呼叫預算：超出時等待，但受 ctx deadline 約束
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("model call budget exceeded: %w", err)
	}

	start := time.Now()
	content, err := s.openRouter.Generate(ctx, prompt)
	common.LogAICall(prompt, time.Since(start), err, "")
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty AI response")
	}

	if s.config.Cache.Enabled && s.cacheManager != nil {
		_ = s.cacheManager.Set(ctx, kind, normalized, content)
	}

	return content, nil
}

// Close 關閉底層客戶端
func (s *Service) Close() error {
	return s.openRouter.Close()
}
