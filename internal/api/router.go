package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	chatHandler "recipe-assistant/internal/api/handlers/chat"
	"recipe-assistant/internal/api/handlers/health"
	"recipe-assistant/internal/api/middleware"
	"recipe-assistant/internal/core/ai/cache"
	"recipe-assistant/internal/core/ai/service"
	chatService "recipe-assistant/internal/core/chat"
	"recipe-assistant/internal/core/embedding"
	"recipe-assistant/internal/core/ingest"
	"recipe-assistant/internal/core/intent"
	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/core/store"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 120 * time.Second
	// 請求體大小限制 (1MB)，純文字對話不需要更大
	maxBodySize = 1 << 20
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, cacheManager *cache.CacheManager) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 限流在任何下游處理之前，被拒絕的請求不得觸發任何模型或抓取調用
	if cfg.RateLimit.Enabled {
		var limiter middleware.Limiter
		if cfg.RateLimit.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr: cfg.RateLimit.RedisAddr,
			})
			limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
			common.LogInfo("Rate limiter initialized",
				zap.String("backend", "redis"),
				zap.String("addr", cfg.RateLimit.RedisAddr),
				zap.Int("requests", cfg.RateLimit.Requests),
				zap.Duration("window", cfg.RateLimit.Window),
			)
		} else {
			limiter = middleware.NewLocalLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
			common.LogInfo("Rate limiter initialized",
				zap.String("backend", "local"),
				zap.Int("requests", cfg.RateLimit.Requests),
				zap.Duration("window", cfg.RateLimit.Window),
			)
		}
		router.Use(middleware.RateLimit(limiter))
	}

	// 重複請求去重
	router.Use(middleware.Deduplication(cfg))

	common.LogInfo("Initializing services",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.String("model", cfg.OpenRouter.Model),
		zap.Duration("timeout", timeoutDuration),
	)

	// 初始化 AI 服務
	aiService, err := service.NewService(cfg, cacheManager)
	if err != nil || aiService == nil {
		common.LogError("Failed to initialize AI service", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize AI service: %w", err)
	}

	// 初始化內容抽取管線
	guard := ingest.NewGuard(cfg.Fetch.MaxURLLength)
	videoClient := ingest.NewVideoClient(&cfg.Captions)
	extractor := ingest.NewExtractor(cfg, guard, videoClient)

	// 初始化各意圖處理器的依賴
	classifier := intent.NewClassifier(aiService)
	parser := recipe.NewParser(aiService)
	embedder := embedding.NewService(&cfg.Embedding)
	responder := chatService.NewChatResponder(aiService)
	memStore := store.NewMemoryStore()

	dispatcher := chatService.NewDispatcher(
		cfg,
		classifier,
		extractor,
		parser,
		embedder,
		responder,
		memStore,
		memStore,
	)

	common.LogInfo("Chat services initialized successfully",
		zap.Bool("ai_service_initialized", aiService != nil),
		zap.Bool("cache_manager_initialized", cacheManager != nil),
		zap.String("environment", cfg.App.Env),
	)

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		// 設置請求超時
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		// 創建新的請求上下文
		req := c.Request.WithContext(ctx)
		c.Request = req

		// 設置配置與服務
		c.Set("config", cfg)
		c.Set("ai_service", aiService)
		c.Set("cache_manager", cacheManager)
		common.LogDebug("Services injected into context",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)

		// 處理請求
		c.Next()

		// 檢查是否超時
		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
				"details": gin.H{
					"timeout": timeoutDuration.String(),
				},
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		chatHandlerInstance := chatHandler.NewHandler(cfg, dispatcher)
		api.POST("/chat", chatHandlerInstance.HandleChat)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
