package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Embedding   EmbeddingConfig  `mapstructure:"embedding"`
	Captions    CaptionsConfig   `mapstructure:"captions"`
	Fetch       FetchConfig      `mapstructure:"fetch"`
	Policy      PolicyConfig     `mapstructure:"policy"`
	Limits      LimitsConfig     `mapstructure:"limits"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// 對外模型呼叫預算（每秒請求數與突發量）
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// EmbeddingConfig 向量嵌入服務配置
type EmbeddingConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CaptionsConfig 影片字幕與中繼資料服務配置
type CaptionsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	OEmbedURL string        `mapstructure:"oembed_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// FetchConfig 外部網頁抓取配置
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	MaxURLLength int           `mapstructure:"max_url_length"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// PolicyConfig 路由決策相關的策略常數
type PolicyConfig struct {
	// 信心門檻：低於此值一律改為追問澄清
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// generate_recipe 改送 search 處理器（刻意的策略規則，不是分類錯誤）
	GenerateRedirectsToSearch bool `mapstructure:"generate_redirects_to_search"`
	SearchLimit               int  `mapstructure:"search_limit"`
	MaxHistoryTurns           int  `mapstructure:"max_history_turns"`
}

// LimitsConfig 訊息長度限制
type LimitsConfig struct {
	ChatMaxChars  int `mapstructure:"chat_max_chars"`
	StoreMaxChars int `mapstructure:"store_max_chars"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Requests  int           `mapstructure:"requests"`
	Window    time.Duration `mapstructure:"window"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時不視為錯誤）
	_ = godotenv.Load()

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	viper.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	viper.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	viper.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	viper.BindEnv("embedding.model", "EMBEDDING_MODEL")
	viper.BindEnv("captions.base_url", "CAPTIONS_BASE_URL")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("rate_limit.redis_addr", "RATE_LIMIT_REDIS_ADDR")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 添加調試日誌（logger 尚未初始化，改用 fmt.Println）
	fmt.Println("Loading configuration", "openrouter_api_key:", maskAPIKey(viper.GetString("openrouter.api_key")), "openrouter_model:", viper.GetString("openrouter.model"))

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "recipe-assistant")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// OpenRouter 設定
	viper.SetDefault("openrouter.enabled", true)
	viper.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("openrouter.model", "qwen/qwen2.5-72b-instruct:free")
	viper.SetDefault("openrouter.max_tokens", 2048)
	viper.SetDefault("openrouter.timeout", "60s")
	viper.SetDefault("openrouter.requests_per_second", 2.0)
	viper.SetDefault("openrouter.burst", 4)

	// 向量嵌入設定
	viper.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.timeout", "30s")

	// 字幕與中繼資料設定
	viper.SetDefault("captions.base_url", "")
	viper.SetDefault("captions.oembed_url", "https://www.youtube.com/oembed")
	viper.SetDefault("captions.timeout", "15s")

	// 網頁抓取設定
	viper.SetDefault("fetch.timeout", "20s")
	viper.SetDefault("fetch.max_body_bytes", 2*1024*1024) // 2MB
	viper.SetDefault("fetch.max_url_length", 2048)
	viper.SetDefault("fetch.user_agent", "recipe-assistant/1.0")

	// 策略設定
	viper.SetDefault("policy.confidence_threshold", 0.8)
	viper.SetDefault("policy.generate_redirects_to_search", true)
	viper.SetDefault("policy.search_limit", 10)
	viper.SetDefault("policy.max_history_turns", 10)

	// 訊息長度限制
	viper.SetDefault("limits.chat_max_chars", 10000)
	viper.SetDefault("limits.store_max_chars", 50000)

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.cleanup_interval", "10m")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")
	viper.SetDefault("rate_limit.redis_addr", "")

	// 新增 dedup window 預設
	viper.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證策略設定
	if config.Policy.ConfidenceThreshold < 0 || config.Policy.ConfidenceThreshold > 1 {
		return fmt.Errorf("invalid confidence threshold")
	}
	if config.Policy.SearchLimit <= 0 {
		return fmt.Errorf("invalid search limit")
	}

	// 驗證長度限制
	if config.Limits.ChatMaxChars <= 0 || config.Limits.StoreMaxChars < config.Limits.ChatMaxChars {
		return fmt.Errorf("invalid message length limits")
	}

	// 驗證抓取設定
	if config.Fetch.MaxURLLength <= 0 {
		return fmt.Errorf("invalid fetch max url length")
	}
	if config.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid fetch max body bytes")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	// 驗證限流設定
	if config.RateLimit.Enabled {
		if config.RateLimit.Requests <= 0 {
			return fmt.Errorf("invalid rate limit requests")
		}
		if config.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit window")
		}
	}

	return nil
}
