package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Policy: PolicyConfig{
			ConfidenceThreshold: 0.8,
			SearchLimit:         10,
			MaxHistoryTurns:     10,
		},
		Limits: LimitsConfig{ChatMaxChars: 10000, StoreMaxChars: 50000},
		Fetch:  FetchConfig{MaxURLLength: 2048, MaxBodyBytes: 1 << 20, Timeout: time.Second},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.8, cfg.Policy.ConfidenceThreshold, 1e-9)
	assert.True(t, cfg.Policy.GenerateRedirectsToSearch)
	assert.Equal(t, 10000, cfg.Limits.ChatMaxChars)
	assert.Equal(t, 50000, cfg.Limits.StoreMaxChars)
	assert.Equal(t, 2048, cfg.Fetch.MaxURLLength)
	assert.NotEmpty(t, cfg.Embedding.Model)
}

func TestValidateConfigAcceptsValid(t *testing.T) {
	assert.NoError(t, validateConfig(validTestConfig()))
}

func TestValidateConfigRejectsBadThreshold(t *testing.T) {
	cfg := validTestConfig()
	cfg.Policy.ConfidenceThreshold = 1.5
	assert.Error(t, validateConfig(cfg))

	cfg.Policy.ConfidenceThreshold = -0.1
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsInvertedLimits(t *testing.T) {
	cfg := validTestConfig()
	cfg.Limits.StoreMaxChars = 5000 // 小於聊天上限
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsRateLimitWithoutWindow(t *testing.T) {
	cfg := validTestConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: true, Requests: 100}
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsCacheWithoutTTL(t *testing.T) {
	cfg := validTestConfig()
	cfg.Cache = CacheConfig{Enabled: true, MaxSize: 10, CleanupInterval: time.Minute}
	assert.Error(t, validateConfig(cfg))
}
