package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"recipe-assistant/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Decision 限流判定結果
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter 按呼叫者分別計數的限流器
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// RedisLimiter 以 Redis 實作的滑動視窗限流器。
// 把視窗切成目前與前一個兩個桶，依照時間比例加權前一桶的計數，
// 避免固定視窗在邊界瞬間放行兩倍流量。
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

// NewRedisLimiter 創建 Redis 滑動視窗限流器
func NewRedisLimiter(client *redis.Client, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	now := time.Now()
	bucket := now.UnixNano() / int64(rl.window)
	curKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)
	prevKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket-1)

	pipe := rl.client.Pipeline()
	curCmd := pipe.Incr(ctx, curKey)
	pipe.Expire(ctx, curKey, 2*rl.window)
	prevCmd := pipe.Get(ctx, prevKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		// Redis 故障時放行，限流是保護不是功能
		common.LogWarn("限流器 Redis 操作失敗，放行請求",
			zap.String("key", key),
			zap.Error(err),
		)
		return Decision{Allowed: true, Limit: rl.requests, Remaining: rl.requests}
	}

	cur := curCmd.Val()
	prev := int64(0)
	if v, err := prevCmd.Int64(); err == nil {
		prev = v
	}

	// 前一桶依剩餘重疊比例加權
	elapsed := time.Duration(now.UnixNano() % int64(rl.window))
	weight := 1.0 - float64(elapsed)/float64(rl.window)
	count := float64(cur) + float64(prev)*weight

	reset := time.Unix(0, (bucket+1)*int64(rl.window))
	if count > float64(rl.requests) {
		return Decision{
			Allowed:    false,
			Limit:      rl.requests,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: time.Until(reset),
		}
	}

	remaining := rl.requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     rl.requests,
		Remaining: remaining,
		Reset:     reset,
	}
}

// LocalLimiter 單機令牌桶限流器，未配置 Redis 時的後備實作
type LocalLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	requests int
	window   time.Duration
}

type tokenBucket struct {
	tokens   float64
	lastTime time.Time
}

// NewLocalLimiter 創建單機限流器
func NewLocalLimiter(requests int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets:  make(map[string]*tokenBucket),
		requests: requests,
		window:   window,
	}
}

func (ll *LocalLimiter) Allow(_ context.Context, key string) Decision {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	now := time.Now()
	b, ok := ll.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(ll.requests), lastTime: now}
		ll.buckets[key] = b
	}

	// 按經過時間補充令牌
	rate := float64(ll.requests) / ll.window.Seconds()
	elapsed := now.Sub(b.lastTime).Seconds()
	b.lastTime = now
	b.tokens += elapsed * rate
	if b.tokens > float64(ll.requests) {
		b.tokens = float64(ll.requests)
	}

	reset := now.Add(ll.window)
	if b.tokens < 1 {
		retry := time.Duration((1 - b.tokens) / rate * float64(time.Second))
		return Decision{
			Allowed:    false,
			Limit:      ll.requests,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: retry,
		}
	}

	b.tokens--
	return Decision{
		Allowed:   true,
		Limit:     ll.requests,
		Remaining: int(b.tokens),
		Reset:     reset,
	}
}

// clientKey 識別呼叫者，優先使用 X-User-ID，否則退回客戶端 IP
func clientKey(c *gin.Context) string {
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// RateLimit 限流中間件，超限請求在任何下游處理前拒絕
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientKey(c)
		d := limiter.Allow(c.Request.Context(), key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Reset.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
		}

		if !d.Allowed {
			common.LogInfo("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path),
			)

			retryAfter := int(d.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"code":        common.ErrCodeTooManyRequests,
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
