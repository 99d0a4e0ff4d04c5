package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recipe-assistant/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newDedupRouter(window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Deduplication(&config.Config{DedupWindow: window}))
	router.POST("/api/v1/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postBody(router *gin.Engine, body, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestDeduplicationRejectsIdenticalRepeat(t *testing.T) {
	router := newDedupRouter(time.Minute)

	body := `{"message":"dedup-repeat-case"}`
	assert.Equal(t, http.StatusOK, postBody(router, body, "dedup-user-a").Code)
	assert.Equal(t, http.StatusTooManyRequests, postBody(router, body, "dedup-user-a").Code)
}

func TestDeduplicationAllowsDifferentBodies(t *testing.T) {
	router := newDedupRouter(time.Minute)

	assert.Equal(t, http.StatusOK, postBody(router, `{"message":"dedup-first"}`, "dedup-user-b").Code)
	assert.Equal(t, http.StatusOK, postBody(router, `{"message":"dedup-second"}`, "dedup-user-b").Code)
}

func TestDeduplicationIsPerUser(t *testing.T) {
	router := newDedupRouter(time.Minute)

	body := `{"message":"dedup-shared-body"}`
	assert.Equal(t, http.StatusOK, postBody(router, body, "dedup-user-c").Code)
	assert.Equal(t, http.StatusOK, postBody(router, body, "dedup-user-d").Code)
}

func TestBodySizeLimitRejectsOversizedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(BodySizeLimit(16))
	router.POST("/api/v1/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(strings.Repeat("a", 64)))
	req.ContentLength = 64
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
