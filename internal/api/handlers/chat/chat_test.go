package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chatService "recipe-assistant/internal/core/chat"
	"recipe-assistant/internal/core/ingest"
	"recipe-assistant/internal/core/intent"
	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/core/store"
	"recipe-assistant/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	result *intent.Result
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, history []intent.Turn) (*intent.Result, error) {
	f.calls++
	return f.result, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, input string) (*ingest.Extraction, error) {
	return &ingest.Extraction{Text: input}, nil
}

type fakeParser struct{}

func (fakeParser) Parse(ctx context.Context, text string) (*recipe.Recipe, error) {
	return &recipe.Recipe{Title: "t", Ingredients: []string{"a"}, Steps: []string{"b"}}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeResponder struct{}

func (fakeResponder) Respond(ctx context.Context, message string, history []intent.Turn) (string, error) {
	return "好喔", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Policy: config.PolicyConfig{
			ConfidenceThreshold:       0.8,
			GenerateRedirectsToSearch: true,
			SearchLimit:               10,
			MaxHistoryTurns:           10,
		},
		Limits: config.LimitsConfig{
			ChatMaxChars:  10000,
			StoreMaxChars: 50000,
		},
	}
}

func newTestRouter(classifier *fakeClassifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	memStore := store.NewMemoryStore()

	dispatcher := chatService.NewDispatcher(
		cfg,
		classifier,
		fakeExtractor{},
		fakeParser{},
		fakeEmbedder{},
		fakeResponder{},
		memStore,
		memStore,
	)

	router := gin.New()
	router.POST("/api/v1/chat", NewHandler(cfg, dispatcher).HandleChat)
	return router
}

func postChat(t *testing.T, router *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleChatRespondsWithIntent(t *testing.T) {
	classifier := &fakeClassifier{result: &intent.Result{Intent: intent.IntentGeneralChat, Confidence: 0.95}}
	router := newTestRouter(classifier)

	w := postChat(t, router, map[string]interface{}{"message": "晚餐吃什麼"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatService.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, intent.IntentGeneralChat, resp.Intent)
	assert.Equal(t, "好喔", resp.Message)
}

func TestHandleChatRejectsMissingMessage(t *testing.T) {
	router := newTestRouter(&fakeClassifier{result: &intent.Result{Intent: intent.IntentGeneralChat, Confidence: 0.95}})

	w := postChat(t, router, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChatRejectsOversizeMessageBeforeClassification(t *testing.T) {
	classifier := &fakeClassifier{result: &intent.Result{Intent: intent.IntentGeneralChat, Confidence: 0.95}}
	router := newTestRouter(classifier)

	w := postChat(t, router, map[string]interface{}{"message": strings.Repeat("長", 10001)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 超長訊息不得觸發任何模型調用
	assert.Zero(t, classifier.calls)
}

func TestHandleChatAllowsLongStructuredPaste(t *testing.T) {
	classifier := &fakeClassifier{result: &intent.Result{Intent: intent.IntentStoreRecipe, Confidence: 0.95}}
	router := newTestRouter(classifier)

	// 帶段落標頭的貼文放寬到儲存上限
	message := "標題：滷肉飯\n食材：\n- 五花肉\n步驟：\n1. " + strings.Repeat("滷", 20000)
	w := postChat(t, router, map[string]interface{}{"message": message})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, classifier.calls)
}

func TestHandleChatRejectsStructuredPasteOverStoreLimit(t *testing.T) {
	classifier := &fakeClassifier{result: &intent.Result{Intent: intent.IntentStoreRecipe, Confidence: 0.95}}
	router := newTestRouter(classifier)

	message := "標題：滷肉飯\n食材：\n- 五花肉\n步驟：\n1. " + strings.Repeat("滷", 50001)
	w := postChat(t, router, map[string]interface{}{"message": message})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, classifier.calls)
}

func TestHandleChatPassesHistory(t *testing.T) {
	classifier := &fakeClassifier{result: &intent.Result{Intent: intent.IntentGeneralChat, Confidence: 0.95}}
	router := newTestRouter(classifier)

	w := postChat(t, router, map[string]interface{}{
		"message": "那要煮多久？",
		"conversation_history": []map[string]string{
			{"role": "user", "text": "義大利麵怎麼煮"},
			{"role": "assistant", "text": "水滾後下麵"},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, classifier.calls)
}

func TestHandleChatConfirmTurnPersists(t *testing.T) {
	classifier := &fakeClassifier{}
	router := newTestRouter(classifier)

	w := postChat(t, router, map[string]interface{}{
		"message": "就是這份，存起來",
		"confirm_recipe": map[string]interface{}{
			"title":       "咖哩",
			"ingredients": []string{"洋蔥"},
			"steps":       []string{"炒洋蔥"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatService.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.NeedsClarification)

	// 確認回合不經過分類
	assert.Zero(t, classifier.calls)
}
