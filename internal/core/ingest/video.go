package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PlatformYouTube 目前唯一支援的影片平台
const PlatformYouTube = "youtube"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// ParseVideoID 從網址辨識影片平台與影片 ID
func ParseVideoID(u *url.URL) (platform, id string, ok bool) {
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/embed/"), "/")
		case strings.HasPrefix(u.Path, "/live/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/live/"), "/")
		}
	default:
		return "", "", false
	}

	if !videoIDPattern.MatchString(id) {
		return "", "", false
	}
	return PlatformYouTube, id, true
}

// VideoMeta 影片中繼資料（僅供顯示）
type VideoMeta struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// VideoClient 字幕與中繼資料客戶端；兩種查詢彼此獨立、各自容錯
type VideoClient struct {
	config *config.CaptionsConfig
	client *resty.Client
}

// NewVideoClient 創建影片資料客戶端
func NewVideoClient(cfg *config.CaptionsConfig) *VideoClient {
	client := resty.New().
		SetTimeout(cfg.Timeout)

	return &VideoClient{
		config: cfg,
		client: client,
	}
}

// Transcript 向字幕服務查詢逐字稿
// 回傳 ("", nil) 表示影片沒有字幕，屬於軟失敗而非錯誤
func (c *VideoClient) Transcript(ctx context.Context, videoID string) (string, error) {
	if c.config.BaseURL == "" {
		common.LogDebug("字幕服務未設定", zap.String("video_id", videoID))
		return "", nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("video_id", videoID).
		Get(c.config.BaseURL + "/transcript")

	if err != nil {
		return "", fmt.Errorf("failed to reach captions service: %w", err)
	}

	// 404 表示沒有字幕，不是錯誤
	if resp.StatusCode() == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("captions service returned status %d", resp.StatusCode())
	}

	var result struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse captions response: %w", err)
	}

	return strings.TrimSpace(result.Transcript), nil
}

// Metadata 透過公開的 oEmbed 端點取得標題與縮圖；失敗時回傳 nil 而不中斷流程
func (c *VideoClient) Metadata(ctx context.Context, videoURL string) *VideoMeta {
	if c.config.OEmbedURL == "" {
		return nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("url", videoURL).
		SetQueryParam("format", "json").
		Get(c.config.OEmbedURL)

	if err != nil || resp.StatusCode() != http.StatusOK {
		common.LogDebug("oEmbed 查詢失敗",
			zap.String("url", videoURL),
			zap.Error(err),
		)
		return nil
	}

	var meta VideoMeta
	if err := json.Unmarshal(resp.Body(), &meta); err != nil {
		return nil
	}
	return &meta
}
