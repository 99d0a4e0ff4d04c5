package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Extraction 抽取結果：可供食譜解析的純文字加上來源資訊
type Extraction struct {
	Text      string
	SourceURL string
	Platform  string
	VideoID   string
	Meta      *VideoMeta
}

// Extractor 內容抽取器：純文字直接通過，網址經防護後抓取，影片走字幕
type Extractor struct {
	config *config.Config
	guard  *Guard
	video  *VideoClient
	client *resty.Client
}

// NewExtractor 創建內容抽取器
func NewExtractor(cfg *config.Config, guard *Guard, video *VideoClient) *Extractor {
	e := &Extractor{
		config: cfg,
		guard:  guard,
		video:  video,
	}

	e.client = resty.New().
		SetTimeout(cfg.Fetch.Timeout).
		SetHeader("User-Agent", cfg.Fetch.UserAgent).
		SetDoNotParseResponse(true).
		SetRedirectPolicy(resty.RedirectPolicyFunc(e.checkRedirect))

	return e
}

// checkRedirect 每一個轉址跳點都重新通過防護；只驗證原始網址是不夠的
func (e *Extractor) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 5 {
		return fmt.Errorf("too many redirects")
	}
	verdict := e.guard.Check(req.Context(), req.URL.String())
	if !verdict.Allowed {
		return fmt.Errorf("redirect target rejected: %s", verdict.Reason)
	}
	return nil
}

// Extract 將輸入轉成可解析的純文字
// 所有失敗都以使用者可讀的原因回報，不外洩原始錯誤
func (e *Extractor) Extract(ctx context.Context, input string) (*Extraction, error) {
	input = strings.TrimSpace(input)

	rawURL, isURL := singleURL(input)
	if !isURL {
		// 貼上的純文字：原樣通過
		if input == "" {
			return nil, common.ErrExtractionEmpty.WithReason("沒有收到任何內容")
		}
		return &Extraction{Text: input}, nil
	}

	// 每次抓取前都重新判定，不沿用過去的結論
	verdict := e.guard.Check(ctx, rawURL)
	if !verdict.Allowed {
		return nil, common.ErrUnsafeSource.WithReason("這個來源無法使用：" + verdict.Reason)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, common.ErrUnsafeSource.WithReason("這個來源無法使用：網址格式不正確")
	}

	// 影片來源：字幕為主要內容，中繼資料獨立取得
	if platform, videoID, ok := ParseVideoID(u); ok {
		return e.extractVideo(ctx, rawURL, platform, videoID)
	}

	return e.extractPage(ctx, rawURL)
}

// extractVideo 透過字幕服務取得影片逐字稿
func (e *Extractor) extractVideo(ctx context.Context, rawURL, platform, videoID string) (*Extraction, error) {
	meta := e.video.Metadata(ctx, rawURL)

	transcript, err := e.video.Transcript(ctx, videoID)
	if err != nil {
		common.LogWarn("字幕查詢失敗",
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		return nil, common.ErrExtractionEmpty.WithReason("暫時無法取得這部影片的字幕，請稍後再試或直接貼上食譜內容")
	}

	// 沒有字幕是軟失敗：請使用者改貼文字
	if transcript == "" {
		return nil, common.ErrExtractionEmpty.WithReason("這部影片沒有可用字幕，請直接貼上食譜內容")
	}

	return &Extraction{
		Text:      transcript,
		SourceURL: rawURL,
		Platform:  platform,
		VideoID:   videoID,
		Meta:      meta,
	}, nil
}

// extractPage 抓取一般網頁並抽出可讀文字
func (e *Extractor) extractPage(ctx context.Context, rawURL string) (*Extraction, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		Get(rawURL)

	if err != nil {
		// 轉址遭防護拒絕也會走到這裡；一律回安全的拒絕訊息
		if strings.Contains(err.Error(), "redirect target rejected") {
			return nil, common.ErrUnsafeSource.WithReason("這個來源無法使用：轉址目標不被允許")
		}
		common.LogWarn("網頁抓取失敗",
			zap.String("url", common.Truncate(rawURL, 120)),
			zap.Error(err),
		)
		return nil, common.ErrExtractionEmpty.WithReason("無法連線到這個網址")
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, common.ErrExtractionEmpty.WithReason("這個網址回應異常，取不到內容")
	}

	// 讀取上限內的內容，超過即截斷
	limited := io.LimitReader(body, e.config.Fetch.MaxBodyBytes)
	text := htmlToText(limited)
	if text == "" {
		return nil, common.ErrExtractionEmpty.WithReason("這個頁面取不到可用的文字")
	}

	return &Extraction{
		Text:      text,
		SourceURL: rawURL,
	}, nil
}

// singleURL 判斷輸入是否為單一網址
func singleURL(input string) (string, bool) {
	if strings.ContainsAny(input, " \t\n") {
		return "", false
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return "", false
	}
	return input, true
}

// 不收集文字的標籤
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"form":     true,
	"button":   true,
}

// htmlToText 從 HTML 抽出可讀文字，去掉標記與版面雜訊
func htmlToText(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)

	var sb strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skipTags[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipTags[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			sb.WriteString(common.NormalizeWhitespace(text))
			sb.WriteString("\n")
		}
	}
}
