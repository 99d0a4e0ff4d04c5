package recipe

import (
	"strings"
	"time"
)

// Recipe 食譜；ingredients 與 steps 的順序有意義
type Recipe struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Ingredients []string  `json:"ingredients"`
	Steps       []string  `json:"steps"`
	Tags        []string  `json:"tags,omitempty"`

	// 出處（皆為選填）
	SourceURL     string `json:"source_url,omitempty"`
	VideoPlatform string `json:"video_platform,omitempty"`
	VideoID       string `json:"video_id,omitempty"`
	Cookbook      string `json:"cookbook,omitempty"`
	CookbookPage  int    `json:"cookbook_page,omitempty"`
	Contributor   string `json:"contributor,omitempty"`

	// 向量在第一次寫入前產生；食譜內容變動時必須重算，不得單獨改動
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Complete 檢查必要欄位：標題、食材、步驟缺一不可
// 不完整的食譜不得寫入，必須退回確認回合
func (r *Recipe) Complete() bool {
	return strings.TrimSpace(r.Title) != "" && len(r.Ingredients) > 0 && len(r.Steps) > 0
}

// MissingFields 列出缺少的必要欄位，供澄清提示使用
func (r *Recipe) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "標題")
	}
	if len(r.Ingredients) == 0 {
		missing = append(missing, "食材")
	}
	if len(r.Steps) == 0 {
		missing = append(missing, "步驟")
	}
	return missing
}
