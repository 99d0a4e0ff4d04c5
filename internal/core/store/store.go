package store

import (
	"context"
	"sync"
	"time"

	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/core/search"
	"recipe-assistant/internal/pkg/common"

	"github.com/google/uuid"
)

// RecipeStore 食譜持久層邊界
// 列級授權由實作負責：ListForSearch 只能回傳呼叫者有權讀取的資料
type RecipeStore interface {
	Save(ctx context.Context, groupID, userID string, r *recipe.Recipe) error
	ListForSearch(ctx context.Context, groupID, userID string) ([]search.Candidate, error)
}

// ChatHistoryStore 對話歷史附加日誌邊界
type ChatHistoryStore interface {
	Append(ctx context.Context, groupID, userID, role, text string) error
}

// MemoryStore 參考實作：供測試與開發模式使用
// 正式環境由外部的關聯式儲存實作同一組介面
type MemoryStore struct {
	mu      sync.RWMutex
	recipes map[string][]*recipe.Recipe // groupID → recipes
	members map[string]map[string]bool  // groupID → userID set
	history []historyEntry
}

type historyEntry struct {
	GroupID string
	UserID  string
	Role    string
	Text    string
	At      time.Time
}

// NewMemoryStore 創建記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recipes: make(map[string][]*recipe.Recipe),
		members: make(map[string]map[string]bool),
	}
}

// AddMember 將使用者加入群組（測試與開發用）
func (s *MemoryStore) AddMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[string]bool)
	}
	s.members[groupID][userID] = true
}

// authorized 呼叫端須持有讀鎖
func (s *MemoryStore) authorized(groupID, userID string) bool {
	if groupID == "" {
		// 空群組視為個人空間
		return true
	}
	return s.members[groupID][userID]
}

// Save 寫入食譜；未授權與不存在同語，不洩露群組存在性
func (s *MemoryStore) Save(ctx context.Context, groupID, userID string, r *recipe.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized(groupID, userID) {
		return common.ErrUnauthorized
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	key := groupKey(groupID, userID)
	s.recipes[key] = append(s.recipes[key], r)
	return nil
}

// ListForSearch 回傳呼叫者授權範圍內的候選
func (s *MemoryStore) ListForSearch(ctx context.Context, groupID, userID string) ([]search.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.authorized(groupID, userID) {
		return nil, common.ErrUnauthorized
	}

	key := groupKey(groupID, userID)
	candidates := make([]search.Candidate, 0, len(s.recipes[key]))
	for _, r := range s.recipes[key] {
		candidates = append(candidates, search.Candidate{
			RecipeID:  r.ID,
			Vector:    r.Embedding,
			CreatedAt: r.CreatedAt,
			Recipe:    r,
		})
	}
	return candidates, nil
}

// Append 追加一筆對話記錄
func (s *MemoryStore) Append(ctx context.Context, groupID, userID, role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, historyEntry{
		GroupID: groupID,
		UserID:  userID,
		Role:    role,
		Text:    text,
		At:      time.Now(),
	})
	return nil
}

func groupKey(groupID, userID string) string {
	if groupID == "" {
		return "user:" + userID
	}
	return "group:" + groupID
}
