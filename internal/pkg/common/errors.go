package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 使用者可見的錯誤信息（一律為安全的通用文字）
	Err     error  // 原始錯誤（只進日誌，不回傳給使用者）
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap 讓 errors.Is / errors.As 能追溯原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// WithReason 以同一錯誤代碼附帶更具體（但仍可給使用者看）的原因
func (e *CustomError) WithReason(reason string) *CustomError {
	return &CustomError{
		Code:    e.Code,
		Message: reason,
		Status:  e.Status,
		Err:     e.Err,
	}
}

// CodeOf 取出錯誤代碼；非 CustomError 一律視為內部錯誤
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternalError
}

// IsCode 檢查錯誤是否屬於指定代碼
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// ValidationError 表示驗證錯誤
type ValidationError struct {
	message string
}

// Error 實現 error 介面
func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeUnauthorized     = "UNAUTHORIZED"       // 401
	ErrCodeForbidden        = "FORBIDDEN"          // 403
	ErrCodeNotFound         = "NOT_FOUND"          // 404
	ErrCodeRequestTimeout   = "REQUEST_TIMEOUT"    // 408
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504

	// 業務失敗（對應路由層的安全失敗模式）
	ErrCodeClassificationUnavailable = "CLASSIFICATION_UNAVAILABLE" // 分類模型不可用，視同低信心
	ErrCodeUnsafeSource              = "UNSAFE_SOURCE"              // URL 防護拒絕，不得透露網路細節
	ErrCodeExtractionEmpty           = "EXTRACTION_EMPTY"           // 來源取不到任何文字
	ErrCodeParseIncomplete           = "PARSE_INCOMPLETE"           // 食譜缺必要欄位，需走確認回合
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "找不到符合的食譜", http.StatusOK, nil) // 與 not found 同語，避免洩露資源存在性
	ErrNotFound        = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrRequestTimeout  = NewError(ErrCodeRequestTimeout, "請求超時", http.StatusRequestTimeout, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "網關超時", http.StatusGatewayTimeout, nil)

	// 業務失敗
	ErrClassificationUnavailable = NewError(ErrCodeClassificationUnavailable, "暫時無法判斷你的需求", http.StatusOK, nil)
	ErrUnsafeSource              = NewError(ErrCodeUnsafeSource, "這個來源無法使用", http.StatusOK, nil)
	ErrExtractionEmpty           = NewError(ErrCodeExtractionEmpty, "這個來源取不到食譜內容", http.StatusOK, nil)
	ErrParseIncomplete           = NewError(ErrCodeParseIncomplete, "食譜內容不完整", http.StatusOK, nil)

	// 快取／AI 服務
	ErrCacheFull      = NewError("CACHE_FULL", "緩存已滿", http.StatusServiceUnavailable, nil)
	ErrCacheDisabled  = NewError("CACHE_DISABLED", "緩存已禁用", http.StatusServiceUnavailable, nil)
	ErrAIServiceError = NewError("AI_SERVICE_ERROR", "AI 服務錯誤", http.StatusServiceUnavailable, nil)
)
