// Package errors 提供對戰伺服器的應用程式錯誤
//
// 錯誤分類：
//   - 協議錯誤（格式錯誤、不屬於該場次的訊息）：INVALID_INPUT / NOT_FOUND
//   - 狀態一致性錯誤（非房主開始、能量不足、房間已滿）：NOT_ALLOWED / INVALID_STATE / QUOTA_EXCEEDED
//   - 外部協作者失敗：SERVICE_UNAVAILABLE（只記錄，不回傳給排程器）
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 資源未找到
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadyExists 資源已存在
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeQuotaExceeded 容量超限
	ErrCodeQuotaExceeded = "QUOTA_EXCEEDED"
	// ErrCodeNotAllowed 無權限執行
	ErrCodeNotAllowed = "NOT_ALLOWED"
	// ErrCodeInvalidState 當前狀態不允許
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeRateLimited 請求過於頻繁
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeUnavailable 服務不可用
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼 + 訊息比對，讓預定義錯誤可以用 errors.Is 判斷
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 回傳帶有詳細資訊的副本（預定義錯誤是共用的，不可原地修改）
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrInvalidMessage 無法解析的訊息
	ErrInvalidMessage = New(ErrCodeInvalidInput, "invalid message")

	// ErrUnknownPlayer 連線尚未註冊
	ErrUnknownPlayer = New(ErrCodeNotFound, "unknown player")

	// ErrSessionNotFound 合作房間不存在
	ErrSessionNotFound = New(ErrCodeNotFound, "session not found")

	// ErrMatchNotFound 對戰不存在
	ErrMatchNotFound = New(ErrCodeNotFound, "match not found")

	// ErrNotParticipant 不是該場次的參與者
	ErrNotParticipant = New(ErrCodeNotFound, "not a participant")

	// ErrAlreadyInSession 玩家已在其他場次
	ErrAlreadyInSession = New(ErrCodeAlreadyExists, "player already in a session")

	// ErrSessionFull 房間已滿
	ErrSessionFull = New(ErrCodeQuotaExceeded, "session is full")

	// ErrNotHost 只有房主可以執行
	ErrNotHost = New(ErrCodeNotAllowed, "only the host can do this")

	// ErrRaidInProgress 討伐已開始
	ErrRaidInProgress = New(ErrCodeInvalidState, "raid already in progress")

	// ErrRaidNotStarted 討伐尚未開始
	ErrRaidNotStarted = New(ErrCodeInvalidState, "raid not in progress")

	// ErrMatchNotActive 對戰不在進行中
	ErrMatchNotActive = New(ErrCodeInvalidState, "match not active")

	// ErrOwnMatch 不能觀戰自己的對戰
	ErrOwnMatch = New(ErrCodeNotAllowed, "cannot spectate your own match")

	// ErrInvalidQueueMode 不支援的排隊模式
	ErrInvalidQueueMode = New(ErrCodeInvalidInput, "invalid queue mode")

	// ErrInsufficientEnergy 能量不足
	ErrInsufficientEnergy = New(ErrCodeInvalidState, "insufficient energy")

	// ErrPlayerDown 玩家已倒下
	ErrPlayerDown = New(ErrCodeInvalidState, "player is down")

	// ErrRateLimited 提交過於頻繁
	ErrRateLimited = New(ErrCodeRateLimited, "too many requests")
)

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsNotAllowed 檢查是否為權限錯誤
func IsNotAllowed(err error) bool {
	return hasCode(err, ErrCodeNotAllowed)
}

// IsQuotaExceeded 檢查是否為容量超限錯誤
func IsQuotaExceeded(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsRateLimited 檢查是否為頻率限制錯誤
func IsRateLimited(err error) bool {
	return hasCode(err, ErrCodeRateLimited)
}

// IsSilent 判斷錯誤是否不需要回覆客戶端
//
// 射擊、傷害等高頻輸入每秒可能觸發數十次，逐一回覆只會製造噪音。
func IsSilent(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInsufficientEnergy) ||
		errors.Is(err, ErrPlayerDown)
}

// CodeOf 取得錯誤碼，非 AppError 一律視為內部錯誤
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
