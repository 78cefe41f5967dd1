package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, content, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSiteNotFound     = "SITE_NOT_FOUND"
	ErrCodeChannelNotFound  = "CHANNEL_NOT_FOUND"
	ErrCodeContentNotFound  = "CONTENT_NOT_FOUND"
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeInvalidDate      = "INVALID_DATE"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

// NewSiteNotFoundError はサイト未検出エラーを生成する。
func NewSiteNotFoundError(siteID int) *APIError {
	return &APIError{
		Code:     ErrCodeSiteNotFound,
		Message:  fmt.Sprintf("指定されたサイトが見つかりません: %d", siteID),
		Category: "content",
		Action:   "サイトIDを確認してください。",
	}
}

// NewChannelNotFoundError はチャンネル未検出エラーを生成する。
func NewChannelNotFoundError(channelID int) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %d", channelID),
		Category: "content",
		Action:   "チャンネルIDを確認してください。",
	}
}

// NewContentNotFoundError はコンテンツ未検出エラーを生成する。
func NewContentNotFoundError(contentID int) *APIError {
	return &APIError{
		Code:     ErrCodeContentNotFound,
		Message:  fmt.Sprintf("指定されたコンテンツが見つかりません: %d", contentID),
		Category: "content",
		Action:   "コンテンツIDを確認してください。",
	}
}

// NewInvalidParameterError は無効なパラメータエラーを生成する。
func NewInvalidParameterError(name, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("無効なパラメータです: %s=%s", name, value),
		Category: "validation",
		Action:   "パラメータの形式を確認してください。",
	}
}

// NewInvalidDateError は日付の解析に失敗した場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付を解析できません: %s", value),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数を待ってから再度お試しください。",
	}
}
