package model

import (
	"errors"
	"fmt"
)

// ドメイン層のセンチネルエラー。呼び出し側は errors.Is で判定する。
var (
	// ErrShopNotFound は生成対象のショップが存在しないことを示す。
	ErrShopNotFound = errors.New("not-found: shop not found")
	// ErrInvalidFeedDocument は保存前のフィードドキュメントがスキーマを満たさないことを示す。
	ErrInvalidFeedDocument = errors.New("invalid google shopping feed document")
	// ErrNoShopIDs は生成対象のショップIDが1件も指定されていないことを示す。
	ErrNoShopIDs = errors.New("generate requires a list of shop ids")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFeedNotFound    = "FEED_NOT_FOUND"
	ErrCodeShopNotFound    = "SHOP_NOT_FOUND"
	ErrCodeInvalidShopURL  = "INVALID_SHOP_URL"
	ErrCodeInvalidHandle   = "INVALID_HANDLE"
	ErrCodeInvalidSettings = "INVALID_SETTINGS"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
)

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(handle string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", handle),
		Category: "feed",
		Action:   "ハンドルとショップURLを確認するか、フィードの生成完了を待ってください。",
	}
}

// NewShopNotFoundError はショップ未検出エラーを生成する。
func NewShopNotFoundError(shopID string) *APIError {
	return &APIError{
		Code:     ErrCodeShopNotFound,
		Message:  fmt.Sprintf("指定されたショップが見つかりません: %s", shopID),
		Category: "feed",
		Action:   "ショップIDを確認してください。",
	}
}

// NewInvalidShopURLError は無効なショップURLエラーを生成する。
func NewInvalidShopURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidShopURL,
		Message:  fmt.Sprintf("無効なショップURLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まるストアフロントのURLを指定してください。",
	}
}

// NewInvalidHandleError は無効なフィードハンドルエラーを生成する。
func NewInvalidHandleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHandle,
		Message:  "フィードハンドルが指定されていません。",
		Category: "validation",
		Action:   "handleパラメータにフィード名（例: google-shopping-feed.xml）を指定してください。",
	}
}

// NewInvalidSettingsError は設定値が無効な場合のエラーを生成する。
func NewInvalidSettingsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSettings,
		Message:  fmt.Sprintf("無効な設定値です: %s", reason),
		Category: "validation",
		Action:   "更新間隔は「every 24 hours」形式またはcron式、配送国は2文字の国コードで指定してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "ショップの管理権限を持つアカウントで実行してください。",
	}
}

// NewUnauthorizedError は認証情報がない、または無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "Authorizationヘッダーに有効なAPIトークンを指定してください。",
	}
}
