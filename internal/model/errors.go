package model

import (
	"errors"
	"fmt"
)

// ErrSessionTokenConflict はセッショントークンの一意制約違反を表す。
// トークンはCSPRNGで生成されるため衝突確率は無視できるが、
// 発生した場合は呼び出し元が区別できるようsentinelとして公開する。
var ErrSessionTokenConflict = errors.New("session token already exists")

// OAuthコールバック失敗時にリダイレクトURLへ付与する機械可読エラーコード。
// 内部詳細を漏らさないよう、ユーザーに見えるのはこの列挙値のみ。
const (
	RedirectErrorOAuth             = "oauth_error"
	RedirectErrorMissingCode       = "missing_code"
	RedirectErrorTokenExchange     = "token_exchange_failed"
	RedirectErrorTokenVerification = "token_verification_failed"
	RedirectErrorAuthFailed        = "auth_failed"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string `json:"code"`     // エラーコード
	Message  string `json:"message"`  // エラーメッセージ
	Category string `json:"category"` // カテゴリ: config, provider, integrity, store, system
	Action   string `json:"action"`   // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeOAuthNotConfigured = "OAUTH_NOT_CONFIGURED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_SERVER_ERROR"
)

// NewOAuthNotConfiguredError はOAuth未設定エラーを生成する。
// 設定状態の通知であり、機能は無効化されるがプロセスは継続する。
func NewOAuthNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthNotConfigured,
		Message:  "Google OAuth is not configured.",
		Category: "config",
		Action:   "Set the GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ出力する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait and try again later.",
	}
}
