package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/crvouga/colddrive/internal/auth"
	"github.com/crvouga/colddrive/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Configured() bool
	ConsentURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string, meta model.ClientMeta) (*auth.LoginResult, error)
	Logout(ctx context.Context, credential string) error
}

// LoginObserver はログイン結果のメトリクス記録インターフェース。
type LoginObserver interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordLogout()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string // コールバック後のリダイレクト先
	Cookie  CookieConfig
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	observer LoginObserver
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。observerはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, observer LoginObserver, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		observer: observer,
		config:   config,
	}
}

// Callback はOAuthコールバックを処理する。
// GET /api/auth/callback?code=xxx
//
// 失敗時はブラウザを壊さないよう、アプリのトップにエラーコード付きで
// 302リダイレクトする（?error=oauth_error 等）。
// 成功時はセッションCookieを設定してトップにリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		// リダイレクト先でエラー表示できないケースのみプレーンテキストで返す
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Google OAuth is not configured"))
		return
	}

	// IdPがエラーを返した場合
	if oauthErr := r.URL.Query().Get("error"); oauthErr != "" {
		slog.Warn("oauth callback returned error", slog.String("error", oauthErr))
		h.redirectWithError(w, r, model.RedirectErrorOAuth)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, model.RedirectErrorMissingCode)
		return
	}

	result, err := h.service.HandleCallback(r.Context(), code, clientMeta(r))
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectWithError(w, r, callbackErrorCode(err))
		return
	}

	http.SetCookie(w, newSessionCookie(result.Credential, h.config.Cookie))

	if h.observer != nil {
		h.observer.RecordLoginSuccess()
	}

	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusFound)
}

// Logout はセッションを破棄しCookieを削除する。
// POST /api/auth/logout
// 資格情報が不正・未提示でも成功扱い（冪等）。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	credential := sessionCredentialFromRequest(r)
	if err := h.service.Logout(r.Context(), credential); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		// ログアウト失敗してもCookieはクリアする
	}

	http.SetCookie(w, newSessionDeleteCookie(h.config.Cookie))

	if h.observer != nil {
		h.observer.RecordLogout()
	}

	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusFound)
}

// redirectWithError はエラーコード付きでアプリのトップにリダイレクトする。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	if h.observer != nil {
		h.observer.RecordLoginFailure(code)
	}
	http.Redirect(w, r, h.config.BaseURL+"/?error="+code, http.StatusFound)
}

// callbackErrorCode はコールバック処理のエラーをリダイレクトエラーコードに変換する。
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrExchangeFailed):
		return model.RedirectErrorTokenExchange
	case errors.Is(err, auth.ErrVerificationFailed):
		return model.RedirectErrorTokenVerification
	default:
		return model.RedirectErrorAuthFailed
	}
}

// clientMeta はリクエストから監査用のクライアント情報を抽出する。
// プロキシ経由の場合はX-Forwarded-For / X-Real-IPを優先する。
func clientMeta(r *http.Request) model.ClientMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// カンマ区切りの場合は先頭（クライアント側）を採用する
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = strings.TrimSpace(ip[:idx])
		}
	}
	if ip == "" {
		ip = r.Header.Get("X-Real-Ip")
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}

	return model.ClientMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
