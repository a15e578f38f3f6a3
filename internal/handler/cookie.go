// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"net/http"

	"github.com/crvouga/colddrive/internal/middleware"
)

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// newSessionCookie はセッション資格情報を保持するCookieを生成する。
// HTTP Only、SameSite=Laxで、本番環境ではSecureを付与する。
func newSessionCookie(credential string, cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    credential,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// newSessionDeleteCookie はセッションCookieを削除するCookieを生成する。
func newSessionDeleteCookie(cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// sessionCredentialFromRequest はリクエストCookieからセッション資格情報を取り出す。
// 未提示の場合は空文字を返す。
func sessionCredentialFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
