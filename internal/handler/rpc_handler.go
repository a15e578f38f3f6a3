package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/crvouga/colddrive/internal/auth"
	"github.com/crvouga/colddrive/internal/middleware"
	"github.com/crvouga/colddrive/internal/model"
	"github.com/crvouga/colddrive/internal/schema"
)

// SchemaObserver はスキーマ配信のメトリクス記録インターフェース。
type SchemaObserver interface {
	RecordSchemaServed()
}

// RPCHandler はRPC形式（auth.*, schema.*）のエンドポイント群を提供する。
// すべてJSONを返す。認証状態はセッションミドルウェアが解決済みの
// コンテキストから読む。
type RPCHandler struct {
	service        AuthServiceInterface
	schemaObserver SchemaObserver
	cookie         CookieConfig
}

// NewRPCHandler はRPCHandlerを生成する。schemaObserverはnilでもよい。
func NewRPCHandler(service AuthServiceInterface, schemaObserver SchemaObserver, cookie CookieConfig) *RPCHandler {
	return &RPCHandler{
		service:        service,
		schemaObserver: schemaObserver,
		cookie:         cookie,
	}
}

// sessionUserResponse はgetSessionで返すユーザー表現。
type sessionUserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Login はOAuth同意画面のURLを返す。
// GET /api/rpc/auth.login
func (h *RPCHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.ConsentURL("")
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			writeError(w, http.StatusInternalServerError, model.NewOAuthNotConfiguredError())
			return
		}
		slog.Error("failed to build consent URL", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GetSession は現在の認証状態を返す。
// GET /api/rpc/auth.getSession
// 匿名の場合もエラーにせず {user: null, isAuthenticated: false} を返す。
func (h *RPCHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":            nil,
			"isAuthenticated": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": sessionUserResponse{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			AvatarURL: user.AvatarURL,
		},
		"isAuthenticated": true,
	})
}

// Logout はセッションを破棄しCookieを削除する。
// POST /api/rpc/auth.logout
// 未認証でも成功を返す（冪等）。
func (h *RPCHandler) Logout(w http.ResponseWriter, r *http.Request) {
	credential := sessionCredentialFromRequest(r)
	if err := h.service.Logout(r.Context(), credential); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		// Cookie削除は続行する
	}

	http.SetCookie(w, newSessionDeleteCookie(h.cookie))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ConfigStatus はOAuth設定の有無を返す。
// GET /api/rpc/auth.configStatus
func (h *RPCHandler) ConfigStatus(w http.ResponseWriter, r *http.Request) {
	configured := h.service.Configured()
	message := "Google OAuth is configured"
	if !configured {
		message = "Google OAuth is not configured. Please set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables."
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": configured,
		"message":    message,
	})
}

// GetSchema はクライアント側レプリカの正規スキーマとハッシュを返す。
// GET /api/rpc/schema.get
func (h *RPCHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	if h.schemaObserver != nil {
		h.schemaObserver.RecordSchemaServed()
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"schema": schema.Canonical(),
		"hash":   schema.Hash(),
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError は構造化エラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, status int, apiErr *model.APIError) {
	writeJSON(w, status, apiErr)
}
