package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crvouga/colddrive/internal/middleware"
	"github.com/crvouga/colddrive/internal/model"
	"github.com/crvouga/colddrive/internal/schema"
)

func testRPCHandler(service *mockAuthService) *RPCHandler {
	return NewRPCHandler(service, nil, CookieConfig{MaxAge: 604800})
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestRPCLogin_Configured_ReturnsURL(t *testing.T) {
	service := &mockAuthService{
		configured: true,
		consentURLFn: func(state string) (string, error) {
			return "https://accounts.google.com/o/oauth2/v2/auth?client_id=x", nil
		},
	}
	h := testRPCHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.login", nil)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["url"] == "" {
		t.Error("expected non-empty url")
	}
}

func TestRPCLogin_NotConfigured_ReturnsStructuredError(t *testing.T) {
	h := testRPCHandler(&mockAuthService{configured: false})

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.login", nil)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var apiErr model.APIError
	decodeJSON(t, rec, &apiErr)
	if apiErr.Code != model.ErrCodeOAuthNotConfigured {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeOAuthNotConfigured)
	}
	if apiErr.Category != "config" {
		t.Errorf("category = %q, want %q", apiErr.Category, "config")
	}
}

func TestRPCGetSession_Anonymous_ReturnsNullUser(t *testing.T) {
	h := testRPCHandler(&mockAuthService{configured: true})

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.getSession", nil)
	rec := httptest.NewRecorder()
	h.GetSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		User            *sessionUserResponse `json:"user"`
		IsAuthenticated bool                 `json:"isAuthenticated"`
	}
	decodeJSON(t, rec, &body)
	if body.User != nil {
		t.Errorf("expected null user, got %+v", body.User)
	}
	if body.IsAuthenticated {
		t.Error("expected isAuthenticated=false")
	}
}

func TestRPCGetSession_Authenticated_ReturnsUser(t *testing.T) {
	h := testRPCHandler(&mockAuthService{configured: true})

	user := &model.User{
		ID:        "user-1",
		Email:     "user@example.com",
		Name:      "Test User",
		AvatarURL: "https://example.com/a.png",
	}
	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.getSession", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.GetSession(rec, req)

	var body struct {
		User            *sessionUserResponse `json:"user"`
		IsAuthenticated bool                 `json:"isAuthenticated"`
	}
	decodeJSON(t, rec, &body)
	if body.User == nil {
		t.Fatal("expected user")
	}
	if body.User.ID != "user-1" || body.User.Email != "user@example.com" {
		t.Errorf("unexpected user: %+v", body.User)
	}
	if !body.IsAuthenticated {
		t.Error("expected isAuthenticated=true")
	}
}

func TestRPCLogout_ClearsCookieAndReturnsSuccess(t *testing.T) {
	h := testRPCHandler(&mockAuthService{configured: true})

	req := httptest.NewRequest(http.MethodPost, "/api/rpc/auth.logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "credential"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]bool
	decodeJSON(t, rec, &body)
	if !body["success"] {
		t.Error("expected success=true")
	}

	cookie := sessionCookieFrom(t, rec)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("expected delete cookie")
	}
}

func TestRPCConfigStatus_ReflectsConfiguration(t *testing.T) {
	for _, configured := range []bool{true, false} {
		h := testRPCHandler(&mockAuthService{configured: configured})

		req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.configStatus", nil)
		rec := httptest.NewRecorder()
		h.ConfigStatus(rec, req)

		var body struct {
			Configured bool   `json:"configured"`
			Message    string `json:"message"`
		}
		decodeJSON(t, rec, &body)
		if body.Configured != configured {
			t.Errorf("configured = %v, want %v", body.Configured, configured)
		}
		if body.Message == "" {
			t.Error("expected non-empty message")
		}
	}
}

func TestRPCGetSchema_ReturnsSchemaAndHash(t *testing.T) {
	h := testRPCHandler(&mockAuthService{configured: true})

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/schema.get", nil)
	rec := httptest.NewRecorder()
	h.GetSchema(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["schema"] != schema.Canonical() {
		t.Error("schema should match canonical form")
	}
	if body["hash"] != schema.Hash() {
		t.Errorf("hash = %q, want %q", body["hash"], schema.Hash())
	}
}
