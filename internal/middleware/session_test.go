package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crvouga/colddrive/internal/model"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, credential string) *model.User
}

func (m *mockResolver) ResolveUser(ctx context.Context, credential string) *model.User {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, credential)
	}
	return nil
}

func TestSessionMiddleware_ValidCredential_InjectsUser(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, credential string) *model.User {
			if credential != "valid-credential" {
				t.Errorf("credential = %q, want %q", credential, "valid-credential")
			}
			return &model.User{ID: "user-1", Email: "user@example.com"}
		},
	}

	var resolved *model.User
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.getSession", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-credential"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resolved == nil {
		t.Fatal("expected user in context")
	}
	if resolved.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", resolved.ID, "user-1")
	}
}

func TestSessionMiddleware_NoCookie_PassesThroughAnonymous(t *testing.T) {
	resolveCalled := false
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, credential string) *model.User {
			resolveCalled = true
			return nil
		},
	}

	var resolved *model.User
	handlerCalled := false
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		resolved = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.getSession", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Fatal("expected handler to be called for anonymous request")
	}
	if resolveCalled {
		t.Error("expected resolver not to be called without cookie")
	}
	if resolved != nil {
		t.Errorf("expected nil user, got %+v", resolved)
	}
}

func TestSessionMiddleware_InvalidCredential_PassesThroughAnonymous(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, credential string) *model.User {
			return nil
		},
	}

	handlerCalled := false
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if user := UserFromContext(r.Context()); user != nil {
			t.Errorf("expected nil user, got %+v", user)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rpc/auth.getSession", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Fatal("expected handler to be called for invalid credential")
	}
}

func TestUserFromContext_Empty_ReturnsNil(t *testing.T) {
	if user := UserFromContext(context.Background()); user != nil {
		t.Errorf("expected nil, got %+v", user)
	}
}

func TestContextWithUser_RoundTrip(t *testing.T) {
	user := &model.User{ID: "user-1"}
	ctx := ContextWithUser(context.Background(), user)

	got := UserFromContext(ctx)
	if got == nil || got.ID != "user-1" {
		t.Errorf("expected user-1, got %+v", got)
	}
}
