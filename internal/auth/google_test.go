package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGoogleOAuthProvider_ConsentURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/api/auth/callback",
	})

	url := provider.ConsentURL("test-state-value")

	if url == "" {
		t.Fatal("expected non-empty URL")
	}

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-client-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope email", "email"},
		{"scope profile", "profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(url, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, url)
			}
		})
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		if got := r.PostForm.Get("code"); got != "test-auth-code" {
			t.Errorf("code = %q, want %q", got, "test-auth-code")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"id_token":     "test-id-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/api/auth/callback",
		TokenURL:     tokenServer.URL,
	})

	tokens, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if tokens.IDToken != "test-id-token" {
		t.Errorf("IDToken = %q, want %q", tokens.IDToken, "test-id-token")
	}
	if tokens.AccessToken != "test-access-token" {
		t.Errorf("AccessToken = %q, want %q", tokens.AccessToken, "test-access-token")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		TokenURL:     tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "redeemed-code"); err == nil {
		t.Fatal("expected error for rejected code")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_MissingIDToken_ReturnsError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		TokenURL: tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error for response without id_token")
	}
}

// --- IDトークン検証テスト用のヘルパー ---

// newTestJWKSServer はテスト用のRSA鍵ペアとJWKSサーバーを生成する。
func newTestJWKSServer(t *testing.T, kid string) (*rsa.PrivateKey, *httptest.Server) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{
				{
					"kty": "RSA",
					"kid": kid,
					"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
				},
			},
		})
	}))

	return key, server
}

// signTestIDToken は指定鍵でGoogle形式のIDトークンを署名する。
func signTestIDToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test ID token: %v", err)
	}
	return signed
}

func TestGoogleOAuthProvider_VerifyIDToken_Success(t *testing.T) {
	key, jwksServer := newTestJWKSServer(t, "test-kid")
	defer jwksServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		JWKSURL:  jwksServer.URL,
	})

	idToken := signTestIDToken(t, key, "test-kid", jwt.MapClaims{
		"iss":     "https://accounts.google.com",
		"aud":     "test-client-id",
		"sub":     "google-sub-12345",
		"email":   "user@gmail.com",
		"name":    "Google User",
		"picture": "https://example.com/photo.jpg",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	identity, err := provider.VerifyIDToken(context.Background(), idToken)
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}

	if identity.GoogleID != "google-sub-12345" {
		t.Errorf("GoogleID = %q, want %q", identity.GoogleID, "google-sub-12345")
	}
	if identity.Email != "user@gmail.com" {
		t.Errorf("Email = %q, want %q", identity.Email, "user@gmail.com")
	}
	if identity.Name != "Google User" {
		t.Errorf("Name = %q, want %q", identity.Name, "Google User")
	}
	if identity.AvatarURL != "https://example.com/photo.jpg" {
		t.Errorf("AvatarURL = %q, want %q", identity.AvatarURL, "https://example.com/photo.jpg")
	}
}

func TestGoogleOAuthProvider_VerifyIDToken_WrongAudience_ReturnsError(t *testing.T) {
	key, jwksServer := newTestJWKSServer(t, "test-kid")
	defer jwksServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		JWKSURL:  jwksServer.URL,
	})

	idToken := signTestIDToken(t, key, "test-kid", jwt.MapClaims{
		"iss": "https://accounts.google.com",
		"aud": "other-client-id",
		"sub": "google-sub-12345",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := provider.VerifyIDToken(context.Background(), idToken); err == nil {
		t.Fatal("expected error for wrong audience")
	}
}

func TestGoogleOAuthProvider_VerifyIDToken_WrongIssuer_ReturnsError(t *testing.T) {
	key, jwksServer := newTestJWKSServer(t, "test-kid")
	defer jwksServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		JWKSURL:  jwksServer.URL,
	})

	idToken := signTestIDToken(t, key, "test-kid", jwt.MapClaims{
		"iss": "https://evil.example.com",
		"aud": "test-client-id",
		"sub": "google-sub-12345",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := provider.VerifyIDToken(context.Background(), idToken); err == nil {
		t.Fatal("expected error for wrong issuer")
	}
}

func TestGoogleOAuthProvider_VerifyIDToken_WrongKey_ReturnsError(t *testing.T) {
	_, jwksServer := newTestJWKSServer(t, "test-kid")
	defer jwksServer.Close()

	// JWKSで公開していない別の鍵で署名する
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		JWKSURL:  jwksServer.URL,
	})

	idToken := signTestIDToken(t, otherKey, "test-kid", jwt.MapClaims{
		"iss": "https://accounts.google.com",
		"aud": "test-client-id",
		"sub": "google-sub-12345",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := provider.VerifyIDToken(context.Background(), idToken); err == nil {
		t.Fatal("expected error for signature from unpublished key")
	}
}

func TestGoogleOAuthProvider_VerifyIDToken_UnknownKid_ReturnsError(t *testing.T) {
	key, jwksServer := newTestJWKSServer(t, "known-kid")
	defer jwksServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		JWKSURL:  jwksServer.URL,
	})

	idToken := signTestIDToken(t, key, "unknown-kid", jwt.MapClaims{
		"iss": "https://accounts.google.com",
		"aud": "test-client-id",
		"sub": "google-sub-12345",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := provider.VerifyIDToken(context.Background(), idToken); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}
