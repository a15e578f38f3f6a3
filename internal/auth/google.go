package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
	defaultGoogleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"

	// jwksCacheTTL はGoogleの署名鍵セットのキャッシュ有効期間。
	jwksCacheTTL = 1 * time.Hour
)

// googleIssuers はGoogle発行のIDトークンで許容されるissクレーム。
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	JWKSURL  string
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
// 認可コードの交換とIDトークンの署名検証（JWKS）を行う。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig

	mu          sync.Mutex
	jwksKeys    map[string]*rsa.PublicKey
	jwksFetched time.Time
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.JWKSURL == "" {
		config.JWKSURL = defaultGoogleJWKSURL
	}
	return &GoogleOAuthProvider{config: config}
}

// ConsentURL はGoogle OAuthの同意画面URLを生成する。
// スコープにはemail, profileを含む。
func (p *GoogleOAuthProvider) ConsentURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	if state != "" {
		params.Set("state", state)
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// Tokens はトークンエンドポイントから取得したトークンの組。
type Tokens struct {
	IDToken     string
	AccessToken string
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は認可コードをIDトークンとアクセストークンに交換する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.IDToken == "" || tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("missing tokens in response")
	}

	return &Tokens{IDToken: tokenResp.IDToken, AccessToken: tokenResp.AccessToken}, nil
}

// Identity はIDトークンの検証で得られる外部IdP上のユーザー情報。
type Identity struct {
	GoogleID  string
	Email     string
	Name      string
	AvatarURL string
}

// googleIDClaims はGoogle IDトークンのクレーム。
type googleIDClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// VerifyIDToken はGoogle発行のIDトークンを暗号学的に検証し、ユーザー情報を返す。
// 署名（JWKS）、有効期限、issuer、audience（自身のクライアントID）を確認する。
func (p *GoogleOAuthProvider) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(p.config.ClientID),
	)

	claims := &googleIDClaims{}
	parsed, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid in token header")
		}
		return p.signingKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid ID token")
	}

	validIssuer := false
	for _, iss := range googleIssuers {
		if claims.Issuer == iss {
			validIssuer = true
			break
		}
	}
	if !validIssuer {
		return nil, fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("missing sub claim")
	}

	return &Identity{
		GoogleID:  claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	}, nil
}

// signingKey はkidに対応するGoogleの公開鍵を返す。
// 鍵セットはjwksCacheTTLの間キャッシュし、未知のkidの場合は再取得する。
func (p *GoogleOAuthProvider) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if key, ok := p.jwksKeys[kid]; ok && time.Since(p.jwksFetched) < jwksCacheTTL {
		return key, nil
	}

	keys, err := p.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	p.jwksKeys = keys
	p.jwksFetched = time.Now()

	key, ok := p.jwksKeys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key: %s", kid)
	}
	return key, nil
}

// jwksDocument はJWKSエンドポイントのレスポンス。
type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// fetchJWKS はGoogleのJWKSエンドポイントからRSA公開鍵セットを取得する。
func (p *GoogleOAuthProvider) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("JWKS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no usable keys in JWKS response")
	}

	return keys, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
