// Package token はセッション資格情報（署名付きトークン）の発行と検証を提供する。
//
// 資格情報はHS256署名のJWTで、{userId, sessionId, exp, iat}を含む。
// ブラウザはHTTP Only Cookieとして不透明に保持し、作成・検証は
// サーバーのみが行う。資格情報の有効期限はセッションレコードの
// 有効期限とは独立だが、検証時は両方を確認すること（失効の正は
// ストア側、7日上限の正は資格情報側）。
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultMaxAge はセッション資格情報の既定の有効期間（7日）。
const DefaultMaxAge = 7 * 24 * time.Hour

// Payload は検証済み資格情報から取り出したクレームを表す。
type Payload struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// sessionClaims はJWTに格納するクレーム。
type sessionClaims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Codec はセッション資格情報の発行・検証を行う。
// 署名シークレットはプロセス全体の設定として起動時に1回読み込み、
// 実行中のローテーションは行わない。
type Codec struct {
	secret []byte
	maxAge time.Duration
}

// NewCodec はCodecを生成する。maxAgeが0以下の場合はDefaultMaxAgeを使用する。
func NewCodec(secret string, maxAge time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Codec{secret: []byte(secret), maxAge: maxAge}, nil
}

// Issue は指定されたユーザーID・セッションIDに対する署名付き資格情報を発行する。
// 有効期限は発行時刻からmaxAge後。副作用はない。
func (c *Codec) Issue(userID, sessionID string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", fmt.Errorf("userID and sessionID are required")
	}

	now := time.Now()
	claims := sessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session credential: %w", err)
	}

	return signed, nil
}

// Verify は資格情報の署名と有効期限を検証し、クレームを返す。
// 署名不正、構造不正、期限切れのいずれの場合もnilを返す（エラーは返さない）。
// 呼び出し元はnilを「未認証」として扱えばよい。
func (c *Codec) Verify(credential string) *Payload {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	parsed, err := parser.ParseWithClaims(credential, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.UserID == "" || claims.SessionID == "" || claims.ExpiresAt == nil {
		return nil
	}

	return &Payload{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}
