// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// 開発環境でSESSION_SECRET未設定時に使用するフォールバック値。
// 本番環境（APP_ENV=production）では未設定を起動時エラーとする。
const devSessionSecret = "dev-secret-change-in-production"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// OAuth
	// クライアントID/シークレットが未設定の場合、認証機能は
	// 「未設定」状態となる（起動エラーにはしない）。
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Session
	SessionSecret string
	SessionMaxAge int // 秒

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Replica（クライアント側のローカルレプリカ）
	ReplicaPath string

	// Sweep（期限切れセッションの掃除間隔）
	SweepInterval time.Duration
}

// Load は環境変数からConfigを読み込む。
// DATABASE_URLは必須。SESSION_SECRETは本番環境でのみ必須で、
// それ以外の環境では開発用フォールバックを使用する。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Environment = getEnvString("APP_ENV", "development")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		if cfg.Environment == "production" {
			return nil, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=production")
		}
		cfg.SessionSecret = devSessionSecret
	}

	// OAuth設定は任意。未設定はエラーではなく「未設定」状態。
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURI = getEnvString("GOOGLE_REDIRECT_URI", "/api/auth/callback")

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800) // 7日
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:5173")
	cfg.CookieSecure = cfg.Environment == "production"
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.ReplicaPath = getEnvString("REPLICA_PATH", "colddrive-replica.db")
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 1*time.Hour)

	return cfg, nil
}

// OAuthConfigured はGoogle OAuthのクライアント資格情報が設定されているかを返す。
func (c *Config) OAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// UsingDevSessionSecret は開発用フォールバックの署名シークレットを
// 使用しているかを返す。起動時の警告ログ用。
func (c *Config) UsingDevSessionSecret() bool {
	return c.SessionSecret == devSessionSecret
}

// RedirectURL はOAuthコールバックの絶対URLを返す。
func (c *Config) RedirectURL() string {
	return c.BaseURL + c.GoogleRedirectURI
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
