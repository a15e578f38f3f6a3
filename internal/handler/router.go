package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crvouga/colddrive/internal/metrics"
	"github.com/crvouga/colddrive/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 観測
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック用
	DB *sql.DB
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → RateLimit
//
// コールバック（/api/auth/callback）はブラウザナビゲーションで到達するため
// レート制限の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		var observer middleware.StatusObserver
		if deps.Collector != nil {
			observer = deps.Collector
		}
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, observer))
	}

	var loginObserver LoginObserver
	var schemaObserver SchemaObserver
	if deps.Collector != nil {
		loginObserver = deps.Collector
		schemaObserver = deps.Collector
	}

	authHandler := NewAuthHandler(deps.AuthService, loginObserver, deps.AuthConfig)
	rpcHandler := NewRPCHandler(deps.AuthService, schemaObserver, deps.AuthConfig.Cookie)

	// 運用エンドポイント
	r.Get("/health", NewHealthHandler(deps.DB).Check)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// OAuthフロー（ブラウザナビゲーション）
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	// RPCエンドポイント
	// ミドルウェアスタック: Session（匿名許容） → RateLimit
	r.Route("/api/rpc", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/auth.login", rpcHandler.Login)
		r.Get("/auth.getSession", rpcHandler.GetSession)
		r.Post("/auth.logout", rpcHandler.Logout)
		r.Get("/auth.configStatus", rpcHandler.ConfigStatus)
		r.Get("/schema.get", rpcHandler.GetSchema)
	})

	return r
}
