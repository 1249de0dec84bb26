// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grosync/internal/auth"
	"github.com/hitoshi/grosync/internal/metrics"
	"github.com/hitoshi/grosync/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	Verifier auth.TokenVerifier

	// メトリクス（MetricsHandlerがnilの場合は/metricsを公開しない）
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// プロフィール
	ProfileService ProfileServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → CORS → Logging → Recovery → SecurityHeaders
//	/api/users/{uid} 配下: FirebaseAuth → RateLimit
//
// CORSを上位に置き、エラーレスポンスとプリフライトにもCORSヘッダーを付与する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	profileHandler := NewProfileHandler(deps.ProfileService)

	// --- 認証不要のルート ---
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB).Health)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// uidが無いパスは認証より先に400を返す
	r.HandleFunc("/api/users", profileHandler.MissingUID)
	r.HandleFunc("/api/users/", profileHandler.MissingUID)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: FirebaseAuth → RateLimit
	r.Route("/api/users/{uid}", func(r chi.Router) {
		r.Use(middleware.NewFirebaseAuthMiddleware(deps.Verifier, deps.Metrics))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/", profileHandler.GetProfile)
		r.Post("/", profileHandler.SyncProfile)
		r.Post("/purchase", profileHandler.Purchase)
		r.Post("/cancel", profileHandler.Cancel)
	})

	return r
}
