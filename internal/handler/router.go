package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tunesync/internal/metrics"
	"github.com/hitoshi/tunesync/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	TokenParser       middleware.TokenParser
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	TokenIssuer TokenIssuer
	AuthConfig  AuthHandlerConfig

	// 同期ストア
	SyncService SyncServiceInterface

	// 運用エンドポイント
	DB       *sql.DB // nil可（縮退モード）
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging
//
// セッションミドルウェアは全ルートに適用されるが、クレームの注入のみを
// 行い拒否はしない。未認証時の応答契約は各ハンドラーが持つ。
// ロギングはセッションの内側に置く。コンテキストは内側へしか流れないため、
// この順序でなければuser_idがログに乗らない。
// レート制限は/api/syncのみに適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.TokenParser))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenIssuer, deps.AuthConfig)
	syncHandler := NewSyncHandler(deps.SyncService)
	healthHandler := NewHealthHandler(deps.DB)

	// 認証ゲートウェイ（メソッド+actionクエリで多重化）
	r.HandleFunc("/api/google-auth", authHandler.Handle)

	// 同期ストア（レート制限付き）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.SyncMiddleware())
		r.HandleFunc("/api/sync", syncHandler.Handle)
	})

	// 運用エンドポイント
	r.Get("/health", healthHandler.Handle)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
