package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/shoppingfeed/internal/middleware"
	"github.com/hitoshi/shoppingfeed/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPStatusRecorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Tokens            middleware.TokenLookup

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// フィード配信
	FeedService   FeedQuerier
	StorefrontURL string

	// ショップ単位の操作
	Shops     ShopFinder
	Settings  repository.SettingsRepository
	Scheduler FeedScheduler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// ショップ単位のAPIは TokenAuth → ShopPermission を追加で通過する。
// 即時生成にはさらに専用のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	feedHandler := NewFeedHandler(deps.FeedService, deps.StorefrontURL)
	shopHandler := NewShopHandler(deps.Shops, deps.Settings, deps.Scheduler)

	// --- レート制限対象外のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フィード配信（認証不要）
		r.Get("/google-shopping-feed*", feedHandler.ServeXML)
		r.Get("/api/google-shopping-feeds", feedHandler.GetFeed)

		// ショップ単位の操作（APIトークン認証 + ショップ権限）
		r.Route("/api/shops/{shopID}/google-shopping-feeds", func(r chi.Router) {
			r.Use(middleware.NewTokenAuthMiddleware(deps.Tokens))
			r.Use(middleware.NewShopPermissionMiddleware("shopID"))

			r.With(deps.RateLimiter.GenerateMiddleware()).Post("/generate", shopHandler.GenerateFeedsNow)
			r.Get("/settings", shopHandler.GetSettings)
			r.Put("/settings", shopHandler.UpdateSettings)
		})
	})

	return r
}
