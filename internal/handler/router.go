package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/guildhall/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	StoreTimeout      time.Duration

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	StatusRecorder middleware.StatusRecorder

	BaseURL string

	// ドメインサービス
	Profiles      ProfileFinder
	Community     CommunityServiceInterface
	Visibility    VisibilityServiceInterface
	Invites       InviteServiceInterface
	Conversations ConversationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS
//	  → (/api) Timeout → Session → RateLimit(General) → CSRF
//
// /health と /metrics はセッションなしで公開する。
// Timeoutはセッション検索を含む/api配下のストア呼び出し全体に期限を設ける。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	profileHandler := NewProfileHandler(deps.Profiles)
	serverHandler := NewServerHandler(deps.Community, deps.Visibility, deps.BaseURL)
	inviteHandler := NewInviteHandler(deps.Invites)
	convHandler := NewConversationHandler(deps.Conversations)

	// --- 認証不要のルート ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// セッションがない場合はどのルートも一律401を返す
	r.Group(func(r chi.Router) {
		if deps.StoreTimeout > 0 {
			r.Use(chimw.Timeout(deps.StoreTimeout))
		}
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			r.Get("/api/profiles/me", profileHandler.Me)

			r.Post("/api/servers", serverHandler.CreateServer)
			r.Route("/api/servers/{serverID}", func(r chi.Router) {
				r.Get("/view", serverHandler.View)
				r.Post("/invite-code", serverHandler.RegenerateInviteCode)
				r.Get("/channels/{channelID}", serverHandler.Channel)
				r.Post("/conversations/{memberID}", convHandler.Open)
			})

			// 招待コード利用は専用のレート制限を追加
			r.With(deps.RateLimiter.InviteMiddleware()).Post("/api/invites/{inviteCode}", inviteHandler.Redeem)
		})
	})

	return r
}
