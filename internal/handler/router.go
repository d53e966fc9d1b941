package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/propman/internal/assetstore"
	"github.com/hitoshi/propman/internal/metrics"
	"github.com/hitoshi/propman/internal/middleware"
	"github.com/hitoshi/propman/internal/security"
)

// HealthPinger はヘルスチェックでの死活確認インターフェース。
// *sql.DBが実装する。
type HealthPinger interface {
	PingContext(ctx context.Context) error
}

// SetupListingRoutes は物件リスティング関連のルーティングを設定したchi.Routerを返す。
// writeMiddleware が nil でない場合、書き込み系ルートに書き込み専用レート制限を適用する。
func SetupListingRoutes(service ListingServiceInterface, recorder ListingMetricsRecorder, writeMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewListingHandler(service, recorder)

	r.Route("/api/listings", func(r chi.Router) {
		r.Get("/", h.ListListings)
		r.Get("/recent", h.RecentListings)

		if writeMiddleware != nil {
			r.With(writeMiddleware).Post("/", h.CreateListing)
		} else {
			r.Post("/", h.CreateListing)
		}

		// /api/listings/:id 以下のルーティング
		r.Route("/{id}", func(r chi.Router) {
			if writeMiddleware != nil {
				r.With(writeMiddleware).Put("/", h.UpdateListing)
				r.With(writeMiddleware).Delete("/", h.DeleteListing)
			} else {
				r.Put("/", h.UpdateListing)
				r.Delete("/", h.DeleteListing)
			}
		})
	})

	r.Get("/api/properties/{slug}", h.GetPropertyBySlug)

	return r
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 物件リスティング
	ListingService ListingServiceInterface

	// 画像アップロード
	AssetStore    assetstore.AssetStore
	SSRFGuard     security.SSRFGuardService
	MaxUploadSize int64
	FetchTimeout  time.Duration

	// 観測性
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// ヘルスチェック（nilの場合はプロセス死活のみ）
	HealthPinger HealthPinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
// 書き込み系ルート（POST/PUT/DELETE）には書き込み専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	listingHandler := NewListingHandler(deps.ListingService, deps.Metrics)
	uploadHandler := NewUploadHandler(deps.AssetStore, deps.SSRFGuard, deps.Metrics, deps.MaxUploadSize, deps.FetchTimeout)

	// --- レート制限の外のルート ---

	r.Get("/health", newHealthHandler(deps.HealthPinger))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		write := deps.RateLimiter.WriteMiddleware()

		// 物件リスティング
		r.Route("/api/listings", func(r chi.Router) {
			r.Get("/", listingHandler.ListListings)
			r.Get("/recent", listingHandler.RecentListings)
			r.With(write).Post("/", listingHandler.CreateListing)

			r.Route("/{id}", func(r chi.Router) {
				r.With(write).Put("/", listingHandler.UpdateListing)
				r.With(write).Delete("/", listingHandler.DeleteListing)
			})
		})

		// 物件詳細（スラッグ）
		r.Get("/api/properties/{slug}", listingHandler.GetPropertyBySlug)

		// 画像アップロード
		r.Route("/api/upload", func(r chi.Router) {
			r.With(write).Post("/", uploadHandler.UploadImage)
			r.With(write).Post("/url", uploadHandler.UploadImageFromURL)
		})
	})

	return r
}

// healthResponse はヘルスチェックのAPIレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// newHealthHandler はヘルスチェックハンドラーを生成する。
// pingerが指定されている場合はデータベースへの疎通も確認する。
func newHealthHandler(pinger HealthPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			if err := pinger.PingContext(ctx); err != nil {
				slog.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(healthResponse{Status: "unavailable"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	}
}
