package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealplan/internal/middleware"
	"github.com/hitoshi/mealplan/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	UserChecker       middleware.UserChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// システム
	Version        string
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	UserService     UserServiceInterface
	MealService     MealServiceInterface
	MealPlanService MealPlanServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//	  → [保護ルート] BearerAuth → [検索のみ] RateLimit(Search)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeNotFound,
			Message:  "Route not found",
			Category: "system",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{
			Code:     model.ErrCodeInvalidArgument,
			Message:  "Method not allowed",
			Category: "system",
		})
	})

	userHandler := NewUserHandler(deps.UserService)
	mealHandler := NewMealHandler(deps.MealService)
	mealPlanHandler := NewMealPlanHandler(deps.MealPlanService)

	// --- 認証不要のルート ---
	r.Get("/", NewIndexHandler(deps.Version))
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Post("/api/users/register", userHandler.Register)
	r.Post("/api/users/login", userHandler.Login)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.TokenVerifier, deps.UserChecker))

		// ユーザー管理
		r.Route("/api/users/{id}", func(r chi.Router) {
			r.Get("/", userHandler.GetUser)
			r.Put("/", userHandler.UpdatePreferences)
			r.Delete("/", userHandler.DeleteUser)
		})

		// レシピ（検索のみ専用レート制限を追加）
		r.Route("/api/meals", func(r chi.Router) {
			r.With(deps.RateLimiter.SearchMiddleware()).Get("/search", mealHandler.Search)
			r.Get("/{id}", mealHandler.GetDetails)
		})

		// 献立管理
		r.Route("/api/mealplans", func(r chi.Router) {
			r.Get("/", mealPlanHandler.List)
			r.Post("/", mealPlanHandler.Upsert)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", mealPlanHandler.Get)
				r.Delete("/", mealPlanHandler.Delete)
				r.Put("/meals/{mealId}", mealPlanHandler.UpdateMeal)
			})
		})
	})

	return r
}
