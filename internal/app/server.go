package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/mealplan/internal/auth"
	"github.com/hitoshi/mealplan/internal/config"
	"github.com/hitoshi/mealplan/internal/handler"
	"github.com/hitoshi/mealplan/internal/mealplan"
	"github.com/hitoshi/mealplan/internal/metrics"
	"github.com/hitoshi/mealplan/internal/middleware"
	"github.com/hitoshi/mealplan/internal/recipe"
	"github.com/hitoshi/mealplan/internal/repository"
	"github.com/hitoshi/mealplan/internal/security"
	"github.com/hitoshi/mealplan/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version はindexエンドポイントで返すAPIバージョン。
const Version = "1.0.0"

// server はHTTPサーバーと停止時に解放するリソースをまとめたもの。
type server struct {
	http        *http.Server
	rateLimiter *middleware.RateLimiter
}

// close はバックグラウンドで動くリソースを停止する。
func (s *server) close() {
	s.rateLimiter.Stop()
}

// newServer は全依存関係をワイヤリングしてHTTPサーバーを構築する。
// dbへの接続確認は呼び出し側で済ませておくこと。
func newServer(cfg *config.Config, db *sql.DB, logger *slog.Logger) *server {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	mealPlanRepo := repository.NewPostgresMealPlanRepo(db)

	// 3. セキュリティ
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewRecipeSanitizer()

	// 4. ドメインサービス
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	userService := user.NewService(userRepo, tokens)
	mealPlanService := mealplan.NewService(mealPlanRepo, urlGuard, collector)

	recipeClient := recipe.NewClient(
		urlGuard.NewSafeClient(cfg.RecipeTimeout),
		logger,
		recipe.Config{
			BaseURL:  cfg.SpoonacularBaseURL,
			APIKey:   cfg.SpoonacularAPIKey,
			Timeout:  cfg.RecipeTimeout,
			PageSize: cfg.RecipePageSize,
		},
		sanitizer,
		collector,
	)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWindow, cfg.RateLimitSearch),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		TokenVerifier:     tokens,
		UserChecker:       userService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Version:        Version,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		UserService:     userService,
		MealService:     handler.NewMealServiceAdapter(recipeClient, userService),
		MealPlanService: mealPlanService,
	})

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		rateLimiter: rateLimiter,
	}
}
