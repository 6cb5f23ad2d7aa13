package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はDB疎通確認に許す時間。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// apiIndexResponse はAPIのインデックス情報。
type apiIndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// NewIndexHandler はAPIの概要を返すハンドラーを生成する。
// GET /
func NewIndexHandler(version string) http.HandlerFunc {
	body := apiIndexResponse{
		Message: "Meal Planner API",
		Version: version,
		Endpoints: map[string]string{
			"users":     "/api/users",
			"meals":     "/api/meals",
			"mealplans": "/api/mealplans",
			"health":    "/health",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

// NewHealthHandler はDB疎通を確認するヘルスチェックハンドラーを生成する。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
	}
}
