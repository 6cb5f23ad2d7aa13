package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/mealplan/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"invalid argument", model.NewInvalidArgumentError("x"), http.StatusBadRequest},
		{"capacity exceeded", model.NewCapacityExceededError(), http.StatusBadRequest},
		{"unauthorized", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"forbidden", model.NewForbiddenError("no"), http.StatusForbidden},
		{"not found", model.NewMealPlanNotFoundError(), http.StatusNotFound},
		{"conflict", model.NewUsernameTakenError(), http.StatusConflict},
		{"upstream timeout", model.NewUpstreamTimeoutError(), http.StatusGatewayTimeout},
		{"quota exceeded", model.NewQuotaExceededError(), http.StatusServiceUnavailable},
		{"rate limited", model.NewRateLimitedError(), http.StatusTooManyRequests},
		{"upstream passthrough", model.NewUpstreamError(http.StatusBadRequest, "bad"), http.StatusBadRequest},
		{"upstream 5xx passthrough", model.NewUpstreamError(http.StatusServiceUnavailable, ""), http.StatusServiceUnavailable},
		{"upstream unknown status", model.NewUpstreamError(0, ""), http.StatusBadGateway},
		{"invalid api key", model.NewInvalidAPIKeyError(), http.StatusInternalServerError},
		{"internal", model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("献立の取得に失敗しました: %w", model.NewMealPlanNotFoundError()))

	assertStatus(t, w, http.StatusNotFound)
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeNotFound)
	}
}

func TestHandleServiceError_PlainErrorIsHidden(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: password authentication failed for user admin"))

	assertStatus(t, w, http.StatusInternalServerError)
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInternal)
	}
	if body["message"] == "" || body["message"] == "pq: password authentication failed for user admin" {
		t.Errorf("message leaked internal detail: %q", body["message"])
	}
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
	req.Body = http.NoBody
	w := httptest.NewRecorder()

	var v loginRequest
	if decodeJSON(w, req, &v) {
		t.Fatal("decodeJSON should fail for an empty body")
	}
	assertStatus(t, w, http.StatusBadRequest)
}
